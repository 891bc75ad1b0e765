package events

import (
	"sort"
	"time"

	"github.com/angariumd/dsclient/internal/models"
)

const (
	// Decisions
	TypeJobScheduled = "JOB_SCHEDULED"
	TypeJobSkipped   = "JOB_SKIPPED"

	// Server notifications
	TypeJobCompleted    = "JOB_COMPLETED"
	TypeServerFailed    = "SERVER_FAILED"
	TypeServerRecovered = "SERVER_RECOVERED"

	TypeSessionEnded = "SESSION_ENDED"
)

// Recorder keeps the events of one session in order. The session runs on a
// single goroutine, so Recorder is not safe for concurrent use.
type Recorder struct {
	events []models.Event
	now    func() time.Time
}

func New() *Recorder {
	return &Recorder{now: time.Now}
}

func (r *Recorder) Emit(eventType string, jobID *int, placement models.Placement, detail string) {
	r.events = append(r.events, models.Event{
		At:        r.now(),
		Type:      eventType,
		JobID:     jobID,
		Placement: placement,
		Detail:    detail,
	})
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []models.Event {
	out := make([]models.Event, len(r.events))
	copy(out, r.events)
	return out
}

type TypeCount struct {
	ServerType string
	Jobs       int
}

type Summary struct {
	Scheduled int
	Skipped   int
	Completed int
	Failures  int
	// PerType counts scheduled jobs by server type, busiest first.
	PerType []TypeCount
}

func (r *Recorder) Summary() Summary {
	var s Summary
	perType := make(map[string]int)
	for _, e := range r.events {
		switch e.Type {
		case TypeJobScheduled:
			s.Scheduled++
			perType[e.Placement.Type]++
		case TypeJobSkipped:
			s.Skipped++
		case TypeJobCompleted:
			s.Completed++
		case TypeServerFailed:
			s.Failures++
		}
	}
	for name, n := range perType {
		s.PerType = append(s.PerType, TypeCount{ServerType: name, Jobs: n})
	}
	sort.Slice(s.PerType, func(i, j int) bool {
		if s.PerType[i].Jobs != s.PerType[j].Jobs {
			return s.PerType[i].Jobs > s.PerType[j].Jobs
		}
		return s.PerType[i].ServerType < s.PerType[j].ServerType
	})
	return s
}
