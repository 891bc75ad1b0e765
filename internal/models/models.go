package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ServerType is one class of machine described by the system document.
type ServerType struct {
	Name       string  `json:"type"`
	Limit      int     `json:"limit"`
	BootTime   int     `json:"bootup_time"`
	HourlyRate float64 `json:"hourly_rate"`
	Cores      int     `json:"cores"`
	Memory     int     `json:"memory"`
	Disk       int     `json:"disk"`
}

// Fits reports whether the nominal capacity of the type can hold the job.
func (s ServerType) Fits(j Job) bool {
	return s.Cores >= j.Cores && s.Memory >= j.Memory && s.Disk >= j.Disk
}

type ServerState int

const (
	ServerInactive ServerState = iota
	ServerBooting
	ServerIdle
	ServerActive
	ServerUnavailable
)

var serverStateNames = [...]string{"inactive", "booting", "idle", "active", "unavailable"}

func (s ServerState) String() string {
	if s >= 0 && int(s) < len(serverStateNames) {
		return serverStateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ParseServerState accepts either the numeric state code or its name.
func ParseServerState(s string) (ServerState, error) {
	for i, name := range serverStateNames {
		if strings.EqualFold(s, name) {
			return ServerState(i), nil
		}
	}
	code, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unknown server state %q", s)
	}
	if code < 0 || code > int(ServerUnavailable) {
		return 0, fmt.Errorf("server state %d out of range", code)
	}
	return ServerState(code), nil
}

// AvailablePerpetual is the available-time value reported for an instance
// that has no queued work ahead of new jobs.
const AvailablePerpetual = -1

// ResourceRecord is one server instance as reported by a RESC query.
type ResourceRecord struct {
	Type          string      `json:"type"`
	ID            int         `json:"id"`
	State         ServerState `json:"state"`
	AvailableTime int         `json:"available_time"`
	Cores         int         `json:"cores"`
	Memory        int         `json:"memory"`
	Disk          int         `json:"disk"`
}

// Fits reports whether the live free capacity of the instance can hold the job.
func (r ResourceRecord) Fits(j Job) bool {
	return r.Cores >= j.Cores && r.Memory >= j.Memory && r.Disk >= j.Disk
}

type Job struct {
	SubmitTime int `json:"submit_time"`
	ID         int `json:"id"`
	EstRuntime int `json:"est_runtime"`
	Cores      int `json:"cores"`
	Memory     int `json:"memory"`
	Disk       int `json:"disk"`
}

// Placement is a scheduling decision. The zero value means no decision.
type Placement struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// None is the placement returned when a policy declines to schedule a job.
var None = Placement{}

func (p Placement) IsNone() bool {
	return p.Type == ""
}

func (p Placement) String() string {
	if p.IsNone() {
		return "<none>"
	}
	return fmt.Sprintf("%s %d", p.Type, p.Index)
}

// PlacementOf targets the instance described by a resource record.
func PlacementOf(r ResourceRecord) Placement {
	return Placement{Type: r.Type, Index: r.ID}
}

type Event struct {
	At        time.Time `json:"at"`
	Type      string    `json:"type"`
	JobID     *int      `json:"job_id,omitempty"`
	Placement Placement `json:"placement"`
	Detail    string    `json:"detail,omitempty"`
}
