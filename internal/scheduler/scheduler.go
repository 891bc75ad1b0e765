package scheduler

import (
	"context"

	"github.com/pkg/errors"

	"github.com/angariumd/dsclient/internal/catalog"
	"github.com/angariumd/dsclient/internal/models"
	"github.com/angariumd/dsclient/internal/resource"
)

// Policy picks a server for a job. A job nothing can hold yields
// models.None with a nil error; errors only come from the querier.
type Policy interface {
	Name() string
	Decide(ctx context.Context, job models.Job, cat *catalog.Catalog, q resource.Querier) (models.Placement, error)
}

var ErrUnknownPolicy = errors.New("unknown scheduling algorithm")

// New returns the policy registered under name. The empty name selects
// LargestFirst.
func New(name string) (Policy, error) {
	switch name {
	case "", "atl", "lf":
		return LargestFirst{}, nil
	case "ff":
		return FirstFit{}, nil
	case "bf":
		return BestFit{}, nil
	case "wf":
		return WorstFit{}, nil
	}
	return nil, errors.Wrapf(ErrUnknownPolicy, "%q (want ff, bf or wf)", name)
}

// LargestFirst sends every job to the first instance of the biggest type.
type LargestFirst struct{}

func (LargestFirst) Name() string { return "atl" }

func (LargestFirst) Decide(_ context.Context, _ models.Job, cat *catalog.Catalog, _ resource.Querier) (models.Placement, error) {
	largest, ok := cat.Largest()
	if !ok {
		return models.None, nil
	}
	return models.Placement{Type: largest.Name}, nil
}

// FirstFit walks types from smallest to largest and takes the first live
// instance with room for the job.
type FirstFit struct{}

func (FirstFit) Name() string { return "ff" }

func (FirstFit) Decide(ctx context.Context, job models.Job, cat *catalog.Catalog, q resource.Querier) (models.Placement, error) {
	types := cat.SortedByCores()
	queried := make(map[string]bool)

	for _, st := range types {
		if !st.Fits(job) || queried[st.Name] {
			continue
		}
		queried[st.Name] = true
		records, err := q.ByType(ctx, st.Name)
		if err != nil {
			return models.None, err
		}
		for _, r := range records {
			if r.Fits(job) && r.State != models.ServerUnavailable {
				return models.PlacementOf(r), nil
			}
		}
	}

	// Nothing free right now; queue on the smallest type that can ever run it.
	for _, st := range types {
		if st.Fits(job) {
			return models.Placement{Type: st.Name}, nil
		}
	}
	return models.None, nil
}

// fitness is the number of cores left over after placing the job.
func fitness(cores int, job models.Job) int {
	return cores - job.Cores
}

type candidate struct {
	record  models.ResourceRecord
	fitness int
	set     bool
}

// offer replaces c when fit is strictly better per better, or equal with an
// earlier available time.
func (c *candidate) offer(r models.ResourceRecord, fit int, better func(a, b int) bool) {
	if !c.set || better(fit, c.fitness) || (fit == c.fitness && r.AvailableTime < c.record.AvailableTime) {
		c.record, c.fitness, c.set = r, fit, true
	}
}

func (c *candidate) placement() (models.Placement, bool) {
	if !c.set {
		return models.None, false
	}
	return models.PlacementOf(c.record), true
}

func less(a, b int) bool    { return a < b }
func greater(a, b int) bool { return a > b }

// BestFit picks the instance that leaves the fewest cores idle.
type BestFit struct{}

func (BestFit) Name() string { return "bf" }

func (BestFit) Decide(ctx context.Context, job models.Job, cat *catalog.Catalog, q resource.Querier) (models.Placement, error) {
	var best, fallback candidate
	queried := make(map[string]bool)

	for _, st := range cat.All() {
		if !st.Fits(job) || queried[st.Name] {
			continue
		}
		queried[st.Name] = true
		records, err := q.ByType(ctx, st.Name)
		if err != nil {
			return models.None, err
		}

		fitted := false
		for _, r := range records {
			if r.Fits(job) && r.State != models.ServerUnavailable {
				best.offer(r, fitness(r.Cores, job), less)
				fitted = true
			}
		}
		if fitted {
			continue
		}
		for _, r := range records {
			if r.State == models.ServerIdle || r.State == models.ServerActive {
				fallback.offer(r, fitness(st.Cores, job), less)
			}
		}
	}

	if p, ok := best.placement(); ok {
		return p, nil
	}
	if p, ok := fallback.placement(); ok {
		return p, nil
	}
	return models.None, nil
}

// WorstFit picks the instance that leaves the most cores idle, preferring
// instances that are free at submission time.
type WorstFit struct{}

func (WorstFit) Name() string { return "wf" }

func (WorstFit) Decide(ctx context.Context, job models.Job, cat *catalog.Catalog, q resource.Querier) (models.Placement, error) {
	var immediate, running, active candidate
	queried := make(map[string]bool)

	for _, st := range cat.SortedByCores() {
		if !st.Fits(job) || queried[st.Name] {
			continue
		}
		queried[st.Name] = true
		records, err := q.ByType(ctx, st.Name)
		if err != nil {
			return models.None, err
		}

		for _, r := range records {
			if r.State == models.ServerActive {
				active.offer(r, fitness(st.Cores, job), greater)
			}
			if !r.Fits(job) || r.State == models.ServerUnavailable {
				continue
			}
			fit := fitness(r.Cores, job)
			if r.AvailableTime == job.SubmitTime || r.AvailableTime == models.AvailablePerpetual {
				immediate.offer(r, fit, greater)
			} else {
				running.offer(r, fit, greater)
			}
		}
	}

	for _, c := range []*candidate{&immediate, &running, &active} {
		if p, ok := c.placement(); ok {
			return p, nil
		}
	}
	return models.None, nil
}
