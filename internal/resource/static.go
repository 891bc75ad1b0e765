package resource

import (
	"context"

	"github.com/angariumd/dsclient/internal/models"
)

// Static answers queries from a fixed snapshot. It is meant for tests and
// offline evaluation of policies.
type Static struct {
	Records []models.ResourceRecord

	// Queries records every request line that would have been sent.
	Queries []string
}

func (s *Static) All(ctx context.Context) ([]models.ResourceRecord, error) {
	s.Queries = append(s.Queries, "RESC All")
	return s.filter(func(models.ResourceRecord) bool { return true }), nil
}

func (s *Static) ByType(ctx context.Context, serverType string) ([]models.ResourceRecord, error) {
	s.Queries = append(s.Queries, "RESC Type "+serverType)
	return s.filter(func(r models.ResourceRecord) bool { return r.Type == serverType }), nil
}

func (s *Static) Available(ctx context.Context, cores, memory, disk int) ([]models.ResourceRecord, error) {
	s.Queries = append(s.Queries, "RESC Avail")
	job := models.Job{Cores: cores, Memory: memory, Disk: disk}
	return s.filter(func(r models.ResourceRecord) bool {
		return r.State != models.ServerUnavailable && r.Fits(job)
	}), nil
}

func (s *Static) filter(keep func(models.ResourceRecord) bool) []models.ResourceRecord {
	var out []models.ResourceRecord
	for _, r := range s.Records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
