package resource

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/angariumd/dsclient/internal/models"
	"github.com/angariumd/dsclient/internal/transport"
)

// Snapshot is a recorded server state plus the jobs to place against it,
// written with the same rows the server sends:
//
//	records:
//	  - "Large 0 active -1 8 8 100"
//	jobs:
//	  - "JOBN 0 1 10 4 4 10"
type Snapshot struct {
	Records []models.ResourceRecord
	Jobs    []models.Job
}

type snapshotDoc struct {
	Records []string `yaml:"records"`
	Jobs    []string `yaml:"jobs"`
}

func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading snapshot")
	}
	s, err := ParseSnapshot(data)
	if err != nil {
		return nil, errors.Wrapf(err, "snapshot %s", path)
	}
	return s, nil
}

func ParseSnapshot(data []byte) (*Snapshot, error) {
	var doc snapshotDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding snapshot")
	}

	s := &Snapshot{}
	for _, row := range doc.Records {
		r, err := ParseRecord(transport.Fields(row))
		if err != nil {
			return nil, err
		}
		s.Records = append(s.Records, r)
	}
	for _, line := range doc.Jobs {
		j, err := transport.ParseJob(line)
		if err != nil {
			return nil, err
		}
		s.Jobs = append(s.Jobs, j)
	}
	return s, nil
}

// Querier returns a fresh in-memory querier over the recorded state. Each
// caller gets its own copy of the records.
func (s *Snapshot) Querier() *Static {
	records := make([]models.ResourceRecord, len(s.Records))
	copy(records, s.Records)
	return &Static{Records: records}
}
