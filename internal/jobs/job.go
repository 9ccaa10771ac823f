// Package jobs carries identify requests over NATS between the ingest CLI
// and gazetted workers.
package jobs

import (
	"encoding/json"
	"strings"

	"gazettemachine/internal/gazette"
	"gazettemachine/internal/services"
)

// Job asks a worker to identify and archive one document.
type Job struct {
	Jurisdiction string `json:"jurisdiction"`
	Source       string `json:"source"`
}

// Record converts the job into a pending record.
func (j Job) Record() (*gazette.Record, error) {
	if strings.TrimSpace(j.Jurisdiction) == "" {
		return nil, services.Wrap(services.ErrValidation, "jobs", "decode", "job has no jurisdiction", nil)
	}
	src, err := gazette.ParseSource(j.Source)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "jobs", "decode", "job has invalid source", err)
	}
	return gazette.NewRecord(j.Jurisdiction, src), nil
}

// Encode renders the job as its wire payload.
func (j Job) Encode() ([]byte, error) {
	if _, err := j.Record(); err != nil {
		return nil, err
	}
	return json.Marshal(j)
}

// Decode parses and validates a wire payload.
func Decode(data []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, services.Wrap(services.ErrValidation, "jobs", "decode", "malformed job payload", err)
	}
	if _, err := job.Record(); err != nil {
		return Job{}, err
	}
	return job, nil
}
