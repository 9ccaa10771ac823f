package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"gazettemachine/internal/gazette"
	"gazettemachine/internal/jobs"
)

// parseInfo accepts either a job payload ({"jurisdiction", "source": "<ref>"})
// or a full record as printed by identify --json.
func parseInfo(raw string) (*gazette.Record, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("--info is empty")
	}
	var peek struct {
		Source json.RawMessage `json:"source"`
	}
	if err := json.Unmarshal([]byte(raw), &peek); err != nil {
		return nil, fmt.Errorf("parse --info: %w", err)
	}
	if len(peek.Source) > 0 && peek.Source[0] == '"' {
		job, err := jobs.Decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		return job.Record()
	}

	var rec gazette.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("parse --info record: %w", err)
	}
	rec.Jurisdiction = gazette.NormalizeJurisdiction(rec.Jurisdiction)
	if rec.Jurisdiction == "" {
		return nil, fmt.Errorf("--info record has no jurisdiction")
	}
	if err := rec.Source.Validate(); err != nil {
		return nil, fmt.Errorf("--info record: %w", err)
	}
	return &rec, nil
}

func recordRows(rec *gazette.Record) [][]string {
	if rec == nil {
		return nil
	}
	rows := [][]string{
		{"Jurisdiction", rec.Jurisdiction},
		{"Source", rec.Source.String()},
	}
	if !rec.WorkingLocation.IsZero() {
		rows = append(rows, []string{"Working copy", rec.WorkingLocation.String()})
	}
	for i, src := range rec.Sources {
		rows = append(rows, []string{fmt.Sprintf("Source artifact %d", i+1), src.String()})
	}
	rows = append(rows,
		[]string{"Identified", yesNo(rec.Identified)},
		[]string{"OCRed", yesNo(rec.OCRed)},
	)
	if rec.Identified {
		rows = append(rows,
			[]string{"Publication", rec.Publication},
			[]string{"Number", rec.Number},
			[]string{"Date", rec.Date},
			[]string{"Key", rec.Key},
			[]string{"Name", rec.Name},
			[]string{"FRBR work URI", rec.FRBRWorkURI},
		)
	}
	if rec.ManualTaskURL != "" {
		rows = append(rows, []string{"Manual task", rec.ManualTaskURL})
	}
	return rows
}
