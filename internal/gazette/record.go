package gazette

import (
	"strings"

	"github.com/samber/lo"
)

// Record is the document state threaded through the pipeline. Stages own it
// exclusively while they run and populate it progressively.
type Record struct {
	Jurisdiction     string     `json:"jurisdiction"`
	JurisdictionName string     `json:"jurisdiction_name,omitempty"`
	Source           Source     `json:"source"`
	WorkingLocation  Location   `json:"working_location,omitzero"`
	Sources          []Location `json:"sources,omitempty"`
	Identified       bool       `json:"identified"`
	Publication      string     `json:"publication,omitempty"`
	Number           string     `json:"number,omitempty"`
	Date             string     `json:"date,omitempty"`
	Year             string     `json:"year,omitempty"`
	Key              string     `json:"key,omitempty"`
	Name             string     `json:"name,omitempty"`
	FRBRWorkURI      string     `json:"frbr_work_uri,omitempty"`
	OCRed            bool       `json:"ocred"`
	Size             int64      `json:"size,omitempty"`
	ManualTaskURL    string     `json:"manual_task_url,omitempty"`
}

// NewRecord starts a record for a document reference.
func NewRecord(jurisdiction string, source Source) *Record {
	return &Record{
		Jurisdiction: NormalizeJurisdiction(jurisdiction),
		Source:       source,
	}
}

// NormalizeJurisdiction lowercases and trims a jurisdiction code.
func NormalizeJurisdiction(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// SupersedeWorkingLocation records next as the canonical copy and keeps
// the previous one as a source artifact.
func (r *Record) SupersedeWorkingLocation(next Location) {
	if !r.WorkingLocation.IsZero() && r.WorkingLocation != next {
		r.Sources = append(r.Sources, r.WorkingLocation)
	}
	r.WorkingLocation = next
}

// StagedLocations lists every storage location the record references,
// sources first, without duplicates.
func (r *Record) StagedLocations() []Location {
	all := append(append([]Location{}, r.Sources...), r.WorkingLocation)
	return lo.Uniq(lo.Reject(all, func(loc Location, _ int) bool { return loc.IsZero() }))
}

// DocumentID labels the record in logs: its key once identified, otherwise
// the source reference.
func (r *Record) DocumentID() string {
	if r.Key != "" {
		return r.Key
	}
	return r.Source.String()
}

// Clone returns a deep copy. The pipeline runs on a clone so the caller's
// record is never modified.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Sources != nil {
		cp.Sources = append([]Location(nil), r.Sources...)
	}
	return &cp
}
