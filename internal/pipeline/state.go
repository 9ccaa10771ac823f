package pipeline

import "gazettemachine/internal/gazette"

// State names a point in a document's trip through the pipeline.
type State string

const (
	StatePending          State = "pending"
	StateFetched          State = "fetched"
	StateRequiresOCR      State = "requires_ocr"
	StateOCRed            State = "ocred"
	StateTextExtracted    State = "text_extracted"
	StateIdentified       State = "identified"
	StateUnidentified     State = "unidentified"
	StateArchived         State = "archived"
	StateDuplicateSkipped State = "duplicate_skipped"
	StateManualReview     State = "manual_review"
	StateCleanedUp        State = "cleaned_up"
)

// Terminal reports whether no further work happens after s.
func (s State) Terminal() bool {
	switch s {
	case StateArchived, StateDuplicateSkipped, StateManualReview, StateCleanedUp:
		return true
	}
	return false
}

// Outcome describes how a run ended. Final is the decision state
// (archived, duplicate_skipped or manual_review); Trail lists every state
// visited in order, ending with cleaned_up when cleanup ran.
type Outcome struct {
	Final         State           `json:"final"`
	Trail         []State         `json:"trail"`
	Record        *gazette.Record `json:"record"`
	ManualTaskURL string          `json:"manual_task_url,omitempty"`
}

func (o *Outcome) advance(s State) {
	o.Trail = append(o.Trail, s)
	if s != StateCleanedUp {
		o.Final = s
	}
}
