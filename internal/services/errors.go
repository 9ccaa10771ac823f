package services

import (
	"errors"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Kind labels an error for operators and machine-readable output.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindExternalTool  Kind = "external_tool"
	KindNotFound      Kind = "not_found"
	KindTimeout       Kind = "timeout"
	KindTransient     Kind = "transient"
)

// Error carries the stage context of a failure alongside its marker and cause.
type Error struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	var b strings.Builder
	b.WriteString(e.Marker.Error())
	b.WriteString(": ")
	b.WriteString(detail)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the marker and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Err}
}

// Wrap builds an error that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &Error{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Err:       err,
	}
}

// ErrorDetails is the flattened view of a wrapped error.
type ErrorDetails struct {
	Kind      Kind   `json:"kind"`
	Stage     string `json:"stage,omitempty"`
	Operation string `json:"operation,omitempty"`
	Message   string `json:"message"`
	Cause     string `json:"cause,omitempty"`
}

// Details extracts structured information from err. Errors that were not
// produced by Wrap are reported as transient with their full text.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		return ErrorDetails{Kind: Classify(err), Message: err.Error()}
	}
	details := ErrorDetails{
		Kind:      Classify(svcErr.Marker),
		Stage:     svcErr.Stage,
		Operation: svcErr.Operation,
		Message:   svcErr.Message,
	}
	if details.Message == "" {
		details.Message = buildDetail(svcErr.Stage, svcErr.Operation, "")
	}
	if svcErr.Err != nil {
		details.Cause = svcErr.Err.Error()
	}
	return details
}

// Classify maps err onto a Kind using the sentinel markers.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrExternalTool):
		return KindExternalTool
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	default:
		return KindTransient
	}
}

// IsInputError reports whether err was caused by caller input rather than the
// environment. Input errors are not worth resubmitting unchanged.
func IsInputError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConfiguration)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
