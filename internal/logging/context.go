package logging

import (
	"context"
	"log/slog"

	"gazettemachine/internal/services"
)

// Shared structured keys.
const (
	FieldComponent     = "component"
	FieldDocumentID    = "document_id"
	FieldStage         = "stage"
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a line for filtering and alerting.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact says what the warning means for the document.
	FieldImpact       = "impact"
	FieldJurisdiction = "jurisdiction"
	FieldLocation     = "location"
)

var contextFields = []struct {
	key    string
	lookup func(context.Context) (string, bool)
}{
	{FieldDocumentID, services.DocumentIDFromContext},
	{FieldStage, services.StageFromContext},
	{FieldCorrelationID, services.RequestIDFromContext},
}

// ContextFields returns the document, stage and correlation attrs carried
// by ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	for _, f := range contextFields {
		if value, ok := f.lookup(ctx); ok {
			fields = append(fields, slog.String(f.key, value))
		}
	}
	return fields
}

// WithContext returns logger with the fields of ctx attached.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}

// WithStage annotates ctx with a stage name for downstream log lines.
func WithStage(ctx context.Context, stage string) context.Context {
	return services.WithStage(ctx, stage)
}
