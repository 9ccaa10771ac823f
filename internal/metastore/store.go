// Package metastore persists archived gazette records, files manual review
// tasks and answers which remote URLs were already submitted.
//
// Two backends exist. The REST client talks to the gazettes API. The SQL
// store keeps the same data in postgres or sqlite. Both treat duplicate
// detection as the store's decision: a conflict on the record key is
// reported through SaveResult.Duplicate, never by matching error text.
package metastore

import (
	"context"
	"fmt"
	"log/slog"

	"gazettemachine/internal/config"
	"gazettemachine/internal/gazette"
	"gazettemachine/internal/services"
)

// SaveResult is the outcome of persisting a record.
type SaveResult struct {
	// Record is the store's view of the saved record, or the submitted
	// record when it was a duplicate.
	Record    *gazette.Record
	Duplicate bool
}

// Store is the metadata surface the pipeline and bulk ingestion use.
type Store interface {
	Save(ctx context.Context, rec *gazette.Record) (SaveResult, error)
	CreateManualTask(ctx context.Context, rec *gazette.Record) (string, error)
	FilterSeen(ctx context.Context, urls []string) ([]string, error)
	Close() error
}

// New opens the backend named by metadata.backend.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.Metadata.Backend {
	case config.MetadataREST:
		return NewREST(cfg.Metadata, logger), nil
	case config.MetadataPostgres:
		return OpenPostgres(ctx, cfg.Metadata.DSN, cfg.Metadata.TaskURLBase)
	case config.MetadataSQLite:
		return OpenSQLite(ctx, cfg.Metadata.SQLitePath, cfg.Metadata.TaskURLBase)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "metadata", "open", fmt.Sprintf("unsupported backend %q", cfg.Metadata.Backend), nil)
	}
}

func requireKeyed(operation string, rec *gazette.Record) error {
	if rec == nil {
		return services.Wrap(services.ErrValidation, "metadata", operation, "record is required", nil)
	}
	if rec.Key == "" {
		return services.Wrap(services.ErrValidation, "metadata", operation, "record has no key", gazette.ErrIncomplete)
	}
	return nil
}
