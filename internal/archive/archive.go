// Package archive copies identified gazettes into the archive bucket and
// clears their staged copies out of the incoming bucket.
package archive

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"gazettemachine/internal/config"
	"gazettemachine/internal/gazette"
	"gazettemachine/internal/logging"
	"gazettemachine/internal/metastore"
	"gazettemachine/internal/objstore"
	"gazettemachine/internal/services"
)

// Result says what Archive did with a record.
type Result string

const (
	ResultArchived  Result = "archived"
	ResultDuplicate Result = "duplicate"
)

// Archiver persists identified records and their bytes.
type Archiver struct {
	store   objstore.Store
	meta    metastore.Store
	storage config.Storage
	logger  *slog.Logger
}

// New constructs an archiver.
func New(cfg *config.Config, store objstore.Store, meta metastore.Store, logger *slog.Logger) *Archiver {
	return &Archiver{
		store:   store,
		meta:    meta,
		storage: cfg.Storage,
		logger:  logging.NewComponentLogger(logger, "archive"),
	}
}

// Location is where the canonical copy of rec lives once archived.
func (a *Archiver) Location(rec *gazette.Record) gazette.Location {
	return gazette.Location{
		Bucket: a.storage.ArchiveBucket,
		Key:    fmt.Sprintf("%s%s/%s/%s.pdf", a.storage.ArchivePrefix, rec.Jurisdiction, rec.Year, rec.Key),
	}
}

// SourceLocation is where the i-th source artifact of rec is archived.
func (a *Archiver) SourceLocation(rec *gazette.Record, i int) gazette.Location {
	return gazette.Location{
		Bucket: a.storage.ArchiveBucket,
		Key:    fmt.Sprintf("%s%s/%s/%s-source-%d.pdf", a.storage.SourcesPrefix, rec.Jurisdiction, rec.Year, rec.Key, i),
	}
}

// Archive saves rec to the metadata store and, unless the store reports a
// duplicate, copies the working copy and every source artifact into the
// archive bucket. localPath is uploaded when rec has no WorkingLocation.
func (a *Archiver) Archive(ctx context.Context, rec *gazette.Record, localPath string) (Result, error) {
	if rec == nil || !rec.Identified || rec.Key == "" || rec.Year == "" {
		return "", services.Wrap(services.ErrValidation, "archive", "check record", "record is not identified", gazette.ErrIncomplete)
	}
	logger := logging.WithContext(ctx, a.logger)

	saved, err := a.meta.Save(ctx, rec)
	if err != nil {
		return "", err
	}
	if saved.Duplicate {
		logger.Info("gazette already archived",
			logging.String(logging.FieldEventType, "archive_duplicate"),
			logging.String(logging.FieldDocumentID, rec.Key),
		)
		return ResultDuplicate, nil
	}

	target := a.Location(rec)
	if rec.WorkingLocation.IsZero() {
		if localPath == "" {
			return "", services.Wrap(services.ErrValidation, "archive", "upload", "record has neither a working location nor a local copy", nil)
		}
		err = a.store.Upload(ctx, target, localPath)
	} else {
		err = a.store.Copy(ctx, rec.WorkingLocation, target)
	}
	if err != nil {
		return "", err
	}
	logger.Info("archived gazette",
		logging.String(logging.FieldEventType, "archive_stored"),
		logging.String(logging.FieldDocumentID, rec.Key),
		logging.Location(target),
	)

	sources := lo.Reject(rec.Sources, func(loc gazette.Location, _ int) bool {
		return loc.IsZero() || loc == rec.WorkingLocation
	})
	for i, src := range sources {
		dst := a.SourceLocation(rec, i+1)
		if err := a.store.Copy(ctx, src, dst); err != nil {
			return "", err
		}
		logger.Debug("archived source artifact",
			logging.Location(dst),
			logging.String("source", src.String()),
		)
	}
	return ResultArchived, nil
}

// CleanupResult lists what Cleanup removed and what it could not.
type CleanupResult struct {
	Removed []gazette.Location
	Errors  []CleanupError
}

// CleanupError pairs a location with its delete failure.
type CleanupError struct {
	Location gazette.Location
	Error    error
}

// Cleanup deletes every staged copy of rec held in the incoming bucket. It
// is best effort: failures are logged and collected, and the remaining
// deletes still run.
func (a *Archiver) Cleanup(ctx context.Context, rec *gazette.Record) CleanupResult {
	result := CleanupResult{}
	if rec == nil {
		return result
	}
	logger := logging.WithContext(ctx, a.logger)

	targets := lo.Filter(rec.StagedLocations(), func(loc gazette.Location, _ int) bool {
		return loc.Bucket == a.storage.IncomingBucket
	})
	for _, loc := range targets {
		if err := a.store.Delete(ctx, loc); err != nil {
			result.Errors = append(result.Errors, CleanupError{Location: loc, Error: err})
			logging.WarnWithContext(logger, "failed to remove staged copy", "cleanup_failed",
				logging.Location(loc),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check incoming bucket permissions"),
				logging.String(logging.FieldImpact, "staged copy left in incoming bucket"),
			)
			continue
		}
		result.Removed = append(result.Removed, loc)
		logger.Debug("removed staged copy",
			logging.String(logging.FieldEventType, "cleanup"),
			logging.Location(loc),
		)
	}
	return result
}
