// Package pipeline sequences fetch, extraction, OCR, identification and
// archival for a single gazette.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"gazettemachine/internal/archive"
	"gazettemachine/internal/config"
	"gazettemachine/internal/fetch"
	"gazettemachine/internal/gazette"
	"gazettemachine/internal/identify"
	"gazettemachine/internal/logging"
	"gazettemachine/internal/metastore"
	"gazettemachine/internal/objstore"
	"gazettemachine/internal/services"
	"gazettemachine/internal/stageexec"
	"gazettemachine/internal/textextract"
)

// Fetcher produces a local working copy for a record. Discard deletes the
// objects a copy staged and closes it.
type Fetcher interface {
	Fetch(ctx context.Context, rec *gazette.Record) (*fetch.WorkingCopy, error)
	Discard(ctx context.Context, wc *fetch.WorkingCopy)
}

// OCR rebuilds src with a text layer at dst.
type OCR interface {
	Run(ctx context.Context, src, dst string) error
}

// Archiver stores identified records and removes staged copies.
type Archiver interface {
	Archive(ctx context.Context, rec *gazette.Record, localPath string) (archive.Result, error)
	Cleanup(ctx context.Context, rec *gazette.Record) archive.CleanupResult
}

// Recorder receives pipeline metrics. A nil Recorder disables them.
type Recorder interface {
	stageexec.Observer
	StartDocument()
	FinishDocument(jurisdiction, final string)
	CleanupFailed(n int)
}

// Options holds the controller's collaborators.
type Options struct {
	Registry  *identify.Registry
	Fetcher   Fetcher
	Extractor textextract.Extractor
	OCR       OCR
	Archiver  Archiver
	Meta      metastore.Store
	Store     objstore.Store
	Storage   config.Storage
	Logger    *slog.Logger
	Recorder  Recorder
}

// Controller runs the identification state machine. It holds no per-run
// state and takes no locks; concurrent runs on distinct records are safe.
type Controller struct {
	registry  *identify.Registry
	fetcher   Fetcher
	extractor textextract.Extractor
	ocr       OCR
	archiver  Archiver
	meta      metastore.Store
	store     objstore.Store
	storage   config.Storage
	logger    *slog.Logger
	recorder  Recorder
}

// New validates opts and builds a controller.
func New(opts Options) (*Controller, error) {
	missing := make([]string, 0)
	if opts.Registry == nil {
		missing = append(missing, "registry")
	}
	if opts.Fetcher == nil {
		missing = append(missing, "fetcher")
	}
	if opts.Extractor == nil {
		missing = append(missing, "extractor")
	}
	if opts.OCR == nil {
		missing = append(missing, "ocr")
	}
	if opts.Archiver == nil {
		missing = append(missing, "archiver")
	}
	if opts.Meta == nil {
		missing = append(missing, "metadata store")
	}
	if opts.Store == nil {
		missing = append(missing, "object store")
	}
	if len(missing) > 0 {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new", "missing "+strings.Join(missing, ", "), nil)
	}
	return &Controller{
		registry:  opts.Registry,
		fetcher:   opts.Fetcher,
		extractor: opts.Extractor,
		ocr:       opts.OCR,
		archiver:  opts.Archiver,
		meta:      opts.Meta,
		store:     opts.Store,
		storage:   opts.Storage,
		logger:    logging.NewComponentLogger(opts.Logger, "pipeline"),
		recorder:  opts.Recorder,
	}, nil
}

// IdentifyAndArchive takes input from pending to a terminal state. The run
// works on a copy of input, returned as Outcome.Record; input itself is
// never modified. Tool and store failures return an error with the outcome
// reached so far. Objects the run staged are deleted on failure, while
// caller-supplied objects stay in place so the document can be retried.
func (c *Controller) IdentifyAndArchive(ctx context.Context, input *gazette.Record) (outcome Outcome, err error) {
	outcome = Outcome{Final: StatePending, Trail: []State{StatePending}}
	if input == nil {
		return outcome, services.Wrap(services.ErrValidation, "pipeline", "start", "record is required", nil)
	}
	rec := input.Clone()
	outcome.Record = rec
	ctx = services.WithDocumentID(ctx, rec.DocumentID())
	logger := logging.WithContext(ctx, c.logger).With(logging.String(logging.FieldJurisdiction, rec.Jurisdiction))

	if c.recorder != nil {
		c.recorder.StartDocument()
		defer func() {
			final := string(outcome.Final)
			if err != nil {
				final = "failed"
			}
			c.recorder.FinishDocument(input.Jurisdiction, final)
		}()
	}

	identifier, err := c.registry.Lookup(rec.Jurisdiction)
	if err != nil {
		return outcome, err
	}

	var wc *fetch.WorkingCopy
	if err := c.stage(ctx, logger, "fetch", func(ctx context.Context, _ *slog.Logger) error {
		wc, err = c.fetcher.Fetch(ctx, rec)
		return err
	}); err != nil {
		return outcome, err
	}
	defer func() {
		if err != nil {
			c.fetcher.Discard(ctx, wc)
			return
		}
		_ = wc.Close()
	}()
	outcome.advance(StateFetched)

	text, err := c.coverpage(ctx, logger, rec, wc, &outcome)
	if err != nil {
		return outcome, err
	}
	if outcome.Final == StateRequiresOCR {
		// OCR already ran once; a second miss goes to a human.
		return c.manualReview(ctx, logger, rec, &outcome)
	}

	if !identifier.Identify(rec, text) {
		outcome.advance(StateUnidentified)
		return c.manualReview(ctx, logger, rec, &outcome)
	}
	if err := rec.AssignKeys(); err != nil {
		return outcome, services.Wrap(services.ErrValidation, "identify", "assign keys", "identified record lacks key fields", err)
	}
	outcome.advance(StateIdentified)
	ctx = services.WithDocumentID(ctx, rec.Key)
	logger = logger.With(logging.String(logging.FieldDocumentID, rec.Key))

	var result archive.Result
	if err := c.stage(ctx, logger, "archive", func(ctx context.Context, _ *slog.Logger) error {
		result, err = c.archiver.Archive(ctx, rec, wc.Path)
		return err
	}); err != nil {
		return outcome, err
	}
	if result == archive.ResultDuplicate {
		outcome.advance(StateDuplicateSkipped)
	} else {
		outcome.advance(StateArchived)
	}

	cleaned := c.archiver.Cleanup(ctx, rec)
	if c.recorder != nil {
		c.recorder.CleanupFailed(len(cleaned.Errors))
	}
	outcome.advance(StateCleanedUp)

	logger.Info("gazette processed",
		logging.String(logging.FieldEventType, "document_complete"),
		logging.String("final", string(outcome.Final)),
		logging.Bool("ocred", rec.OCRed),
		logging.Int("cleanup_errors", len(cleaned.Errors)),
	)
	return outcome, nil
}

// coverpage extracts text, running OCR at most once. When the OCRed copy
// still has no usable text the outcome is left at requires_ocr.
func (c *Controller) coverpage(ctx context.Context, logger *slog.Logger, rec *gazette.Record, wc *fetch.WorkingCopy, outcome *Outcome) (string, error) {
	text, err := c.extract(ctx, logger, wc.Path)
	if err == nil {
		outcome.advance(StateTextExtracted)
		return text, nil
	}
	if !errors.Is(err, textextract.ErrRequiresOCR) {
		return "", err
	}
	outcome.advance(StateRequiresOCR)

	if err := c.stage(ctx, logger, "ocr", func(ctx context.Context, _ *slog.Logger) error {
		return c.applyOCR(ctx, rec, wc)
	}); err != nil {
		return "", err
	}
	outcome.advance(StateOCRed)

	text, err = c.extract(ctx, logger, wc.Path)
	if errors.Is(err, textextract.ErrRequiresOCR) {
		outcome.Final = StateRequiresOCR
		return "", nil
	}
	if err != nil {
		return "", err
	}
	outcome.advance(StateTextExtracted)
	return text, nil
}

func (c *Controller) extract(ctx context.Context, logger *slog.Logger, path string) (string, error) {
	var text string
	err := c.stage(ctx, logger, "extract", func(ctx context.Context, _ *slog.Logger) error {
		var err error
		text, err = c.extractor.Coverpage(ctx, path)
		if errors.Is(err, textextract.ErrRequiresOCR) {
			return nil
		}
		if err == nil && text == "" {
			return services.Wrap(services.ErrExternalTool, "extract", "coverpage", "extractor returned no text", nil)
		}
		return err
	})
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", textextract.ErrRequiresOCR
	}
	return text, nil
}

func (c *Controller) applyOCR(ctx context.Context, rec *gazette.Record, wc *fetch.WorkingCopy) error {
	dst, err := wc.Scratch("ocr.pdf")
	if err != nil {
		return err
	}
	if err := c.ocr.Run(ctx, wc.Path, dst); err != nil {
		return err
	}
	info, err := os.Stat(dst)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "ocr", "stat output", dst, err)
	}

	if !rec.WorkingLocation.IsZero() {
		loc := c.OCRLocation(rec.WorkingLocation)
		wc.Track(loc)
		if err := c.store.Upload(ctx, loc, dst); err != nil {
			return err
		}
		rec.SupersedeWorkingLocation(loc)
	}
	wc.Replace(dst)
	rec.OCRed = true
	rec.Size = info.Size()
	return nil
}

// OCRLocation returns a fresh staging location for the OCRed copy of
// working. Each call yields a distinct key.
func (c *Controller) OCRLocation(working gazette.Location) gazette.Location {
	base := strings.TrimSuffix(working.Base(), ".pdf")
	return gazette.Location{
		Bucket: c.storage.IncomingBucket,
		Key:    fmt.Sprintf("%s%s-%s-ocr.pdf", c.storage.StagingPrefix, uuid.NewString(), base),
	}
}

func (c *Controller) manualReview(ctx context.Context, logger *slog.Logger, rec *gazette.Record, outcome *Outcome) (Outcome, error) {
	var url string
	if err := c.stage(ctx, logger, "manual_review", func(ctx context.Context, _ *slog.Logger) error {
		var err error
		url, err = c.meta.CreateManualTask(ctx, rec)
		return err
	}); err != nil {
		return *outcome, err
	}
	rec.ManualTaskURL = url
	outcome.ManualTaskURL = url
	outcome.advance(StateManualReview)
	logging.WarnWithContext(logger, "gazette needs manual review", "manual_review",
		logging.String("task_url", url),
		logging.Bool("ocred", rec.OCRed),
		logging.String(logging.FieldErrorHint, "identify the gazette by hand in the task"),
		logging.String(logging.FieldImpact, "document not archived automatically"),
	)
	return *outcome, nil
}

func (c *Controller) stage(ctx context.Context, logger *slog.Logger, name string, fn stageexec.Func) error {
	var observer stageexec.Observer
	if c.recorder != nil {
		observer = c.recorder
	}
	return stageexec.Run(ctx, stageexec.Options{Logger: logger, Observer: observer, Stage: name}, fn)
}
