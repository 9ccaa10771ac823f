package pipeline

import (
	"context"
	"log/slog"

	"gazettemachine/internal/archive"
	"gazettemachine/internal/config"
	"gazettemachine/internal/fetch"
	"gazettemachine/internal/identify"
	"gazettemachine/internal/metastore"
	"gazettemachine/internal/objstore"
	"gazettemachine/internal/ocr"
	"gazettemachine/internal/services"
	"gazettemachine/internal/textextract"
)

// Stack bundles a controller with the stores it was built on so callers can
// reuse them (ingest filters against Meta) and release them together.
type Stack struct {
	Controller *Controller
	Registry   *identify.Registry
	Store      objstore.Store
	Meta       metastore.Store
	Archiver   *archive.Archiver
}

// Build wires a controller from cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, runner services.Runner, recorder Recorder) (*Stack, error) {
	if runner == nil {
		runner = services.NewExecRunner(logger)
	}
	registry, err := identify.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := objstore.New(cfg)
	if err != nil {
		return nil, err
	}
	meta, err := metastore.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	extractor, err := textextract.New(cfg, runner)
	if err != nil {
		_ = meta.Close()
		return nil, err
	}
	archiver := archive.New(cfg, store, meta, logger)

	controller, err := New(Options{
		Registry:  registry,
		Fetcher:   fetch.New(cfg, store, logger),
		Extractor: extractor,
		OCR:       ocr.New(cfg, runner),
		Archiver:  archiver,
		Meta:      meta,
		Store:     store,
		Storage:   cfg.Storage,
		Logger:    logger,
		Recorder:  recorder,
	})
	if err != nil {
		_ = meta.Close()
		return nil, err
	}
	return &Stack{
		Controller: controller,
		Registry:   registry,
		Store:      store,
		Meta:       meta,
		Archiver:   archiver,
	}, nil
}

// Close releases the metadata store.
func (s *Stack) Close() error {
	if s == nil || s.Meta == nil {
		return nil
	}
	return s.Meta.Close()
}
