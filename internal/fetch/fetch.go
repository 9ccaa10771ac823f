// Package fetch turns a document reference into a local working copy,
// staging remote downloads into the incoming bucket on the way.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cavaliergopher/grab/v3"
	"github.com/google/uuid"

	"gazettemachine/internal/config"
	"gazettemachine/internal/gazette"
	"gazettemachine/internal/logging"
	"gazettemachine/internal/objstore"
	"gazettemachine/internal/services"
)

const progressInterval = time.Second

// Fetcher resolves sources against the local disk, the incoming bucket and
// the web.
type Fetcher struct {
	store   objstore.Store
	storage config.Storage
	workDir string
	timeout time.Duration
	client  *grab.Client
	logger  *slog.Logger
}

// New constructs a fetcher from config.
func New(cfg *config.Config, store objstore.Store, logger *slog.Logger) *Fetcher {
	client := grab.NewClient()
	client.BufferSize = cfg.Download.BufferSize
	if cfg.Download.UserAgent != "" {
		client.UserAgent = cfg.Download.UserAgent
	}
	return &Fetcher{
		store:   store,
		storage: cfg.Storage,
		workDir: cfg.Paths.WorkDir,
		timeout: cfg.DownloadTimeout(),
		client:  client,
		logger:  logging.NewComponentLogger(logger, "fetch"),
	}
}

// Fetch produces a working copy for rec and records WorkingLocation and
// Size. Callers must Close the copy.
func (f *Fetcher) Fetch(ctx context.Context, rec *gazette.Record) (*WorkingCopy, error) {
	if err := rec.Source.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "fetch", "validate source", rec.Source.String(), err)
	}

	var (
		wc  *WorkingCopy
		err error
	)
	switch rec.Source.Kind {
	case gazette.SourceFile:
		wc, err = f.fetchFile(rec)
	case gazette.SourceObject:
		wc, err = f.fetchObject(ctx, rec)
	case gazette.SourceURL:
		wc, err = f.fetchURL(ctx, rec)
	}
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(wc.Path)
	if err != nil {
		f.Discard(ctx, wc)
		return nil, services.Wrap(services.ErrTransient, "fetch", "stat working copy", wc.Path, err)
	}
	rec.Size = info.Size()
	return wc, nil
}

func (f *Fetcher) fetchFile(rec *gazette.Record) (*WorkingCopy, error) {
	path := rec.Source.Path
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, services.Wrap(services.ErrNotFound, "fetch", "open file", path, err)
	case err != nil:
		return nil, services.Wrap(services.ErrTransient, "fetch", "open file", path, err)
	case !info.Mode().IsRegular():
		return nil, services.Wrap(services.ErrValidation, "fetch", "open file", fmt.Sprintf("%s is not a regular file", path), nil)
	}
	return &WorkingCopy{Path: path, workDir: f.workDir}, nil
}

func (f *Fetcher) fetchObject(ctx context.Context, rec *gazette.Record) (*WorkingCopy, error) {
	loc := rec.Source.Location
	if !loc.Within(f.storage.IncomingBucket, f.storage.IncomingPrefix) {
		return nil, services.Wrap(services.ErrValidation, "fetch", "check location",
			fmt.Sprintf("%s is outside %s/%s", loc, f.storage.IncomingBucket, f.storage.IncomingPrefix), nil)
	}

	wc, err := newScopedCopy(f.workDir)
	if err != nil {
		return nil, err
	}
	wc.Path = filepath.Join(wc.dir, safeBase(loc.Base()))
	if err := f.store.Download(ctx, loc, wc.Path); err != nil {
		_ = wc.Close()
		return nil, err
	}
	rec.SupersedeWorkingLocation(loc)
	return wc, nil
}

func (f *Fetcher) fetchURL(ctx context.Context, rec *gazette.Record) (*WorkingCopy, error) {
	raw := rec.Source.URL
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, services.Wrap(services.ErrValidation, "fetch", "parse url", raw, err)
	}

	wc, err := newScopedCopy(f.workDir)
	if err != nil {
		return nil, err
	}
	wc.Path = filepath.Join(wc.dir, "download.pdf")
	if err := f.download(ctx, raw, wc.Path); err != nil {
		_ = wc.Close()
		return nil, err
	}

	staged := f.StagingLocation(stem(parsed.Path))
	wc.Track(staged)
	if err := f.store.Upload(ctx, staged, wc.Path); err != nil {
		f.Discard(ctx, wc)
		return nil, err
	}
	f.logger.Info("staged remote document",
		logging.String(logging.FieldEventType, "document_staged"),
		logging.String("url", raw),
		logging.Location(staged),
	)
	rec.SupersedeWorkingLocation(staged)
	return wc, nil
}

// Discard deletes every object wc staged and removes its scoped directory.
// It runs even when ctx is already cancelled; failures are logged.
func (f *Fetcher) Discard(ctx context.Context, wc *WorkingCopy) {
	if wc == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, loc := range wc.Staged() {
		if err := f.store.Delete(ctx, loc); err != nil {
			logging.WarnWithContext(f.logger, "staged object not removed", "staging_release_failed",
				logging.Location(loc),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "delete the object from the incoming bucket by hand"),
				logging.String(logging.FieldImpact, "orphaned object left in staging"),
			)
		}
	}
	_ = wc.Close()
}

// StagingLocation returns a fresh location under the staging prefix.
func (f *Fetcher) StagingLocation(name string) gazette.Location {
	return gazette.Location{
		Bucket: f.storage.IncomingBucket,
		Key:    fmt.Sprintf("%s%s-%s.pdf", f.storage.StagingPrefix, uuid.NewString(), name),
	}
}

func (f *Fetcher) download(ctx context.Context, raw, dst string) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := grab.NewRequest(dst, raw)
	if err != nil {
		return services.Wrap(services.ErrValidation, "fetch", "create request", raw, err)
	}
	req = req.WithContext(ctx)
	req.NoResume = true

	f.logger.Debug("download started", logging.String("url", raw))
	resp := f.client.Do(req)

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
Loop:
	for {
		select {
		case <-ticker.C:
			f.logger.Debug("download progress",
				logging.String("url", raw),
				logging.Int64("bytes", resp.BytesComplete()),
				logging.Int64("size", resp.Size()),
			)
		case <-resp.Done:
			break Loop
		}
	}

	if err := resp.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "fetch", "download", raw, err)
		}
		return services.Wrap(services.ErrTransient, "fetch", "download", raw, err)
	}
	f.logger.Debug("download complete", logging.String("url", raw), logging.Int64("bytes", resp.BytesComplete()))
	return nil
}

func stem(p string) string {
	base := path.Base(p)
	base = strings.TrimSuffix(base, path.Ext(base))
	if slug := gazette.Slugify(base); slug != "" {
		return slug
	}
	return "document"
}

func safeBase(name string) string {
	name = filepath.Base(filepath.FromSlash(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "document.pdf"
	}
	return name
}
