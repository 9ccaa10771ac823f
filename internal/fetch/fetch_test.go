package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gazettemachine/internal/config"
	"gazettemachine/internal/fetch"
	"gazettemachine/internal/gazette"
	"gazettemachine/internal/objstore"
	"gazettemachine/internal/services"
	"gazettemachine/internal/testsupport"
)

func newFetcher(t *testing.T, opts ...testsupport.ConfigOption) (*fetch.Fetcher, *objstore.LocalStore, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store, err := objstore.NewLocal(cfg.Storage.LocalRoot)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return fetch.New(cfg, store, nil), store, cfg
}

func TestFetchLocalFileDoesNotStage(t *testing.T) {
	fetcher, _, cfg := newFetcher(t)
	path := filepath.Join(t.TempDir(), "gazette.pdf")
	testsupport.WriteFile(t, path, 1024)

	rec := gazette.NewRecord("na", gazette.FileSource(path))
	wc, err := fetcher.Fetch(context.Background(), rec)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if wc.Path != path {
		t.Fatalf("expected working copy to be the caller's file, got %q", wc.Path)
	}
	if !rec.WorkingLocation.IsZero() {
		t.Fatalf("local sources must not be staged, got %v", rec.WorkingLocation)
	}
	if rec.Size != 1024 {
		t.Fatalf("unexpected size %d", rec.Size)
	}

	scratch, err := wc.Scratch("ocr.pdf")
	if err != nil {
		t.Fatalf("Scratch: %v", err)
	}
	if !strings.HasPrefix(scratch, cfg.Paths.WorkDir) {
		t.Fatalf("scratch path %q should live under work dir", scratch)
	}
	if err := wc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("caller file must survive Close: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(scratch)); !os.IsNotExist(err) {
		t.Fatalf("scratch dir should be removed, stat err=%v", err)
	}
}

func TestFetchMissingLocalFile(t *testing.T) {
	fetcher, _, _ := newFetcher(t)
	rec := gazette.NewRecord("na", gazette.FileSource(filepath.Join(t.TempDir(), "missing.pdf")))
	if _, err := fetcher.Fetch(context.Background(), rec); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchObjectDownloadsIncoming(t *testing.T) {
	fetcher, store, cfg := newFetcher(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "in.pdf")
	testsupport.WriteText(t, src, "%PDF-1.4 incoming")
	loc := gazette.Location{Bucket: cfg.Storage.IncomingBucket, Key: "uploads/in.pdf"}
	if err := store.Upload(ctx, loc, src); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	rec := gazette.NewRecord("na", gazette.ObjectSource(loc))
	wc, err := fetcher.Fetch(ctx, rec)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer wc.Close()

	if rec.WorkingLocation != loc {
		t.Fatalf("expected working location %v, got %v", loc, rec.WorkingLocation)
	}
	if len(wc.Staged()) != 0 {
		t.Fatalf("caller-supplied objects must not be tracked, got %v", wc.Staged())
	}
	if got := testsupport.ReadText(t, wc.Path); got != "%PDF-1.4 incoming" {
		t.Fatalf("unexpected working copy content %q", got)
	}
	dir := filepath.Dir(wc.Path)
	if err := wc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected scoped dir removed, stat err=%v", err)
	}
}

func TestFetchObjectOutsideIncomingIsRejected(t *testing.T) {
	fetcher, _, cfg := newFetcher(t, testsupport.WithIncomingPrefix("gazettes/"))
	cases := []gazette.Location{
		{Bucket: cfg.Storage.ArchiveBucket, Key: "gazettes/in.pdf"},
		{Bucket: cfg.Storage.IncomingBucket, Key: "elsewhere/in.pdf"},
	}
	for _, loc := range cases {
		rec := gazette.NewRecord("na", gazette.ObjectSource(loc))
		if _, err := fetcher.Fetch(context.Background(), rec); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%v: expected ErrValidation, got %v", loc, err)
		}
		if !rec.WorkingLocation.IsZero() {
			t.Fatalf("%v: working location must stay unset", loc)
		}
	}
}

func TestFetchURLStagesDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 remote"))
	}))
	defer server.Close()

	fetcher, store, cfg := newFetcher(t)
	ctx := context.Background()
	rec := gazette.NewRecord("na", gazette.URLSource(server.URL+"/files/Gazette%2031.pdf"))

	wc, err := fetcher.Fetch(ctx, rec)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer wc.Close()

	staged := rec.WorkingLocation
	if staged.Bucket != cfg.Storage.IncomingBucket || !strings.HasPrefix(staged.Key, cfg.Storage.StagingPrefix) {
		t.Fatalf("unexpected staging location %v", staged)
	}
	if !strings.HasSuffix(staged.Key, "-gazette-31.pdf") {
		t.Fatalf("staging key should carry the url basename, got %q", staged.Key)
	}
	size, err := store.Stat(ctx, staged)
	if err != nil {
		t.Fatalf("Stat staged copy: %v", err)
	}
	if size != rec.Size || rec.Size != int64(len("%PDF-1.4 remote")) {
		t.Fatalf("size mismatch: stored %d, record %d", size, rec.Size)
	}
	if got := wc.Staged(); len(got) != 1 || got[0] != staged {
		t.Fatalf("expected staged upload tracked, got %v", got)
	}
}

func TestDiscardRemovesOnlyTrackedObjects(t *testing.T) {
	fetcher, store, cfg := newFetcher(t)
	ctx, cancel := context.WithCancel(context.Background())

	supplied := gazette.Location{Bucket: cfg.Storage.IncomingBucket, Key: "uploads/in.pdf"}
	testsupport.PutObject(t, store, supplied, "%PDF-1.4 incoming")
	rec := gazette.NewRecord("na", gazette.ObjectSource(supplied))
	wc, err := fetcher.Fetch(ctx, rec)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	ocr := fetcher.StagingLocation("in-ocr")
	testsupport.PutObject(t, store, ocr, "%PDF-1.4 ocr")
	wc.Track(ocr)
	dir := filepath.Dir(wc.Path)

	cancel()
	fetcher.Discard(ctx, wc)

	if testsupport.ObjectExists(t, store, ocr) {
		t.Fatalf("tracked object %s should be deleted even after cancel", ocr)
	}
	if !testsupport.ObjectExists(t, store, supplied) {
		t.Fatalf("caller-supplied object %s must be kept", supplied)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected scoped dir removed, stat err=%v", err)
	}
}

func TestFetchURLFailureLeavesNothingStaged(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	fetcher, _, cfg := newFetcher(t)
	rec := gazette.NewRecord("na", gazette.URLSource(server.URL+"/missing.pdf"))
	if _, err := fetcher.Fetch(context.Background(), rec); err == nil {
		t.Fatal("expected download failure")
	}
	if !rec.WorkingLocation.IsZero() {
		t.Fatalf("working location must stay unset, got %v", rec.WorkingLocation)
	}
	staging := filepath.Join(cfg.Storage.LocalRoot, cfg.Storage.IncomingBucket, cfg.Storage.StagingPrefix)
	if entries, err := os.ReadDir(staging); err == nil && len(entries) > 0 {
		t.Fatalf("expected nothing staged, found %v", entries)
	}
	work, err := os.ReadDir(cfg.Paths.WorkDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(work) != 0 {
		t.Fatalf("expected scoped dirs removed, found %v", work)
	}
}
