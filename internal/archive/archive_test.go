package archive_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gazettemachine/internal/archive"
	"gazettemachine/internal/config"
	"gazettemachine/internal/gazette"
	"gazettemachine/internal/services"
	"gazettemachine/internal/testsupport"
)

type fixture struct {
	cfg      *config.Config
	store    *testsupport.FaultyStore
	meta     *testsupport.MemoryMeta
	archiver *archive.Archiver
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.NewFaultyStore(testsupport.MustLocalStore(t, cfg))
	meta := testsupport.NewMemoryMeta()
	return fixture{
		cfg:      cfg,
		store:    store,
		meta:     meta,
		archiver: archive.New(cfg, store, meta, nil),
	}
}

func identified(t *testing.T, src gazette.Source) *gazette.Record {
	t.Helper()
	rec := gazette.NewRecord("na", src)
	rec.Identified = true
	rec.JurisdictionName = "Namibia"
	rec.Publication = "Government Gazette"
	rec.Number = "31"
	rec.Date = "2018-01-01"
	rec.Year = "2018"
	if err := rec.AssignKeys(); err != nil {
		t.Fatalf("AssignKeys: %v", err)
	}
	return rec
}

func (f fixture) stageOCRed(t *testing.T, rec *gazette.Record) (original, ocr gazette.Location) {
	t.Helper()
	original = gazette.Location{Bucket: f.cfg.Storage.IncomingBucket, Key: "temp/abc-31.pdf"}
	ocr = gazette.Location{Bucket: f.cfg.Storage.IncomingBucket, Key: "temp/abc-31-ocr.pdf"}
	testsupport.PutObject(t, f.store, original, "%PDF original")
	testsupport.PutObject(t, f.store, ocr, "%PDF ocr")
	rec.SupersedeWorkingLocation(original)
	rec.SupersedeWorkingLocation(ocr)
	return original, ocr
}

func TestArchiveCopiesWorkingCopyAndSources(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := identified(t, gazette.URLSource("https://example.org/31.pdf"))
	f.stageOCRed(t, rec)

	result, err := f.archiver.Archive(ctx, rec, "")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if result != archive.ResultArchived {
		t.Fatalf("unexpected result %q", result)
	}

	main := gazette.Location{Bucket: "archive", Key: "archive/na/2018/na-government-gazette-dated-2018-01-01-no-31.pdf"}
	if f.archiver.Location(rec) != main {
		t.Fatalf("unexpected archive location %v", f.archiver.Location(rec))
	}
	source := gazette.Location{Bucket: "archive", Key: "sources/na/2018/na-government-gazette-dated-2018-01-01-no-31-source-1.pdf"}
	for _, loc := range []gazette.Location{main, source} {
		if !testsupport.ObjectExists(t, f.store, loc) {
			t.Fatalf("expected %v to exist", loc)
		}
	}
	if testsupport.ObjectExists(t, f.store, f.archiver.SourceLocation(rec, 2)) {
		t.Fatal("only one source artifact should be archived")
	}
	if _, ok := f.meta.Record(rec.Key); !ok {
		t.Fatal("expected record saved")
	}
	for _, loc := range rec.StagedLocations() {
		if !testsupport.ObjectExists(t, f.store, loc) {
			t.Fatalf("archive must not delete staged copy %v", loc)
		}
	}
}

func TestArchiveSkipsSourceEqualToWorkingLocation(t *testing.T) {
	f := newFixture(t)
	rec := identified(t, gazette.URLSource("https://example.org/31.pdf"))
	_, ocr := f.stageOCRed(t, rec)
	rec.Sources = append(rec.Sources, ocr)

	if _, err := f.archiver.Archive(context.Background(), rec, ""); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if f.store.Copies() != 2 {
		t.Fatalf("expected main plus one source copy, got %d copies", f.store.Copies())
	}
}

func TestArchiveDuplicateSkipsAllCopies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := identified(t, gazette.URLSource("https://example.org/31.pdf"))
	f.stageOCRed(t, rec)

	if _, err := f.meta.Save(ctx, rec.Clone()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	result, err := f.archiver.Archive(ctx, rec, "")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if result != archive.ResultDuplicate {
		t.Fatalf("expected duplicate, got %q", result)
	}
	if f.store.Copies() != 0 {
		t.Fatalf("duplicates must not copy bytes, got %d copies", f.store.Copies())
	}
}

func TestArchiveUploadsLocalFile(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "local.pdf")
	testsupport.WriteText(t, path, "%PDF local")
	rec := identified(t, gazette.FileSource(path))

	if _, err := f.archiver.Archive(context.Background(), rec, path); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if !testsupport.ObjectExists(t, f.store, f.archiver.Location(rec)) {
		t.Fatal("expected local file uploaded to archive")
	}
}

func TestArchiveRequiresIdentifiedRecord(t *testing.T) {
	f := newFixture(t)
	rec := gazette.NewRecord("na", gazette.FileSource("/tmp/a.pdf"))
	_, err := f.archiver.Archive(context.Background(), rec, "/tmp/a.pdf")
	if !errors.Is(err, gazette.ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if f.meta.Saves() != 0 {
		t.Fatal("metadata store must not be called")
	}
}

func TestArchiveSurfacesStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.meta.SaveErr = services.Wrap(services.ErrTransient, "metadata", "save", "api down", nil)
	rec := identified(t, gazette.URLSource("https://example.org/31.pdf"))
	f.stageOCRed(t, rec)

	if _, err := f.archiver.Archive(context.Background(), rec, ""); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected store failure, got %v", err)
	}
	if f.store.Copies() != 0 {
		t.Fatal("no bytes should move when the save fails")
	}
}

func TestCleanupIsBestEffort(t *testing.T) {
	f := newFixture(t)
	rec := identified(t, gazette.URLSource("https://example.org/31.pdf"))
	original, ocr := f.stageOCRed(t, rec)
	foreign := gazette.Location{Bucket: "archive", Key: "elsewhere/keep.pdf"}
	testsupport.PutObject(t, f.store, foreign, "%PDF keep")
	rec.Sources = append(rec.Sources, foreign)

	f.store.FailDelete(original, errors.New("access denied"))
	result := f.archiver.Cleanup(context.Background(), rec)

	if len(result.Errors) != 1 || result.Errors[0].Location != original {
		t.Fatalf("expected one failure for %v, got %+v", original, result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != ocr {
		t.Fatalf("expected %v removed, got %v", ocr, result.Removed)
	}
	if testsupport.ObjectExists(t, f.store, ocr) {
		t.Fatal("ocr copy should be deleted")
	}
	if !testsupport.ObjectExists(t, f.store, foreign) {
		t.Fatal("locations outside the incoming bucket must never be deleted")
	}
	for _, loc := range f.store.Deletes() {
		if loc == foreign {
			t.Fatal("cleanup attempted to delete outside the incoming bucket")
		}
	}
}

func TestCleanupLocalRecordIsNoop(t *testing.T) {
	f := newFixture(t)
	rec := identified(t, gazette.FileSource("/tmp/a.pdf"))
	result := f.archiver.Cleanup(context.Background(), rec)
	if len(result.Removed) != 0 || len(result.Errors) != 0 || len(f.store.Deletes()) != 0 {
		t.Fatalf("expected nothing to clean, got %+v", result)
	}
}
