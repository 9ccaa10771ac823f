package testsupport

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"gazettemachine/internal/config"
	"gazettemachine/internal/gazette"
	"gazettemachine/internal/objstore"
)

// MustLocalStore opens the local object store configured by cfg.
func MustLocalStore(t testing.TB, cfg *config.Config) *objstore.LocalStore {
	t.Helper()

	store, err := objstore.NewLocal(cfg.Storage.LocalRoot)
	if err != nil {
		t.Fatalf("objstore.NewLocal: %v", err)
	}
	return store
}

// PutObject uploads content to loc, failing the test on error.
func PutObject(t testing.TB, store objstore.Store, loc gazette.Location, content string) {
	t.Helper()

	src := filepath.Join(t.TempDir(), "object.pdf")
	WriteText(t, src, content)
	if err := store.Upload(context.Background(), loc, src); err != nil {
		t.Fatalf("upload %s: %v", loc, err)
	}
}

// ObjectExists reports whether loc is present in store.
func ObjectExists(t testing.TB, store objstore.Store, loc gazette.Location) bool {
	t.Helper()

	_, err := store.Stat(context.Background(), loc)
	return err == nil
}

// FaultyStore wraps a store and fails operations on chosen locations.
type FaultyStore struct {
	objstore.Store

	mu         sync.Mutex
	failDelete map[gazette.Location]error
	failCopy   error
	deletes    []gazette.Location
	copies     int
}

// NewFaultyStore wraps inner with no faults configured.
func NewFaultyStore(inner objstore.Store) *FaultyStore {
	return &FaultyStore{Store: inner, failDelete: make(map[gazette.Location]error)}
}

// FailDelete makes deletes of loc return err.
func (f *FaultyStore) FailDelete(loc gazette.Location, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDelete[loc] = err
}

// FailCopy makes every copy return err.
func (f *FaultyStore) FailCopy(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCopy = err
}

func (f *FaultyStore) Copy(ctx context.Context, src, dst gazette.Location) error {
	f.mu.Lock()
	f.copies++
	err := f.failCopy
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.Copy(ctx, src, dst)
}

func (f *FaultyStore) Delete(ctx context.Context, loc gazette.Location) error {
	f.mu.Lock()
	f.deletes = append(f.deletes, loc)
	err := f.failDelete[loc]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.Delete(ctx, loc)
}

// Deletes lists every location a delete was attempted on.
func (f *FaultyStore) Deletes() []gazette.Location {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gazette.Location(nil), f.deletes...)
}

// Copies counts copy attempts.
func (f *FaultyStore) Copies() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.copies
}
