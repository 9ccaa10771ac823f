package testsupport

import (
	"context"
	"fmt"
	"sync"

	"gazettemachine/internal/gazette"
	"gazettemachine/internal/metastore"
)

// MemoryMeta is an in-memory metastore.Store. Keys already saved report
// duplicates, and SaveErr or TaskErr override the result when set.
type MemoryMeta struct {
	SaveErr error
	TaskErr error

	mu      sync.Mutex
	records map[string]*gazette.Record
	tasks   []*gazette.Record
	seen    map[string]struct{}
	saves   int
}

// NewMemoryMeta returns an empty store. Any seen URLs are pre-registered.
func NewMemoryMeta(seen ...string) *MemoryMeta {
	m := &MemoryMeta{
		records: make(map[string]*gazette.Record),
		seen:    make(map[string]struct{}),
	}
	for _, url := range seen {
		m.seen[url] = struct{}{}
	}
	return m
}

var _ metastore.Store = (*MemoryMeta)(nil)

func (m *MemoryMeta) Save(ctx context.Context, rec *gazette.Record) (metastore.SaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.SaveErr != nil {
		return metastore.SaveResult{}, m.SaveErr
	}
	if _, exists := m.records[rec.Key]; exists {
		return metastore.SaveResult{Record: rec, Duplicate: true}, nil
	}
	m.records[rec.Key] = rec.Clone()
	m.markSeen(rec)
	return metastore.SaveResult{Record: rec.Clone()}, nil
}

func (m *MemoryMeta) CreateManualTask(ctx context.Context, rec *gazette.Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TaskErr != nil {
		return "", m.TaskErr
	}
	m.tasks = append(m.tasks, rec.Clone())
	m.markSeen(rec)
	return fmt.Sprintf("https://tasks.test/%d", len(m.tasks)), nil
}

func (m *MemoryMeta) FilterSeen(ctx context.Context, urls []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, url := range urls {
		if _, ok := m.seen[url]; !ok {
			out = append(out, url)
		}
	}
	return out, nil
}

func (m *MemoryMeta) Close() error { return nil }

func (m *MemoryMeta) markSeen(rec *gazette.Record) {
	if rec.Source.Kind == gazette.SourceURL {
		m.seen[rec.Source.URL] = struct{}{}
	}
}

// Record returns the stored record for key, if any.
func (m *MemoryMeta) Record(key string) (*gazette.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	return rec, ok
}

// Tasks returns the records filed for manual review.
func (m *MemoryMeta) Tasks() []*gazette.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*gazette.Record(nil), m.tasks...)
}

// Saves counts Save calls, including duplicates and failures.
func (m *MemoryMeta) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
