// Package workdir sweeps scoped temp directories that crashed runs left in
// work_dir.
package workdir

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gazettemachine/internal/logging"
)

// ScopedPrefixes are the name prefixes of directories the pipeline creates
// under work_dir. Nothing else there is touched.
var ScopedPrefixes = []string{"fetch-", "extract-", "ocr-"}

// SweepResult contains the outcome of a stale directory sweep.
type SweepResult struct {
	Removed []string
	Errors  []SweepError
}

// SweepError pairs a directory path with its removal error.
type SweepError struct {
	Path  string
	Error error
}

// Entry describes one scoped directory.
type Entry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
	Size    int64     `json:"size"`
}

// CleanStale removes scoped directories in workDir older than maxAge.
func CleanStale(ctx context.Context, workDir string, maxAge time.Duration, logger *slog.Logger) SweepResult {
	result := SweepResult{}
	entries, err := scoped(workDir)
	if err != nil {
		result.Errors = append(result.Errors, SweepError{Path: workDir, Error: err})
		return result
	}
	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.ModTime.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(entry.Path); err != nil {
			result.Errors = append(result.Errors, SweepError{Path: entry.Path, Error: err})
			if logger != nil {
				logging.WarnWithContext(logger, "failed to remove stale work directory", "workdir_sweep_failed",
					logging.String("path", entry.Path),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check work_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, entry.Path)
		if logger != nil {
			logger.Info("removed stale work directory",
				logging.String("path", entry.Path),
				logging.Duration("age", time.Since(entry.ModTime)),
				logging.String(logging.FieldEventType, "workdir_sweep"),
			)
		}
	}
	return result
}

// List returns the scoped directories currently in workDir.
func List(workDir string) ([]Entry, error) {
	entries, err := scoped(workDir)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Size = dirSize(entries[i].Path)
	}
	return entries, nil
}

func scoped(workDir string) ([]Entry, error) {
	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return nil, nil
	}
	dirents, err := os.ReadDir(workDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Entry
	for _, d := range dirents {
		if !d.IsDir() || !isScoped(d.Name()) {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{Name: d.Name(), Path: filepath.Join(workDir, d.Name()), ModTime: info.ModTime()})
	}
	return out, nil
}

func isScoped(name string) bool {
	for _, prefix := range ScopedPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// best effort
func dirSize(path string) int64 {
	var size int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}
