package fetch

import (
	"os"
	"path/filepath"

	"gazettemachine/internal/gazette"
	"gazettemachine/internal/services"
)

// WorkingCopy is the local file the pipeline reads. Scratch space for OCR
// output lives in the same scoped directory, which Close removes.
type WorkingCopy struct {
	Path string

	workDir string
	dir     string
	staged  []gazette.Location
}

func newScopedCopy(workDir string) (*WorkingCopy, error) {
	dir, err := os.MkdirTemp(workDir, "fetch-*")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "fetch", "scratch dir", "create scratch dir", err)
	}
	return &WorkingCopy{workDir: workDir, dir: dir}, nil
}

// Scratch returns a path for name inside the scoped directory, creating the
// directory for local-file copies on first use.
func (w *WorkingCopy) Scratch(name string) (string, error) {
	if w.dir == "" {
		dir, err := os.MkdirTemp(w.workDir, "fetch-*")
		if err != nil {
			return "", services.Wrap(services.ErrTransient, "fetch", "scratch dir", "create scratch dir", err)
		}
		w.dir = dir
	}
	return filepath.Join(w.dir, filepath.Base(name)), nil
}

// Replace makes path the working copy. The caller's original file is never
// touched.
func (w *WorkingCopy) Replace(path string) {
	w.Path = path
}

// Track records loc as an object this run created in the incoming bucket.
func (w *WorkingCopy) Track(loc gazette.Location) {
	w.staged = append(w.staged, loc)
}

// Staged lists the objects recorded with Track, oldest first. Caller-supplied
// locations never appear here.
func (w *WorkingCopy) Staged() []gazette.Location {
	return append([]gazette.Location(nil), w.staged...)
}

// Close removes the scoped directory. It is safe to call more than once.
func (w *WorkingCopy) Close() error {
	if w == nil || w.dir == "" {
		return nil
	}
	dir := w.dir
	w.dir = ""
	return os.RemoveAll(dir)
}
