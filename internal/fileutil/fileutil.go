// Package fileutil holds the file copy helpers shared by the local object
// store and the fetcher.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile copies src to dst, creating dst's parent directories. The bytes
// land in a temp file beside dst that is renamed into place, so readers
// never observe a partial copy. It returns the number of bytes written.
func CopyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	return WriteAtomic(dst, in)
}

// WriteAtomic streams r into dst through a sibling temp file.
func WriteAtomic(dst string, r io.Reader) (int64, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create parent dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return 0, err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return 0, err
	}
	committed = true
	return written, nil
}

// SameContent reports whether two files have identical size and SHA256.
func SameContent(a, b string) (bool, error) {
	sumA, sizeA, err := digest(a)
	if err != nil {
		return false, err
	}
	sumB, sizeB, err := digest(b)
	if err != nil {
		return false, err
	}
	return sizeA == sizeB && bytes.Equal(sumA, sumB), nil
}

func digest(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, 0, err
	}
	return h.Sum(nil), n, nil
}
