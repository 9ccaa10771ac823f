package objstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gazettemachine/internal/fileutil"
	"gazettemachine/internal/gazette"
	"gazettemachine/internal/services"
)

// LocalStore keeps buckets as directories under a root. It backs tests and
// single-host deployments.
type LocalStore struct {
	root string
}

// NewLocal returns a store rooted at root, creating it when missing.
func NewLocal(root string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "new", "local root is required", nil)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "new", "create local root", err)
	}
	return &LocalStore{root: root}, nil
}

// Path maps a location onto the local filesystem.
func (s *LocalStore) Path(loc gazette.Location) (string, error) {
	if loc.Bucket == "" || loc.Key == "" || strings.ContainsAny(loc.Bucket, `/\`) {
		return "", fmt.Errorf("invalid location %q", loc.String())
	}
	rel := filepath.Clean(filepath.FromSlash(loc.Key))
	if rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("location %q escapes its bucket", loc.String())
	}
	return filepath.Join(s.root, loc.Bucket, rel), nil
}

func (s *LocalStore) Download(ctx context.Context, loc gazette.Location, dstPath string) error {
	return s.transfer(ctx, "download", loc, dstPath)
}

func (s *LocalStore) Upload(ctx context.Context, loc gazette.Location, srcPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := s.Path(loc)
	if err != nil {
		return services.Wrap(services.ErrValidation, "storage", "upload", loc.String(), err)
	}
	if _, err := fileutil.CopyFile(srcPath, dst); err != nil {
		return storageError("upload", loc, err)
	}
	return nil
}

func (s *LocalStore) Copy(ctx context.Context, src, dst gazette.Location) error {
	target, err := s.Path(dst)
	if err != nil {
		return services.Wrap(services.ErrValidation, "storage", "copy", dst.String(), err)
	}
	return s.transfer(ctx, "copy", src, target)
}

func (s *LocalStore) transfer(ctx context.Context, operation string, src gazette.Location, dstPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	from, err := s.Path(src)
	if err != nil {
		return services.Wrap(services.ErrValidation, "storage", operation, src.String(), err)
	}
	if _, err := fileutil.CopyFile(from, dstPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound(operation, src, err)
		}
		return storageError(operation, src, err)
	}
	return nil
}

// Delete removes the object. Missing objects are not an error, matching S3.
func (s *LocalStore) Delete(ctx context.Context, loc gazette.Location) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Path(loc)
	if err != nil {
		return services.Wrap(services.ErrValidation, "storage", "delete", loc.String(), err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageError("delete", loc, err)
	}
	return nil
}

func (s *LocalStore) Stat(ctx context.Context, loc gazette.Location) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	path, err := s.Path(loc)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "storage", "stat", loc.String(), err)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, notFound("stat", loc, err)
		}
		return 0, storageError("stat", loc, err)
	}
	return info.Size(), nil
}
