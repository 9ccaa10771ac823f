// Package objstore moves documents between the local disk and object
// storage buckets.
package objstore

import (
	"context"
	"errors"
	"fmt"

	"gazettemachine/internal/config"
	"gazettemachine/internal/gazette"
	"gazettemachine/internal/services"
)

// Store is the object storage surface the pipeline needs. Copies never
// delete their source.
type Store interface {
	Download(ctx context.Context, loc gazette.Location, dstPath string) error
	Upload(ctx context.Context, loc gazette.Location, srcPath string) error
	Copy(ctx context.Context, src, dst gazette.Location) error
	Delete(ctx context.Context, loc gazette.Location) error
	Stat(ctx context.Context, loc gazette.Location) (int64, error)
}

// New selects the backend named by storage.backend.
func New(cfg *config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageS3:
		return NewMinio(cfg.Storage)
	case config.StorageLocal:
		return NewLocal(cfg.Storage.LocalRoot)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "storage", "new", fmt.Sprintf("unsupported backend %q", cfg.Storage.Backend), nil)
	}
}

func storageError(operation string, loc gazette.Location, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "storage", operation, loc.String(), err)
	}
	return services.Wrap(services.ErrTransient, "storage", operation, loc.String(), err)
}

func notFound(operation string, loc gazette.Location, err error) error {
	return services.Wrap(services.ErrNotFound, "storage", operation, loc.String(), err)
}
