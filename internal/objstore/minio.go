package objstore

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"gazettemachine/internal/config"
	"gazettemachine/internal/gazette"
	"gazettemachine/internal/services"
)

const pdfContentType = "application/pdf"

// MinioStore talks to S3 or any S3-compatible endpoint. Every call is
// bounded by the storage timeout.
type MinioStore struct {
	client  *minio.Client
	timeout time.Duration
}

// NewMinio builds a client from the [storage] section. Empty credentials
// fall back to the IAM/env chain.
func NewMinio(cfg config.Storage) (*MinioStore, error) {
	var creds *credentials.Credentials
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.IAM{},
		})
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "new", "initialize minio client", err)
	}
	return &MinioStore{client: client, timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}, nil
}

func (s *MinioStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *MinioStore) Download(ctx context.Context, loc gazette.Location, dstPath string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.FGetObject(ctx, loc.Bucket, loc.Key, dstPath, minio.GetObjectOptions{}); err != nil {
		if isNotFound(err) {
			return notFound("download", loc, err)
		}
		return s.failed(ctx, "download", loc, err)
	}
	return nil
}

func (s *MinioStore) Upload(ctx context.Context, loc gazette.Location, srcPath string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	_, err := s.client.FPutObject(ctx, loc.Bucket, loc.Key, srcPath, minio.PutObjectOptions{ContentType: pdfContentType})
	if err != nil {
		return s.failed(ctx, "upload", loc, err)
	}
	return nil
}

func (s *MinioStore) Copy(ctx context.Context, src, dst gazette.Location) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: dst.Bucket, Object: dst.Key},
		minio.CopySrcOptions{Bucket: src.Bucket, Object: src.Key},
	)
	if err != nil {
		if isNotFound(err) {
			return notFound("copy", src, err)
		}
		return s.failed(ctx, "copy", src, err)
	}
	return nil
}

func (s *MinioStore) Delete(ctx context.Context, loc gazette.Location) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.RemoveObject(ctx, loc.Bucket, loc.Key, minio.RemoveObjectOptions{}); err != nil {
		return s.failed(ctx, "delete", loc, err)
	}
	return nil
}

func (s *MinioStore) Stat(ctx context.Context, loc gazette.Location) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	info, err := s.client.StatObject(ctx, loc.Bucket, loc.Key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return 0, notFound("stat", loc, err)
		}
		return 0, s.failed(ctx, "stat", loc, err)
	}
	return info.Size, nil
}

// failed reports err, marking it as a timeout once the bound expired.
func (s *MinioStore) failed(ctx context.Context, operation string, loc gazette.Location, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = errors.Join(err, ctx.Err())
	}
	return storageError(operation, loc, err)
}

func isNotFound(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
	}
	return false
}
