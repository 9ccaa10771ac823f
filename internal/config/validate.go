package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateMetadata(); err != nil {
		return err
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageS3:
		if c.Storage.Endpoint == "" {
			return errors.New("storage.endpoint must be set when storage.backend is s3")
		}
	case StorageLocal:
		if strings.TrimSpace(c.Storage.LocalRoot) == "" {
			return errors.New("storage.local_root must be set when storage.backend is local")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (want s3 or local)", c.Storage.Backend)
	}
	if c.Storage.IncomingBucket == "" {
		return errors.New("storage.incoming_bucket must be set")
	}
	if c.Storage.ArchiveBucket == "" {
		return errors.New("storage.archive_bucket must be set")
	}
	if c.Storage.ArchiveBucket == c.Storage.IncomingBucket {
		return errors.New("storage.archive_bucket must differ from storage.incoming_bucket")
	}
	if c.Storage.StagingPrefix == "" {
		return errors.New("storage.staging_prefix must be set")
	}
	if c.Storage.IncomingPrefix != "" && !strings.HasPrefix(c.Storage.StagingPrefix, c.Storage.IncomingPrefix) {
		return errors.New("storage.staging_prefix must lie under storage.incoming_prefix")
	}
	return nil
}

func (c *Config) validateMetadata() error {
	switch c.Metadata.Backend {
	case MetadataREST:
		if c.Metadata.APIURL == "" {
			return errors.New("metadata.api_url must be set when metadata.backend is rest")
		}
		if _, err := url.ParseRequestURI(c.Metadata.APIURL); err != nil {
			return fmt.Errorf("metadata.api_url: %w", err)
		}
	case MetadataPostgres:
		if c.Metadata.DSN == "" {
			return errors.New("metadata.dsn must be set when metadata.backend is postgres. Set GAZETTES_DATABASE_URL or edit the config file")
		}
	case MetadataSQLite:
		if c.Metadata.SQLitePath == "" {
			return errors.New("metadata.sqlite_path must be set when metadata.backend is sqlite")
		}
	default:
		return fmt.Errorf("metadata.backend: unsupported value %q (want rest, postgres or sqlite)", c.Metadata.Backend)
	}
	if c.Metadata.TimeoutSeconds <= 0 {
		return errors.New("metadata.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateExtraction() error {
	switch c.Extraction.Provider {
	case ExtractPdftotext, ExtractNative:
	default:
		return fmt.Errorf("extraction.provider: unsupported value %q (want pdftotext or native)", c.Extraction.Provider)
	}
	if err := ensurePositiveMap(map[string]int{
		"extraction.min_chars":     c.Extraction.MinChars,
		"ocr.dpi":                  c.OCR.DPI,
		"download.timeout_seconds": c.Download.TimeoutSeconds,
		"storage.timeout_seconds":  c.Storage.TimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Extraction.RequiredPhrase == "" {
		return errors.New("extraction.required_phrase must be set")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.Concurrency <= 0 {
		return errors.New("ingest.concurrency must be positive")
	}
	if c.Ingest.RatePerSecond <= 0 {
		return errors.New("ingest.rate_per_second must be positive")
	}
	if c.Ingest.Burst <= 0 {
		return errors.New("ingest.burst must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
