package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	if err := c.normalizeMetadata(); err != nil {
		return err
	}
	if err := c.normalizeIdentify(); err != nil {
		return err
	}
	c.normalizeExtraction()
	c.normalizeJobs()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageS3
	}
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	if c.Storage.AccessKey == "" {
		if value, ok := os.LookupEnv("GAZETTES_S3_ACCESS_KEY"); ok {
			c.Storage.AccessKey = strings.TrimSpace(value)
		}
	}
	if c.Storage.SecretKey == "" {
		if value, ok := os.LookupEnv("GAZETTES_S3_SECRET_KEY"); ok {
			c.Storage.SecretKey = strings.TrimSpace(value)
		}
	}
	var err error
	if c.Storage.LocalRoot, err = expandPath(c.Storage.LocalRoot); err != nil {
		return fmt.Errorf("storage.local_root: %w", err)
	}
	c.Storage.IncomingBucket = strings.TrimSpace(c.Storage.IncomingBucket)
	c.Storage.ArchiveBucket = strings.TrimSpace(c.Storage.ArchiveBucket)
	c.Storage.IncomingPrefix = normalizePrefix(c.Storage.IncomingPrefix)
	c.Storage.StagingPrefix = normalizePrefix(c.Storage.StagingPrefix)
	c.Storage.ArchivePrefix = normalizePrefix(c.Storage.ArchivePrefix)
	c.Storage.SourcesPrefix = normalizePrefix(c.Storage.SourcesPrefix)
	return nil
}

func (c *Config) normalizeMetadata() error {
	c.Metadata.Backend = strings.ToLower(strings.TrimSpace(c.Metadata.Backend))
	if c.Metadata.Backend == "" {
		c.Metadata.Backend = MetadataREST
	}
	if value, ok := os.LookupEnv("GM_API_URL"); ok && strings.TrimSpace(value) != "" {
		c.Metadata.APIURL = strings.TrimSpace(value)
	}
	c.Metadata.APIURL = strings.TrimRight(strings.TrimSpace(c.Metadata.APIURL), "/")
	if c.Metadata.AuthToken == "" {
		if value, ok := os.LookupEnv("GM_AUTH_TOKEN"); ok {
			c.Metadata.AuthToken = strings.TrimSpace(value)
		}
	}
	if c.Metadata.DSN == "" {
		if value, ok := os.LookupEnv("GAZETTES_DATABASE_URL"); ok {
			c.Metadata.DSN = strings.TrimSpace(value)
		}
	}
	var err error
	if c.Metadata.SQLitePath, err = expandPath(c.Metadata.SQLitePath); err != nil {
		return fmt.Errorf("metadata.sqlite_path: %w", err)
	}
	c.Metadata.TaskURLBase = strings.TrimSpace(c.Metadata.TaskURLBase)
	if c.Metadata.RetryMax < 0 {
		c.Metadata.RetryMax = 0
	}
	return nil
}

func (c *Config) normalizeIdentify() error {
	var err error
	if c.Identify.DefinitionsPath, err = expandPath(strings.TrimSpace(c.Identify.DefinitionsPath)); err != nil {
		return fmt.Errorf("identify.definitions_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeExtraction() {
	c.Extraction.Provider = strings.ToLower(strings.TrimSpace(c.Extraction.Provider))
	if c.Extraction.Provider == "" {
		c.Extraction.Provider = ExtractPdftotext
	}
	if strings.TrimSpace(c.Extraction.Pdftotext) == "" {
		c.Extraction.Pdftotext = defaultPdftotextExecutable
	}
	c.Extraction.RequiredPhrase = strings.ToLower(strings.TrimSpace(c.Extraction.RequiredPhrase))
	if strings.TrimSpace(c.OCR.Ghostscript) == "" {
		c.OCR.Ghostscript = defaultGhostscriptExecutable
	}
	if strings.TrimSpace(c.OCR.Tesseract) == "" {
		c.OCR.Tesseract = defaultTesseractExecutable
	}
	c.OCR.PDFSettings = strings.TrimSpace(c.OCR.PDFSettings)
	if c.OCR.PDFSettings == "" {
		c.OCR.PDFSettings = defaultPDFSettings
	}
}

func (c *Config) normalizeJobs() {
	if value, ok := os.LookupEnv("GAZETTES_NATS_URL"); ok && strings.TrimSpace(value) != "" {
		c.Jobs.NATSURL = strings.TrimSpace(value)
	}
	c.Jobs.Subject = strings.TrimSpace(c.Jobs.Subject)
	c.Jobs.QueueGroup = strings.TrimSpace(c.Jobs.QueueGroup)
	if c.Jobs.QueueGroup == "" {
		c.Jobs.QueueGroup = defaultJobsQueueGroup
	}
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// normalizePrefix trims slashes and guarantees a trailing slash on non-empty
// object key prefixes.
func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}
