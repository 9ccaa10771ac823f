package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local directory configuration.
type Paths struct {
	WorkDir string `toml:"work_dir"`
	LogDir  string `toml:"log_dir"`
}

// Storage describes the object store and the buckets the pipeline moves
// documents between.
type Storage struct {
	Backend        string `toml:"backend"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	LocalRoot      string `toml:"local_root"`
	IncomingBucket string `toml:"incoming_bucket"`
	IncomingPrefix string `toml:"incoming_prefix"`
	StagingPrefix  string `toml:"staging_prefix"`
	ArchiveBucket  string `toml:"archive_bucket"`
	ArchivePrefix  string `toml:"archive_prefix"`
	SourcesPrefix  string `toml:"sources_prefix"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Metadata selects and configures the metadata store backend.
type Metadata struct {
	Backend        string `toml:"backend"`
	APIURL         string `toml:"api_url"`
	AuthToken      string `toml:"auth_token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryMax       int    `toml:"retry_max"`
	DSN            string `toml:"dsn"`
	SQLitePath     string `toml:"sqlite_path"`
	TaskURLBase    string `toml:"task_url_base"`
}

// Extraction configures coverpage text extraction.
type Extraction struct {
	Provider       string `toml:"provider"`
	Pdftotext      string `toml:"pdftotext"`
	MinChars       int    `toml:"min_chars"`
	RequiredPhrase string `toml:"required_phrase"`
}

// OCR configures the rasterize, recognize and recompress toolchain.
type OCR struct {
	Ghostscript string `toml:"ghostscript"`
	Tesseract   string `toml:"tesseract"`
	DPI         int    `toml:"dpi"`
	PDFSettings string `toml:"pdf_settings"`
}

// Identify configures jurisdiction matchers beyond the built-ins.
type Identify struct {
	DefinitionsPath string `toml:"definitions_path"`
}

// Download configures remote URL fetching.
type Download struct {
	BufferSize     int    `toml:"buffer_size"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UserAgent      string `toml:"user_agent"`
}

// Jobs configures the NATS job subject consumed by gazetted.
type Jobs struct {
	NATSURL    string `toml:"nats_url"`
	Subject    string `toml:"subject"`
	QueueGroup string `toml:"queue_group"`
}

// Ingest configures bulk ingestion from index pages.
type Ingest struct {
	Concurrency   int     `toml:"concurrency"`
	RatePerSecond float64 `toml:"rate_per_second"`
	Burst         int     `toml:"burst"`
}

// Metrics configures the Prometheus endpoint served by gazetted.
type Metrics struct {
	Bind string `toml:"bind"`
}

// Logging configures log format, level and retention.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for the gazette machine.
//
// Configuration sections by subsystem:
//   - Paths: scoped working directories and logs
//   - Storage: incoming, staging and archive buckets
//   - Metadata: record persistence, manual tasks and seen URLs
//   - Extraction, OCR: coverpage text and the OCR fallback
//   - Identify: extra jurisdiction definitions
//   - Download: remote URL fetching
//   - Jobs, Ingest, Metrics: daemon and bulk ingestion
//   - Logging: log format, level, and retention
type Config struct {
	Paths      Paths      `toml:"paths"`
	Storage    Storage    `toml:"storage"`
	Metadata   Metadata   `toml:"metadata"`
	Extraction Extraction `toml:"extraction"`
	OCR        OCR        `toml:"ocr"`
	Identify   Identify   `toml:"identify"`
	Download   Download   `toml:"download"`
	Jobs       Jobs       `toml:"jobs"`
	Ingest     Ingest     `toml:"ingest"`
	Metrics    Metrics    `toml:"metrics"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("gazettes.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the local directories required by the CLI and daemon.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.LogDir}
	if c.Storage.Backend == StorageLocal {
		dirs = append(dirs, c.Storage.LocalRoot)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MetadataTimeout returns the bound applied to each metadata store call.
func (c *Config) MetadataTimeout() time.Duration {
	return time.Duration(c.Metadata.TimeoutSeconds) * time.Second
}

// DownloadTimeout returns the bound applied to each remote download.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Download.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
