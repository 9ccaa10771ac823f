package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"gazettemachine/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Storage uses the local backend rooted in the temp dir and metadata uses a
// sqlite database beside it.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Storage.Backend = config.StorageLocal
	cfgVal.Storage.LocalRoot = filepath.Join(base, "objects")
	cfgVal.Storage.IncomingBucket = "incoming"
	cfgVal.Storage.ArchiveBucket = "archive"
	cfgVal.Metadata.Backend = config.MetadataSQLite
	cfgVal.Metadata.SQLitePath = filepath.Join(base, "gazettes.db")
	cfgVal.Metadata.TaskURLBase = "https://tasks.test/tasks/"
	cfgVal.Metrics.Bind = "127.0.0.1:0"

	for _, dir := range []string{cfgVal.Paths.WorkDir, cfgVal.Paths.LogDir, cfgVal.Storage.LocalRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPI points the metadata store at a REST endpoint.
func WithAPI(url, token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metadata.Backend = config.MetadataREST
		b.cfg.Metadata.APIURL = url
		b.cfg.Metadata.AuthToken = token
	}
}

// WithIncomingPrefix restricts accepted object sources to prefix and moves
// the staging prefix beneath it.
func WithIncomingPrefix(prefix string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.IncomingPrefix = prefix
		b.cfg.Storage.StagingPrefix = prefix + "temp/"
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default gazette toolchain
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"pdftotext", "gs", "tesseract"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
