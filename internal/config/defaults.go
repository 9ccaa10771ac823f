package config

// Storage backends.
const (
	StorageS3    = "s3"
	StorageLocal = "local"
)

// Metadata store backends.
const (
	MetadataREST     = "rest"
	MetadataPostgres = "postgres"
	MetadataSQLite   = "sqlite"
)

// Extraction providers.
const (
	ExtractPdftotext = "pdftotext"
	ExtractNative    = "native"
)

const (
	defaultConfigPath            = "~/.config/gazettes/config.toml"
	defaultWorkDir               = "~/.local/share/gazettes/work"
	defaultLogDir                = "~/.local/share/gazettes/logs"
	defaultLocalRoot             = "~/.local/share/gazettes/objects"
	defaultSQLitePath            = "~/.local/share/gazettes/gazettes.db"
	defaultStorageEndpoint       = "s3.amazonaws.com"
	defaultIncomingBucket        = "lawsafrica-gazettes-incoming"
	defaultStagingPrefix         = "temp/"
	defaultArchiveBucket         = "lawsafrica-gazettes-archive"
	defaultArchivePrefix         = "archive/"
	defaultSourcesPrefix         = "sources/"
	defaultAPIURL                = "https://api.gazettes.laws.africa"
	defaultMetadataTimeout       = 30
	defaultStorageTimeout        = 120
	defaultMinChars              = 20
	defaultRequiredPhrase        = "gazette"
	defaultOCRDPI                = 300
	defaultPDFSettings           = "/ebook"
	defaultDownloadBufferSize    = 32 * 1024
	defaultDownloadTimeout       = 300
	defaultDownloadUserAgent     = "gazettemachine/dev"
	defaultNATSURL               = "nats://127.0.0.1:4222"
	defaultJobsSubject           = "gazettes.identify"
	defaultJobsQueueGroup        = "workers"
	defaultIngestConcurrency     = 4
	defaultIngestRatePerSecond   = 1.0
	defaultIngestBurst           = 1
	defaultMetricsBind           = "127.0.0.1:9464"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	defaultGhostscriptExecutable = "gs"
	defaultTesseractExecutable   = "tesseract"
	defaultPdftotextExecutable   = "pdftotext"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
		},
		Storage: Storage{
			Backend:        StorageS3,
			Endpoint:       defaultStorageEndpoint,
			UseSSL:         true,
			LocalRoot:      defaultLocalRoot,
			IncomingBucket: defaultIncomingBucket,
			StagingPrefix:  defaultStagingPrefix,
			ArchiveBucket:  defaultArchiveBucket,
			ArchivePrefix:  defaultArchivePrefix,
			SourcesPrefix:  defaultSourcesPrefix,
			TimeoutSeconds: defaultStorageTimeout,
		},
		Metadata: Metadata{
			Backend:        MetadataREST,
			APIURL:         defaultAPIURL,
			TimeoutSeconds: defaultMetadataTimeout,
			SQLitePath:     defaultSQLitePath,
		},
		Extraction: Extraction{
			Provider:       ExtractPdftotext,
			Pdftotext:      defaultPdftotextExecutable,
			MinChars:       defaultMinChars,
			RequiredPhrase: defaultRequiredPhrase,
		},
		OCR: OCR{
			Ghostscript: defaultGhostscriptExecutable,
			Tesseract:   defaultTesseractExecutable,
			DPI:         defaultOCRDPI,
			PDFSettings: defaultPDFSettings,
		},
		Download: Download{
			BufferSize:     defaultDownloadBufferSize,
			TimeoutSeconds: defaultDownloadTimeout,
			UserAgent:      defaultDownloadUserAgent,
		},
		Jobs: Jobs{
			NATSURL:    defaultNATSURL,
			Subject:    defaultJobsSubject,
			QueueGroup: defaultJobsQueueGroup,
		},
		Ingest: Ingest{
			Concurrency:   defaultIngestConcurrency,
			RatePerSecond: defaultIngestRatePerSecond,
			Burst:         defaultIngestBurst,
		},
		Metrics: Metrics{
			Bind: defaultMetricsBind,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
