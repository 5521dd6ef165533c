package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/dgallion1/docchunk/internal/chunker"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Auth
	APIKey string `env:"DOCCHUNK_API_KEY"`

	// Worker pool
	WorkerCount        int `env:"WORKER_COUNT" envDefault:"4"`
	MaxQueueSize       int `env:"MAX_QUEUE_SIZE" envDefault:"100"`
	MaxConcurrentChunk int `env:"MAX_CONCURRENT_CHUNK" envDefault:"4"`

	// Upload limits
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"` // 50MB

	// Chunking defaults
	DefaultMaxWords    int      `env:"DEFAULT_MAX_WORDS" envDefault:"200"`
	DefaultGranularity string   `env:"DEFAULT_GRANULARITY" envDefault:"paragraph"`
	GreedySiblingMerge bool     `env:"GREEDY_SIBLING_MERGE" envDefault:"true"`
	ExcludedTags       []string `env:"EXCLUDED_TAGS" envDefault:"noscript,script,style" envSeparator:","`
	ExcludedClasses    []string `env:"EXCLUDED_CLASSES" envSeparator:","`
	SectionBreakTags   []string `env:"SECTION_BREAK_TAGS" envDefault:"article,br,div,footer,h1,h2,h3,h4,h5,h6,header,hr,main,nav" envSeparator:","`

	// Job state
	JobTTL time.Duration `env:"JOB_TTL" envDefault:"1h"`

	// URL retrieval
	FetchTimeout   time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
	MaxFetchBytes  int64         `env:"MAX_FETCH_BYTES" envDefault:"52428800"`
	FetchAttempts  int           `env:"FETCH_ATTEMPTS" envDefault:"3"`
	FetchBaseDelay time.Duration `env:"FETCH_BASE_DELAY" envDefault:"1s"`
	FetchMaxDelay  time.Duration `env:"FETCH_MAX_DELAY" envDefault:"30s"`

	// PDF
	PDFFallbackPdftotext bool `env:"PDF_FALLBACK_PDFTOTEXT" envDefault:"true"`

	// Token counting; empty uses the word-based estimate.
	TokenEncoding string `env:"TOKEN_ENCODING" envDefault:"cl100k_base"`

	// Job events; empty NATSURL disables publishing.
	NATSURL     string `env:"NATS_URL"`
	NATSSubject string `env:"NATS_SUBJECT" envDefault:"docchunk.jobs"`
}

// Load reads configuration from environment variables with defaults.
// Non-positive numeric values fall back to their defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}

	if cfg.Port == "" {
		cfg.Port = "8090"
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentChunk <= 0 {
		cfg.MaxConcurrentChunk = 4
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.DefaultMaxWords <= 0 {
		cfg.DefaultMaxWords = 200
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.MaxFetchBytes <= 0 {
		cfg.MaxFetchBytes = 52428800
	}
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = 3
	}
	if cfg.FetchBaseDelay <= 0 {
		cfg.FetchBaseDelay = time.Second
	}
	if cfg.FetchMaxDelay <= 0 {
		cfg.FetchMaxDelay = 30 * time.Second
	}
	if cfg.NATSSubject == "" {
		cfg.NATSSubject = "docchunk.jobs"
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("DOCCHUNK_API_KEY is required")
	}
	if _, err := chunker.ParseGranularity(c.DefaultGranularity); err != nil {
		return fmt.Errorf("DEFAULT_GRANULARITY: %w", err)
	}
	return nil
}

// ChunkConfig returns the default chunking configuration. Call Validate first.
func (c Config) ChunkConfig() chunker.Config {
	g, err := chunker.ParseGranularity(c.DefaultGranularity)
	if err != nil {
		g = chunker.GranularityParagraph
	}
	return chunker.Config{MaxWords: c.DefaultMaxWords, Granularity: g}
}

// ChunkOptions returns the tree aggregation options from the environment.
func (c Config) ChunkOptions() []chunker.Option {
	return []chunker.Option{
		chunker.WithGreedySiblingMerge(c.GreedySiblingMerge),
		chunker.WithExcludedTags(c.ExcludedTags...),
		chunker.WithExcludedClasses(c.ExcludedClasses...),
		chunker.WithSectionBreakTags(c.SectionBreakTags...),
	}
}
