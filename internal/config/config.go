package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgallion1/bookweave/internal/oracle"
)

type Config struct {
	Port string

	// Pathstore connection; persistence is off when the key is empty
	PathstoreURL    string
	PathstoreAPIKey string

	// Auth
	APIKey string

	// Claude oracle
	OracleEnabled   bool
	AnthropicAPIKey string
	AnthropicModel  string

	// AnthropicEndpoint overrides the messages URL; empty uses the public API.
	AnthropicEndpoint string

	// Worker pool
	WorkerCount         int
	MaxQueueSize        int
	MaxConcurrentOracle int

	// Upload limits
	MaxUploadBytes int64

	// Pagination of whole-book uploads
	LinesPerPage int

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		PathstoreURL:    envOr("PATHSTORE_URL", "http://localhost:8080"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),

		APIKey: os.Getenv("BOOKWEAVE_API_KEY"),

		OracleEnabled:   envBool("ORACLE_ENABLED", false),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),

		AnthropicEndpoint: os.Getenv("ANTHROPIC_ENDPOINT"),

		WorkerCount:         envInt("WORKER_COUNT", 2),
		MaxQueueSize:        envInt("MAX_QUEUE_SIZE", 50),
		MaxConcurrentOracle: envInt("MAX_CONCURRENT_ORACLE", 3),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		LinesPerPage: envInt("LINES_PER_PAGE", 40),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 50
	}
	if cfg.MaxConcurrentOracle <= 0 {
		cfg.MaxConcurrentOracle = 3
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.LinesPerPage <= 0 {
		cfg.LinesPerPage = 40
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// OracleOptions returns the client options the configuration asks for.
func (c Config) OracleOptions() []oracle.Option {
	if c.AnthropicEndpoint == "" {
		return nil
	}
	return []oracle.Option{oracle.WithEndpoint(c.AnthropicEndpoint)}
}

// PersistenceEnabled reports whether merge results go to pathstore.
func (c Config) PersistenceEnabled() bool {
	return c.PathstoreAPIKey != ""
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("BOOKWEAVE_API_KEY is required")
	}
	if c.OracleEnabled && c.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when ORACLE_ENABLED is set")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
