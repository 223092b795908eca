// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Reference ReferenceConfig
	Enrich    EnrichConfig
	Run       RunConfig
	Upload    UploadConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing a response. Zero
	// leaves long enrichment runs unbounded at the connection level.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for every route except the
	// enrichment endpoints, which are bounded by RUN_TIMEOUT (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// ReferenceConfig selects where the reference dataset comes from.
type ReferenceConfig struct {
	// Dir holds the reference CSV/XLSX files (default: IRS_EO_BMF)
	Dir string `env:"REFERENCE_DIR" envAlt:"IRS_EO_BMF_DIR" default:"IRS_EO_BMF"`

	// DatabaseURL switches loading to a Postgres table when set
	DatabaseURL string `env:"REFERENCE_DATABASE_URL" envAlt:"DATABASE_URL"`

	// Table is the reference table, optionally schema-qualified (default: eo_bmf)
	Table string `env:"REFERENCE_TABLE" default:"eo_bmf"`

	// MaxConns is the pool size used for the reference database (default: 4)
	MaxConns int `env:"REFERENCE_DB_MAX_CONNS" default:"4"`

	// Required fails runs when the dataset cannot be loaded (default: true)
	Required bool `env:"REFERENCE_REQUIRED" default:"true"`

	// Preload loads the dataset at startup instead of on the first run (default: true)
	Preload bool `env:"REFERENCE_PRELOAD" default:"true"`

	// LoadTimeout bounds one load of the dataset (default: 5m)
	LoadTimeout time.Duration `env:"REFERENCE_LOAD_TIMEOUT" default:"5m"`
}

// EnrichConfig holds remote lookup settings.
type EnrichConfig struct {
	// BaseURL is the organization API base; requests go to <BaseURL>/<ein>.json
	BaseURL string `env:"ENRICH_BASE_URL" default:"https://projects.propublica.org/nonprofits/api/v2/organizations"`

	// FilingBaseURL is the base of the synthesized filing link <FilingBaseURL>/<ein>/full
	FilingBaseURL string `env:"ENRICH_FILING_BASE_URL" default:"https://projects.propublica.org/nonprofits/organizations"`

	// MaxConcurrent caps lookups in flight per run (default: 16)
	MaxConcurrent int `env:"ENRICH_MAX_CONCURRENT" default:"16"`

	// Timeout is the per-request HTTP timeout (default: 30s)
	Timeout time.Duration `env:"ENRICH_TIMEOUT" default:"30s"`
}

// RunConfig holds enrichment run settings.
type RunConfig struct {
	// MaxConcurrent is the maximum number of parallel runs (default: 4)
	MaxConcurrent int `env:"RUN_MAX_CONCURRENT" default:"4"`

	// MaxWait is how long to wait for a run slot (default: 30s)
	MaxWait time.Duration `env:"RUN_MAX_WAIT" default:"30s"`

	// Timeout bounds a whole run (default: 10m)
	Timeout time.Duration `env:"RUN_TIMEOUT" default:"10m"`

	// TTL is how long finished runs stay downloadable (default: 30m)
	TTL time.Duration `env:"RUN_TTL" default:"30m"`

	// KeepUnmatched keeps every row without an EIN during deduplication (default: false)
	KeepUnmatched bool `env:"DEDUPE_KEEP_UNMATCHED" default:"false"`
}

// UploadConfig holds upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 50MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"52428800"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// EnrichLimit is requests per minute for enrichment and preview endpoints (default: 10)
	EnrichLimit int `env:"RATE_LIMIT_ENRICH" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// UsesDatabase reports whether the reference dataset is read from Postgres.
func (c *ReferenceConfig) UsesDatabase() bool {
	return c.DatabaseURL != ""
}
