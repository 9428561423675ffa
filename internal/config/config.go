// Package config provides centralized configuration management for the service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Parse     ParseDefaults
	Upload    UploadConfig
	Store     StoreConfig
	Security  SecurityConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	Retention RetentionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// ParseDefaults are the pipeline settings used when a request names no profile.
type ParseDefaults struct {
	// StrictValidation drops rows that fail validation (default: true)
	StrictValidation bool `env:"PARSE_STRICT_VALIDATION" default:"true"`

	// Locale is the numeric convention: standard, european, or a language tag (default: standard)
	Locale string `env:"PARSE_LOCALE" default:"standard"`

	// HeaderRow is where the header search starts, 0-based (default: 0)
	HeaderRow int `env:"PARSE_HEADER_ROW" default:"0"`

	// AutoDetectHeader scans for a keyword row (default: true)
	AutoDetectHeader bool `env:"PARSE_AUTO_DETECT_HEADER" default:"true"`

	// SkipRows is the number of rows between header and data (default: 0)
	SkipRows int `env:"PARSE_SKIP_ROWS" default:"0"`

	// Delimiter forces a delimiter for text files; empty sniffs it
	Delimiter string `env:"PARSE_DELIMITER"`

	// Encoding of delimited text: auto, utf-8, windows-1252 (default: auto)
	Encoding string `env:"PARSE_ENCODING" default:"auto"`

	// MaxFileSize is the maximum accepted file size in bytes (default: 50MB)
	MaxFileSize int64 `env:"PARSE_MAX_FILE_SIZE" default:"52428800"`

	// ProfileDir holds the TOML parse profiles selectable by name
	ProfileDir string `env:"PARSE_PROFILE_DIR"`
}

// UploadConfig holds upload and background run settings.
type UploadConfig struct {
	// MaxConcurrent is the maximum number of parallel parses (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for a parse slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a synchronous parse request (default: 10m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"10m"`

	// RunRetention is how long a finished run stays retrievable (default: 5m)
	RunRetention time.Duration `env:"UPLOAD_RUN_RETENTION" default:"5m"`

	// MaxMemory is the multipart form size kept in memory before spilling to disk (default: 32MB)
	MaxMemory int64 `env:"UPLOAD_MAX_MEMORY" default:"33554432"`
}

// StoreConfig holds database connection settings. Persistence is disabled
// when no URL is configured.
type StoreConfig struct {
	// URL is the PostgreSQL connection string
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// SaveTimeout bounds persisting one run (default: 2m)
	SaveTimeout time.Duration `env:"DB_SAVE_TIMEOUT" default:"2m"`
}

// Enabled reports whether a database is configured.
func (c *StoreConfig) Enabled() bool { return c.URL != "" }

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key authentication on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint (default: true)
	Enabled bool `env:"METRICS_ENABLED" default:"true"`

	// Path is where metrics are served (default: /metrics)
	Path string `env:"METRICS_PATH" default:"/metrics"`
}

// RetentionConfig controls deletion of persisted runs.
type RetentionConfig struct {
	// Days is how long persisted runs are kept (default: 90)
	Days int `env:"RETENTION_DAYS" default:"90"`

	// CheckInterval is how often the purge job runs (default: 24h)
	CheckInterval time.Duration `env:"RETENTION_CHECK_INTERVAL" default:"24h"`

	// BatchSize is runs deleted per statement (default: 500)
	BatchSize int `env:"RETENTION_BATCH_SIZE" default:"500"`
}

// Window returns the retention period as a duration.
func (c *RetentionConfig) Window() time.Duration {
	return time.Duration(c.Days) * 24 * time.Hour
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
