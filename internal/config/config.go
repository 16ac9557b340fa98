// Package config provides centralized configuration management for the importer.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all importer configuration.
// All settings can be configured via environment variables.
type Config struct {
	Database DatabaseConfig
	Import   ImportConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig holds catalog import processing settings.
type ImportConfig struct {
	// RootPosix is the import root for Linux/macOS hosts
	RootPosix string `env:"IMPORT_ROOT_POSIX" default:"/var/lib/catalog-import/incoming"`

	// RootWindows is the import root for Windows hosts
	RootWindows string `env:"IMPORT_ROOT_WINDOWS" default:"C:\\catalog-import\\incoming"`

	// ChunkSize is the read buffer size in bytes for source file parsing (default: 64KB)
	ChunkSize int `env:"IMPORT_CHUNK_SIZE" default:"65536"`

	// BatchSize is the number of rows applied per upsert batch (default: 500)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"500"`

	// LockTimeout is how long to wait for the per-table advisory lock (default: 30s)
	LockTimeout time.Duration `env:"IMPORT_LOCK_TIMEOUT" default:"30s"`

	// ProgressEvery is the number of processed rows between progress writes (default: 1000)
	ProgressEvery int `env:"IMPORT_PROGRESS_EVERY" default:"1000"`

	// BulkEnabled selects the bulk import code path (default: true)
	BulkEnabled bool `env:"IMPORT_BULK_ENABLED" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}
