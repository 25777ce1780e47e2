// Package config holds the settings of the maat command and loads them from
// defaults, an optional YAML file and MAAT_* environment variables.
package config

import (
	"log/slog"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// Driver is the database/sql driver: "sqlite3" or "pgx".
	Driver string `koanf:"driver"`

	// DSN is the data source name. For sqlite3 it is a file path.
	DSN string `koanf:"dsn"`

	// Catalog is the YAML or CUE file (or CUE directory) declaring entity
	// types and typologies.
	Catalog string `koanf:"catalog"`

	// BatchSize bounds the rows per staging insert.
	BatchSize int `koanf:"batch_size"`

	// Parallel is the number of (entity type, typology) pairs flushed at once.
	Parallel int `koanf:"parallel"`

	// Retries is how many times a typology failing with a storage error is
	// retried, RetryInterval apart.
	Retries       int           `koanf:"retries"`
	RetryInterval time.Duration `koanf:"retry_interval"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsFile, when set, receives flush metrics in the Prometheus text
	// format after every flush.
	MetricsFile string `koanf:"metrics_file"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		Driver:        "sqlite3",
		DSN:           "maat.db",
		Catalog:       "maat.yaml",
		BatchSize:     250,
		Parallel:      1,
		Retries:       0,
		RetryInterval: time.Second,
		LogLevel:      "info",
	}
}

// SlogLevel maps LogLevel onto a slog level. Unknown names map to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
