package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/roach88/maat/internal/querysql"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MAAT_"

// Load builds a Config by layering, from low to high precedence:
//  1. defaults (New)
//  2. the YAML file at path, or at $MAAT_CONFIG when path is empty
//  3. environment variables MAAT_<KEY>, e.g. MAAT_BATCH_SIZE
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: environment: %w", ErrLoadConfig, err)
	}

	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.DSN == "":
		return fmt.Errorf("%w: dsn must not be empty", ErrInvalidConfig)
	case c.BatchSize < 1:
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	case c.Parallel < 1:
		return fmt.Errorf("%w: parallel must be positive, got %d", ErrInvalidConfig, c.Parallel)
	case c.Retries < 0:
		return fmt.Errorf("%w: retries must not be negative, got %d", ErrInvalidConfig, c.Retries)
	case c.RetryInterval < 0:
		return fmt.Errorf("%w: retry_interval must not be negative", ErrInvalidConfig)
	}
	if _, err := querysql.DialectFor(c.Driver); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
