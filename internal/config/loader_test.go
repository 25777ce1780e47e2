package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/roach88/maat/internal/config"
)

var configEnvVars = []string{
	"MAAT_CONFIG", "MAAT_DRIVER", "MAAT_DSN", "MAAT_CATALOG", "MAAT_BATCH_SIZE",
	"MAAT_PARALLEL", "MAAT_RETRIES", "MAAT_RETRY_INTERVAL", "MAAT_LOG_LEVEL", "MAAT_METRICS_FILE",
}

func clearConfigEnvVars() {
	for _, name := range configEnvVars {
		_ = os.Unsetenv(name)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "maat.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have the documented defaults", func() {
			convey.So(cfg.Driver, convey.ShouldEqual, "sqlite3")
			convey.So(cfg.DSN, convey.ShouldEqual, "maat.db")
			convey.So(cfg.BatchSize, convey.ShouldEqual, 250)
			convey.So(cfg.Parallel, convey.ShouldEqual, 1)
			convey.So(cfg.Retries, convey.ShouldEqual, 0)
			convey.So(cfg.RetryInterval, convey.ShouldEqual, time.Second)
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.MetricsFile, convey.ShouldBeEmpty)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_SlogLevel(t *testing.T) {
	convey.Convey("Given log level names", t, func() {
		cfg := config.New()
		for name, want := range map[string]slog.Level{
			"debug": slog.LevelDebug,
			"INFO":  slog.LevelInfo,
			"warn":  slog.LevelWarn,
			"error": slog.LevelError,
			"bogus": slog.LevelInfo,
		} {
			cfg.LogLevel = name
			convey.So(cfg.SlogLevel(), convey.ShouldEqual, want)
		}
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading with defaults only", func() {
			cfg, err := config.Load("")

			convey.Convey("Then the defaults are returned", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading with environment variables", func() {
			_ = os.Setenv("MAAT_DRIVER", "pgx")
			_ = os.Setenv("MAAT_DSN", "postgres://localhost/maat")
			_ = os.Setenv("MAAT_BATCH_SIZE", "500")
			_ = os.Setenv("MAAT_PARALLEL", "4")
			_ = os.Setenv("MAAT_RETRY_INTERVAL", "250ms")

			cfg, err := config.Load("")

			convey.Convey("Then env vars override the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Driver, convey.ShouldEqual, "pgx")
				convey.So(cfg.DSN, convey.ShouldEqual, "postgres://localhost/maat")
				convey.So(cfg.BatchSize, convey.ShouldEqual, 500)
				convey.So(cfg.Parallel, convey.ShouldEqual, 4)
				convey.So(cfg.RetryInterval, convey.ShouldEqual, 250*time.Millisecond)
				convey.So(cfg.Catalog, convey.ShouldEqual, "maat.yaml")
			})
		})

		convey.Convey("When loading a YAML file passed explicitly", func() {
			path := writeConfigFile(t, `
dsn: /var/lib/maat/rankings.db
catalog: /etc/maat/catalog.cue
batch_size: 1000
retries: 3
metrics_file: /var/lib/node_exporter/maat.prom
`)
			cfg, err := config.Load(path)

			convey.Convey("Then file values are merged over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DSN, convey.ShouldEqual, "/var/lib/maat/rankings.db")
				convey.So(cfg.Catalog, convey.ShouldEqual, "/etc/maat/catalog.cue")
				convey.So(cfg.BatchSize, convey.ShouldEqual, 1000)
				convey.So(cfg.Retries, convey.ShouldEqual, 3)
				convey.So(cfg.MetricsFile, convey.ShouldEqual, "/var/lib/node_exporter/maat.prom")
				convey.So(cfg.Driver, convey.ShouldEqual, "sqlite3")
				convey.So(cfg.Parallel, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the file comes from MAAT_CONFIG and env overrides it", func() {
			path := writeConfigFile(t, "batch_size: 1000\nparallel: 2\n")
			_ = os.Setenv("MAAT_CONFIG", path)
			_ = os.Setenv("MAAT_PARALLEL", "8")

			cfg, err := config.Load("")

			convey.Convey("Then env wins over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.BatchSize, convey.ShouldEqual, 1000)
				convey.So(cfg.Parallel, convey.ShouldEqual, 8)
			})
		})

		convey.Convey("When the file is not valid YAML", func() {
			path := writeConfigFile(t, "invalid: yaml: content: [")
			cfg, err := config.Load(path)

			convey.Convey("Then a load error is returned", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the file does not exist", func() {
			cfg, err := config.Load("/non/existent/maat.yaml")

			convey.Convey("Then a load error is returned", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a setting is invalid", func() {
			_ = os.Setenv("MAAT_BATCH_SIZE", "0")
			cfg, err := config.Load("")

			convey.Convey("Then a validation error is returned", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "batch_size must be positive")
			})
		})

		convey.Convey("When the driver is unknown", func() {
			_ = os.Setenv("MAAT_DRIVER", "oracle")
			_, err := config.Load("")

			convey.Convey("Then a validation error names it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, `"oracle"`)
			})
		})

		convey.Convey("When the dsn is set empty", func() {
			_ = os.Setenv("MAAT_DSN", "")
			_, err := config.Load("")

			convey.Convey("Then a validation error is returned", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "dsn must not be empty")
			})
		})
	})
}
