// Package config loads runtime settings from EVENTCORE_* environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "EVENTCORE_"

// Read model backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds the runtime settings.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"eventcore"`
	Environment string `env:"ENVIRONMENT" envDefault:"dev"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// QueryCacheTTL of zero disables query caching.
	QueryCacheTTL    time.Duration `env:"QUERY_CACHE_TTL" envDefault:"5s"`
	SnapshotInterval int64         `env:"SNAPSHOT_INTERVAL" envDefault:"10"`
	RebuildBatchSize int           `env:"REBUILD_BATCH_SIZE" envDefault:"1000"`

	ReadModelBackend string `env:"READ_MODEL_BACKEND" envDefault:"memory"`
	SQLiteDSN        string `env:"SQLITE_DSN" envDefault:":memory:"`
	RedisAddr        string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB          int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix      string `env:"REDIS_PREFIX" envDefault:"rm"`
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	var cfg Config
	// Defaults cannot fail to parse.
	_ = env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix, Environment: map[string]string{}})
	return cfg
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the parser cannot.
func (c Config) Validate() error {
	switch c.ReadModelBackend {
	case BackendMemory, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("invalid read model backend %q", c.ReadModelBackend)
	}
	if c.QueryCacheTTL < 0 {
		return fmt.Errorf("query cache ttl must not be negative")
	}
	if c.SnapshotInterval < 0 {
		return fmt.Errorf("snapshot interval must not be negative")
	}
	if c.RebuildBatchSize <= 0 {
		return fmt.Errorf("rebuild batch size must be positive")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// NewLogger builds a slog logger writing to stderr.
func NewLogger(cfg Config) *slog.Logger {
	return NewLoggerTo(os.Stderr, cfg)
}

// NewLoggerTo builds a slog logger with the configured level and format.
// Invalid levels fall back to info.
func NewLoggerTo(w io.Writer, cfg Config) *slog.Logger {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With(
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
	)
}
