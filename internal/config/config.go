// Package config loads cellsync settings from CELLSYNC_* environment
// variables and builds the process logger.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds process configuration. CLI flags override these values.
type Config struct {
	DBPath         string        `env:"DB"              envDefault:"cellsync.db"`
	StoreID        string        `env:"STORE"           envDefault:"default"`
	LivenessWindow time.Duration `env:"LIVENESS_WINDOW" envDefault:"30s"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL"  envDefault:"5s"`
	CommitRetries  int           `env:"COMMIT_RETRIES"  envDefault:"3"`
	LogLevel       string        `env:"LOG_LEVEL"       envDefault:"info"`
	LogFormat      string        `env:"LOG_FORMAT"      envDefault:"text"`
}

// EnvPrefix prefixes every variable name.
const EnvPrefix = "CELLSYNC_"

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: EnvPrefix})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: EnvPrefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges that the env tags cannot express.
func (c Config) Validate() error {
	if c.StoreID == "" {
		return fmt.Errorf("config: store id must not be empty")
	}
	if c.LivenessWindow <= 0 {
		return fmt.Errorf("config: liveness window must be positive, got %s", c.LivenessWindow)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("config: sweep interval must be positive, got %s", c.SweepInterval)
	}
	if c.CommitRetries < 0 {
		return fmt.Errorf("config: commit retries must not be negative, got %d", c.CommitRetries)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("config: log format %q: must be text or json", c.LogFormat)
	}
	return nil
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("config: unknown log level %q", s)
}

// NewLogger builds a logger writing to w in the configured format.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// InstallLogger makes the configured logger the slog default.
func (c Config) InstallLogger(w io.Writer) {
	slog.SetDefault(c.NewLogger(w))
}
