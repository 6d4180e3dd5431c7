// pkg/config/config.go

// Package config loads the library configuration from files and
// environment variables.
package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

// DatabaseConfig holds the connection settings for the backing store.
type DatabaseConfig struct {
	Driver string     `mapstructure:"driver" validate:"required,oneof=pgx mysql sqlite3 sqlserver mongodb"`
	DSN    string     `mapstructure:"dsn" validate:"required"`
	Pool   PoolConfig `mapstructure:"pool"`
}

// LoggingConfig controls the structured logger handed to stores and the
// dispatcher.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
}

// Build constructs a slog logger from the settings, writing to w. A nil
// w defaults to stderr.
func (c LoggingConfig) Build(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: c.slogLevel()}
	var handler slog.Handler
	if strings.EqualFold(c.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func (c LoggingConfig) slogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HooksConfig tunes hook dispatch behavior.
type HooksConfig struct {
	// DeferAfterHooks controls whether after_* hooks inside a
	// transaction wait for commit. On by default; turning it off makes
	// every hook run inline, which some test suites prefer.
	DeferAfterHooks bool `mapstructure:"deferAfterHooks"`
}

// Config aggregates all settings.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Hooks    HooksConfig    `mapstructure:"hooks"`
}

// NewDefaultConfig builds a config with defaults; driver and DSN must
// come from the user.
func NewDefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Pool: PoolConfig{
				MaxIdleConns:    5,
				MaxOpenConns:    10,
				ConnMaxLifetime: time.Hour,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Hooks: HooksConfig{
			DeferAfterHooks: true,
		},
	}
}
