// Package config loads prontodb's YAML configuration file.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/prontodb/internal/address"
	"github.com/roach88/prontodb/internal/cursor"
	"github.com/roach88/prontodb/internal/store"
)

//go:embed schema.cue
var schemaCUE string

// Config stores user-level settings. Loaded from the config file, defaults
// used for anything missing.
type Config struct {
	// Delimiter separates address segments.
	Delimiter string `yaml:"delimiter" json:"delimiter"`

	// DefaultUser is used when no --user flag is given.
	DefaultUser string `yaml:"default_user" json:"default_user"`

	// BusyTimeoutMS bounds SQLite lock waits. 0 keeps the store default.
	BusyTimeoutMS int `yaml:"busy_timeout_ms" json:"busy_timeout_ms"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Database overrides the primary database path.
	Database string `yaml:"database" json:"database"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Delimiter:     address.DefaultDelimiter,
		DefaultUser:   cursor.DefaultUser,
		BusyTimeoutMS: int(store.DefaultBusyTimeout / time.Millisecond),
		LogLevel:      "warn",
	}
}

// Load reads the config file at path. A missing or empty file yields
// Default(). Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks c against the embedded CUE schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// BusyTimeout returns BusyTimeoutMS as a duration.
func (c Config) BusyTimeout() time.Duration {
	return time.Duration(c.BusyTimeoutMS) * time.Millisecond
}

// Level maps LogLevel to a slog level, defaulting to warn.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
