// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads customfields settings from defaults, an optional YAML
// file, the DATABASE_URL environment variable and command-line flags, in
// increasing order of precedence.
package config

import (
	"log/slog"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/customfields/internal/customfield"
)

// DatabaseURLEnv is consulted when neither the file nor a flag sets database.url.
const DatabaseURLEnv = "DATABASE_URL"

const appName = "customfields"

// Config is the full customfields configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Fields   FieldsConfig   `koanf:"fields"`
}

// DatabaseConfig controls the PostgreSQL connection.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts uint64        `koanf:"connect_attempts"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// FieldsConfig tunes validation and scope resolution.
type FieldsConfig struct {
	TextMaxLength int `koanf:"text_max_length"`
	// Scope pins the definition scope ID per entity type name,
	// e.g. membership: "club-7".
	Scope map[string]string `koanf:"scope"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			ConnectTimeout:  5 * time.Second,
			ConnectAttempts: 5,
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Fields: FieldsConfig{
			TextMaxLength: customfield.DefaultMaxTextLength,
		},
	}
}

// flagKeys maps CLI flag names to configuration keys. Flags not listed are
// command-specific and never reach the configuration.
var flagKeys = map[string]string{
	"database-url":     "database.url",
	"connect-timeout":  "database.connect_timeout",
	"connect-attempts": "database.connect_attempts",
	"log-format":       "log.format",
	"log-level":        "log.level",
	"text-max-length":  "fields.text_max_length",
}

// RegisterFlags adds the configuration override flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("database-url", "", "PostgreSQL connection URL (overrides "+DatabaseURLEnv+")")
	fs.Duration("connect-timeout", d.Database.ConnectTimeout, "timeout for each database connection attempt")
	fs.Uint64("connect-attempts", d.Database.ConnectAttempts, "database connection attempts before giving up")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.Int("text-max-length", d.Fields.TextMaxLength, "maximum length of text field values")
}

// Load builds the configuration. path may be empty; fs may be nil. Only flags
// the user actually set override file values.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if !k.Exists("database.url") {
		if url := os.Getenv(DatabaseURLEnv); url != "" {
			if err := k.Load(posflag.ProviderWithValue(envFlagSet(url), ".", nil, renameFlag), nil); err != nil {
				return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", DatabaseURLEnv).Wrap(err)
			}
		}
	}

	// With no koanf instance, posflag skips flags the user did not set.
	if fs != nil {
		if err := k.Load(posflag.ProviderWithValue(fs, ".", nil, renameFlag), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode configuration").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Dir returns the customfields configuration directory,
// $XDG_CONFIG_HOME/customfields or ~/.config/customfields.
func Dir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// Discover returns Dir()/config.yaml when it exists, otherwise "".
func Discover() (string, error) {
	path := filepath.Join(Dir(), "config.yaml")
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return path, nil
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	default:
		return "", oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
}

// envFlagSet presents DATABASE_URL as a changed flag so it flows through the
// same provider as command-line overrides.
func envFlagSet(url string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("env", pflag.ContinueOnError)
	fs.String("database-url", "", "")
	_ = fs.Set("database-url", url) //nolint:errcheck // string flags accept any value
	return fs
}

func renameFlag(name, value string) (string, any) {
	return flagKeys[name], value
}

// Validate checks value ranges and names.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "json", "text":
	default:
		return oops.Code("CONFIG_INVALID").With("key", "log.format").
			Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.Fields.TextMaxLength <= 0 {
		return oops.Code("CONFIG_INVALID").With("key", "fields.text_max_length").
			Errorf("fields.text_max_length must be positive, got %d", c.Fields.TextMaxLength)
	}
	if c.Database.ConnectTimeout <= 0 {
		return oops.Code("CONFIG_INVALID").With("key", "database.connect_timeout").
			Errorf("database.connect_timeout must be positive")
	}
	_, err := c.Scopes()
	return err
}

// LogLevel parses log.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.Log.Level))); err != nil {
		return 0, oops.Code("CONFIG_INVALID").With("key", "log.level").Wrap(err)
	}
	return level, nil
}

// Scopes returns the scope resolver described by fields.scope. With no
// entries every instance is its own scope.
func (c *Config) Scopes() (customfield.ScopeResolver, error) {
	if len(c.Fields.Scope) == 0 {
		return customfield.IdentityScopes{}, nil
	}
	fixed := make(customfield.FixedScopes, len(c.Fields.Scope))
	for name, id := range c.Fields.Scope {
		et, err := customfield.ParseEntityType(name)
		if err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("key", "fields.scope."+name).Wrap(err)
		}
		scope := customfield.Scope{EntityType: et, EntityID: id}
		if err := scope.Validate(); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("key", "fields.scope."+name).Wrap(err)
		}
		fixed[et] = id
	}
	return fixed, nil
}
