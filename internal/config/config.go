// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

// Package config loads service settings. Sources, lowest precedence first:
// flag defaults, the YAML file (--config, else the XDG config file if it
// exists), the .env file, the process environment and flags set on the
// command line.
package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/phonegate/phonegate/internal/logging"
	"github.com/phonegate/phonegate/internal/xdg"
)

// Config is the complete service configuration.
type Config struct {
	DatabaseURL string        `koanf:"database_url" json:"database_url,omitempty" jsonschema:"description=PostgreSQL connection URL"`
	JWT         JWTConfig     `koanf:"jwt" json:"jwt,omitempty"`
	Lockout     LockoutConfig `koanf:"lockout" json:"lockout,omitempty"`
	HTTP        HTTPConfig    `koanf:"http" json:"http,omitempty"`
	Metrics     MetricsConfig `koanf:"metrics" json:"metrics,omitempty"`
	Log         LogConfig     `koanf:"log" json:"log,omitempty"`
}

// JWTConfig controls token signing.
type JWTConfig struct {
	Key  string `koanf:"key" json:"key,omitempty" jsonschema:"description=HMAC signing key"`
	Days int    `koanf:"days" json:"days,omitempty" jsonschema:"minimum=1,description=Token validity in days"`
}

// LockoutConfig controls the failed sign-in lockout.
type LockoutConfig struct {
	RetryLimit           int `koanf:"retry_limit" json:"retry_limit,omitempty" jsonschema:"minimum=1,description=Failures before lockout"`
	RetryIntervalMinutes int `koanf:"retry_interval_minutes" json:"retry_interval_minutes,omitempty" jsonschema:"minimum=1,description=Cool-down after the last failure"`
}

// HTTPConfig controls the API listener.
type HTTPConfig struct {
	Addr         string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=API listen address"`
	SecureCookie bool   `koanf:"secure_cookie" json:"secure_cookie,omitempty" jsonschema:"description=Mark the token cookie Secure"`
}

// MetricsConfig controls the observability listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=Metrics and health probe listen address"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
}

// TokenValidity returns the configured token lifetime.
func (c Config) TokenValidity() time.Duration {
	return time.Duration(c.JWT.Days) * 24 * time.Hour
}

// RetryInterval returns the configured lockout cool-down.
func (c Config) RetryInterval() time.Duration {
	return time.Duration(c.Lockout.RetryIntervalMinutes) * time.Minute
}

// Validate checks required settings and ranges.
func (c Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return invalid("database_url", "database url is required")
	case c.JWT.Key == "":
		return invalid("jwt.key", "jwt key is required")
	case c.JWT.Days <= 0:
		return invalid("jwt.days", "jwt days must be positive")
	case c.Lockout.RetryLimit <= 0:
		return invalid("lockout.retry_limit", "retry limit must be positive")
	case c.Lockout.RetryIntervalMinutes <= 0:
		return invalid("lockout.retry_interval_minutes", "retry interval must be positive")
	case c.HTTP.Addr == "":
		return invalid("http.addr", "http address is required")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "log.level").Wrap(err)
	}
	if f := c.Log.Format; f != "json" && f != "text" {
		return invalid("log.format", "log format must be json or text")
	}
	return nil
}

func invalid(key, msg string) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s", msg)
}

// envKeys maps environment variables to config keys. The unprefixed names
// are the ones deployments already set.
var envKeys = map[string]string{
	"DATABASE_URL":                 "database_url",
	"JWT_KEY":                      "jwt.key",
	"JWT_DAYS":                     "jwt.days",
	"RETRY_LIMIT":                  "lockout.retry_limit",
	"RETRY_INTERVAL":               "lockout.retry_interval_minutes",
	"PHONEGATE_HTTP_ADDR":          "http.addr",
	"PHONEGATE_HTTP_SECURE_COOKIE": "http.secure_cookie",
	"PHONEGATE_METRICS_ADDR":       "metrics.addr",
	"PHONEGATE_LOG_LEVEL":          "log.level",
	"PHONEGATE_LOG_FORMAT":         "log.format",
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"database-url":   "database_url",
	"jwt-key":        "jwt.key",
	"jwt-days":       "jwt.days",
	"retry-limit":    "lockout.retry_limit",
	"retry-interval": "lockout.retry_interval_minutes",
	"http-addr":      "http.addr",
	"secure-cookie":  "http.secure_cookie",
	"metrics-addr":   "metrics.addr",
	"log-level":      "log.level",
	"log-format":     "log.format",
}

// Flag names for the file locations.
const (
	FlagConfigFile = "config"
	FlagEnvFile    = "env-file"
)

const defaultEnvFile = ".env"

// RegisterFlags adds every setting to flags with its default.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String(FlagConfigFile, "", "path to a YAML config file (default: $XDG_CONFIG_HOME/phonegate/config.yaml when present)")
	flags.String(FlagEnvFile, defaultEnvFile, "path to a .env file (missing default is ignored)")
	flags.String("database-url", "", "PostgreSQL connection URL")
	flags.String("jwt-key", "", "HMAC key for signing tokens")
	flags.Int("jwt-days", 7, "token validity in days")
	flags.Int("retry-limit", 5, "failed sign-ins before lockout")
	flags.Int("retry-interval", 10, "lockout cool-down in minutes")
	flags.String("http-addr", ":8000", "API listen address")
	flags.Bool("secure-cookie", false, "mark the token cookie Secure")
	flags.String("metrics-addr", "127.0.0.1:9100", "metrics and health listen address (empty disables)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "json", "log format (json or text)")
}

// Load builds a Config from flags (registered with RegisterFlags) and the
// files and environment it names, then validates it.
func Load(flags *pflag.FlagSet) (*Config, error) {
	cfg, err := Read(flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read layers the sources like Load but leaves validation to the caller.
func Read(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	configFile, err := flags.GetString(FlagConfigFile)
	if err != nil {
		return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
	}
	if configFile == "" {
		if configFile, err = xdg.FindConfigFile(); err != nil {
			return nil, err
		}
	}
	if configFile != "" {
		if err := loadFile(k, configFile); err != nil {
			return nil, err
		}
	}

	envFile, err := flags.GetString(FlagEnvFile)
	if err != nil {
		return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
	}
	if err := loadDotEnv(envFile, flags.Changed(FlagEnvFile)); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider("", ".", func(name string) string {
		return envKeys[name]
	}), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(flags, f)
	}), nil); err != nil {
		return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return oops.Code("CONFIG_FILE_UNREADABLE").With("path", path).Wrap(err)
	}
	if err := ValidateYAML(data); err != nil {
		return oops.Code("CONFIG_FILE_INVALID").With("path", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_FILE_INVALID").With("path", path).Wrap(err)
	}
	return nil
}

// loadDotEnv copies the variables in path into the process environment
// without overriding ones already set. A missing file is an error only when
// the path was given explicitly.
func loadDotEnv(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_ENV_FILE_INVALID").With("path", path).Wrap(err)
	}
	return nil
}
