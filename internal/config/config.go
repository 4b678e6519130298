// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

// Package config loads the service configuration from the environment.
package config

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/samber/oops"

	"github.com/campusdiaries/campusdiaries/internal/session"
)

// Session backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config is the environment-sourced configuration.
type Config struct {
	SessionSecret     string        `env:"SESSION_SECRET,required,notEmpty,unset"`
	DatabaseURL       string        `env:"DATABASE_URL,required,notEmpty"`
	Port              int           `env:"PORT"                envDefault:"8080"`
	Host              string        `env:"HOST"`
	SessionBackend    string        `env:"SESSION_BACKEND"     envDefault:"postgres"`
	RedisURL          string        `env:"REDIS_URL"`
	SessionTouchAfter time.Duration `env:"SESSION_TOUCH_AFTER" envDefault:"0s"`
	LogFormat         string        `env:"LOG_FORMAT"          envDefault:"json"`
	LogLevel          string        `env:"LOG_LEVEL"           envDefault:"info"`
	MetricsAddr       string        `env:"METRICS_ADDR"        envDefault:"127.0.0.1:9100"`
	SecureCookies     bool          `env:"SECURE_COOKIES"      envDefault:"false"`
	DefaultRedirect   string        `env:"DEFAULT_REDIRECT"    envDefault:"/explore"`
	AutoMigrate       bool          `env:"AUTO_MIGRATE"        envDefault:"true"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	return LoadFrom(nil)
}

// LoadFrom parses environ instead of the process environment when it is
// non-nil, then validates the result.
func LoadFrom(environ map[string]string) (*Config, error) {
	var cfg Config
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if len(c.SessionSecret) < session.MinSecretLength {
		return invalid("SESSION_SECRET", "must be at least %d bytes", session.MinSecretLength)
	}
	if c.DatabaseURL == "" {
		return invalid("DATABASE_URL", "is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return invalid("PORT", "must be between 1 and 65535, got %d", c.Port)
	}
	switch c.SessionBackend {
	case BackendPostgres, BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return invalid("REDIS_URL", "is required when SESSION_BACKEND is redis")
		}
	default:
		return invalid("SESSION_BACKEND", "must be postgres, redis or memory, got %q", c.SessionBackend)
	}
	if c.SessionTouchAfter < 0 {
		return invalid("SESSION_TOUCH_AFTER", "must not be negative")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return invalid("LOG_FORMAT", "must be 'json' or 'text', got %q", c.LogFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("LOG_LEVEL", "must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			return invalid("METRICS_ADDR", "must be host:port, got %q", c.MetricsAddr)
		}
	}
	if u, err := url.Parse(c.DefaultRedirect); err != nil || !strings.HasPrefix(c.DefaultRedirect, "/") ||
		strings.HasPrefix(c.DefaultRedirect, "//") || u.Host != "" {
		return invalid("DEFAULT_REDIRECT", "must be a local path, got %q", c.DefaultRedirect)
	}
	return nil
}

// ListenAddr is the site's listen address.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func invalid(field, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("field", field).Errorf(field+" "+format, args...)
}
