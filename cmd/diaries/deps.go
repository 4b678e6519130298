// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package main

import (
	"context"
	"io"
	"net/http"
	"os"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/campusdiaries/campusdiaries/internal/config"
	"github.com/campusdiaries/campusdiaries/internal/observability"
	"github.com/campusdiaries/campusdiaries/internal/store"
	"github.com/campusdiaries/campusdiaries/internal/web"
)

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// ConfigLoader reads the service configuration.
	// Default: config.Load
	ConfigLoader func() (*config.Config, error)

	// DatabaseURLGetter returns the database URL for commands that need nothing else.
	// Default: reads from DATABASE_URL environment variable
	DatabaseURLGetter func() string

	// DatabaseFactory opens the PostgreSQL pool.
	// Default: store.Connect with store.DefaultConnectOptions
	DatabaseFactory func(ctx context.Context, url string) (Database, error)

	// MigratorFactory opens a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// RedisFactory opens a Redis client for the redis session backend.
	// Default: goredis.ParseURL + goredis.NewClient
	RedisFactory func(url string) (goredis.UniversalClient, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readiness observability.ReadinessChecker) ObservabilityServer

	// WebServerFactory creates the site's HTTP server.
	// Default: web.NewServer
	WebServerFactory func(addr string, handler http.Handler) WebServer

	// LogOutput receives log records.
	// Default: os.Stderr
	LogOutput io.Writer
}

// Database wraps the methods used from *pgxpool.Pool.
type Database interface {
	store.Pool
	Ping(ctx context.Context) error
	Close()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Pending() ([]uint, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// WebServer wraps the methods used from web.Server.
type WebServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// withDefaults returns deps with every nil field filled in.
func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.ConfigLoader == nil {
		out.ConfigLoader = config.Load
	}
	if out.DatabaseURLGetter == nil {
		out.DatabaseURLGetter = func() string {
			return os.Getenv("DATABASE_URL")
		}
	}
	if out.DatabaseFactory == nil {
		out.DatabaseFactory = func(ctx context.Context, url string) (Database, error) {
			return store.Connect(ctx, url, store.DefaultConnectOptions)
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (Migrator, error) {
			return store.NewMigrator(url)
		}
	}
	if out.RedisFactory == nil {
		out.RedisFactory = newRedisClient
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readiness observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readiness)
		}
	}
	if out.WebServerFactory == nil {
		out.WebServerFactory = func(addr string, handler http.Handler) WebServer {
			return web.NewServer(addr, handler)
		}
	}
	if out.LogOutput == nil {
		out.LogOutput = os.Stderr
	}
	return &out
}

func newRedisClient(url string) (goredis.UniversalClient, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("REDIS_CONFIG_INVALID").With("operation", "parse redis url").Wrap(err)
	}
	return goredis.NewClient(opts), nil
}

var (
	_ Migrator            = (*store.Migrator)(nil)
	_ ObservabilityServer = (*observability.Server)(nil)
	_ WebServer           = (*web.Server)(nil)
)
