// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/campusdiaries/campusdiaries/internal/auth"
	authpostgres "github.com/campusdiaries/campusdiaries/internal/auth/postgres"
	"github.com/campusdiaries/campusdiaries/internal/config"
	"github.com/campusdiaries/campusdiaries/internal/identity"
	"github.com/campusdiaries/campusdiaries/internal/logging"
	"github.com/campusdiaries/campusdiaries/internal/observability"
	"github.com/campusdiaries/campusdiaries/internal/session"
	sessionpostgres "github.com/campusdiaries/campusdiaries/internal/session/postgres"
	sessionredis "github.com/campusdiaries/campusdiaries/internal/session/redis"
	"github.com/campusdiaries/campusdiaries/internal/web"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Campus Diaries web server",
		Long: `Start the site: signup, login and logout backed by PostgreSQL accounts,
with sessions kept in the configured session backend.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	cmd.Flags().Int("port", 0, "listen port (overrides PORT)")
	cmd.Flags().String("log-format", "", "log format: json or text (overrides LOG_FORMAT)")
	cmd.Flags().String("log-level", "", "log level: debug, info, warn or error (overrides LOG_LEVEL)")

	return cmd
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
}

// runServeWithDeps runs the site with injectable dependencies.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := deps.ConfigLoader()
	if err != nil {
		return oops.With("operation", "load configuration").Wrap(err)
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err //nolint:wrapcheck // Validate returns oops errors with context
	}

	logger := logging.SetDefault(logging.Options{
		Service: "diaries",
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
	}, deps.LogOutput)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := deps.DatabaseFactory(ctx, cfg.DatabaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := runAutoMigration(cfg.DatabaseURL, deps.MigratorFactory); err != nil {
			return err
		}
	}

	sessionStore, pingSessions, closeSessions, err := openSessionStore(cfg, db, deps)
	if err != nil {
		return err
	}
	defer closeSessions()

	keys, err := session.DeriveKeys([]byte(cfg.SessionSecret))
	if err != nil {
		return oops.Code("SESSION_INIT_FAILED").With("operation", "derive session keys").Wrap(err)
	}
	codec, err := session.NewSealedCodec(keys.Encryption)
	if err != nil {
		return oops.Code("SESSION_INIT_FAILED").With("operation", "create session codec").Wrap(err)
	}
	signer, err := session.NewCookieSigner(keys.Signing)
	if err != nil {
		return oops.Code("SESSION_INIT_FAILED").With("operation", "create cookie signer").Wrap(err)
	}
	sessions, err := session.NewManager(sessionStore, codec,
		session.WithTouchAfter(cfg.SessionTouchAfter),
		session.WithLogger(logger),
	)
	if err != nil {
		return oops.Code("SESSION_INIT_FAILED").With("operation", "create session manager").Wrap(err)
	}

	credentials, err := auth.NewCredentialStoreWithLogger(authpostgres.NewUserRepository(db), auth.NewArgon2idHasher(), logger)
	if err != nil {
		return oops.Code("AUTH_INIT_FAILED").With("operation", "create credential store").Wrap(err)
	}
	strategy, err := auth.NewLocalStrategy(credentials)
	if err != nil {
		return oops.Code("AUTH_INIT_FAILED").With("operation", "create local strategy").Wrap(err)
	}

	binder, err := identity.NewBinder(sessions, signer, credentials,
		identity.WithSecureCookies(cfg.SecureCookies),
		identity.WithLogger(logger),
	)
	if err != nil {
		return oops.Code("IDENTITY_INIT_FAILED").With("operation", "create identity binder").Wrap(err)
	}

	var (
		obsServer ObservabilityServer
		obsErrCh  <-chan error
		metrics   *observability.Metrics
	)
	if cfg.MetricsAddr != "" {
		readiness := func(ctx context.Context) error {
			if err := db.Ping(ctx); err != nil {
				return oops.Code("DB_UNAVAILABLE").Wrap(err)
			}
			return pingSessions(ctx)
		}
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, readiness)
		obsErrCh, err = obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.MetricsAddr).Wrap(err)
		}
		metrics = obsServer.Metrics()
	}

	site, err := web.NewSite(credentials, strategy, binder,
		web.WithDefaultRedirect(cfg.DefaultRedirect),
		web.WithLogger(logger),
		web.WithMetrics(metrics),
	)
	if err != nil {
		stopServer(obsServer, "observability")
		return oops.Code("WEB_INIT_FAILED").With("operation", "create site").Wrap(err)
	}

	webServer := deps.WebServerFactory(cfg.ListenAddr(), site.Handler())
	webErrCh, err := webServer.Start()
	if err != nil {
		stopServer(obsServer, "observability")
		return oops.Code("WEB_START_FAILED").With("addr", cfg.ListenAddr()).Wrap(err)
	}

	logger.Info("campus diaries started",
		"addr", webServer.Addr(),
		"session_backend", cfg.SessionBackend,
		"metrics_addr", cfg.MetricsAddr,
	)
	cmd.Printf("Campus Diaries listening on %s\n", webServer.Addr())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go monitorServerErrors(ctx, cancel, webErrCh, "web")
	if obsErrCh != nil {
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	<-ctx.Done()
	logger.Info("shutting down")

	stopServer(webServer, "web")
	stopServer(obsServer, "observability")

	logger.Info("campus diaries stopped")
	return nil
}

// openSessionStore builds the configured session backend, a readiness
// check for it and a cleanup func.
func openSessionStore(cfg *config.Config, db Database, deps *Deps) (session.Store, func(context.Context) error, func(), error) {
	noPing := func(context.Context) error { return nil }
	noClose := func() {}

	switch cfg.SessionBackend {
	case config.BackendPostgres:
		return sessionpostgres.NewStore(db), noPing, noClose, nil
	case config.BackendRedis:
		client, err := deps.RedisFactory(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, oops.With("operation", "connect to redis").Wrap(err)
		}
		redisStore := sessionredis.NewStore(client, "")
		closeClient := func() {
			if err := client.Close(); err != nil {
				slog.Warn("error closing redis client", "error", err)
			}
		}
		return redisStore, redisStore.Ping, closeClient, nil
	case config.BackendMemory:
		slog.Warn("using in-memory session store; sessions do not survive restarts")
		return session.NewMemoryStore(), noPing, noClose, nil
	default:
		return nil, nil, nil, oops.Code("CONFIG_INVALID").
			With("field", "SESSION_BACKEND").
			Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

// runAutoMigration applies pending migrations before the site starts.
func runAutoMigration(databaseURL string, factory func(string) (Migrator, error)) error {
	slog.Info("running database migrations")

	migrator, err := factory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").With("operation", "apply migrations").Wrap(err)
	}

	slog.Info("database migrations complete")
	return nil
}

type stopper interface {
	Stop(ctx context.Context) error
}

// stopServer stops s with the shutdown timeout. A nil s is skipped.
func stopServer(s stopper, name string) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		slog.Warn("error stopping server", "server", name, "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports a serve error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
