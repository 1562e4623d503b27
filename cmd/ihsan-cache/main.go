// Command ihsan-cache runs the cache engine as a standalone service with an
// HTTP admin surface, optional upstream warming and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dmitrymomot/ihsan/internal/config"
	"github.com/dmitrymomot/ihsan/internal/server"
	"github.com/dmitrymomot/ihsan/internal/warmer"
	"github.com/dmitrymomot/ihsan/pkg/apiclient"
	"github.com/dmitrymomot/ihsan/pkg/cache"
	"github.com/dmitrymomot/ihsan/pkg/db"
	"github.com/dmitrymomot/ihsan/pkg/health"
	"github.com/dmitrymomot/ihsan/pkg/logger"
	"github.com/dmitrymomot/ihsan/pkg/redis"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.NewWithSentry(cfg.Log, cfg.Sentry, apiclient.CorrelationIDExtractor)
	log = log.With(slog.String("backend", string(cfg.Backend)))

	store, checks, closers, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	rt, err := setup(ctx, cfg, log, store, checks, closers)
	if err != nil {
		return err
	}
	rt.ShutdownHooks = append(rt.ShutdownHooks, logger.SentryShutdown(2*time.Second))

	return server.Run(ctx, rt)
}

// setup wires the service, warmer and admin server over an opened store.
// On failure the store and closers are released before returning.
func setup(ctx context.Context, cfg config.Config, log *slog.Logger, store cache.Store, checks health.Checks, closers []server.Hook) (server.RuntimeConfig, error) {
	rt := server.RuntimeConfig{
		Address:         cfg.HTTPAddr,
		Logger:          log,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}

	opts := []cache.Option{
		cache.WithMaxSize(cfg.MaxSize),
		cache.WithMaxMemory(cfg.MaxMemory),
		cache.WithDefaultTTL(cfg.DefaultTTL),
		cache.WithLogger(log),
	}
	if cfg.SingleFlight {
		opts = append(opts, cache.WithSingleFlight())
	}
	svc := cache.New(store, opts...)
	release := append([]server.Hook{func(context.Context) error { return svc.Close() }}, closers...)

	if cfg.UpstreamURL != "" && len(cfg.WarmPaths) > 0 {
		w, err := newWarmer(cfg, svc, log)
		if err != nil {
			return rt, errors.Join(err, runHooks(ctx, release))
		}
		rt.StartupHooks = append(rt.StartupHooks, w.Start)
		rt.ShutdownHooks = append(rt.ShutdownHooks, w.Stop)
	}

	srv, err := server.New(svc,
		server.WithChecks(checks),
		server.WithLogger(log),
		server.WithNamespace(cfg.MetricsNS),
	)
	if err != nil {
		return rt, errors.Join(err, runHooks(ctx, release))
	}
	rt.Handler = srv.Handler()
	rt.ShutdownHooks = append(rt.ShutdownHooks, release...)

	return rt, nil
}

// runHooks runs every hook in order and joins their errors.
func runHooks(ctx context.Context, hooks []server.Hook) error {
	var errs []error
	for _, hook := range hooks {
		errs = append(errs, hook(ctx))
	}
	return errors.Join(errs...)
}

// openStore builds the configured backend with its readiness checks and the
// hooks that release its connections.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (cache.Store, health.Checks, []server.Hook, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		store, err := cache.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, health.Checks{"sqlite": health.PingCheck(store), "store": health.StoreCheck(store)}, nil, nil

	case config.BackendRedis:
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, nil, err
		}
		store := cache.NewRedis(client, cache.WithPrefix(cfg.Redis.KeyPrefix))
		checks := health.Checks{"redis": redis.Healthcheck(client), "store": health.StoreCheck(store)}
		return store, checks, []server.Hook{redis.Shutdown(client)}, nil

	case config.BackendPostgres:
		pool, err := db.Connect(ctx, cfg.DB)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		store := cache.NewPostgres(pool)
		checks := health.Checks{"postgres": db.Healthcheck(pool), "store": health.StoreCheck(store)}
		return store, checks, []server.Hook{db.Shutdown(pool)}, nil

	default:
		store := cache.NewMemory(cache.WithCleanupInterval(cfg.CleanupInterval))
		return store, health.Checks{"store": health.StoreCheck(store)}, nil, nil
	}
}

func newWarmer(cfg config.Config, svc *cache.Service, log *slog.Logger) (*warmer.Warmer, error) {
	client, err := apiclient.New(cfg.UpstreamURL, svc,
		apiclient.WithLogger(log),
		apiclient.WithDefaultTTL(cfg.UpstreamTTL),
		apiclient.WithCircuitBreaker(cfg.BreakerFailures, cfg.BreakerCooldown),
	)
	if err != nil {
		return nil, err
	}

	opts := []warmer.Option{warmer.WithLogger(log)}
	if cfg.WarmSchedule != "" {
		opts = append(opts, warmer.WithSchedule(cfg.WarmSchedule))
	}
	return warmer.New(svc, func() []cache.WarmEntry { return client.WarmEntries(cfg.WarmPaths...) }, opts...)
}
