package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/autobrr/autobrr-sub001/internal/apiclient"
	"github.com/autobrr/autobrr-sub001/internal/config"
	"github.com/autobrr/autobrr-sub001/internal/mutation"
	"github.com/autobrr/autobrr-sub001/internal/notify"
	"github.com/autobrr/autobrr-sub001/internal/observability"
	"github.com/autobrr/autobrr-sub001/internal/openapi"
	"github.com/autobrr/autobrr-sub001/internal/querycache"
	"github.com/autobrr/autobrr-sub001/internal/screens"
	"github.com/autobrr/autobrr-sub001/internal/shell"
	"github.com/autobrr/autobrr-sub001/internal/transport"
)

// closers run in reverse order on shutdown.
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		return fmt.Errorf("logger error: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "autobrr-bff", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return err
	}

	var metrics *observability.Metrics
	if cfg.Observability.Metrics.Enabled {
		metrics = observability.InitMetrics(prometheus.DefaultRegisterer)
	}

	var cleanup closers
	defer cleanup.run()

	// autobrr API client.
	client, err := apiclient.New(cfg.Backend, logger, apiclient.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("backend client: %w", err)
	}

	// Query cache.
	cacheStore, err := buildCacheStore(ctx, cfg.Cache, &cleanup)
	if err != nil {
		return err
	}
	cache := querycache.New(cacheStore, cfg.Cache.TTL, logger, metrics)

	// Sessions.
	sessions, err := buildSessionStore(ctx, cfg.Sessions, logger, &cleanup)
	if err != nil {
		return err
	}

	// Mutations and toasts.
	toasts := notify.NewCenter(cfg.Toasts, metrics)
	execOpts := []mutation.Option{
		mutation.WithMetrics(metrics),
		mutation.WithLogger(logger),
		mutation.WithObserver(mutation.ObserverFunc(func(ctx context.Context, o mutation.Outcome) {
			observability.RequestLogger(ctx, logger).Info("mutation",
				zap.String("resource", o.Resource),
				zap.String("kind", string(o.Kind)),
				zap.String("entity_id", o.EntityID),
				zap.String("status", string(o.Status)),
				zap.Bool("replayed", o.Replayed),
				zap.Duration("duration", o.Duration),
			)
		})),
	}
	idemStore, err := buildIdempotencyStore(ctx, cfg.Idempotency, &cleanup)
	if err != nil {
		return err
	}
	if idemStore != nil {
		execOpts = append(execOpts, mutation.WithIdempotencyStore(idemStore, cfg.Idempotency.TTL))
	}
	exec := mutation.NewExecutor(cache, toasts, execOpts...)

	// Screens and the form shell engine.
	screenDeps := screens.Deps{API: apiclient.NewAPI(client), Cache: cache}
	catalog := screens.Catalog(screenDeps)
	engine := shell.NewEngine(catalog, sessions, exec,
		shell.WithTestLimiter(mutation.NewTestLimiter(cfg.RateLimit)),
		shell.WithIndicator(cfg.TestIndicator),
		shell.WithSessionTTL(cfg.Sessions.TTL),
		shell.WithTestTimeout(cfg.Backend.Timeout),
		shell.WithMetrics(metrics),
		shell.WithLogger(logger),
	)

	index, err := openapi.Load(ctx)
	if err != nil {
		return err
	}

	readiness := observability.ReadinessChecks{
		ScreensRegistered: catalog.Len,
		Backend:           client,
		SessionStore:      sessions,
		QueryCache:        cache,
	}
	if hc, ok := idemStore.(observability.HealthChecker); ok {
		readiness.IdempotencyStore = hc
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:       cfg,
		Engine:       engine,
		Navigator:    shell.NewNavigator(catalog, true, logger),
		Screens:      screenDeps,
		Executor:     exec,
		Toasts:       toasts,
		OpenAPI:      index,
		Metrics:      metrics,
		Readiness:    readiness,
		Logger:       logger,
		Authenticate: transport.JWTAuthenticator(cfg.Identity),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Background tasks.
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()
	go engine.RunSweeper(bgCtx, cfg.Sessions.SweepInterval)

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("sessions", cfg.Sessions.Driver),
		zap.String("cache", cfg.Cache.Driver),
		zap.Int("screens", catalog.Len()),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			return err
		}
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	bgCancel()

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

// buildSessionStore opens the form session store named by cfg.Driver.
func buildSessionStore(ctx context.Context, cfg config.SessionsConfig, logger *zap.Logger, cleanup *closers) (shell.SessionStore, error) {
	switch cfg.Driver {
	case "memory", "":
		logger.Info("using in-memory session store")
		return shell.NewMemorySessionStore(), nil
	case "postgres":
		poolCfg, err := pgxpool.ParseConfig(cfg.ResolveDSN())
		if err != nil {
			return nil, fmt.Errorf("session store: parse DSN: %w", err)
		}
		if cfg.MaxOpenConns > 0 {
			poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		}
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("session store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("session store: ping: %w", err)
		}
		cleanup.add(pool.Close)

		store := shell.NewPgSessionStore(pool)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("session store: migrate: %w", err)
		}
		return store, nil
	case "sqlite":
		store, err := shell.OpenSQLiteSessionStore(cfg.ResolveDSN())
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		cleanup.add(func() { _ = store.Close() })
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported session store driver: %q", cfg.Driver)
	}
}

// buildCacheStore returns the query cache backend named by cfg.Driver.
func buildCacheStore(ctx context.Context, cfg config.CacheConfig, cleanup *closers) (querycache.Store, error) {
	switch cfg.Driver {
	case "memory", "":
		return querycache.NewMemoryStore(cfg.MaxEntries), nil
	case "redis":
		client, err := dialRedis(ctx, cfg.Redis, cleanup)
		if err != nil {
			return nil, fmt.Errorf("query cache: %w", err)
		}
		return querycache.NewRedisStore(client, cfg.Redis.Prefix), nil
	default:
		return nil, fmt.Errorf("unsupported cache driver: %q", cfg.Driver)
	}
}

// buildIdempotencyStore returns nil when idempotency keys are disabled.
func buildIdempotencyStore(ctx context.Context, cfg config.IdempotencyConfig, cleanup *closers) (mutation.IdempotencyStore, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Driver {
	case "memory", "":
		return mutation.NewMemoryIdempotencyStore(), nil
	case "redis":
		client, err := dialRedis(ctx, cfg.Redis, cleanup)
		if err != nil {
			return nil, fmt.Errorf("idempotency store: %w", err)
		}
		return mutation.NewRedisIdempotencyStore(client), nil
	default:
		return nil, fmt.Errorf("unsupported idempotency driver: %q", cfg.Driver)
	}
}

func dialRedis(ctx context.Context, cfg config.RedisConfig, cleanup *closers) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.ResolveAddr(), DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.ResolveAddr(), err)
	}
	cleanup.add(func() { _ = client.Close() })
	return client, nil
}
