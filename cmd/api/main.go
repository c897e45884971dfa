package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"posterforge/internal/config"
	"posterforge/internal/httpapi"
	"posterforge/internal/jobs"
	"posterforge/internal/pkg/logger"
	"posterforge/internal/pkg/shutdown"
	"posterforge/internal/retention"
	"posterforge/internal/storage"
	"posterforge/internal/worker"
	"posterforge/internal/worker/queue"
	"posterforge/internal/worker/renderer"
)

func main() {
	log := logger.NewDefault()
	cfg := config.MustLoad(log)
	log = logger.New(cfg.LoggerConfig("posterforge-api"))

	log.Info("starting poster forge API",
		"store", cfg.StoreDriver,
		"queue", cfg.QueueDriver,
		"renderer", cfg.RendererMode,
		"workers", cfg.WorkerCount,
	)

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	store := newStore(ctx, cfg, log)
	shutdownMgr.RegisterSimple("job-store", store.Close)

	waker := newWaker(ctx, cfg, log)
	shutdownMgr.Register("waker", func(ctx context.Context) error {
		return waker.Close()
	})

	sp, err := storage.NewProvider(ctx, cfg)
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	log.Info("storage provider initialized", "provider", sp.Provider())

	rend := newRenderer(cfg, log)

	// Embedded worker pool; standalone workers (cmd/worker) can be added
	// against a postgres store for extra render capacity.
	pool := worker.New(worker.Deps{
		Store:          store,
		Waker:          waker,
		Renderer:       rend,
		Storage:        sp,
		Log:            log,
		Workers:        cfg.WorkerCount,
		RenderTimeout:  cfg.RenderTimeout,
		ScratchDir:     cfg.ScratchDir,
		CleanupScratch: cfg.CleanupScratch,
	})

	poolCtx, poolCancel := context.WithCancel(ctx)
	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		_ = pool.Run(poolCtx)
	}()
	shutdownMgr.Register("worker-pool", func(ctx context.Context) error {
		poolCancel()
		select {
		case <-poolDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if cfg.RetentionEnabled {
		sweeper := retention.NewSweeper(store, sp, cfg.RetentionTTL, log)
		if err := sweeper.Start(cfg.RetentionSchedule); err != nil {
			log.LogFatal("failed to start retention sweeper", err)
		}
		shutdownMgr.RegisterSimple("retention", sweeper.Stop)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Store:              store,
		Waker:              waker,
		SP:                 sp,
		Log:                log,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}

func newStore(ctx context.Context, cfg config.Config, log *logger.Logger) jobs.Store {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		log.Info("connecting to PostgreSQL")
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.LogFatal("failed to connect to PostgreSQL", err)
		}
		if err := pool.Ping(ctx); err != nil {
			log.LogFatal("failed to ping PostgreSQL", err)
		}
		store := jobs.NewPGStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			log.LogFatal("failed to ensure jobs schema", err)
		}
		// RUNNING rows older than a full render timeout belong to a
		// dead process and go back to PENDING.
		if n, err := store.RequeueOrphans(ctx, cfg.RenderTimeout+time.Minute); err != nil {
			log.Warn("orphan requeue failed", "error", err.Error())
		} else if n > 0 {
			log.Info("requeued orphaned jobs", "count", n)
		}
		log.Info("PostgreSQL connected")
		return store
	default:
		return jobs.NewMemStore()
	}
}

func newWaker(ctx context.Context, cfg config.Config, log *logger.Logger) queue.Waker {
	switch cfg.QueueDriver {
	case config.QueueRedis:
		log.Info("connecting to Redis")
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.LogFatal("failed to ping Redis", err)
		}
		log.Info("Redis connected")
		return queue.NewRedisWaker(rdb, cfg.QueueName)
	default:
		return queue.NewMemoryWaker(5 * time.Second)
	}
}

func newRenderer(cfg config.Config, log *logger.Logger) renderer.Renderer {
	switch cfg.RendererMode {
	case config.RendererHTTP:
		return renderer.NewHTTPRenderer(cfg.RendererBaseURL)
	default:
		r, err := renderer.NewExecRenderer(cfg.RendererScript, cfg.RendererWorkdir)
		if err != nil {
			log.LogFatal("invalid renderer command", err)
		}
		return r
	}
}
