// Standalone render worker for split deployments: the API runs elsewhere,
// jobs live in Postgres, and wake signals arrive over Redis.
package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"posterforge/internal/config"
	"posterforge/internal/jobs"
	"posterforge/internal/pkg/logger"
	"posterforge/internal/pkg/shutdown"
	"posterforge/internal/storage"
	"posterforge/internal/worker"
	"posterforge/internal/worker/queue"
	"posterforge/internal/worker/renderer"
)

func main() {
	log := logger.NewDefault()
	cfg := config.MustLoad(log)
	log = logger.New(cfg.LoggerConfig("posterforge-worker"))

	if cfg.StoreDriver != config.StorePostgres {
		log.LogFatal("standalone worker requires STORE_DRIVER=postgres", nil)
	}

	log.Info("starting poster forge worker",
		"workers", cfg.WorkerCount,
		"renderer", cfg.RendererMode,
	)

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

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
	shutdownMgr.RegisterSimple("job-store", store.Close)

	// Jobs left RUNNING by a crashed worker go back to PENDING. The
	// staleness cutoff leaves rows still held by live workers alone.
	if n, err := store.RequeueOrphans(ctx, cfg.RenderTimeout+time.Minute); err != nil {
		log.Warn("orphan requeue failed", "error", err.Error())
	} else if n > 0 {
		log.Info("requeued orphaned jobs", "count", n)
	}

	var waker queue.Waker
	if cfg.QueueDriver == config.QueueRedis {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.LogFatal("failed to ping Redis", err)
		}
		waker = queue.NewRedisWaker(rdb, cfg.QueueName)
		shutdownMgr.Register("redis", func(ctx context.Context) error {
			return rdb.Close()
		})
	} else {
		// Without a shared queue this worker finds jobs on its poll tick.
		waker = queue.NewMemoryWaker(2 * time.Second)
	}

	sp, err := storage.NewProvider(ctx, cfg)
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}

	var rend renderer.Renderer
	if cfg.RendererMode == config.RendererHTTP {
		rend = renderer.NewHTTPRenderer(cfg.RendererBaseURL)
	} else {
		rend, err = renderer.NewExecRenderer(cfg.RendererScript, cfg.RendererWorkdir)
		if err != nil {
			log.LogFatal("invalid renderer command", err)
		}
	}

	p := worker.New(worker.Deps{
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
		_ = p.Run(poolCtx)
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

	shutdownMgr.Wait()
}
