package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/itellico/mono/internal/cache"
	"github.com/itellico/mono/internal/config"
	"github.com/itellico/mono/internal/database"
	"github.com/itellico/mono/internal/media"
	"github.com/itellico/mono/internal/obs"
	"github.com/itellico/mono/internal/queue"
	"github.com/itellico/mono/internal/queue/workers"
	"github.com/itellico/mono/internal/tracking"
	"github.com/itellico/mono/internal/version"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	obs.Init()

	c := cache.New(rdb)
	mediaSvc := media.NewService(db, c, nil, cfg.Cache.DefaultTTL,
		cfg.Media.MaxSizeBytes, cfg.Media.BasePath)
	versionSvc := version.NewService(db, c, cfg.Cache.DefaultTTL)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()
	registry.Register(queue.TypeMediaProcess, asynq.HandlerFunc(workers.NewMediaWorker(mediaSvc).ProcessTask))
	registry.Register(queue.TypeVersionPrune, asynq.HandlerFunc(workers.NewVersionWorker(versionSvc).ProcessTask))

	// Periodic prune keeps version history bounded without an operator in the
	// loop; the API's prune endpoint covers on-demand runs.
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		nil,
	)
	pruneTask, err := queue.NewVersionPruneTask(cfg.Worker.PruneKeep)
	if err != nil {
		slog.Error("failed to build prune task", "error", err)
		os.Exit(1)
	}
	if _, err := scheduler.Register(cfg.Worker.PruneSchedule, pruneTask, asynq.Queue("low")); err != nil {
		slog.Error("failed to schedule version prune", "error", err)
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		slog.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	flusher := tracking.NewFlusher(db, rdb, cfg.Tracking.ListKey,
		cfg.Tracking.FlushInterval, cfg.Tracking.BatchSize)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		flusher.Run(ctx)
	}()

	go func() {
		<-ctx.Done()
		slog.Info("shutting down worker...")
		scheduler.Shutdown()
		srv.Shutdown()
	}()

	slog.Info("starting worker", "concurrency", cfg.Worker.Concurrency)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}

	wg.Wait()
	slog.Info("worker stopped")
}
