package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"trueface/internal/config"
	"trueface/internal/logger"
	"trueface/internal/queue"
	"trueface/internal/store"
	"trueface/internal/worker"
)

// Worker consumes domain events from the shared queue and logs them.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zl, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	q, closeQueue, err := store.OpenQueue(ctx, cfg)
	if err != nil {
		zl.Fatal("queue init failed", zap.Error(err))
	}
	defer func() { _ = closeQueue() }()

	if _, ok := q.(*queue.InMemory); ok {
		zl.Warn("QUEUE_BACKEND=memory is process local; the API drains it itself, set QUEUE_BACKEND=redis to use this worker")
	}

	zl.Info("worker started, waiting for events", zap.String("backend", cfg.QueueBackend))
	n, err := worker.Run(ctx, q, zl)
	if err != nil {
		zl.Fatal("queue consume failed", zap.Error(err))
	}
	zl.Info("worker stopped", zap.Int("handled", n))
}
