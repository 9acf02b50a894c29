package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/waconsole/waconsole/internal/config"
	"github.com/waconsole/waconsole/internal/database"
	"github.com/waconsole/waconsole/internal/device"
	"github.com/waconsole/waconsole/internal/queue"
	"github.com/waconsole/waconsole/internal/queue/workers"
	"github.com/waconsole/waconsole/internal/waha"
	"github.com/waconsole/waconsole/internal/webhook"
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

	db, err := database.NewPool(context.Background(), cfg.Database)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	gateway := waha.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.Gateway.Timeout)
	queueClient := queue.NewClient(cfg.Redis)
	dispatcher := webhook.NewDispatcher(db, queueClient)
	webhookSvc := webhook.NewService(db, dispatcher)
	deviceSvc := device.NewService(db, gateway, nil, queueClient, webhookSvc)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()

	// Register workers
	syncWorker := workers.NewDeviceSyncWorker(deviceSvc, queueClient)
	deliverWorker := workers.NewWebhookDeliverWorker(webhookSvc, dispatcher)

	registry.Register(queue.TypeDeviceSync, asynq.HandlerFunc(syncWorker.ProcessTask))
	registry.Register(queue.TypeWebhookDeliver, asynq.HandlerFunc(deliverWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
