package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"crmsync/internal/app/server"
	"crmsync/internal/app/server/config"
	"crmsync/internal/domain/worker"
	"crmsync/internal/infrastructure/storage/postgres"
	"crmsync/internal/utils/logger"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	storage, err := postgres.New(cfg)
	if err != nil {
		log.Error("failed to init storage", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	services, err := server.NewServices(cfg, storage, log)
	if err != nil {
		log.Error("failed to init services", "error", err)
		os.Exit(1)
	}

	exec := worker.NewExecutor(
		services.Queue,
		services.Mappings,
		services.Credentials,
		services.Connections,
		services.Providers,
		services.Local,
		worker.ExecutorConfig{EchoWindow: cfg.Sync.EchoWindow},
		log,
	)
	w := worker.New(services.Queue, exec, worker.Config{
		PollInterval: cfg.Worker.PollInterval,
		BatchSize:    cfg.Worker.BatchSize,
		Parallelism:  cfg.Worker.Parallelism,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
