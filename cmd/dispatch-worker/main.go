package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vendaflow/lead-api/internal/config"
	"github.com/vendaflow/lead-api/internal/database"
	"github.com/vendaflow/lead-api/internal/integration"
	"github.com/vendaflow/lead-api/internal/logger"
	"github.com/vendaflow/lead-api/internal/repository"
	"go.uber.org/zap"
)

// Dispatch worker: consumes queued integration tasks (list sync, CRM
// sync, analytics, automation hooks) and folds completed import runs
// into the per-actor statistics.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	if !cfg.Redis.Enabled || cfg.Redis.URL == "" {
		return fmt.Errorf("redis is not configured, the worker has nothing to consume")
	}

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	importRepo := repository.NewImportRepository(db)

	worker, err := integration.NewWorker(integration.RedisOptions{
		URL:         cfg.Redis.URL,
		Queue:       cfg.Redis.Queue,
		Concurrency: cfg.Redis.Concurrency,
	}, importRepo, log)
	if err != nil {
		return fmt.Errorf("failed to initialize worker: %w", err)
	}

	log.Info("Dispatch worker starting",
		zap.String("queue", cfg.Redis.Queue),
		zap.Int("concurrency", cfg.Redis.Concurrency),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		sig := <-shutdown
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := worker.Run(runCtx); err != nil {
		return fmt.Errorf("worker error: %w", err)
	}

	log.Info("Dispatch worker stopped")
	return nil
}
