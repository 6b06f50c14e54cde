package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vendaflow/lead-api/docs"
	"github.com/vendaflow/lead-api/internal/config"
	"github.com/vendaflow/lead-api/internal/database"
	"github.com/vendaflow/lead-api/internal/datasource"
	"github.com/vendaflow/lead-api/internal/http/handler"
	"github.com/vendaflow/lead-api/internal/http/middleware"
	"github.com/vendaflow/lead-api/internal/http/router"
	"github.com/vendaflow/lead-api/internal/integration"
	"github.com/vendaflow/lead-api/internal/jobs"
	"github.com/vendaflow/lead-api/internal/logger"
	"github.com/vendaflow/lead-api/internal/repository"
	"github.com/vendaflow/lead-api/internal/service"
	"github.com/vendaflow/lead-api/internal/storage"
	"go.uber.org/zap"
)

// @title VendaFlow Lead API
// @version 1.0
// @description Lead ingestion, scoring and bulk import pipeline

// @contact.name API Support
// @contact.email suporte@vendaflow.com.br

// @host localhost:8080
// @BasePath /api/v1

const (
	scoreAuditCron   = "@every 6h"
	importStatsCron  = "@hourly"
	maintenanceLimit = 10 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	// Configure Swagger host based on environment
	switch basicCfg.App.Environment {
	case "staging":
		docs.SwaggerInfo.Host = "leads-staging.vendaflow.com.br"
	case "production":
		docs.SwaggerInfo.Host = "api.vendaflow.com.br"
	default:
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// Load full configuration with secrets
	// In development: uses environment variables
	// In staging/production: fetches from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	// Connect to database
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize storage (archives raw import uploads)
	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	// Integration dispatcher: enqueue to Redis when configured, log
	// locally otherwise. The lead pipeline behaves the same either way.
	var dispatcher integration.Dispatcher
	if cfg.Redis.Enabled && cfg.Redis.URL != "" {
		asynqDispatcher, err := integration.NewAsynqDispatcher(integration.RedisOptions{
			URL:         cfg.Redis.URL,
			Queue:       cfg.Redis.Queue,
			Concurrency: cfg.Redis.Concurrency,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to initialize integration dispatcher: %w", err)
		}
		defer asynqDispatcher.Close()
		dispatcher = asynqDispatcher
		log.Info("Integration queue enabled", zap.String("queue", cfg.Redis.Queue))
	} else {
		dispatcher = integration.NewLogDispatcher(log)
		log.Info("Integration queue disabled, hooks are logged locally")
	}

	// Initialize repositories
	leadRepo := repository.NewLeadRepository(db)
	adjustRepo := repository.NewScoreAdjustmentRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	importRepo := repository.NewImportRepository(db)

	// Initialize services
	leadService := service.NewLeadService(leadRepo, adjustRepo, activityRepo, dispatcher, cfg.Leads.AutoAssignTo, log)
	activityService := service.NewActivityService(activityRepo, leadRepo, log)
	importService := service.NewImportService(leadService, leadRepo, importRepo, dispatcher, fileStorage, log)

	// Legacy CRM connection (optional, read-only)
	var legacyClient *datasource.Client
	if cfg.DataSource.Enabled {
		legacyClient, err = datasource.NewClient(cfg.DataSource.ConnectionString(), log)
		if err != nil {
			// Log error but don't fail - the legacy data source is optional
			log.Warn("Legacy CRM connection failed, continuing without it", zap.Error(err))
		} else {
			importService.SetLegacySource(legacyClient)
			log.Info("Legacy CRM connected",
				zap.Int("max_open_conns", cfg.DataSource.MaxOpenConns),
				zap.Int("query_timeout_seconds", cfg.DataSource.QueryTimeout),
			)
		}
	} else {
		log.Info("Legacy CRM not configured, skipping")
	}

	// Initialize middleware
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Initialize handlers
	leadHandler := handler.NewLeadHandler(leadService, log)
	importHandler := handler.NewImportHandler(importService, log)
	activityHandler := handler.NewActivityHandler(activityService, log)

	// Setup router
	rt := router.NewRouter(
		cfg,
		log,
		db,
		rateLimiter,
		leadHandler,
		importHandler,
		activityHandler,
	)

	// Background maintenance: score drift repair and import stats rollup
	scheduler := jobs.NewScheduler(log)
	if err := jobs.RegisterScoreAuditJob(scheduler, leadService, log, scoreAuditCron, cfg.Leads.ReconcileBatchSize, maintenanceLimit); err != nil {
		log.Error("Failed to register score audit job", zap.Error(err))
	}
	if err := jobs.RegisterImportStatsJob(scheduler, importRepo, log, importStatsCron, maintenanceLimit); err != nil {
		log.Error("Failed to register import stats job", zap.Error(err))
	}
	scheduler.Start()
	log.Info("Scheduler started", zap.Strings("jobs", scheduler.GetJobNames()))

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Stop scheduler; running jobs complete
		stopCtx := scheduler.Stop()
		<-stopCtx.Done()
		log.Info("Scheduler stopped")

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		// Close legacy CRM connection if initialized
		if legacyClient != nil {
			if err := legacyClient.Close(); err != nil {
				log.Warn("Error closing legacy CRM connection", zap.Error(err))
			}
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
