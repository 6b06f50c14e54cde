package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vendaflow/lead-api/internal/config"
	"github.com/vendaflow/lead-api/internal/database"
	"github.com/vendaflow/lead-api/internal/http/handler"
	"github.com/vendaflow/lead-api/internal/http/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/vendaflow/lead-api/docs" // Import generated swagger docs
)

type Router struct {
	cfg             *config.Config
	logger          *zap.Logger
	db              *gorm.DB
	rateLimiter     *middleware.RateLimiter
	leadHandler     *handler.LeadHandler
	importHandler   *handler.ImportHandler
	activityHandler *handler.ActivityHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	rateLimiter *middleware.RateLimiter,
	leadHandler *handler.LeadHandler,
	importHandler *handler.ImportHandler,
	activityHandler *handler.ActivityHandler,
) *Router {
	return &Router{
		cfg:             cfg,
		logger:          logger,
		db:              db,
		rateLimiter:     rateLimiter,
		leadHandler:     leadHandler,
		importHandler:   importHandler,
		activityHandler: activityHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP) // Apply IP-based rate limiting globally

	// Health check (basic liveness probe)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Database health check (readiness probe with detailed stats)
	r.Get("/health/db", func(w http.ResponseWriter, r *http.Request) {
		stats, err := database.HealthCheckWithStats(rt.db)
		if err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":  "unhealthy",
				"error":   err.Error(),
				"service": "database",
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"service": "database",
			"stats": map[string]interface{}{
				"max_open_connections": stats.MaxOpenConnections,
				"open_connections":     stats.OpenConnections,
				"in_use":               stats.InUse,
				"idle":                 stats.Idle,
				"wait_count":           stats.WaitCount,
				"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
				"max_idle_closed":      stats.MaxIdleClosed,
				"max_lifetime_closed":  stats.MaxLifetimeClosed,
			},
		})
	})

	// Combined readiness check (checks all dependencies)
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]interface{})
		allHealthy := true

		// Check database
		if err := database.HealthCheck(rt.db); err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			checks["database"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
			allHealthy = false
		} else {
			checks["database"] = map[string]interface{}{
				"status": "healthy",
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if allHealthy {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "healthy",
				"checks": checks,
			})
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "unhealthy",
				"checks": checks,
			})
		}
	})

	// Swagger documentation
	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ActorContext)

		// Leads
		r.Route("/leads", func(r chi.Router) {
			r.Get("/", rt.leadHandler.List)
			r.Post("/", rt.leadHandler.Ingest)
			r.Get("/metrics", rt.leadHandler.Metrics)
			r.Get("/analytics", rt.leadHandler.Analytics)
			r.Get("/export", rt.leadHandler.Export)
			r.Post("/bulk/status", rt.leadHandler.BulkUpdateStatus)
			r.Post("/bulk/delete", rt.leadHandler.BulkDelete)

			r.Get("/{id}", rt.leadHandler.GetByID)
			r.Put("/{id}", rt.leadHandler.Update)
			r.Delete("/{id}", rt.leadHandler.Delete)
			r.Patch("/{id}/status", rt.leadHandler.UpdateStatus)
			r.Patch("/{id}/score", rt.leadHandler.AdjustScore)
			r.Patch("/{id}/assign", rt.leadHandler.Assign)
			r.Put("/{id}/tags", rt.leadHandler.UpdateTags)
			r.Get("/{id}/adjustments", rt.leadHandler.GetAdjustments)

			// Activity log
			r.Get("/{id}/activities", rt.activityHandler.ListByLead)
			r.Post("/{id}/activities", rt.activityHandler.Record)
		})

		// Imports
		r.Route("/imports", func(r chi.Router) {
			r.Get("/", rt.importHandler.ListRuns)
			r.Post("/", rt.importHandler.Upload)
			r.Get("/stats", rt.importHandler.GetStats)
			r.Post("/datasource", rt.importHandler.ImportFromDataSource)
			r.Get("/{id}", rt.importHandler.GetRun)
		})
	})

	return r
}
