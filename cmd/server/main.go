// Package main is the entrypoint for the JobForge API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nmehta6/jobforge/internal/alert"
	"github.com/nmehta6/jobforge/internal/api"
	"github.com/nmehta6/jobforge/internal/api/handler"
	mw "github.com/nmehta6/jobforge/internal/api/middleware"
	"github.com/nmehta6/jobforge/internal/api/response"
	"github.com/nmehta6/jobforge/internal/cache"
	"github.com/nmehta6/jobforge/internal/config"
	"github.com/nmehta6/jobforge/internal/engine"
	"github.com/nmehta6/jobforge/internal/exec"
	"github.com/nmehta6/jobforge/internal/queue"
	"github.com/nmehta6/jobforge/internal/retry"
	"github.com/nmehta6/jobforge/internal/runner"
	"github.com/nmehta6/jobforge/internal/schedule"
	"github.com/nmehta6/jobforge/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "concurrency", cfg.Engine.Concurrency)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store and engine components
	pgStore := store.NewPostgresStore(pool)

	policy := retry.NewPolicy()
	policy.InitialDelay = cfg.Engine.RetryInitialDelay
	policy.MaxDelay = cfg.Engine.RetryMaxDelay
	policy.BackoffMultiplier = cfg.Engine.RetryMultiplier
	policy.MaxRetries = cfg.Engine.RetryMaxRetries
	policy.Jitter = cfg.Engine.RetryJitter

	registry := schedule.NewRegistry(pgStore)
	resolver := schedule.NewResolver(pgStore)
	jobQueue := queue.New(pgStore, redisCache, cfg.Engine.MaxEnqueues)
	executors := exec.BuildRegistry(cfg.Executors)
	alertMgr := alert.New(pgStore, cfg.Alerts.FailureThreshold, cfg.Alerts.SlowThreshold)
	jobRunner := runner.New(jobQueue, executors, policy, registry, pgStore, alertMgr, cfg.Engine.Concurrency)
	eng := engine.New(resolver, jobQueue, jobRunner, pgStore, engine.Config{
		BatchLimit:        cfg.Engine.BatchLimit,
		ProcessBatchLimit: cfg.Engine.ProcessBatchLimit,
		ProcessingTimeout: cfg.Engine.ProcessingTimeout,
	})

	// 6. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, redisCache),

		CronTriggerHandler: handler.NewCronTriggerHandler(eng),
		ProcessJobsHandler: handler.NewProcessJobsHandler(eng),
		GetJobHandler:      handler.NewGetJobHandler(jobQueue),
		JobStatusHandler:   handler.NewJobStatusHandler(jobQueue, redisCache),
		RetryJobHandler:    handler.NewRetryJobHandler(jobQueue),

		ListExecutionsHandler:   handler.NewListExecutionsHandler(pgStore),
		ListAlertsHandler:       handler.NewListAlertsHandler(pgStore),
		AcknowledgeAlertHandler: handler.NewAcknowledgeAlertHandler(alertMgr),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
