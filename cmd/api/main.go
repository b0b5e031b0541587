package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"talent_pipeline_backend/internal/crm"
	"talent_pipeline_backend/internal/events"
	apphttp "talent_pipeline_backend/internal/http"
	"talent_pipeline_backend/internal/http/router"
	"talent_pipeline_backend/internal/pipeline"
	"talent_pipeline_backend/internal/pipeline/ports"
	"talent_pipeline_backend/internal/scheduler"
	"talent_pipeline_backend/platform/config"
	"talent_pipeline_backend/platform/db"
	"talent_pipeline_backend/platform/logger"
	"talent_pipeline_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	var crmSync ports.CRMSync
	if cfg.IsCRMEnabled() {
		crmSync = crm.New(cfg, log)
		log.Info("crm sync enabled", "baseUrl", cfg.GetCRMBaseURL())
	} else {
		log.Warn("CRM_BASE_URL not configured; opportunities are not mirrored to the CRM")
	}

	syncClient, closeSyncClient := initSyncRetries(cfg, log)
	if closeSyncClient != nil {
		defer closeSyncClient()
	}
	if syncClient != nil && crmSync != nil {
		scheduler.NewSyncRetryEnqueuer(syncClient, log).RegisterHandlers(eventBus)
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	pipelineModule := pipeline.NewModule(pool, eventBus, val, cfg, crmSync, log)
	if syncClient != nil && crmSync != nil {
		pipelineModule.SetReconcileTrigger(syncClient)
	}

	if cfg.IsTaskSeedEnabled() {
		n, err := pipelineModule.TaskCatalog().SeedDefaults(ctx)
		if err != nil {
			log.Error("failed to seed task catalog", "error", err)
			panic("failed to seed task catalog: " + err.Error())
		}
		log.Info("task catalog ready", "tasks", n)
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			pipelineModule,
		},
	}

	engine := router.New(app)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initSyncRetries(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; failed CRM pushes are only retried manually")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize sync retry client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
