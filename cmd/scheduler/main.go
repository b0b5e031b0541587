package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"talent_pipeline_backend/internal/crm"
	"talent_pipeline_backend/internal/events"
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

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	// Worker-side pipeline wiring (no HTTP handlers required). Sync failures
	// here are retried by asynq itself, so no retry enqueuer is subscribed.
	eventBus := events.NewInMemoryBus(log)

	var crmSync ports.CRMSync
	if cfg.IsCRMEnabled() {
		crmSync = crm.New(cfg, log)
	} else {
		log.Warn("CRM_BASE_URL not configured; sync retries will be rejected")
	}
	pipelineModule := pipeline.NewModule(pool, eventBus, validator.New(), cfg, crmSync, log)

	var reconciler scheduler.ReconcileRunner
	if r := pipelineModule.Reconciler(); r != nil {
		reconciler = r

		periodic, err := scheduler.NewPeriodicScheduler(cfg, log)
		if err != nil {
			log.Error("failed to initialize periodic scheduler", "error", err)
			panic("failed to initialize periodic scheduler: " + err.Error())
		}
		if periodic != nil {
			if err := periodic.Start(); err != nil {
				log.Error("failed to start periodic scheduler", "error", err)
				panic("failed to start periodic scheduler: " + err.Error())
			}
			defer periodic.Shutdown()
			log.Info("crm reconciliation scheduled", "cron", cfg.GetReconcileCron())
		}
	}

	worker, err := scheduler.NewWorker(cfg, pipelineModule.Orchestrator(), reconciler, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
	eventBus.Wait()
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
