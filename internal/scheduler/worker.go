package scheduler

import (
	"context"
	"errors"
	"fmt"

	"talent_pipeline_backend/internal/crm"
	"talent_pipeline_backend/internal/pipeline/domain"
	"talent_pipeline_backend/internal/pipeline/service"
	"talent_pipeline_backend/platform/apperr"
	"talent_pipeline_backend/platform/config"
	"talent_pipeline_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// OpportunitySyncer re-pushes an opportunity's committed state.
type OpportunitySyncer interface {
	RetrySync(ctx context.Context, opportunityID uuid.UUID) (domain.Opportunity, error)
}

// ReconcileRunner compares linked opportunities with the CRM.
type ReconcileRunner interface {
	Run(ctx context.Context) (service.ReconcileReport, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	jobs   *jobHandlers
	log    *logger.Logger
}

type jobHandlers struct {
	syncer     OpportunitySyncer
	reconciler ReconcileRunner
	log        *logger.Logger
}

// NewWorker creates the asynq worker. reconciler may be nil when no CRM is
// configured; reconcile tasks are then acknowledged without work.
func NewWorker(cfg config.SchedulerConfig, syncer OpportunitySyncer, reconciler ReconcileRunner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	jobs := &jobHandlers{syncer: syncer, reconciler: reconciler, log: log}
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskOpportunityPush, jobs.handleOpportunityPush)
	mux.HandleFunc(TaskOpportunitiesReconcile, jobs.handleReconcile)

	return &Worker{server: server, mux: mux, jobs: jobs, log: log}, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleOpportunityPush retries a failed CRM push. Failures the CRM will keep
// rejecting skip the remaining retries.
func (h *jobHandlers) handleOpportunityPush(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseOpportunityPushPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	id, err := uuid.Parse(payload.OpportunityID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	_, err = h.syncer.RetrySync(ctx, id)
	switch {
	case err == nil:
		h.log.Info("crm sync retry succeeded", "opportunity_id", id)
		return nil
	case apperr.Is(err, apperr.KindSync):
		if crm.IsRetryable(errors.Unwrap(err)) {
			return err
		}
		h.log.Warn("crm sync retry rejected", "opportunity_id", id, "error", err)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	case apperr.Is(err, apperr.KindNotFound), apperr.Is(err, apperr.KindValidation):
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	default:
		return err
	}
}

func (h *jobHandlers) handleReconcile(ctx context.Context, _ *asynq.Task) error {
	if h.reconciler == nil {
		return nil
	}
	report, err := h.reconciler.Run(ctx)
	if err != nil {
		return err
	}
	for _, d := range report.Drifted {
		h.log.Warn("crm drift",
			"opportunity_id", d.OpportunityID,
			"external_id", d.ExternalID,
			"local_stage", d.LocalStage,
			"remote_stage", d.RemoteStage,
		)
	}
	return nil
}
