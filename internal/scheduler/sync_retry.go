package scheduler

import (
	"context"

	"talent_pipeline_backend/internal/events"
	"talent_pipeline_backend/platform/logger"
)

// SyncRetryEnqueuer turns OpportunitySyncFailed events into background push retries.
type SyncRetryEnqueuer struct {
	enqueuer SyncEnqueuer
	log      *logger.Logger
}

func NewSyncRetryEnqueuer(enqueuer SyncEnqueuer, log *logger.Logger) *SyncRetryEnqueuer {
	return &SyncRetryEnqueuer{enqueuer: enqueuer, log: log}
}

// RegisterHandlers subscribes to sync failures on bus.
func (s *SyncRetryEnqueuer) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.OpportunitySyncFailed{}.EventName(), events.HandlerFunc(s.handleSyncFailed))
}

func (s *SyncRetryEnqueuer) handleSyncFailed(ctx context.Context, event events.Event) error {
	e, ok := event.(events.OpportunitySyncFailed)
	if !ok {
		return nil
	}
	if err := s.enqueuer.EnqueueOpportunitySync(ctx, e.OpportunityID); err != nil {
		s.log.Error("failed to enqueue crm sync retry", "opportunity_id", e.OpportunityID, "error", err)
		return err
	}
	return nil
}
