package scheduler

import (
	"fmt"

	"talent_pipeline_backend/platform/config"
	"talent_pipeline_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// NewPeriodicScheduler registers the CRM reconciliation on the configured
// cron spec. It returns nil when the spec is empty.
func NewPeriodicScheduler(cfg config.SchedulerConfig, log *logger.Logger) (*asynq.Scheduler, error) {
	spec := cfg.GetReconcileCron()
	if spec == "" {
		return nil, nil
	}
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Error("periodic enqueue failed", "task", TaskOpportunitiesReconcile, "error", err)
			}
		},
	})
	if _, err := s.Register(spec, NewReconcileTask(), asynq.Queue(queueName(cfg)), asynq.MaxRetry(0)); err != nil {
		return nil, fmt.Errorf("register reconcile schedule %q: %w", spec, err)
	}
	return s, nil
}
