package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"talent_pipeline_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// syncUniqueWindow collapses repeated failures of the same opportunity into one pending retry.
const syncUniqueWindow = 5 * time.Minute

type Client struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

// SyncEnqueuer schedules background CRM pushes.
type SyncEnqueuer interface {
	EnqueueOpportunitySync(ctx context.Context, opportunityID uuid.UUID) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	maxRetry := cfg.GetSyncRetryMax()
	if maxRetry < 0 {
		maxRetry = 0
	}

	return &Client{
		client:   asynq.NewClient(opt),
		queue:    queueName(cfg),
		maxRetry: maxRetry,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueOpportunitySync schedules a CRM push of the opportunity's current
// state. A push already pending for the same opportunity is not duplicated.
func (c *Client) EnqueueOpportunitySync(ctx context.Context, opportunityID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewOpportunityPushTask(OpportunityPushPayload{OpportunityID: opportunityID.String()})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(c.maxRetry),
		asynq.Unique(syncUniqueWindow),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// EnqueueReconcile schedules an immediate reconciliation run.
func (c *Client) EnqueueReconcile(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	_, err := c.client.EnqueueContext(ctx, NewReconcileTask(), asynq.Queue(c.queue), asynq.MaxRetry(0))
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	if q := cfg.GetAsynqQueueName(); q != "" {
		return q
	}
	return "default"
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
