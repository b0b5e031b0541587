package scheduler

import (
	"context"
	"errors"
	"testing"

	"talent_pipeline_backend/internal/events"
	"talent_pipeline_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

type testSchedulerConfig struct {
	redisURL string
}

func (c testSchedulerConfig) GetRedisURL() string       { return c.redisURL }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string { return "pipeline" }
func (c testSchedulerConfig) GetAsynqConcurrency() int  { return 2 }
func (c testSchedulerConfig) GetSyncRetryMax() int      { return 5 }
func (c testSchedulerConfig) GetReconcileCron() string  { return "@every 1h" }

func TestEnqueueOpportunitySyncDeduplicates(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(testSchedulerConfig{redisURL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	id := uuid.New()
	for range 3 {
		if err := client.EnqueueOpportunitySync(context.Background(), id); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	pending, err := mr.List("asynq:{pipeline}:pending")
	if err != nil {
		t.Fatalf("read pending queue: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending push, got %d", len(pending))
	}

	if err := client.EnqueueOpportunitySync(context.Background(), uuid.New()); err != nil {
		t.Fatalf("enqueue other: %v", err)
	}
	pending, _ = mr.List("asynq:{pipeline}:pending")
	if len(pending) != 2 {
		t.Fatalf("expected a second opportunity to enqueue, got %d", len(pending))
	}
}

func TestEnqueueReconcileQueuesRun(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(testSchedulerConfig{redisURL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := client.EnqueueReconcile(context.Background()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	pending, err := mr.List("asynq:{pipeline}:pending")
	if err != nil {
		t.Fatalf("read pending queue: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending reconcile run, got %d", len(pending))
	}

	var disabled *Client
	if err := disabled.EnqueueReconcile(context.Background()); err != nil {
		t.Fatalf("nil client should be a no-op, got %v", err)
	}
}

func TestNewClientRequiresRedis(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{}); err == nil {
		t.Fatal("expected error without redis url")
	}
}

type recordingEnqueuer struct {
	ids []uuid.UUID
	err error
}

func (r *recordingEnqueuer) EnqueueOpportunitySync(_ context.Context, id uuid.UUID) error {
	r.ids = append(r.ids, id)
	return r.err
}

func TestSyncRetryEnqueuerSubscribesToFailures(t *testing.T) {
	log := logger.Discard()
	bus := events.NewInMemoryBus(log)
	enq := &recordingEnqueuer{}
	NewSyncRetryEnqueuer(enq, log).RegisterHandlers(bus)

	id := uuid.New()
	err := bus.PublishSync(context.Background(), events.OpportunitySyncFailed{
		BaseEvent:     events.NewBaseEvent(),
		OpportunityID: id,
		Error:         "503",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(enq.ids) != 1 || enq.ids[0] != id {
		t.Fatalf("expected enqueue of %s, got %v", id, enq.ids)
	}

	enq.err = errors.New("redis down")
	if err := bus.PublishSync(context.Background(), events.OpportunitySyncFailed{OpportunityID: id}); err == nil {
		t.Fatal("expected enqueue failure to surface")
	}
}
