package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"talent_pipeline_backend/platform/logger"
)

type pingEvent struct {
	BaseEvent
}

func (pingEvent) EventName() string { return "test.ping" }

func TestPublishSyncJoinsHandlerErrors(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	first := errors.New("first")

	var calls int
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		calls++
		return first
	}))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		calls++
		panic("boom")
	}))

	err := bus.PublishSync(context.Background(), pingEvent{BaseEvent: NewBaseEvent()})
	if calls != 2 {
		t.Fatalf("expected both handlers to run, got %d", calls)
	}
	if !errors.Is(err, first) {
		t.Fatalf("expected joined error to contain handler error, got %v", err)
	}
}

func TestPublishRunsHandlersAfterRequestCancelled(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	var seen atomic.Int32
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, _ Event) error {
		if ctx.Err() == nil {
			seen.Add(1)
		}
		return nil
	}))
	bus.Subscribe("other", HandlerFunc(func(context.Context, Event) error {
		t.Error("handler for another event must not run")
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, pingEvent{BaseEvent: NewBaseEvent()})
	bus.Wait()

	if seen.Load() != 1 {
		t.Fatalf("expected handler to observe a live context, got %d", seen.Load())
	}
}
