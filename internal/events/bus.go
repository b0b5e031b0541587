// Package events re-exports the platform event bus so modules depend on
// internal/events only; the implementation lives in platform/events.
package events

import (
	platformevents "talent_pipeline_backend/platform/events"
	"talent_pipeline_backend/platform/logger"
)

// InMemoryBus is the process-local bus.
type InMemoryBus = platformevents.InMemoryBus

// NewInMemoryBus creates an in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}
