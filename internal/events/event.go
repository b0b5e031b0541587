// Package events defines the pipeline's domain events.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"talent_pipeline_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Pipeline Domain Events
// =============================================================================

// OpportunityStageChanged is published after a stage change or reopen commits.
type OpportunityStageChanged struct {
	BaseEvent
	OpportunityID uuid.UUID `json:"opportunityId"`
	Kind          string    `json:"kind"`
	OwnerID       uuid.UUID `json:"ownerId"`
	OldStage      string    `json:"oldStage"`
	NewStage      string    `json:"newStage"`
	Closed        bool      `json:"closed"`
	Won           bool      `json:"won"`
	Reopened      bool      `json:"reopened"`
	ActorID       uuid.UUID `json:"actorId"`
}

func (e OpportunityStageChanged) EventName() string { return "pipeline.opportunity.stage_changed" }

// TaskAssignmentsResolved is published when outstanding assignments were abandoned in bulk.
type TaskAssignmentsResolved struct {
	BaseEvent
	CandidateID   uuid.UUID   `json:"candidateId"`
	Policy        string      `json:"policy"`
	AssignmentIDs []uuid.UUID `json:"assignmentIds"`
}

func (e TaskAssignmentsResolved) EventName() string { return "pipeline.tasks.resolved" }

// OpportunitySyncFailed is published when a committed change could not be pushed to the CRM.
type OpportunitySyncFailed struct {
	BaseEvent
	OpportunityID uuid.UUID `json:"opportunityId"`
	Error         string    `json:"error"`
}

func (e OpportunitySyncFailed) EventName() string { return "pipeline.opportunity.sync_failed" }
