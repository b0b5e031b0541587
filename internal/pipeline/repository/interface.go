package repository

import (
	"context"
	"time"

	"talent_pipeline_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

// OpportunityStore persists opportunities.
type OpportunityStore interface {
	GetOpportunity(ctx context.Context, id uuid.UUID) (domain.Opportunity, error)
	// GetOpportunityForUpdate locks the row until the surrounding transaction ends.
	GetOpportunityForUpdate(ctx context.Context, id uuid.UUID) (domain.Opportunity, error)
	CreateOpportunity(ctx context.Context, opp domain.Opportunity) (domain.Opportunity, error)
	// UpdateOpportunity writes opp if the stored version still equals opp.Version
	// and returns the row with its incremented version.
	UpdateOpportunity(ctx context.Context, opp domain.Opportunity) (domain.Opportunity, error)
	RecordSyncResult(ctx context.Context, id uuid.UUID, result SyncResult) error
	// ListLinkedOpportunities pages through opportunities that have an external ID.
	ListLinkedOpportunities(ctx context.Context, afterID uuid.UUID, limit int) ([]domain.Opportunity, error)
}

// SyncResult is the outcome of one CRM push.
type SyncResult struct {
	ExternalID *string
	SyncedAt   *time.Time
	Error      *string
}

// TaskStore reads the task catalog and seeds defaults.
type TaskStore interface {
	GetTask(ctx context.Context, id uuid.UUID) (domain.Task, error)
	ListTasks(ctx context.Context) ([]domain.Task, error)
	UpsertTaskByName(ctx context.Context, task domain.Task) (domain.Task, error)
}

// AssignmentStore persists task assignments. Returned assignments carry their Task.
type AssignmentStore interface {
	GetAssignment(ctx context.Context, id uuid.UUID) (domain.TaskAssignment, error)
	GetAssignmentForUpdate(ctx context.Context, id uuid.UUID) (domain.TaskAssignment, error)
	CreateAssignment(ctx context.Context, a domain.TaskAssignment) (domain.TaskAssignment, error)
	// UpdateAssignment writes a if the stored version still equals a.Version.
	UpdateAssignment(ctx context.Context, a domain.TaskAssignment) (domain.TaskAssignment, error)
	DeleteAssignment(ctx context.Context, id uuid.UUID) error
	ListAssignmentsForCandidate(ctx context.Context, candidateID uuid.UUID) ([]domain.TaskAssignment, error)
	// ListAssignmentsForTaskAndList returns assignments related to a saved
	// list, optionally narrowed to one task.
	ListAssignmentsForTaskAndList(ctx context.Context, listID uuid.UUID, taskID *uuid.UUID) ([]domain.TaskAssignment, error)
	// ListActiveAssignmentsForUpdate locks the candidate's active assignments.
	ListActiveAssignmentsForUpdate(ctx context.Context, candidateID uuid.UUID) ([]domain.TaskAssignment, error)
}

// Repository is the full pipeline persistence surface.
type Repository interface {
	OpportunityStore
	TaskStore
	AssignmentStore
}

// Store is a Repository that can open a transaction. Inside fn, repo is
// bound to the transaction; returning an error rolls it back.
type Store interface {
	Repository
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}
