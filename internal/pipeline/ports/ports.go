// Package ports defines consumer-driven interfaces for the systems the
// pipeline depends on but does not own: the candidate directory, saved lists
// and the external CRM.
package ports

import (
	"context"
	"time"

	"talent_pipeline_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

// Candidate is the minimal candidate data the pipeline needs.
type Candidate struct {
	ID              uuid.UUID
	CandidateNumber string
	Name            string
	Status          string
}

// User is a case officer acting on the pipeline.
type User struct {
	ID    uuid.UUID
	Email string
	Name  string
}

// CandidateDirectory resolves candidates and users.
// Both lookups return an apperr NotFound error for unknown IDs.
type CandidateDirectory interface {
	GetCandidate(ctx context.Context, id uuid.UUID) (Candidate, error)
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
}

// SavedLists expands a saved list into its current members.
// Both methods return an apperr NotFound error when the list does not exist.
type SavedLists interface {
	CheckListExists(ctx context.Context, listID uuid.UUID) error
	GetCandidatesInList(ctx context.Context, listID uuid.UUID) ([]Candidate, error)
}

// CandidateStatusUpdater applies stage-implied candidate status changes.
type CandidateStatusUpdater interface {
	UpdateCandidateStatus(ctx context.Context, candidateID uuid.UUID, status, comment string) error
}

// RemoteOpportunity is the CRM's view of a linked opportunity.
type RemoteOpportunity struct {
	ExternalID      string
	Name            string
	StageName       string
	Closed          bool
	Won             bool
	NextStep        string
	NextStepDueDate *time.Time
	LastModified    time.Time
}

// CRMSync mirrors opportunity state to the external CRM.
type CRMSync interface {
	// Push creates or updates the remote record and returns its external ID.
	Push(ctx context.Context, opp domain.Opportunity) (string, error)
	// FetchByID loads the remote record for reconciliation.
	FetchByID(ctx context.Context, externalID string) (RemoteOpportunity, error)
}
