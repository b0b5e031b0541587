package transport

import (
	"time"

	"github.com/google/uuid"
)

// OpenOpportunityRequest opens a candidate or job opportunity.
// OwnerID is the candidate for candidate opportunities and the employer for job opportunities.
type OpenOpportunityRequest struct {
	Kind    string     `json:"kind" validate:"required,oneof=candidate job"`
	OwnerID uuid.UUID  `json:"ownerId" validate:"required"`
	JobID   *uuid.UUID `json:"jobId,omitempty" validate:"omitempty"`
	Name    string     `json:"name" validate:"omitempty,max=255"`
}

// AdvanceStageRequest moves an opportunity to another stage.
type AdvanceStageRequest struct {
	Stage           string  `json:"stage" validate:"required,max=64"`
	Won             *bool   `json:"won,omitempty"`
	Comment         string  `json:"comment" validate:"max=2000"`
	NextStep        *string `json:"nextStep,omitempty" validate:"omitempty,max=255"`
	NextStepDueDate *string `json:"nextStepDueDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Version         *int    `json:"version,omitempty" validate:"omitempty,min=0"`
}

// ReopenRequest moves a closed opportunity back into an open stage.
type ReopenRequest struct {
	Stage           string  `json:"stage" validate:"required,max=64"`
	Comment         string  `json:"comment" validate:"max=2000"`
	NextStep        *string `json:"nextStep,omitempty" validate:"omitempty,max=255"`
	NextStepDueDate *string `json:"nextStepDueDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Version         *int    `json:"version,omitempty" validate:"omitempty,min=0"`
}

// AssignTaskRequest assigns a task to exactly one of a candidate or a saved list.
// The list and opportunity context only applies to single-candidate assignments.
type AssignTaskRequest struct {
	TaskID        uuid.UUID  `json:"taskId" validate:"required"`
	CandidateID   *uuid.UUID `json:"candidateId,omitempty"`
	SavedListID   *uuid.UUID `json:"savedListId,omitempty"`
	RelatedListID *uuid.UUID `json:"relatedListId,omitempty" validate:"excluded_with=SavedListID"`
	OpportunityID *uuid.UUID `json:"opportunityId,omitempty" validate:"excluded_with=SavedListID"`
	DueDate       *string    `json:"dueDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateTaskAssignmentRequest completes, abandons or edits an assignment.
type UpdateTaskAssignmentRequest struct {
	Completed      bool    `json:"completed"`
	Abandoned      bool    `json:"abandoned"`
	CandidateNotes *string `json:"candidateNotes,omitempty" validate:"omitempty,max=4000"`
	DueDate        *string `json:"dueDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Version        *int    `json:"version,omitempty" validate:"omitempty,min=0"`
}

// ResolveTasksRequest abandons a candidate's outstanding assignments.
type ResolveTasksRequest struct {
	Policy string `json:"policy" validate:"required,oneof=abandon-all abandon-optional"`
}

// BulkResolveTasksRequest resolves outstanding assignments for many candidates.
type BulkResolveTasksRequest struct {
	CandidateIDs []uuid.UUID `json:"candidateIds" validate:"required,min=1,max=500"`
	Policy       string      `json:"policy" validate:"required,oneof=abandon-all abandon-optional"`
}

// OpportunityResponse is the response DTO for an opportunity.
type OpportunityResponse struct {
	ID              uuid.UUID  `json:"id"`
	Kind            string     `json:"kind"`
	OwnerID         uuid.UUID  `json:"ownerId"`
	JobID           *uuid.UUID `json:"jobId,omitempty"`
	Name            string     `json:"name"`
	Stage           string     `json:"stage"`
	StageLabel      string     `json:"stageLabel"`
	NextStep        *string    `json:"nextStep,omitempty"`
	NextStepDueDate *string    `json:"nextStepDueDate,omitempty"`
	StageComment    *string    `json:"stageComment,omitempty"`
	ClosingComments *string    `json:"closingComments,omitempty"`
	Closed          bool       `json:"closed"`
	Won             bool       `json:"won"`
	ExternalID      *string    `json:"externalId,omitempty"`
	Version         int        `json:"version"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	LastSyncedAt    *time.Time `json:"lastSyncedAt,omitempty"`
	LastSyncError   *string    `json:"lastSyncError,omitempty"`
}

// OpportunityCommandResponse is returned by stage-changing commands. SyncError
// is set when the change was saved but the CRM push failed.
type OpportunityCommandResponse struct {
	Opportunity OpportunityResponse      `json:"opportunity"`
	Resolved    []TaskAssignmentResponse `json:"resolvedTasks"`
	SyncError   string                   `json:"syncError,omitempty"`
}

// TaskResponse is the response DTO for a task definition.
type TaskResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	DisplayName    string    `json:"displayName"`
	Description    string    `json:"description"`
	Optional       bool      `json:"optional"`
	DaysToComplete *int      `json:"daysToComplete,omitempty"`
	DocLink        *string   `json:"docLink,omitempty"`
	TaskType       string    `json:"taskType"`
}

// TaskListResponse lists task definitions.
type TaskListResponse struct {
	Items []TaskResponse `json:"items"`
}

// TaskAssignmentResponse is the response DTO for a task assignment.
type TaskAssignmentResponse struct {
	ID             uuid.UUID    `json:"id"`
	Task           TaskResponse `json:"task"`
	CandidateID    uuid.UUID    `json:"candidateId"`
	RelatedListID  *uuid.UUID   `json:"relatedListId,omitempty"`
	OpportunityID  *uuid.UUID   `json:"opportunityId,omitempty"`
	Status         string       `json:"status"`
	DueDate        *string      `json:"dueDate,omitempty"`
	CompletedDate  *time.Time   `json:"completedDate,omitempty"`
	AbandonedDate  *time.Time   `json:"abandonedDate,omitempty"`
	CandidateNotes *string      `json:"candidateNotes,omitempty"`
	ActivatedBy    *uuid.UUID   `json:"activatedBy,omitempty"`
	ActivatedDate  time.Time    `json:"activatedDate"`
	Version        int          `json:"version"`
}

// TaskAssignmentListResponse lists task assignments.
type TaskAssignmentListResponse struct {
	Items []TaskAssignmentResponse `json:"items"`
}

// BulkResolveTasksResponse lists the abandoned assignments and the candidate
// ids that did not exist.
type BulkResolveTasksResponse struct {
	Resolved            []TaskAssignmentResponse `json:"resolved"`
	SkippedCandidateIDs []uuid.UUID              `json:"skippedCandidateIds"`
}

// ReconcileResponse acknowledges a queued CRM reconciliation run.
type ReconcileResponse struct {
	Status string `json:"status"`
}
