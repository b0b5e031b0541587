package domain

import (
	"fmt"
	"time"

	"talent_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
)

// AssignmentStatus is derived from the completion and abandonment stamps.
type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "active"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentAbandoned AssignmentStatus = "abandoned"
)

// ResolvePolicy selects which outstanding assignments are abandoned in bulk.
type ResolvePolicy string

const (
	ResolveAbandonAll      ResolvePolicy = "abandon-all"
	ResolveAbandonOptional ResolvePolicy = "abandon-optional"
)

// ParseResolvePolicy validates a policy name.
func ParseResolvePolicy(s string) (ResolvePolicy, error) {
	switch p := ResolvePolicy(s); p {
	case ResolveAbandonAll, ResolveAbandonOptional:
		return p, nil
	}
	return "", apperr.Validation(fmt.Sprintf("unknown resolve policy %q", s))
}

// Applies reports whether the policy abandons assignments of task.
func (p ResolvePolicy) Applies(task Task) bool {
	switch p {
	case ResolveAbandonAll:
		return true
	case ResolveAbandonOptional:
		return task.Optional
	}
	return false
}

// TaskAssignment is one task given to one candidate.
type TaskAssignment struct {
	ID             uuid.UUID
	TaskID         uuid.UUID
	Task           Task
	CandidateID    uuid.UUID
	RelatedListID  *uuid.UUID
	OpportunityID  *uuid.UUID
	DueDate        *time.Time
	CompletedAt    *time.Time
	AbandonedAt    *time.Time
	CandidateNotes *string
	ActivatedBy    *uuid.UUID
	ActivatedAt    time.Time
	Version        int
}

// Status derives the lifecycle state from the stamps.
func (a TaskAssignment) Status() AssignmentStatus {
	switch {
	case a.CompletedAt != nil:
		return AssignmentCompleted
	case a.AbandonedAt != nil:
		return AssignmentAbandoned
	default:
		return AssignmentActive
	}
}

// AssignmentUpdate carries an update-task-assignment request.
// Nil Notes and DueDate leave the stored values untouched.
type AssignmentUpdate struct {
	Completed bool
	Abandoned bool
	Notes     *string
	DueDate   *time.Time
}

// ApplyUpdate records completion, abandonment or metadata on an assignment.
// Completion flags on an assignment that is no longer active are rejected;
// the assignment must be reopened first.
func (a *TaskAssignment) ApplyUpdate(u AssignmentUpdate, now time.Time) error {
	if u.Completed && u.Abandoned {
		return apperr.Validation("a task assignment cannot be both completed and abandoned")
	}
	if (u.Completed || u.Abandoned) && a.Status() != AssignmentActive {
		return apperr.Validation(fmt.Sprintf("task assignment is already %s; reopen it first", a.Status()))
	}

	if u.Notes != nil {
		notes := *u.Notes
		a.CandidateNotes = &notes
	}
	if u.DueDate != nil {
		due := dateOnly(*u.DueDate)
		a.DueDate = &due
	}

	stamp := now.UTC()
	switch {
	case u.Completed:
		a.CompletedAt = &stamp
	case u.Abandoned:
		a.AbandonedAt = &stamp
	}
	return nil
}

// Abandon stamps an active assignment as abandoned. It reports whether
// anything changed.
func (a *TaskAssignment) Abandon(now time.Time) bool {
	if a.Status() != AssignmentActive {
		return false
	}
	stamp := now.UTC()
	a.AbandonedAt = &stamp
	return true
}

// Reopen returns a completed or abandoned assignment to active. It reports
// whether anything changed.
func (a *TaskAssignment) Reopen() bool {
	if a.Status() == AssignmentActive {
		return false
	}
	a.CompletedAt = nil
	a.AbandonedAt = nil
	return true
}

// CheckInvariants verifies at most one resolution stamp is set.
func (a TaskAssignment) CheckInvariants() error {
	if a.CompletedAt != nil && a.AbandonedAt != nil {
		return fmt.Errorf("task assignment %s is both completed and abandoned", a.ID)
	}
	return nil
}
