package repository

import (
	"context"
	"errors"
	"fmt"

	"talent_pipeline_backend/internal/pipeline/domain"
	"talent_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const assignmentNotFoundMessage = "task assignment not found"

const assignmentSelect = `
		SELECT a.id, a.task_id, a.candidate_id, a.related_list_id, a.opportunity_id, a.due_date,
			a.completed_at, a.abandoned_at, a.candidate_notes, a.activated_by, a.activated_at, a.version,
			t.id, t.name, t.display_name, t.description, t.optional, t.days_to_complete, t.doc_link, t.task_type
		FROM pipeline_task_assignments a
		JOIN pipeline_tasks t ON t.id = a.task_id`

const lockActiveAssignmentsQuery = assignmentSelect + `
		WHERE a.candidate_id = $1 AND a.status = 'active'
		ORDER BY a.activated_at, a.id
		FOR UPDATE OF a`

const listAssignmentsForListQuery = assignmentSelect + `
		WHERE a.related_list_id = $1 AND ($2::uuid IS NULL OR a.task_id = $2)
		ORDER BY a.activated_at, a.id`

const updateAssignmentQuery = `
		UPDATE pipeline_task_assignments SET
			status = $3,
			due_date = $4,
			completed_at = $5,
			abandoned_at = $6,
			candidate_notes = $7,
			version = version + 1
		WHERE id = $1 AND version = $2`

func scanAssignment(row pgx.Row) (domain.TaskAssignment, error) {
	var a domain.TaskAssignment
	var taskType string
	err := row.Scan(
		&a.ID, &a.TaskID, &a.CandidateID, &a.RelatedListID, &a.OpportunityID, &a.DueDate,
		&a.CompletedAt, &a.AbandonedAt, &a.CandidateNotes, &a.ActivatedBy, &a.ActivatedAt, &a.Version,
		&a.Task.ID, &a.Task.Name, &a.Task.DisplayName, &a.Task.Description, &a.Task.Optional,
		&a.Task.DaysToComplete, &a.Task.DocLink, &taskType,
	)
	a.Task.TaskType = domain.TaskType(taskType)
	return a, err
}

func collectAssignments(rows pgx.Rows) ([]domain.TaskAssignment, error) {
	defer rows.Close()
	out := make([]domain.TaskAssignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task assignments: %w", err)
	}
	return out, nil
}

// GetAssignment loads an assignment with its task.
func (r *Repo) GetAssignment(ctx context.Context, id uuid.UUID) (domain.TaskAssignment, error) {
	return r.getAssignment(ctx, "get task assignment", assignmentSelect+` WHERE a.id = $1`, id)
}

// GetAssignmentForUpdate loads and row-locks an assignment.
func (r *Repo) GetAssignmentForUpdate(ctx context.Context, id uuid.UUID) (domain.TaskAssignment, error) {
	return r.getAssignment(ctx, "lock task assignment", assignmentSelect+` WHERE a.id = $1 FOR UPDATE OF a`, id)
}

func (r *Repo) getAssignment(ctx context.Context, op, query string, id uuid.UUID) (domain.TaskAssignment, error) {
	a, err := scanAssignment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TaskAssignment{}, apperr.NotFound(assignmentNotFoundMessage)
		}
		return domain.TaskAssignment{}, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// CreateAssignment inserts a new assignment at version 0.
func (r *Repo) CreateAssignment(ctx context.Context, a domain.TaskAssignment) (domain.TaskAssignment, error) {
	query := `
		INSERT INTO pipeline_task_assignments (
			id, task_id, candidate_id, related_list_id, opportunity_id, status, due_date,
			completed_at, abandoned_at, candidate_notes, activated_by, activated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0)`

	_, err := r.db.Exec(ctx, query,
		a.ID, a.TaskID, a.CandidateID, a.RelatedListID, a.OpportunityID, string(a.Status()), a.DueDate,
		a.CompletedAt, a.AbandonedAt, a.CandidateNotes, a.ActivatedBy, a.ActivatedAt,
	)
	if err != nil {
		return domain.TaskAssignment{}, fmt.Errorf("create task assignment: %w", err)
	}
	return r.GetAssignment(ctx, a.ID)
}

// UpdateAssignment writes the mutable fields with a version check.
func (r *Repo) UpdateAssignment(ctx context.Context, a domain.TaskAssignment) (domain.TaskAssignment, error) {
	tag, err := r.db.Exec(ctx, updateAssignmentQuery,
		a.ID, a.Version, string(a.Status()), a.DueDate, a.CompletedAt, a.AbandonedAt, a.CandidateNotes)
	if err != nil {
		return domain.TaskAssignment{}, fmt.Errorf("update task assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.TaskAssignment{}, apperr.Conflict("task assignment was modified by another request")
	}
	return r.GetAssignment(ctx, a.ID)
}

// DeleteAssignment hard-deletes an assignment.
func (r *Repo) DeleteAssignment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM pipeline_task_assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(assignmentNotFoundMessage)
	}
	return nil
}

// ListAssignmentsForCandidate returns every assignment of a candidate, newest first.
func (r *Repo) ListAssignmentsForCandidate(ctx context.Context, candidateID uuid.UUID) ([]domain.TaskAssignment, error) {
	rows, err := r.db.Query(ctx, assignmentSelect+`
		WHERE a.candidate_id = $1
		ORDER BY a.activated_at DESC, a.id`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list task assignments: %w", err)
	}
	return collectAssignments(rows)
}

// ListActiveAssignmentsForUpdate locks and returns the candidate's active assignments.
func (r *Repo) ListActiveAssignmentsForUpdate(ctx context.Context, candidateID uuid.UUID) ([]domain.TaskAssignment, error) {
	rows, err := r.db.Query(ctx, lockActiveAssignmentsQuery, candidateID)
	if err != nil {
		return nil, fmt.Errorf("lock active task assignments: %w", err)
	}
	return collectAssignments(rows)
}

// ListAssignmentsForTaskAndList returns the assignments related to a saved
// list in activation order. A nil taskID returns every task's assignments.
func (r *Repo) ListAssignmentsForTaskAndList(ctx context.Context, listID uuid.UUID, taskID *uuid.UUID) ([]domain.TaskAssignment, error) {
	rows, err := r.db.Query(ctx, listAssignmentsForListQuery, listID, taskID)
	if err != nil {
		return nil, fmt.Errorf("list saved list task assignments: %w", err)
	}
	return collectAssignments(rows)
}
