package repository

import (
	"context"
	"errors"
	"fmt"

	"talent_pipeline_backend/internal/pipeline/domain"
	"talent_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	opportunityNotFoundMessage = "opportunity not found"
	openOpportunityExists      = "an open opportunity already exists for this candidate and job"
	uniqueViolation            = "23505"
)

const opportunityColumns = `id, kind, owner_id, job_id, name, stage, next_step, next_step_due_date,
		stage_comment, closing_comments, closed, won, external_id, version,
		created_by, created_at, updated_by, updated_at, last_synced_at, last_sync_error`

const updateOpportunityQuery = `
		UPDATE pipeline_opportunities SET
			stage = $3,
			next_step = $4,
			next_step_due_date = $5,
			stage_comment = $6,
			closing_comments = $7,
			closed = $8,
			won = $9,
			updated_by = $10,
			updated_at = $11,
			version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING ` + opportunityColumns

const lockOpportunityQuery = `SELECT ` + opportunityColumns + ` FROM pipeline_opportunities WHERE id = $1 FOR UPDATE`

func scanOpportunity(row pgx.Row) (domain.Opportunity, error) {
	var o domain.Opportunity
	var kind string
	err := row.Scan(
		&o.ID, &kind, &o.OwnerID, &o.JobID, &o.Name, &o.Stage, &o.NextStep, &o.NextStepDueDate,
		&o.StageComment, &o.ClosingComments, &o.Closed, &o.Won, &o.ExternalID, &o.Version,
		&o.CreatedBy, &o.CreatedAt, &o.UpdatedBy, &o.UpdatedAt, &o.LastSyncedAt, &o.LastSyncError,
	)
	o.Kind = domain.Kind(kind)
	return o, err
}

// GetOpportunity loads an opportunity by ID.
func (r *Repo) GetOpportunity(ctx context.Context, id uuid.UUID) (domain.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM pipeline_opportunities WHERE id = $1`
	return r.getOpportunity(ctx, "get opportunity", query, id)
}

// GetOpportunityForUpdate loads and row-locks an opportunity.
func (r *Repo) GetOpportunityForUpdate(ctx context.Context, id uuid.UUID) (domain.Opportunity, error) {
	return r.getOpportunity(ctx, "lock opportunity", lockOpportunityQuery, id)
}

func (r *Repo) getOpportunity(ctx context.Context, op, query string, id uuid.UUID) (domain.Opportunity, error) {
	opp, err := scanOpportunity(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Opportunity{}, apperr.NotFound(opportunityNotFoundMessage)
		}
		return domain.Opportunity{}, fmt.Errorf("%s: %w", op, err)
	}
	return opp, nil
}

// CreateOpportunity inserts a new opportunity at version 0.
func (r *Repo) CreateOpportunity(ctx context.Context, o domain.Opportunity) (domain.Opportunity, error) {
	query := `
		INSERT INTO pipeline_opportunities (
			id, kind, owner_id, job_id, name, stage, next_step, next_step_due_date,
			stage_comment, closing_comments, closed, won, version,
			created_by, created_at, updated_by, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0, $13, $14, $15, $16)
		RETURNING ` + opportunityColumns

	created, err := scanOpportunity(r.db.QueryRow(ctx, query,
		o.ID, string(o.Kind), o.OwnerID, o.JobID, o.Name, o.Stage, o.NextStep, o.NextStepDueDate,
		o.StageComment, o.ClosingComments, o.Closed, o.Won,
		o.CreatedBy, o.CreatedAt, o.UpdatedBy, o.UpdatedAt,
	))
	if err != nil {
		return domain.Opportunity{}, opportunityWriteError("create opportunity", err)
	}
	return created, nil
}

// UpdateOpportunity writes the mutable workflow fields with a version check.
func (r *Repo) UpdateOpportunity(ctx context.Context, o domain.Opportunity) (domain.Opportunity, error) {
	updated, err := scanOpportunity(r.db.QueryRow(ctx, updateOpportunityQuery,
		o.ID, o.Version, o.Stage, o.NextStep, o.NextStepDueDate, o.StageComment, o.ClosingComments,
		o.Closed, o.Won, o.UpdatedBy, o.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Opportunity{}, apperr.Conflict("opportunity was modified by another request")
		}
		return domain.Opportunity{}, opportunityWriteError("update opportunity", err)
	}
	return updated, nil
}

// opportunityWriteError maps a violation of the one-open-opportunity-per-
// candidate-and-job index to a conflict. Reopening a closed opportunity hits
// it as well as creating a new one.
func opportunityWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperr.Conflict(openOpportunityExists)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// RecordSyncResult stores CRM sync metadata. It does not bump the version;
// sync bookkeeping is not a workflow edit.
func (r *Repo) RecordSyncResult(ctx context.Context, id uuid.UUID, result SyncResult) error {
	query := `
		UPDATE pipeline_opportunities SET
			external_id = COALESCE($2, external_id),
			last_synced_at = COALESCE($3, last_synced_at),
			last_sync_error = $4
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, result.ExternalID, result.SyncedAt, result.Error)
	if err != nil {
		return fmt.Errorf("record sync result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(opportunityNotFoundMessage)
	}
	return nil
}

// ListLinkedOpportunities returns opportunities with an external ID, ordered by ID.
func (r *Repo) ListLinkedOpportunities(ctx context.Context, afterID uuid.UUID, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + `
		FROM pipeline_opportunities
		WHERE external_id IS NOT NULL AND id > $1
		ORDER BY id
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list linked opportunities: %w", err)
	}
	defer rows.Close()

	var out []domain.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan linked opportunity: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate linked opportunities: %w", err)
	}
	return out, nil
}
