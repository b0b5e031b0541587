// Package directory reads candidates, case officers and saved lists from the
// wider candidate system's tables. The pipeline only ever writes a
// candidate's status.
package directory

import (
	"context"
	"errors"
	"fmt"

	"talent_pipeline_backend/internal/pipeline/ports"
	"talent_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	getCandidateQuery = `SELECT id, candidate_number, name, status FROM candidates WHERE id = $1`
	getUserQuery      = `SELECT id, email, name FROM users WHERE id = $1`
	listExistsQuery   = `SELECT EXISTS (SELECT 1 FROM saved_lists WHERE id = $1)`
	listMembersQuery  = `
		SELECT c.id, c.candidate_number, c.name, c.status
		FROM saved_list_candidates slc
		JOIN candidates c ON c.id = slc.candidate_id
		WHERE slc.saved_list_id = $1
		ORDER BY slc.added_at, c.id`
	updateStatusQuery = `
		UPDATE candidates SET status = $2, status_comment = $3, updated_at = now()
		WHERE id = $1`
)

// Repository implements the pipeline's directory ports over PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a directory repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var (
	_ ports.CandidateDirectory     = (*Repository)(nil)
	_ ports.SavedLists             = (*Repository)(nil)
	_ ports.CandidateStatusUpdater = (*Repository)(nil)
)

func (r *Repository) GetCandidate(ctx context.Context, id uuid.UUID) (ports.Candidate, error) {
	var c ports.Candidate
	err := r.pool.QueryRow(ctx, getCandidateQuery, id).Scan(&c.ID, &c.CandidateNumber, &c.Name, &c.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.Candidate{}, apperr.NotFound("candidate not found")
	}
	if err != nil {
		return ports.Candidate{}, fmt.Errorf("get candidate: %w", err)
	}
	return c, nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (ports.User, error) {
	var u ports.User
	err := r.pool.QueryRow(ctx, getUserQuery, id).Scan(&u.ID, &u.Email, &u.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return ports.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *Repository) CheckListExists(ctx context.Context, listID uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, listExistsQuery, listID).Scan(&exists); err != nil {
		return fmt.Errorf("check saved list: %w", err)
	}
	if !exists {
		return apperr.NotFound("saved list not found")
	}
	return nil
}

// GetCandidatesInList returns the list's members in the order they were added.
func (r *Repository) GetCandidatesInList(ctx context.Context, listID uuid.UUID) ([]ports.Candidate, error) {
	if err := r.CheckListExists(ctx, listID); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, listMembersQuery, listID)
	if err != nil {
		return nil, fmt.Errorf("list saved list members: %w", err)
	}
	defer rows.Close()

	members := make([]ports.Candidate, 0)
	for rows.Next() {
		var c ports.Candidate
		if err := rows.Scan(&c.ID, &c.CandidateNumber, &c.Name, &c.Status); err != nil {
			return nil, fmt.Errorf("scan saved list member: %w", err)
		}
		members = append(members, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved list members: %w", err)
	}
	return members, nil
}

func (r *Repository) UpdateCandidateStatus(ctx context.Context, candidateID uuid.UUID, status, comment string) error {
	tag, err := r.pool.Exec(ctx, updateStatusQuery, candidateID, status, comment)
	if err != nil {
		return fmt.Errorf("update candidate status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("candidate not found")
	}
	return nil
}
