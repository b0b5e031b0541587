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

const taskNotFoundMessage = "task not found"

const taskColumns = `id, name, display_name, description, optional, days_to_complete, doc_link, task_type`

func scanTask(row pgx.Row) (domain.Task, error) {
	var t domain.Task
	var taskType string
	err := row.Scan(&t.ID, &t.Name, &t.DisplayName, &t.Description, &t.Optional, &t.DaysToComplete, &t.DocLink, &taskType)
	t.TaskType = domain.TaskType(taskType)
	return t, err
}

// GetTask loads a task definition.
func (r *Repo) GetTask(ctx context.Context, id uuid.UUID) (domain.Task, error) {
	t, err := scanTask(r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM pipeline_tasks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Task{}, apperr.NotFound(taskNotFoundMessage)
		}
		return domain.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks returns all task definitions ordered by display name.
func (r *Repo) ListTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := r.db.Query(ctx, `SELECT `+taskColumns+` FROM pipeline_tasks ORDER BY display_name, name`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// UpsertTaskByName inserts a task or refreshes the definition with the same name.
// The existing ID is kept so assignments stay attached.
func (r *Repo) UpsertTaskByName(ctx context.Context, t domain.Task) (domain.Task, error) {
	query := `
		INSERT INTO pipeline_tasks (id, name, display_name, description, optional, days_to_complete, doc_link, task_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			description = EXCLUDED.description,
			optional = EXCLUDED.optional,
			days_to_complete = EXCLUDED.days_to_complete,
			doc_link = EXCLUDED.doc_link,
			task_type = EXCLUDED.task_type,
			updated_at = now()
		RETURNING ` + taskColumns

	saved, err := scanTask(r.db.QueryRow(ctx, query,
		t.ID, t.Name, t.DisplayName, t.Description, t.Optional, t.DaysToComplete, t.DocLink, string(t.TaskType)))
	if err != nil {
		return domain.Task{}, fmt.Errorf("upsert task %s: %w", t.Name, err)
	}
	return saved, nil
}
