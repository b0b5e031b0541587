package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskType is display metadata for how a task is completed.
type TaskType string

const (
	TaskTypeSimple   TaskType = "simple"
	TaskTypeUpload   TaskType = "upload"
	TaskTypeQuestion TaskType = "question"
)

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeSimple, TaskTypeUpload, TaskTypeQuestion:
		return true
	}
	return false
}

// Task is a reusable task definition.
type Task struct {
	ID             uuid.UUID
	Name           string
	DisplayName    string
	Description    string
	Optional       bool
	DaysToComplete *int
	DocLink        *string
	TaskType       TaskType
}

// DefaultDueDate is today plus the task's completion budget, or nil when the
// task has none.
func (t Task) DefaultDueDate(today time.Time) *time.Time {
	if t.DaysToComplete == nil {
		return nil
	}
	due := dateOnly(today).AddDate(0, 0, *t.DaysToComplete)
	return &due
}
