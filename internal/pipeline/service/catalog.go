package service

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"talent_pipeline_backend/internal/pipeline/domain"
	"talent_pipeline_backend/internal/pipeline/repository"
	"talent_pipeline_backend/platform/logger"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed seed/tasks.yaml
var defaultTasksYAML []byte

// TaskCatalog serves read access to task definitions.
type TaskCatalog struct {
	repo repository.TaskStore
	log  *logger.Logger
}

// NewTaskCatalog creates a catalog over repo.
func NewTaskCatalog(repo repository.TaskStore, log *logger.Logger) *TaskCatalog {
	return &TaskCatalog{repo: repo, log: log}
}

// Get returns a task or an apperr NotFound error.
func (c *TaskCatalog) Get(ctx context.Context, id uuid.UUID) (domain.Task, error) {
	return c.repo.GetTask(ctx, id)
}

// List returns every task definition.
func (c *TaskCatalog) List(ctx context.Context) ([]domain.Task, error) {
	return c.repo.ListTasks(ctx)
}

type seedFile struct {
	Tasks []seedTask `yaml:"tasks"`
}

type seedTask struct {
	Name           string  `yaml:"name"`
	DisplayName    string  `yaml:"displayName"`
	Description    string  `yaml:"description"`
	Optional       bool    `yaml:"optional"`
	DaysToComplete *int    `yaml:"daysToComplete"`
	DocLink        *string `yaml:"docLink"`
	TaskType       string  `yaml:"taskType"`
}

// ParseTaskSeed decodes a YAML list of task definitions.
func ParseTaskSeed(data []byte) ([]domain.Task, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode task seed: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Tasks))
	tasks := make([]domain.Task, 0, len(file.Tasks))
	for i, st := range file.Tasks {
		name := strings.TrimSpace(st.Name)
		if name == "" {
			return nil, fmt.Errorf("task seed entry %d has no name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("task seed has duplicate name %q", name)
		}
		seen[name] = struct{}{}

		taskType := domain.TaskType(st.TaskType)
		if taskType == "" {
			taskType = domain.TaskTypeSimple
		}
		if !taskType.Valid() {
			return nil, fmt.Errorf("task %q has unknown type %q", name, st.TaskType)
		}
		if st.DaysToComplete != nil && *st.DaysToComplete < 0 {
			return nil, fmt.Errorf("task %q has negative daysToComplete", name)
		}

		display := strings.TrimSpace(st.DisplayName)
		if display == "" {
			display = name
		}
		tasks = append(tasks, domain.Task{
			ID:             uuid.New(),
			Name:           name,
			DisplayName:    display,
			Description:    strings.TrimSpace(st.Description),
			Optional:       st.Optional,
			DaysToComplete: st.DaysToComplete,
			DocLink:        st.DocLink,
			TaskType:       taskType,
		})
	}
	return tasks, nil
}

// SeedDefaults upserts the embedded default tasks by name.
func (c *TaskCatalog) SeedDefaults(ctx context.Context) (int, error) {
	tasks, err := ParseTaskSeed(defaultTasksYAML)
	if err != nil {
		return 0, err
	}
	for _, t := range tasks {
		if _, err := c.repo.UpsertTaskByName(ctx, t); err != nil {
			return 0, err
		}
	}
	c.log.Info("task catalog seeded", "count", len(tasks))
	return len(tasks), nil
}
