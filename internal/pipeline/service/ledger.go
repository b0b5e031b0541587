package service

import (
	"context"
	"time"

	"talent_pipeline_backend/internal/pipeline/domain"
	"talent_pipeline_backend/internal/pipeline/ports"
	"talent_pipeline_backend/internal/pipeline/repository"
	"talent_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
)

// AssignOptions are the optional inputs of an assignment.
type AssignOptions struct {
	RelatedListID *uuid.UUID
	OpportunityID *uuid.UUID
	// DueDate overrides the task's default due date.
	DueDate     *time.Time
	ActivatedBy uuid.UUID
}

// UpdateParams are the inputs of an assignment update.
type UpdateParams struct {
	Completed       bool
	Abandoned       bool
	Notes           *string
	DueDate         *time.Time
	ExpectedVersion *int
}

// Ledger records task assignments and their completion state. A Ledger does
// not open transactions; callers bind it to one with WithRepo.
type Ledger struct {
	repo      repository.AssignmentStore
	directory ports.CandidateDirectory
	lists     ports.SavedLists
	now       func() time.Time
}

// NewLedger creates a ledger over repo.
func NewLedger(repo repository.AssignmentStore, directory ports.CandidateDirectory, lists ports.SavedLists, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{repo: repo, directory: directory, lists: lists, now: now}
}

// WithRepo returns a copy of the ledger writing through repo.
func (l *Ledger) WithRepo(repo repository.AssignmentStore) *Ledger {
	cp := *l
	cp.repo = repo
	return &cp
}

// AssignToCandidate gives task to one candidate. A RelatedListID in opts
// must name an existing saved list.
func (l *Ledger) AssignToCandidate(ctx context.Context, task domain.Task, candidateID uuid.UUID, opts AssignOptions) (domain.TaskAssignment, error) {
	if _, err := l.directory.GetCandidate(ctx, candidateID); err != nil {
		return domain.TaskAssignment{}, err
	}
	if opts.RelatedListID != nil {
		if err := l.lists.CheckListExists(ctx, *opts.RelatedListID); err != nil {
			return domain.TaskAssignment{}, err
		}
	}
	return l.create(ctx, task, candidateID, opts)
}

// AssignToList gives task to every current member of a saved list. Members
// added to the list later are not affected.
func (l *Ledger) AssignToList(ctx context.Context, task domain.Task, listID uuid.UUID, opts AssignOptions) ([]domain.TaskAssignment, error) {
	members, err := l.lists.GetCandidatesInList(ctx, listID)
	if err != nil {
		return nil, err
	}

	opts.RelatedListID = &listID
	out := make([]domain.TaskAssignment, 0, len(members))
	for _, member := range members {
		a, err := l.create(ctx, task, member.ID, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (l *Ledger) create(ctx context.Context, task domain.Task, candidateID uuid.UUID, opts AssignOptions) (domain.TaskAssignment, error) {
	now := l.now().UTC()
	due := task.DefaultDueDate(now)
	if opts.DueDate != nil {
		d := *opts.DueDate
		due = &d
	}

	a := domain.TaskAssignment{
		ID:            uuid.New(),
		TaskID:        task.ID,
		Task:          task,
		CandidateID:   candidateID,
		RelatedListID: opts.RelatedListID,
		OpportunityID: opts.OpportunityID,
		DueDate:       due,
		ActivatedAt:   now,
	}
	if opts.ActivatedBy != uuid.Nil {
		actor := opts.ActivatedBy
		a.ActivatedBy = &actor
	}
	return l.repo.CreateAssignment(ctx, a)
}

// Update completes, abandons or edits an assignment.
func (l *Ledger) Update(ctx context.Context, assignmentID uuid.UUID, p UpdateParams) (domain.TaskAssignment, error) {
	a, err := l.repo.GetAssignmentForUpdate(ctx, assignmentID)
	if err != nil {
		return domain.TaskAssignment{}, err
	}
	if err := checkVersion("task assignment", p.ExpectedVersion, a.Version); err != nil {
		return domain.TaskAssignment{}, err
	}

	update := domain.AssignmentUpdate{
		Completed: p.Completed,
		Abandoned: p.Abandoned,
		Notes:     p.Notes,
		DueDate:   p.DueDate,
	}
	if err := a.ApplyUpdate(update, l.now()); err != nil {
		return domain.TaskAssignment{}, err
	}
	return l.repo.UpdateAssignment(ctx, a)
}

// Reopen returns a completed or abandoned assignment to active. Reopening an
// active assignment returns it unchanged.
func (l *Ledger) Reopen(ctx context.Context, assignmentID uuid.UUID) (domain.TaskAssignment, error) {
	a, err := l.repo.GetAssignmentForUpdate(ctx, assignmentID)
	if err != nil {
		return domain.TaskAssignment{}, err
	}
	if !a.Reopen() {
		return a, nil
	}
	return l.repo.UpdateAssignment(ctx, a)
}

// ResolveOutstanding abandons the candidate's active assignments selected by
// policy and returns only the assignments it changed. Running it again
// returns nothing.
func (l *Ledger) ResolveOutstanding(ctx context.Context, candidateID uuid.UUID, policy domain.ResolvePolicy) ([]domain.TaskAssignment, error) {
	if _, err := domain.ParseResolvePolicy(string(policy)); err != nil {
		return nil, err
	}
	if _, err := l.directory.GetCandidate(ctx, candidateID); err != nil {
		return nil, err
	}

	active, err := l.repo.ListActiveAssignmentsForUpdate(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	now := l.now()
	resolved := make([]domain.TaskAssignment, 0, len(active))
	for _, a := range active {
		if !policy.Applies(a.Task) || !a.Abandon(now) {
			continue
		}
		saved, err := l.repo.UpdateAssignment(ctx, a)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, saved)
	}
	return resolved, nil
}

// Delete removes an assignment regardless of status.
func (l *Ledger) Delete(ctx context.Context, assignmentID uuid.UUID) error {
	if _, err := l.repo.GetAssignmentForUpdate(ctx, assignmentID); err != nil {
		return err
	}
	return l.repo.DeleteAssignment(ctx, assignmentID)
}

// ListForCandidate returns every assignment of a candidate.
func (l *Ledger) ListForCandidate(ctx context.Context, candidateID uuid.UUID) ([]domain.TaskAssignment, error) {
	if _, err := l.directory.GetCandidate(ctx, candidateID); err != nil {
		return nil, err
	}
	return l.repo.ListAssignmentsForCandidate(ctx, candidateID)
}

// ListForList returns the assignments related to a saved list, optionally
// narrowed to one task.
func (l *Ledger) ListForList(ctx context.Context, listID uuid.UUID, taskID *uuid.UUID) ([]domain.TaskAssignment, error) {
	if err := l.lists.CheckListExists(ctx, listID); err != nil {
		return nil, err
	}
	return l.repo.ListAssignmentsForTaskAndList(ctx, listID, taskID)
}

func checkVersion(entity string, expected *int, actual int) error {
	if expected == nil || *expected == actual {
		return nil
	}
	return apperr.Conflict(entity + " was modified by another request").
		WithDetails(map[string]int{"expectedVersion": *expected, "currentVersion": actual})
}
