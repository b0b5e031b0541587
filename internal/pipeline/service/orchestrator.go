package service

import (
	"context"
	"fmt"
	"time"

	"talent_pipeline_backend/internal/events"
	"talent_pipeline_backend/internal/pipeline/domain"
	"talent_pipeline_backend/internal/pipeline/ports"
	"talent_pipeline_backend/internal/pipeline/repository"
	"talent_pipeline_backend/platform/apperr"
	"talent_pipeline_backend/platform/logger"

	"github.com/google/uuid"
)

const defaultSyncTimeout = 15 * time.Second

// Dependencies wires the orchestrator. CRM, StatusUpdater and Bus are optional.
type Dependencies struct {
	Store         repository.Store
	Directory     ports.CandidateDirectory
	Lists         ports.SavedLists
	CRM           ports.CRMSync
	StatusUpdater ports.CandidateStatusUpdater
	Bus           events.Bus
	SyncTimeout   time.Duration
	Log           *logger.Logger
	Now           func() time.Time
}

// Orchestrator applies pipeline commands. Each command commits its local
// changes in one transaction; the CRM push happens after commit and never
// undoes it.
type Orchestrator struct {
	store         repository.Store
	directory     ports.CandidateDirectory
	ledger        *Ledger
	crm           ports.CRMSync
	statusUpdater ports.CandidateStatusUpdater
	bus           events.Bus
	syncTimeout   time.Duration
	log           *logger.Logger
	now           func() time.Time
}

// NewOrchestrator creates an orchestrator from deps.
func NewOrchestrator(deps Dependencies) *Orchestrator {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	timeout := deps.SyncTimeout
	if timeout <= 0 {
		timeout = defaultSyncTimeout
	}
	log := deps.Log
	if log == nil {
		log = logger.Discard()
	}
	return &Orchestrator{
		store:         deps.Store,
		directory:     deps.Directory,
		ledger:        NewLedger(deps.Store, deps.Directory, deps.Lists, now),
		crm:           deps.CRM,
		statusUpdater: deps.StatusUpdater,
		bus:           deps.Bus,
		syncTimeout:   timeout,
		log:           log,
		now:           now,
	}
}

// OpenOpportunityCommand opens a candidate or job opportunity.
type OpenOpportunityCommand struct {
	Kind    domain.Kind
	OwnerID uuid.UUID
	JobID   *uuid.UUID
	Name    string
	ActorID uuid.UUID
}

// AdvanceCommand moves an opportunity to another stage.
type AdvanceCommand struct {
	OpportunityID   uuid.UUID
	TargetStage     string
	Won             *bool
	Comment         string
	NextStep        *string
	NextStepDueDate *time.Time
	ExpectedVersion *int
	ActorID         uuid.UUID
}

// ReopenCommand moves a closed opportunity back into an open stage.
type ReopenCommand struct {
	OpportunityID   uuid.UUID
	TargetStage     string
	Comment         string
	NextStep        *string
	NextStepDueDate *time.Time
	ExpectedVersion *int
	ActorID         uuid.UUID
}

// AssignTaskCommand assigns a task to one candidate or to a saved list.
type AssignTaskCommand struct {
	TaskID        uuid.UUID
	CandidateID   *uuid.UUID
	ListID        *uuid.UUID
	RelatedListID *uuid.UUID
	OpportunityID *uuid.UUID
	DueDate       *time.Time
	ActorID       uuid.UUID
}

// UpdateTaskCommand completes, abandons or edits an assignment.
type UpdateTaskCommand struct {
	AssignmentID    uuid.UUID
	Completed       bool
	Abandoned       bool
	Notes           *string
	DueDate         *time.Time
	ExpectedVersion *int
	ActorID         uuid.UUID
}

// OpportunityResult is the committed aggregate of an opportunity command.
// When the CRM push fails the result is still returned, alongside an
// apperr.KindSync error.
type OpportunityResult struct {
	Opportunity domain.Opportunity
	Change      domain.StageChanged
	Resolved    []domain.TaskAssignment
}

// GetOpportunity returns an opportunity.
func (o *Orchestrator) GetOpportunity(ctx context.Context, id uuid.UUID) (domain.Opportunity, error) {
	return o.store.GetOpportunity(ctx, id)
}

// OpenOpportunity creates an opportunity in its initial stage and pushes it.
func (o *Orchestrator) OpenOpportunity(ctx context.Context, cmd OpenOpportunityCommand) (OpportunityResult, error) {
	if err := o.requireActor(ctx, cmd.ActorID); err != nil {
		return OpportunityResult{}, err
	}

	name := cmd.Name
	if cmd.Kind == domain.KindCandidate {
		candidate, err := o.directory.GetCandidate(ctx, cmd.OwnerID)
		if err != nil {
			return OpportunityResult{}, err
		}
		if name == "" {
			name = candidate.CandidateNumber
		}
		if cmd.JobID != nil {
			job, err := o.store.GetOpportunity(ctx, *cmd.JobID)
			if err != nil {
				return OpportunityResult{}, err
			}
			if job.Kind != domain.KindJob {
				return OpportunityResult{}, apperr.Validation("jobId must reference a job opportunity")
			}
			if cmd.Name == "" {
				name = fmt.Sprintf("%s (%s)", candidate.CandidateNumber, job.Name)
			}
		}
	}

	opp, err := domain.NewOpportunity(domain.NewOpportunityParams{
		Kind:    cmd.Kind,
		OwnerID: cmd.OwnerID,
		JobID:   cmd.JobID,
		Name:    name,
		ActorID: cmd.ActorID,
		Now:     o.now(),
	})
	if err != nil {
		return OpportunityResult{}, err
	}

	created, err := o.store.CreateOpportunity(ctx, opp)
	if err != nil {
		return OpportunityResult{}, err
	}

	result := OpportunityResult{
		Opportunity: created,
		Change: domain.StageChanged{
			OpportunityID: created.ID,
			Kind:          created.Kind,
			OwnerID:       created.OwnerID,
			NewStage:      created.Stage,
			Changed:       true,
		},
	}
	o.publishStageChanged(ctx, result.Change, cmd.ActorID)
	return o.push(ctx, result)
}

// OpenCandidateOpportunity opens a candidate opportunity, optionally linked to a job.
func (o *Orchestrator) OpenCandidateOpportunity(ctx context.Context, candidateID uuid.UUID, jobID *uuid.UUID, actorID uuid.UUID) (OpportunityResult, error) {
	return o.OpenOpportunity(ctx, OpenOpportunityCommand{
		Kind:    domain.KindCandidate,
		OwnerID: candidateID,
		JobID:   jobID,
		ActorID: actorID,
	})
}

// AdvanceOpportunity applies a stage transition. Closing a candidate
// opportunity abandons all of the candidate's outstanding tasks in the same
// transaction.
func (o *Orchestrator) AdvanceOpportunity(ctx context.Context, cmd AdvanceCommand) (OpportunityResult, error) {
	if err := o.requireActor(ctx, cmd.ActorID); err != nil {
		return OpportunityResult{}, err
	}

	var result OpportunityResult
	err := o.store.WithinTx(ctx, func(ctx context.Context, repo repository.Repository) error {
		opp, err := repo.GetOpportunityForUpdate(ctx, cmd.OpportunityID)
		if err != nil {
			return err
		}
		if err := checkVersion("opportunity", cmd.ExpectedVersion, opp.Version); err != nil {
			return err
		}

		change, err := opp.Transition(cmd.TargetStage, domain.TransitionParams{
			Won:             cmd.Won,
			Comment:         cmd.Comment,
			NextStep:        cmd.NextStep,
			NextStepDueDate: cmd.NextStepDueDate,
			ActorID:         cmd.ActorID,
			Now:             o.now(),
		})
		if err != nil {
			return err
		}

		updated, err := repo.UpdateOpportunity(ctx, opp)
		if err != nil {
			return err
		}
		result = OpportunityResult{Opportunity: updated, Change: change}

		if change.Changed && change.Closed {
			if candidateID, ok := updated.CandidateID(); ok {
				resolved, err := o.ledger.WithRepo(repo).ResolveOutstanding(ctx, candidateID, domain.ResolveAbandonAll)
				if err != nil {
					return err
				}
				result.Resolved = resolved
			}
		}
		return nil
	})
	if err != nil {
		return OpportunityResult{}, err
	}

	o.afterStageChange(ctx, result, cmd.ActorID)
	return o.push(ctx, result)
}

// ReopenOpportunity moves a closed opportunity back into an open stage.
// Tasks abandoned when it closed stay abandoned.
func (o *Orchestrator) ReopenOpportunity(ctx context.Context, cmd ReopenCommand) (OpportunityResult, error) {
	if err := o.requireActor(ctx, cmd.ActorID); err != nil {
		return OpportunityResult{}, err
	}

	var result OpportunityResult
	err := o.store.WithinTx(ctx, func(ctx context.Context, repo repository.Repository) error {
		opp, err := repo.GetOpportunityForUpdate(ctx, cmd.OpportunityID)
		if err != nil {
			return err
		}
		if err := checkVersion("opportunity", cmd.ExpectedVersion, opp.Version); err != nil {
			return err
		}

		change, err := opp.Reopen(cmd.TargetStage, domain.TransitionParams{
			Comment:         cmd.Comment,
			NextStep:        cmd.NextStep,
			NextStepDueDate: cmd.NextStepDueDate,
			ActorID:         cmd.ActorID,
			Now:             o.now(),
		})
		if err != nil {
			return err
		}

		updated, err := repo.UpdateOpportunity(ctx, opp)
		if err != nil {
			return err
		}
		result = OpportunityResult{Opportunity: updated, Change: change}
		return nil
	})
	if err != nil {
		return OpportunityResult{}, err
	}

	o.afterStageChange(ctx, result, cmd.ActorID)
	return o.push(ctx, result)
}

// RetrySync pushes the current local state of an opportunity again.
func (o *Orchestrator) RetrySync(ctx context.Context, opportunityID uuid.UUID) (domain.Opportunity, error) {
	if o.crm == nil {
		return domain.Opportunity{}, apperr.Validation("CRM sync is not configured")
	}
	opp, err := o.store.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return domain.Opportunity{}, err
	}
	result, err := o.push(ctx, OpportunityResult{Opportunity: opp})
	return result.Opportunity, err
}

// ListTasks returns the task catalog.
func (o *Orchestrator) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return o.store.ListTasks(ctx)
}

// GetTask returns one task definition.
func (o *Orchestrator) GetTask(ctx context.Context, id uuid.UUID) (domain.Task, error) {
	return o.store.GetTask(ctx, id)
}

// AssignTask assigns a task to exactly one of a candidate or a saved list.
func (o *Orchestrator) AssignTask(ctx context.Context, cmd AssignTaskCommand) ([]domain.TaskAssignment, error) {
	if (cmd.CandidateID == nil) == (cmd.ListID == nil) {
		return nil, apperr.Validation("exactly one of candidateId or savedListId is required")
	}
	if cmd.ListID != nil {
		// List assignments are related to the list they expand and belong to
		// many candidates, so neither context can be supplied.
		if cmd.RelatedListID != nil {
			return nil, apperr.Validation("relatedListId cannot be combined with savedListId")
		}
		if cmd.OpportunityID != nil {
			return nil, apperr.Validation("opportunityId cannot be combined with savedListId")
		}
	}
	if err := o.requireActor(ctx, cmd.ActorID); err != nil {
		return nil, err
	}

	var out []domain.TaskAssignment
	err := o.store.WithinTx(ctx, func(ctx context.Context, repo repository.Repository) error {
		task, err := repo.GetTask(ctx, cmd.TaskID)
		if err != nil {
			return err
		}
		if cmd.OpportunityID != nil {
			opp, err := repo.GetOpportunity(ctx, *cmd.OpportunityID)
			if err != nil {
				return err
			}
			if owner, ok := opp.CandidateID(); !ok || owner != *cmd.CandidateID {
				return apperr.Validation("opportunityId must reference an opportunity of the same candidate")
			}
		}

		opts := AssignOptions{
			RelatedListID: cmd.RelatedListID,
			OpportunityID: cmd.OpportunityID,
			DueDate:       cmd.DueDate,
			ActivatedBy:   cmd.ActorID,
		}
		ledger := o.ledger.WithRepo(repo)
		if cmd.ListID != nil {
			out, err = ledger.AssignToList(ctx, task, *cmd.ListID, opts)
			return err
		}
		a, err := ledger.AssignToCandidate(ctx, task, *cmd.CandidateID, opts)
		if err != nil {
			return err
		}
		out = []domain.TaskAssignment{a}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetTaskAssignment returns one assignment.
func (o *Orchestrator) GetTaskAssignment(ctx context.Context, id uuid.UUID) (domain.TaskAssignment, error) {
	return o.store.GetAssignment(ctx, id)
}

// CompleteOrAbandonTask applies an update-task-assignment command.
func (o *Orchestrator) CompleteOrAbandonTask(ctx context.Context, cmd UpdateTaskCommand) (domain.TaskAssignment, error) {
	if err := o.requireActor(ctx, cmd.ActorID); err != nil {
		return domain.TaskAssignment{}, err
	}

	var out domain.TaskAssignment
	err := o.store.WithinTx(ctx, func(ctx context.Context, repo repository.Repository) error {
		var err error
		out, err = o.ledger.WithRepo(repo).Update(ctx, cmd.AssignmentID, UpdateParams{
			Completed:       cmd.Completed,
			Abandoned:       cmd.Abandoned,
			Notes:           cmd.Notes,
			DueDate:         cmd.DueDate,
			ExpectedVersion: cmd.ExpectedVersion,
		})
		return err
	})
	return out, err
}

// ReopenTask returns a completed or abandoned assignment to active.
func (o *Orchestrator) ReopenTask(ctx context.Context, assignmentID uuid.UUID) (domain.TaskAssignment, error) {
	var out domain.TaskAssignment
	err := o.store.WithinTx(ctx, func(ctx context.Context, repo repository.Repository) error {
		var err error
		out, err = o.ledger.WithRepo(repo).Reopen(ctx, assignmentID)
		return err
	})
	return out, err
}

// DeleteTask hard-deletes an assignment.
func (o *Orchestrator) DeleteTask(ctx context.Context, assignmentID uuid.UUID) error {
	return o.store.WithinTx(ctx, func(ctx context.Context, repo repository.Repository) error {
		return o.ledger.WithRepo(repo).Delete(ctx, assignmentID)
	})
}

// ListTasksForCandidate returns all assignments of a candidate.
func (o *Orchestrator) ListTasksForCandidate(ctx context.Context, candidateID uuid.UUID) ([]domain.TaskAssignment, error) {
	return o.ledger.ListForCandidate(ctx, candidateID)
}

// ResolveTasksForCandidate abandons outstanding assignments per policy.
func (o *Orchestrator) ResolveTasksForCandidate(ctx context.Context, candidateID uuid.UUID, policy domain.ResolvePolicy) ([]domain.TaskAssignment, error) {
	var resolved []domain.TaskAssignment
	err := o.store.WithinTx(ctx, func(ctx context.Context, repo repository.Repository) error {
		var err error
		resolved, err = o.ledger.WithRepo(repo).ResolveOutstanding(ctx, candidateID, policy)
		return err
	})
	if err != nil {
		return nil, err
	}
	o.publishResolved(ctx, candidateID, policy, resolved)
	return resolved, nil
}

// BulkResolveResult is the outcome of resolving several candidates' tasks.
type BulkResolveResult struct {
	Resolved []domain.TaskAssignment
	// Skipped lists candidate IDs that do not exist.
	Skipped []uuid.UUID
}

// ResolveTasksForCandidates resolves each candidate in its own transaction.
// Unknown candidates are logged and skipped; any other failure stops the run
// and earlier candidates stay resolved.
func (o *Orchestrator) ResolveTasksForCandidates(ctx context.Context, candidateIDs []uuid.UUID, policy domain.ResolvePolicy) (BulkResolveResult, error) {
	if _, err := domain.ParseResolvePolicy(string(policy)); err != nil {
		return BulkResolveResult{}, err
	}

	result := BulkResolveResult{
		Resolved: make([]domain.TaskAssignment, 0),
		Skipped:  make([]uuid.UUID, 0),
	}
	seen := make(map[uuid.UUID]struct{}, len(candidateIDs))
	for _, id := range candidateIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		resolved, err := o.ResolveTasksForCandidate(ctx, id, policy)
		if apperr.Is(err, apperr.KindNotFound) {
			o.log.WithContext(ctx).Warn("skipping unknown candidate while resolving tasks", "candidateId", id)
			result.Skipped = append(result.Skipped, id)
			continue
		}
		if err != nil {
			return result, fmt.Errorf("resolve tasks for candidate %s: %w", id, err)
		}
		result.Resolved = append(result.Resolved, resolved...)
	}
	return result, nil
}

// ListTaskAssignmentsForList returns the assignments made in the context of
// a saved list, for list-level progress reporting.
func (o *Orchestrator) ListTaskAssignmentsForList(ctx context.Context, listID uuid.UUID, taskID *uuid.UUID) ([]domain.TaskAssignment, error) {
	if taskID != nil {
		if _, err := o.store.GetTask(ctx, *taskID); err != nil {
			return nil, err
		}
	}
	return o.ledger.ListForList(ctx, listID, taskID)
}

func (o *Orchestrator) requireActor(ctx context.Context, actorID uuid.UUID) error {
	if actorID == uuid.Nil {
		return nil
	}
	_, err := o.directory.GetUser(ctx, actorID)
	return err
}

func (o *Orchestrator) afterStageChange(ctx context.Context, result OpportunityResult, actorID uuid.UUID) {
	change := result.Change
	if change.Changed {
		o.log.WithContext(ctx).StageTransition(change.OpportunityID.String(), string(change.Kind),
			change.OldStage, change.NewStage, change.Closed)
		o.publishStageChanged(ctx, change, actorID)
	}
	if len(result.Resolved) > 0 {
		if candidateID, ok := result.Opportunity.CandidateID(); ok {
			o.publishResolved(ctx, candidateID, domain.ResolveAbandonAll, result.Resolved)
		}
	}
	if change.Changed && !change.Reopened {
		o.applyImpliedStatus(ctx, result.Opportunity)
	}
}

// applyImpliedStatus updates the candidate status implied by the new stage.
// Failures are logged; the stage change is already committed.
func (o *Orchestrator) applyImpliedStatus(ctx context.Context, opp domain.Opportunity) {
	candidateID, ok := opp.CandidateID()
	if !ok || o.statusUpdater == nil {
		return
	}
	stage, err := opp.CurrentStage()
	if err != nil || stage.ImpliedStatus == "" {
		return
	}

	candidate, err := o.directory.GetCandidate(ctx, candidateID)
	if err != nil {
		o.log.Warn("implied status: candidate lookup failed", "candidate_id", candidateID, "error", err)
		return
	}
	if candidate.Status == stage.ImpliedStatus {
		return
	}

	comment := fmt.Sprintf("Opportunity %s moved to %s", opp.Name, stage.Label)
	if err := o.statusUpdater.UpdateCandidateStatus(ctx, candidateID, stage.ImpliedStatus, comment); err != nil {
		o.log.Warn("implied status: update failed", "candidate_id", candidateID, "status", stage.ImpliedStatus, "error", err)
	}
}

// push mirrors the committed opportunity to the CRM. Sync metadata is
// recorded outside the command transaction.
func (o *Orchestrator) push(ctx context.Context, result OpportunityResult) (OpportunityResult, error) {
	if o.crm == nil {
		return result, nil
	}

	opp := result.Opportunity
	pushCtx, cancel := context.WithTimeout(ctx, o.syncTimeout)
	defer cancel()

	externalID, pushErr := o.crm.Push(pushCtx, opp)
	if pushErr != nil {
		msg := pushErr.Error()
		if err := o.store.RecordSyncResult(ctx, opp.ID, repository.SyncResult{Error: &msg}); err != nil {
			o.log.DatabaseError("record sync failure", err)
		}
		result.Opportunity.LastSyncError = &msg
		o.log.WithContext(ctx).SyncFailure(opp.ID.String(), pushErr)
		o.publish(ctx, events.OpportunitySyncFailed{
			BaseEvent:     events.NewBaseEvent(),
			OpportunityID: opp.ID,
			Error:         msg,
		})
		return result, apperr.Sync("saved locally but not yet synced to the CRM", pushErr).WithOp("crm.push")
	}

	syncedAt := o.now().UTC()
	if err := o.store.RecordSyncResult(ctx, opp.ID, repository.SyncResult{ExternalID: &externalID, SyncedAt: &syncedAt}); err != nil {
		o.log.DatabaseError("record sync success", err)
	}
	result.Opportunity.ExternalID = &externalID
	result.Opportunity.LastSyncedAt = &syncedAt
	result.Opportunity.LastSyncError = nil
	return result, nil
}

func (o *Orchestrator) publishStageChanged(ctx context.Context, change domain.StageChanged, actorID uuid.UUID) {
	o.publish(ctx, events.OpportunityStageChanged{
		BaseEvent:     events.NewBaseEvent(),
		OpportunityID: change.OpportunityID,
		Kind:          string(change.Kind),
		OwnerID:       change.OwnerID,
		OldStage:      change.OldStage,
		NewStage:      change.NewStage,
		Closed:        change.Closed,
		Won:           change.Won,
		Reopened:      change.Reopened,
		ActorID:       actorID,
	})
}

func (o *Orchestrator) publishResolved(ctx context.Context, candidateID uuid.UUID, policy domain.ResolvePolicy, resolved []domain.TaskAssignment) {
	if len(resolved) == 0 {
		return
	}
	ids := make([]uuid.UUID, len(resolved))
	for i, a := range resolved {
		ids[i] = a.ID
	}
	o.publish(ctx, events.TaskAssignmentsResolved{
		BaseEvent:     events.NewBaseEvent(),
		CandidateID:   candidateID,
		Policy:        string(policy),
		AssignmentIDs: ids,
	})
}

func (o *Orchestrator) publish(ctx context.Context, evt events.Event) {
	if o.bus != nil {
		o.bus.Publish(ctx, evt)
	}
}
