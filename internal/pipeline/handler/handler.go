package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"talent_pipeline_backend/internal/pipeline/domain"
	"talent_pipeline_backend/internal/pipeline/service"
	"talent_pipeline_backend/internal/pipeline/transport"
	"talent_pipeline_backend/platform/apperr"
	"talent_pipeline_backend/platform/httpkit"
	"talent_pipeline_backend/platform/sanitize"
	"talent_pipeline_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	dateLayout          = "2006-01-02"
)

// Pipeline is the subset of the orchestrator the HTTP layer drives.
type Pipeline interface {
	GetOpportunity(ctx context.Context, id uuid.UUID) (domain.Opportunity, error)
	OpenOpportunity(ctx context.Context, cmd service.OpenOpportunityCommand) (service.OpportunityResult, error)
	AdvanceOpportunity(ctx context.Context, cmd service.AdvanceCommand) (service.OpportunityResult, error)
	ReopenOpportunity(ctx context.Context, cmd service.ReopenCommand) (service.OpportunityResult, error)
	RetrySync(ctx context.Context, id uuid.UUID) (domain.Opportunity, error)
	ListTasks(ctx context.Context) ([]domain.Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (domain.Task, error)
	AssignTask(ctx context.Context, cmd service.AssignTaskCommand) ([]domain.TaskAssignment, error)
	GetTaskAssignment(ctx context.Context, id uuid.UUID) (domain.TaskAssignment, error)
	CompleteOrAbandonTask(ctx context.Context, cmd service.UpdateTaskCommand) (domain.TaskAssignment, error)
	ReopenTask(ctx context.Context, id uuid.UUID) (domain.TaskAssignment, error)
	DeleteTask(ctx context.Context, id uuid.UUID) error
	ListTasksForCandidate(ctx context.Context, candidateID uuid.UUID) ([]domain.TaskAssignment, error)
	ResolveTasksForCandidate(ctx context.Context, candidateID uuid.UUID, policy domain.ResolvePolicy) ([]domain.TaskAssignment, error)
	ResolveTasksForCandidates(ctx context.Context, candidateIDs []uuid.UUID, policy domain.ResolvePolicy) (service.BulkResolveResult, error)
	ListTaskAssignmentsForList(ctx context.Context, listID uuid.UUID, taskID *uuid.UUID) ([]domain.TaskAssignment, error)
}

// ReconcileTrigger queues an out-of-band CRM reconciliation run.
type ReconcileTrigger interface {
	EnqueueReconcile(ctx context.Context) error
}

type Handler struct {
	svc       Pipeline
	val       *validator.Validator
	reconcile ReconcileTrigger
}

func New(svc Pipeline, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// SetReconcileTrigger enables POST /opportunities/reconcile. Without a trigger
// the route answers 400.
func (h *Handler) SetReconcileTrigger(t ReconcileTrigger) {
	h.reconcile = t
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/opportunities", h.OpenOpportunity)
	rg.GET("/opportunities/:id", h.GetOpportunity)
	rg.POST("/opportunities/:id/stage", h.AdvanceStage)
	rg.POST("/opportunities/:id/reopen", h.Reopen)
	rg.POST("/opportunities/:id/sync", h.RetrySync)
	rg.POST("/opportunities/reconcile", httpkit.RequireRole(httpkit.RoleAdmin), h.Reconcile)

	rg.GET("/tasks", h.ListTasks)
	rg.GET("/tasks/:id", h.GetTask)

	rg.POST("/task-assignments", h.AssignTask)
	rg.POST("/task-assignments/resolve", httpkit.RequireRole(httpkit.RoleAdmin), h.ResolveTasksForCandidates)
	rg.GET("/task-assignments/:id", h.GetTaskAssignment)
	rg.PUT("/task-assignments/:id", h.UpdateTaskAssignment)
	rg.POST("/task-assignments/:id/reopen", h.ReopenTaskAssignment)
	rg.DELETE("/task-assignments/:id", h.DeleteTaskAssignment)

	rg.GET("/candidates/:id/task-assignments", h.ListCandidateTaskAssignments)
	rg.POST("/candidates/:id/task-assignments/resolve", h.ResolveCandidateTasks)

	rg.GET("/saved-lists/:id/task-assignments", h.ListSavedListTaskAssignments)
}

func (h *Handler) GetOpportunity(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	opp, err := h.svc.GetOpportunity(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toOpportunityResponse(opp))
}

func (h *Handler) OpenOpportunity(c *gin.Context) {
	var req transport.OpenOpportunityRequest
	if !h.bind(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.OpenOpportunity(c.Request.Context(), service.OpenOpportunityCommand{
		Kind:    domain.Kind(req.Kind),
		OwnerID: req.OwnerID,
		JobID:   req.JobID,
		Name:    sanitize.Text(req.Name),
		ActorID: identity.UserID(),
	})
	writeCommandResult(c, http.StatusCreated, result, err)
}

func (h *Handler) AdvanceStage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.AdvanceStageRequest
	if !h.bind(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	due, err := parseDate(req.NextStepDueDate)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, map[string]string{"nextStepDueDate": "datetime=" + dateLayout})
		return
	}

	result, err := h.svc.AdvanceOpportunity(c.Request.Context(), service.AdvanceCommand{
		OpportunityID:   id,
		TargetStage:     req.Stage,
		Won:             req.Won,
		Comment:         sanitize.Text(req.Comment),
		NextStep:        sanitize.TextPtr(req.NextStep),
		NextStepDueDate: due,
		ExpectedVersion: req.Version,
		ActorID:         identity.UserID(),
	})
	writeCommandResult(c, http.StatusOK, result, err)
}

func (h *Handler) Reopen(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.ReopenRequest
	if !h.bind(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	due, err := parseDate(req.NextStepDueDate)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, map[string]string{"nextStepDueDate": "datetime=" + dateLayout})
		return
	}

	result, err := h.svc.ReopenOpportunity(c.Request.Context(), service.ReopenCommand{
		OpportunityID:   id,
		TargetStage:     req.Stage,
		Comment:         sanitize.Text(req.Comment),
		NextStep:        sanitize.TextPtr(req.NextStep),
		NextStepDueDate: due,
		ExpectedVersion: req.Version,
		ActorID:         identity.UserID(),
	})
	writeCommandResult(c, http.StatusOK, result, err)
}

func (h *Handler) RetrySync(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	opp, err := h.svc.RetrySync(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toOpportunityResponse(opp))
}

func (h *Handler) Reconcile(c *gin.Context) {
	if h.reconcile == nil {
		httpkit.HandleError(c, apperr.Validation("CRM reconciliation is not scheduled"))
		return
	}
	if httpkit.HandleError(c, h.reconcile.EnqueueReconcile(c.Request.Context())) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, transport.ReconcileResponse{Status: "queued"})
}

func (h *Handler) ListTasks(c *gin.Context) {
	tasks, err := h.svc.ListTasks(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	items := make([]transport.TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, toTaskResponse(t))
	}
	httpkit.OK(c, transport.TaskListResponse{Items: items})
}

func (h *Handler) GetTask(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	task, err := h.svc.GetTask(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toTaskResponse(task))
}

func (h *Handler) AssignTask(c *gin.Context) {
	var req transport.AssignTaskRequest
	if !h.bind(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, map[string]string{"dueDate": "datetime=" + dateLayout})
		return
	}

	assignments, err := h.svc.AssignTask(c.Request.Context(), service.AssignTaskCommand{
		TaskID:        req.TaskID,
		CandidateID:   req.CandidateID,
		ListID:        req.SavedListID,
		RelatedListID: req.RelatedListID,
		OpportunityID: req.OpportunityID,
		DueDate:       due,
		ActorID:       identity.UserID(),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, toAssignmentList(assignments))
}

func (h *Handler) GetTaskAssignment(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	a, err := h.svc.GetTaskAssignment(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toAssignmentResponse(a))
}

func (h *Handler) UpdateTaskAssignment(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.UpdateTaskAssignmentRequest
	if !h.bind(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, map[string]string{"dueDate": "datetime=" + dateLayout})
		return
	}

	a, err := h.svc.CompleteOrAbandonTask(c.Request.Context(), service.UpdateTaskCommand{
		AssignmentID:    id,
		Completed:       req.Completed,
		Abandoned:       req.Abandoned,
		Notes:           sanitize.TextPtr(req.CandidateNotes),
		DueDate:         due,
		ExpectedVersion: req.Version,
		ActorID:         identity.UserID(),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toAssignmentResponse(a))
}

func (h *Handler) ReopenTaskAssignment(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	a, err := h.svc.ReopenTask(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toAssignmentResponse(a))
}

func (h *Handler) DeleteTaskAssignment(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.DeleteTask(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListCandidateTaskAssignments(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	assignments, err := h.svc.ListTasksForCandidate(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toAssignmentList(assignments))
}

func (h *Handler) ResolveCandidateTasks(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.ResolveTasksRequest
	if !h.bind(c, &req) {
		return
	}
	resolved, err := h.svc.ResolveTasksForCandidate(c.Request.Context(), id, domain.ResolvePolicy(req.Policy))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toAssignmentList(resolved))
}

func (h *Handler) ResolveTasksForCandidates(c *gin.Context) {
	var req transport.BulkResolveTasksRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.svc.ResolveTasksForCandidates(c.Request.Context(), req.CandidateIDs, domain.ResolvePolicy(req.Policy))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toBulkResolveResponse(result))
}

func (h *Handler) ListSavedListTaskAssignments(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var taskID *uuid.UUID
	if raw := c.Query("taskId"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, map[string]string{"taskId": "uuid"})
			return
		}
		taskID = &parsed
	}
	assignments, err := h.svc.ListTaskAssignmentsForList(c.Request.Context(), id, taskID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toAssignmentList(assignments))
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}

// writeCommandResult answers 202 with the saved aggregate when only the CRM
// push failed, so callers can tell "saved, not yet synced" apart from a failure.
func writeCommandResult(c *gin.Context, status int, result service.OpportunityResult, err error) {
	if err == nil {
		httpkit.JSON(c, status, toCommandResponse(result, ""))
		return
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind == apperr.KindSync {
		msg := appErr.Message
		if result.Opportunity.LastSyncError != nil {
			msg = msg + ": " + *result.Opportunity.LastSyncError
		}
		httpkit.JSON(c, http.StatusAccepted, toCommandResponse(result, msg))
		return
	}
	httpkit.HandleError(c, err)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return uuid.Nil, false
	}
	return id, true
}

func parseDate(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
