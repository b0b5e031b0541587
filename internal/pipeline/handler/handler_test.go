package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"talent_pipeline_backend/internal/pipeline/domain"
	"talent_pipeline_backend/internal/pipeline/service"
	"talent_pipeline_backend/internal/pipeline/transport"
	"talent_pipeline_backend/platform/apperr"
	"talent_pipeline_backend/platform/httpkit"
	"talent_pipeline_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakePipeline struct {
	Pipeline

	advanceCmd    service.AdvanceCommand
	advanceResult service.OpportunityResult
	advanceErr    error

	assignCmd service.AssignTaskCommand
	assignErr error

	updateCmd service.UpdateTaskCommand
	updateErr error

	resolvePolicy domain.ResolvePolicy

	bulkIDs    []uuid.UUID
	bulkResult service.BulkResolveResult

	listID     uuid.UUID
	listTaskID *uuid.UUID
	listErr    error
}

func (f *fakePipeline) AdvanceOpportunity(_ context.Context, cmd service.AdvanceCommand) (service.OpportunityResult, error) {
	f.advanceCmd = cmd
	return f.advanceResult, f.advanceErr
}

func (f *fakePipeline) AssignTask(_ context.Context, cmd service.AssignTaskCommand) ([]domain.TaskAssignment, error) {
	f.assignCmd = cmd
	if f.assignErr != nil {
		return nil, f.assignErr
	}
	return []domain.TaskAssignment{{ID: uuid.New(), TaskID: cmd.TaskID, CandidateID: *cmd.CandidateID}}, nil
}

func (f *fakePipeline) CompleteOrAbandonTask(_ context.Context, cmd service.UpdateTaskCommand) (domain.TaskAssignment, error) {
	f.updateCmd = cmd
	if f.updateErr != nil {
		return domain.TaskAssignment{}, f.updateErr
	}
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return domain.TaskAssignment{ID: cmd.AssignmentID, CompletedAt: &now}, nil
}

func (f *fakePipeline) ResolveTasksForCandidate(_ context.Context, _ uuid.UUID, policy domain.ResolvePolicy) ([]domain.TaskAssignment, error) {
	f.resolvePolicy = policy
	return nil, nil
}

func (f *fakePipeline) ResolveTasksForCandidates(_ context.Context, ids []uuid.UUID, policy domain.ResolvePolicy) (service.BulkResolveResult, error) {
	f.bulkIDs = ids
	f.resolvePolicy = policy
	return f.bulkResult, nil
}

func (f *fakePipeline) ListTaskAssignmentsForList(_ context.Context, listID uuid.UUID, taskID *uuid.UUID) ([]domain.TaskAssignment, error) {
	f.listID = listID
	f.listTaskID = taskID
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []domain.TaskAssignment{{ID: uuid.New(), CandidateID: uuid.New(), RelatedListID: &listID}}, nil
}

type fakeReconcileTrigger struct {
	calls int
}

func (f *fakeReconcileTrigger) EnqueueReconcile(context.Context) error {
	f.calls++
	return nil
}

func newTestRouter(svc Pipeline, userID uuid.UUID, roles ...string) *gin.Engine {
	return newRouterWithHandler(New(svc, validator.New()), userID, roles...)
}

func newRouterWithHandler(h *Handler, userID uuid.UUID, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != uuid.Nil {
			c.Set(httpkit.ContextUserIDKey, userID)
			c.Set(httpkit.ContextRolesKey, roles)
		}
		c.Next()
	})
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdvanceStagePassesCommand(t *testing.T) {
	actor := uuid.New()
	oppID := uuid.New()
	svc := &fakePipeline{advanceResult: service.OpportunityResult{
		Opportunity: domain.Opportunity{ID: oppID, Kind: domain.KindCandidate, Stage: "offer"},
	}}
	r := newTestRouter(svc, actor)

	w := doJSON(r, http.MethodPost, "/api/v1/opportunities/"+oppID.String()+"/stage", map[string]any{
		"stage":           "offer",
		"nextStepDueDate": "2026-03-20",
		"comment":         "<p>Offer  sent</p>",
		"version":         2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	cmd := svc.advanceCmd
	if cmd.OpportunityID != oppID || cmd.TargetStage != "offer" || cmd.ActorID != actor {
		t.Fatalf("unexpected command: %+v", cmd)
	}
	if cmd.Comment != "Offer sent" {
		t.Fatalf("expected sanitized comment, got %q", cmd.Comment)
	}
	if cmd.ExpectedVersion == nil || *cmd.ExpectedVersion != 2 {
		t.Fatal("expected version to be passed through")
	}
	if cmd.NextStepDueDate == nil || !cmd.NextStepDueDate.Equal(time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected due date: %v", cmd.NextStepDueDate)
	}

	var resp transport.OpportunityCommandResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Opportunity.StageLabel != "Offer" || resp.SyncError != "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAdvanceStageSyncFailureIsAccepted(t *testing.T) {
	oppID := uuid.New()
	msg := "503 service unavailable"
	svc := &fakePipeline{
		advanceResult: service.OpportunityResult{
			Opportunity: domain.Opportunity{ID: oppID, Kind: domain.KindCandidate, Stage: "offer", LastSyncError: &msg},
		},
		advanceErr: apperr.Sync("saved locally but not yet synced to the CRM", errors.New(msg)),
	}
	r := newTestRouter(svc, uuid.New())

	w := doJSON(r, http.MethodPost, "/api/v1/opportunities/"+oppID.String()+"/stage", map[string]any{"stage": "offer"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var resp transport.OpportunityCommandResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Opportunity.ID != oppID || resp.SyncError == "" {
		t.Fatalf("expected saved aggregate with sync error, got %+v", resp)
	}
}

func TestAdvanceStageErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperr.Validation("reopen required"), http.StatusBadRequest},
		{"not found", apperr.NotFound("opportunity not found"), http.StatusNotFound},
		{"conflict", apperr.Conflict("modified"), http.StatusConflict},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&fakePipeline{advanceErr: tt.err}, uuid.New())
			w := doJSON(r, http.MethodPost, "/api/v1/opportunities/"+uuid.NewString()+"/stage", map[string]any{"stage": "offer"})
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestAdvanceStageRejectsBadInput(t *testing.T) {
	r := newTestRouter(&fakePipeline{}, uuid.New())

	if w := doJSON(r, http.MethodPost, "/api/v1/opportunities/not-a-uuid/stage", map[string]any{"stage": "offer"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/api/v1/opportunities/"+uuid.NewString()+"/stage", map[string]any{}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing stage, got %d", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/api/v1/opportunities/"+uuid.NewString()+"/stage", map[string]any{"stage": "offer", "nextStepDueDate": "20/03/2026"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", w.Code)
	}
}

func TestCommandsRequireIdentity(t *testing.T) {
	r := newTestRouter(&fakePipeline{}, uuid.Nil)
	w := doJSON(r, http.MethodPost, "/api/v1/opportunities/"+uuid.NewString()+"/stage", map[string]any{"stage": "offer"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAssignTaskMapsSavedList(t *testing.T) {
	svc := &fakePipeline{}
	r := newTestRouter(svc, uuid.New())
	taskID, candidateID := uuid.New(), uuid.New()

	w := doJSON(r, http.MethodPost, "/api/v1/task-assignments", map[string]any{
		"taskId":      taskID,
		"candidateId": candidateID,
		"dueDate":     "2026-04-01",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if svc.assignCmd.TaskID != taskID || svc.assignCmd.CandidateID == nil || *svc.assignCmd.CandidateID != candidateID {
		t.Fatalf("unexpected command: %+v", svc.assignCmd)
	}
	if svc.assignCmd.DueDate == nil {
		t.Fatal("expected due date override")
	}
}

func TestUpdateTaskAssignmentReturnsCompletedDate(t *testing.T) {
	svc := &fakePipeline{}
	r := newTestRouter(svc, uuid.New())
	id := uuid.New()

	w := doJSON(r, http.MethodPut, "/api/v1/task-assignments/"+id.String(), map[string]any{"completed": true, "candidateNotes": "done"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp transport.TaskAssignmentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "completed" || resp.CompletedDate == nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !svc.updateCmd.Completed || svc.updateCmd.Notes == nil || *svc.updateCmd.Notes != "done" {
		t.Fatalf("unexpected command: %+v", svc.updateCmd)
	}
}

func TestResolveCandidateTasksValidatesPolicy(t *testing.T) {
	svc := &fakePipeline{}
	r := newTestRouter(svc, uuid.New())
	path := "/api/v1/candidates/" + uuid.NewString() + "/task-assignments/resolve"

	if w := doJSON(r, http.MethodPost, path, map[string]any{"policy": "abandon-some"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := doJSON(r, http.MethodPost, path, map[string]any{"policy": "abandon-optional"}); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.resolvePolicy != domain.ResolveAbandonOptional {
		t.Fatalf("unexpected policy %q", svc.resolvePolicy)
	}
}

func TestAssignTaskRejectsContextWithSavedList(t *testing.T) {
	svc := &fakePipeline{}
	r := newTestRouter(svc, uuid.New())

	for _, field := range []string{"relatedListId", "opportunityId"} {
		w := doJSON(r, http.MethodPost, "/api/v1/task-assignments", map[string]any{
			"taskId":      uuid.New(),
			"savedListId": uuid.New(),
			field:         uuid.New(),
		})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", field, w.Code, w.Body.String())
		}
	}
	if svc.assignCmd.TaskID != uuid.Nil {
		t.Fatalf("service should not be called, got %+v", svc.assignCmd)
	}
}

func TestBulkResolveRequiresAdmin(t *testing.T) {
	svc := &fakePipeline{}
	body := map[string]any{"candidateIds": []uuid.UUID{uuid.New()}, "policy": "abandon-all"}

	if w := doJSON(newTestRouter(svc, uuid.New()), http.MethodPost, "/api/v1/task-assignments/resolve", body); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if w := doJSON(newTestRouter(svc, uuid.Nil), http.MethodPost, "/api/v1/task-assignments/resolve", body); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if svc.bulkIDs != nil {
		t.Fatal("service should not be called without the admin role")
	}
}

func TestBulkResolveReportsSkippedCandidates(t *testing.T) {
	known, unknown := uuid.New(), uuid.New()
	svc := &fakePipeline{bulkResult: service.BulkResolveResult{
		Resolved: []domain.TaskAssignment{{ID: uuid.New(), CandidateID: known}},
		Skipped:  []uuid.UUID{unknown},
	}}
	r := newTestRouter(svc, uuid.New(), httpkit.RoleAdmin)

	w := doJSON(r, http.MethodPost, "/api/v1/task-assignments/resolve", map[string]any{
		"candidateIds": []uuid.UUID{known, unknown},
		"policy":       "abandon-optional",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp transport.BulkResolveTasksResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Resolved) != 1 || resp.Resolved[0].CandidateID != known {
		t.Fatalf("unexpected resolved: %+v", resp.Resolved)
	}
	if len(resp.SkippedCandidateIDs) != 1 || resp.SkippedCandidateIDs[0] != unknown {
		t.Fatalf("unexpected skipped: %+v", resp.SkippedCandidateIDs)
	}
	if len(svc.bulkIDs) != 2 || svc.resolvePolicy != domain.ResolveAbandonOptional {
		t.Fatalf("unexpected call: ids=%v policy=%q", svc.bulkIDs, svc.resolvePolicy)
	}

	if w := doJSON(r, http.MethodPost, "/api/v1/task-assignments/resolve", map[string]any{"candidateIds": []uuid.UUID{}, "policy": "abandon-all"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty ids, got %d", w.Code)
	}
}

func TestListSavedListTaskAssignments(t *testing.T) {
	svc := &fakePipeline{}
	r := newTestRouter(svc, uuid.New())
	listID, taskID := uuid.New(), uuid.New()

	w := doJSON(r, http.MethodGet, "/api/v1/saved-lists/"+listID.String()+"/task-assignments?taskId="+taskID.String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if svc.listID != listID || svc.listTaskID == nil || *svc.listTaskID != taskID {
		t.Fatalf("unexpected call: list=%s task=%v", svc.listID, svc.listTaskID)
	}
	var resp transport.TaskAssignmentListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].RelatedListID == nil || *resp.Items[0].RelatedListID != listID {
		t.Fatalf("unexpected response: %+v", resp.Items)
	}

	w = doJSON(r, http.MethodGet, "/api/v1/saved-lists/"+listID.String()+"/task-assignments", nil)
	if w.Code != http.StatusOK || svc.listTaskID != nil {
		t.Fatalf("expected unfiltered read, got %d task=%v", w.Code, svc.listTaskID)
	}

	if w := doJSON(r, http.MethodGet, "/api/v1/saved-lists/"+listID.String()+"/task-assignments?taskId=nope", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	svc.listErr = apperr.NotFound("saved list not found")
	if w := doJSON(r, http.MethodGet, "/api/v1/saved-lists/"+uuid.NewString()+"/task-assignments", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestReconcileQueuesRun(t *testing.T) {
	trigger := &fakeReconcileTrigger{}
	h := New(&fakePipeline{}, validator.New())
	h.SetReconcileTrigger(trigger)

	if w := doJSON(newRouterWithHandler(h, uuid.New()), http.MethodPost, "/api/v1/opportunities/reconcile", nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	w := doJSON(newRouterWithHandler(h, uuid.New(), httpkit.RoleAdmin), http.MethodPost, "/api/v1/opportunities/reconcile", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if trigger.calls != 1 {
		t.Fatalf("expected one enqueue, got %d", trigger.calls)
	}
}

func TestReconcileWithoutSchedulerIsRejected(t *testing.T) {
	r := newTestRouter(&fakePipeline{}, uuid.New(), httpkit.RoleAdmin)
	if w := doJSON(r, http.MethodPost, "/api/v1/opportunities/reconcile", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
