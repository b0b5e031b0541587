package handler

import (
	"time"

	"talent_pipeline_backend/internal/pipeline/domain"
	"talent_pipeline_backend/internal/pipeline/service"
	"talent_pipeline_backend/internal/pipeline/transport"

	"github.com/google/uuid"
)

func toOpportunityResponse(o domain.Opportunity) transport.OpportunityResponse {
	resp := transport.OpportunityResponse{
		ID:              o.ID,
		Kind:            string(o.Kind),
		OwnerID:         o.OwnerID,
		JobID:           o.JobID,
		Name:            o.Name,
		Stage:           o.Stage,
		StageLabel:      o.Stage,
		NextStep:        o.NextStep,
		NextStepDueDate: formatDate(o.NextStepDueDate),
		StageComment:    o.StageComment,
		ClosingComments: o.ClosingComments,
		Closed:          o.Closed,
		Won:             o.Won,
		ExternalID:      o.ExternalID,
		Version:         o.Version,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		LastSyncedAt:    o.LastSyncedAt,
		LastSyncError:   o.LastSyncError,
	}
	if stage, err := o.CurrentStage(); err == nil {
		resp.StageLabel = stage.Label
	}
	return resp
}

func toCommandResponse(r service.OpportunityResult, syncError string) transport.OpportunityCommandResponse {
	return transport.OpportunityCommandResponse{
		Opportunity: toOpportunityResponse(r.Opportunity),
		Resolved:    toAssignmentList(r.Resolved).Items,
		SyncError:   syncError,
	}
}

func toTaskResponse(t domain.Task) transport.TaskResponse {
	return transport.TaskResponse{
		ID:             t.ID,
		Name:           t.Name,
		DisplayName:    t.DisplayName,
		Description:    t.Description,
		Optional:       t.Optional,
		DaysToComplete: t.DaysToComplete,
		DocLink:        t.DocLink,
		TaskType:       string(t.TaskType),
	}
}

func toAssignmentResponse(a domain.TaskAssignment) transport.TaskAssignmentResponse {
	return transport.TaskAssignmentResponse{
		ID:             a.ID,
		Task:           toTaskResponse(a.Task),
		CandidateID:    a.CandidateID,
		RelatedListID:  a.RelatedListID,
		OpportunityID:  a.OpportunityID,
		Status:         string(a.Status()),
		DueDate:        formatDate(a.DueDate),
		CompletedDate:  a.CompletedAt,
		AbandonedDate:  a.AbandonedAt,
		CandidateNotes: a.CandidateNotes,
		ActivatedBy:    a.ActivatedBy,
		ActivatedDate:  a.ActivatedAt,
		Version:        a.Version,
	}
}

func toAssignmentList(list []domain.TaskAssignment) transport.TaskAssignmentListResponse {
	items := make([]transport.TaskAssignmentResponse, 0, len(list))
	for _, a := range list {
		items = append(items, toAssignmentResponse(a))
	}
	return transport.TaskAssignmentListResponse{Items: items}
}

func toBulkResolveResponse(r service.BulkResolveResult) transport.BulkResolveTasksResponse {
	skipped := r.Skipped
	if skipped == nil {
		skipped = []uuid.UUID{}
	}
	return transport.BulkResolveTasksResponse{
		Resolved:            toAssignmentList(r.Resolved).Items,
		SkippedCandidateIDs: skipped,
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}
