package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskOpportunityPush = "crm.opportunity.push"

const TaskOpportunitiesReconcile = "crm.opportunities.reconcile"

type OpportunityPushPayload struct {
	OpportunityID string `json:"opportunityId"`
}

func NewOpportunityPushTask(payload OpportunityPushPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOpportunityPush, data), nil
}

func ParseOpportunityPushPayload(task *asynq.Task) (OpportunityPushPayload, error) {
	var payload OpportunityPushPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return OpportunityPushPayload{}, err
	}
	return payload, nil
}

func NewReconcileTask() *asynq.Task {
	return asynq.NewTask(TaskOpportunitiesReconcile, nil)
}
