// Package crm provides the Salesforce REST client that mirrors pipeline
// opportunities into the CRM.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"talent_pipeline_backend/internal/pipeline/domain"
	"talent_pipeline_backend/internal/pipeline/ports"
	"talent_pipeline_backend/platform/apperr"
	"talent_pipeline_backend/platform/config"
	"talent_pipeline_backend/platform/logger"

	"golang.org/x/time/rate"
)

const (
	// External ID fields the opportunity upsert keys on. Local UUIDs are the values.
	candidateExternalIDField = "TBBCandidateExternalId__c"
	jobExternalIDField       = "TCid__c"

	opportunityFields = "Id,Name,StageName,IsClosed,IsWon,NextStep,Next_Step_Due_Date__c,LastModifiedDate"
	sfDateLayout      = "2006-01-02"
	maxErrorBody      = 2048
)

// Client talks to the Salesforce REST API with a bearer token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	log        *logger.Logger
}

// New creates a client from cfg. Requests are limited to the configured
// rate across all callers.
func New(cfg config.CRMConfig, log *logger.Logger) *Client {
	rps := cfg.GetCRMRequestsPerSecond()
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.GetCRMTimeout()},
		baseURL:    fmt.Sprintf("%s/services/data/%s", cfg.GetCRMBaseURL(), cfg.GetCRMAPIVersion()),
		token:      cfg.GetCRMAccessToken(),
		limiter:    rate.NewLimiter(limit, 1),
		log:        log,
	}
}

var _ ports.CRMSync = (*Client)(nil)

// opportunityRecord is the writable subset of a Salesforce Opportunity.
// IsClosed and IsWon are derived by Salesforce from StageName.
type opportunityRecord struct {
	Name            string  `json:"Name"`
	StageName       string  `json:"StageName"`
	NextStep        *string `json:"NextStep"`
	NextStepDueDate *string `json:"Next_Step_Due_Date__c"`
	ClosingComments *string `json:"Closing_Comments__c,omitempty"`
}

type upsertResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Created bool   `json:"created"`
}

type sfError struct {
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

type remoteRecord struct {
	ID               string  `json:"Id"`
	Name             string  `json:"Name"`
	StageName        string  `json:"StageName"`
	IsClosed         bool    `json:"IsClosed"`
	IsWon            bool    `json:"IsWon"`
	NextStep         *string `json:"NextStep"`
	NextStepDueDate  *string `json:"Next_Step_Due_Date__c"`
	LastModifiedDate string  `json:"LastModifiedDate"`
}

// Push creates or updates the opportunity's CRM record and returns its ID.
// Linked records are updated by ID; unlinked ones are upserted on the local
// opportunity ID so a retried push never creates a duplicate.
func (c *Client) Push(ctx context.Context, opp domain.Opportunity) (string, error) {
	record, err := toRecord(opp)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode opportunity: %w", err)
	}

	if opp.ExternalID != nil && *opp.ExternalID != "" {
		path := "/sobjects/Opportunity/" + url.PathEscape(*opp.ExternalID)
		if _, err := c.do(ctx, http.MethodPatch, path, body, http.StatusNoContent); err != nil {
			return "", err
		}
		return *opp.ExternalID, nil
	}

	field := externalIDField(opp.Kind)
	path := fmt.Sprintf("/sobjects/Opportunity/%s/%s", field, url.PathEscape(opp.ID.String()))
	respBody, err := c.do(ctx, http.MethodPatch, path, body, http.StatusCreated, http.StatusOK, http.StatusNoContent)
	if err != nil {
		return "", err
	}

	var resp upsertResponse
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return "", fmt.Errorf("decode upsert response: %w", err)
		}
	}
	if resp.ID != "" {
		return resp.ID, nil
	}

	// Older API versions answer an update-by-upsert with an empty 204.
	remote, err := c.fetch(ctx, path+"?fields=Id")
	if err != nil {
		return "", err
	}
	return remote.ID, nil
}

// FetchByID loads a remote opportunity.
func (c *Client) FetchByID(ctx context.Context, externalID string) (ports.RemoteOpportunity, error) {
	path := "/sobjects/Opportunity/" + url.PathEscape(externalID) + "?fields=" + opportunityFields
	rec, err := c.fetch(ctx, path)
	if err != nil {
		return ports.RemoteOpportunity{}, err
	}

	remote := ports.RemoteOpportunity{
		ExternalID: rec.ID,
		Name:       rec.Name,
		StageName:  rec.StageName,
		Closed:     rec.IsClosed,
		Won:        rec.IsWon,
	}
	if rec.NextStep != nil {
		remote.NextStep = *rec.NextStep
	}
	if rec.NextStepDueDate != nil {
		if due, err := time.Parse(sfDateLayout, *rec.NextStepDueDate); err == nil {
			remote.NextStepDueDate = &due
		}
	}
	if rec.LastModifiedDate != "" {
		// Salesforce emits +0000 offsets, which RFC 3339 does not accept.
		if ts, err := time.Parse("2006-01-02T15:04:05.000-0700", rec.LastModifiedDate); err == nil {
			remote.LastModified = ts.UTC()
		}
	}
	return remote, nil
}

func (c *Client) fetch(ctx context.Context, path string) (remoteRecord, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK)
	if err != nil {
		return remoteRecord{}, err
	}
	var rec remoteRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return remoteRecord{}, fmt.Errorf("decode opportunity: %w", err)
	}
	return rec, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, expected ...int) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("crm rate limit: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("crm request failed", "error", err, "method", method, "path", path)
		return nil, fmt.Errorf("crm request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read crm response: %w", err)
	}

	for _, status := range expected {
		if resp.StatusCode == status {
			return respBody, nil
		}
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperr.NotFound("crm record not found")
	}
	c.log.Error("crm upstream error", "status", resp.StatusCode, "method", method, "path", path)
	return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
}

// StatusError is a non-success answer from the CRM.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("crm returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("crm returned status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed when repeated.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsRetryable reports whether err is a CRM failure worth retrying. Transport
// errors are retryable; 4xx answers other than 429 are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return !apperr.Is(err, apperr.KindNotFound) && !apperr.Is(err, apperr.KindValidation)
}

func errorMessage(body []byte) string {
	var errs []sfError
	if err := json.Unmarshal(body, &errs); err == nil && len(errs) > 0 {
		return errs[0].ErrorCode + ": " + errs[0].Message
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return string(bytes.TrimSpace(body))
}

func externalIDField(kind domain.Kind) string {
	if kind == domain.KindJob {
		return jobExternalIDField
	}
	return candidateExternalIDField
}

// toRecord maps an opportunity onto the CRM's fields. Stages are sent by
// display label, which is what the CRM picklist holds.
func toRecord(opp domain.Opportunity) (opportunityRecord, error) {
	stage, err := opp.CurrentStage()
	if err != nil {
		return opportunityRecord{}, err
	}
	rec := opportunityRecord{
		Name:            opp.Name,
		StageName:       stage.Label,
		NextStep:        opp.NextStep,
		ClosingComments: opp.ClosingComments,
	}
	if opp.NextStepDueDate != nil {
		due := opp.NextStepDueDate.Format(sfDateLayout)
		rec.NextStepDueDate = &due
	}
	return rec, nil
}
