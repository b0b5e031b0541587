package domain

import (
	"fmt"
	"strings"
	"time"

	"talent_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
)

const (
	// DefaultNextStep is the first next step of a new candidate opportunity.
	DefaultNextStep = "Contact candidate and do intake"
	// DefaultNextStepLead is how far out the first next step falls due.
	DefaultNextStepLead = 14 * 24 * time.Hour
)

// Opportunity is a candidate's or an employer's progress through a stage catalog.
// Candidate opportunities are owned by a candidate and optionally point at a job
// opportunity; job opportunities are owned by an employer.
type Opportunity struct {
	ID              uuid.UUID
	Kind            Kind
	OwnerID         uuid.UUID
	JobID           *uuid.UUID
	Name            string
	Stage           string
	NextStep        *string
	NextStepDueDate *time.Time
	StageComment    *string
	ClosingComments *string
	Closed          bool
	Won             bool
	ExternalID      *string
	Version         int
	CreatedBy       *uuid.UUID
	CreatedAt       time.Time
	UpdatedBy       *uuid.UUID
	UpdatedAt       time.Time
	LastSyncedAt    *time.Time
	LastSyncError   *string
}

// TransitionParams carries the caller-supplied fields of a stage change.
// A nil NextStep or NextStepDueDate leaves the stored value untouched.
type TransitionParams struct {
	Won             *bool
	Comment         string
	NextStep        *string
	NextStepDueDate *time.Time
	ActorID         uuid.UUID
	Now             time.Time
}

// StageChanged describes the outcome of a transition or reopen.
type StageChanged struct {
	OpportunityID uuid.UUID
	Kind          Kind
	OwnerID       uuid.UUID
	OldStage      string
	NewStage      string
	Changed       bool
	Closed        bool
	Won           bool
	Reopened      bool
}

// NewOpportunityParams are the inputs for opening an opportunity.
type NewOpportunityParams struct {
	Kind    Kind
	OwnerID uuid.UUID
	JobID   *uuid.UUID
	Name    string
	ActorID uuid.UUID
	Now     time.Time
}

// NewOpportunity builds an opportunity in its catalog's initial stage.
// Candidate opportunities get the default intake next step.
func NewOpportunity(p NewOpportunityParams) (Opportunity, error) {
	catalog, err := CatalogFor(p.Kind)
	if err != nil {
		return Opportunity{}, err
	}
	if p.OwnerID == uuid.Nil {
		return Opportunity{}, apperr.Validation("owner is required")
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return Opportunity{}, apperr.Validation("name is required")
	}
	if p.Kind == KindJob && p.JobID != nil {
		return Opportunity{}, apperr.Validation("job opportunities cannot reference another job")
	}

	now := p.Now.UTC()
	opp := Opportunity{
		ID:        uuid.New(),
		Kind:      p.Kind,
		OwnerID:   p.OwnerID,
		JobID:     p.JobID,
		Name:      name,
		Stage:     catalog.Initial().Name,
		CreatedBy: actorRef(p.ActorID),
		CreatedAt: now,
		UpdatedBy: actorRef(p.ActorID),
		UpdatedAt: now,
	}
	if p.Kind == KindCandidate {
		step := DefaultNextStep
		due := dateOnly(now.Add(DefaultNextStepLead))
		opp.NextStep = &step
		opp.NextStepDueDate = &due
	}
	return opp, nil
}

// CandidateID returns the owning candidate for candidate opportunities.
func (o Opportunity) CandidateID() (uuid.UUID, bool) {
	if o.Kind != KindCandidate {
		return uuid.Nil, false
	}
	return o.OwnerID, true
}

// CurrentStage resolves the stored stage name against the catalog.
func (o Opportunity) CurrentStage() (Stage, error) {
	catalog, err := CatalogFor(o.Kind)
	if err != nil {
		return Stage{}, err
	}
	return catalog.Parse(o.Stage)
}

// Transition moves the opportunity to target. Closed stages cannot be left
// this way; see Reopen.
func (o *Opportunity) Transition(target string, p TransitionParams) (StageChanged, error) {
	catalog, err := CatalogFor(o.Kind)
	if err != nil {
		return StageChanged{}, err
	}
	current, err := catalog.Parse(o.Stage)
	if err != nil {
		return StageChanged{}, err
	}
	next, err := catalog.Parse(target)
	if err != nil {
		return StageChanged{}, err
	}

	if !catalog.IsValidTransition(current.Name, next.Name) {
		return StageChanged{}, apperr.Validation(
			fmt.Sprintf("opportunity is closed at %q; reopen required", current.Name))
	}
	if next.Terminal && p.Won == nil {
		return StageChanged{}, apperr.Validation("won must be specified when closing an opportunity")
	}
	if !next.Terminal && p.Won != nil {
		return StageChanged{}, apperr.Validation("won can only be set when closing an opportunity")
	}

	o.Stage = next.Name
	o.Closed = next.Terminal
	o.Won = next.Terminal && *p.Won
	if comment := strings.TrimSpace(p.Comment); comment != "" {
		o.StageComment = &comment
		if next.Terminal {
			o.ClosingComments = &comment
		}
	}
	o.applyNextStep(p)
	o.touch(p)

	return StageChanged{
		OpportunityID: o.ID,
		Kind:          o.Kind,
		OwnerID:       o.OwnerID,
		OldStage:      current.Name,
		NewStage:      next.Name,
		Changed:       current.Name != next.Name,
		Closed:        o.Closed,
		Won:           o.Won,
	}, nil
}

// Reopen moves a closed opportunity back into a non-terminal stage.
func (o *Opportunity) Reopen(target string, p TransitionParams) (StageChanged, error) {
	catalog, err := CatalogFor(o.Kind)
	if err != nil {
		return StageChanged{}, err
	}
	current, err := catalog.Parse(o.Stage)
	if err != nil {
		return StageChanged{}, err
	}
	next, err := catalog.Parse(target)
	if err != nil {
		return StageChanged{}, err
	}
	if !catalog.CanReopen(current.Name, next.Name) {
		if !current.Terminal {
			return StageChanged{}, apperr.Validation("opportunity is not closed")
		}
		return StageChanged{}, apperr.Validation("an opportunity can only be reopened into an open stage")
	}
	if p.Won != nil {
		return StageChanged{}, apperr.Validation("won can only be set when closing an opportunity")
	}

	o.Stage = next.Name
	o.Closed = false
	o.Won = false
	o.ClosingComments = nil
	if comment := strings.TrimSpace(p.Comment); comment != "" {
		o.StageComment = &comment
	}
	o.applyNextStep(p)
	o.touch(p)

	return StageChanged{
		OpportunityID: o.ID,
		Kind:          o.Kind,
		OwnerID:       o.OwnerID,
		OldStage:      current.Name,
		NewStage:      next.Name,
		Changed:       true,
		Reopened:      true,
	}, nil
}

// CheckInvariants verifies Closed mirrors the stage and Won implies Closed.
func (o Opportunity) CheckInvariants() error {
	stage, err := o.CurrentStage()
	if err != nil {
		return err
	}
	if o.Closed != stage.Terminal {
		return fmt.Errorf("opportunity %s: closed=%t but stage %q terminal=%t", o.ID, o.Closed, o.Stage, stage.Terminal)
	}
	if o.Won && !o.Closed {
		return fmt.Errorf("opportunity %s: won without being closed", o.ID)
	}
	return nil
}

func (o *Opportunity) applyNextStep(p TransitionParams) {
	if p.NextStep != nil {
		step := strings.TrimSpace(*p.NextStep)
		o.NextStep = &step
	}
	if p.NextStepDueDate != nil {
		due := dateOnly(*p.NextStepDueDate)
		o.NextStepDueDate = &due
	}
}

func (o *Opportunity) touch(p TransitionParams) {
	o.UpdatedBy = actorRef(p.ActorID)
	o.UpdatedAt = p.Now.UTC()
}

func actorRef(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
