package domain

import (
	"fmt"
	"strings"

	"talent_pipeline_backend/platform/apperr"
)

// Kind selects which stage catalog an opportunity moves through.
type Kind string

const (
	KindCandidate Kind = "candidate"
	KindJob       Kind = "job"
)

// Valid reports whether k is a known opportunity kind.
func (k Kind) Valid() bool {
	return k == KindCandidate || k == KindJob
}

// Candidate status values implied by reaching certain candidate stages.
const (
	CandidateStatusEmployed   = "employed"
	CandidateStatusIneligible = "ineligible"
	CandidateStatusWithdrawn  = "withdrawn"
)

// Stage is one entry of a stage catalog.
type Stage struct {
	Name     string
	Label    string
	Rank     int
	Terminal bool
	// Won marks the closed/won stage. Whether a specific close counts as won
	// is still decided by the caller at transition time.
	Won bool
	// Employed marks candidate stages that imply the candidate has a job.
	Employed bool
	// ImpliedStatus is the candidate status reaching this stage implies, if any.
	ImpliedStatus string
}

// Catalog is an ordered, immutable set of stages for one opportunity kind.
type Catalog struct {
	kind    Kind
	stages  []Stage
	byName  map[string]int
	byLabel map[string]int
}

func newCatalog(kind Kind, stages []Stage) *Catalog {
	c := &Catalog{
		kind:    kind,
		stages:  make([]Stage, len(stages)),
		byName:  make(map[string]int, len(stages)),
		byLabel: make(map[string]int, len(stages)),
	}
	for i, s := range stages {
		s.Rank = i
		if s.Employed && s.ImpliedStatus == "" {
			s.ImpliedStatus = CandidateStatusEmployed
		}
		c.stages[i] = s
		c.byName[s.Name] = i
		c.byLabel[strings.ToLower(s.Label)] = i
	}
	return c
}

// CatalogFor returns the stage catalog for kind.
func CatalogFor(kind Kind) (*Catalog, error) {
	switch kind {
	case KindCandidate:
		return candidateStages, nil
	case KindJob:
		return jobStages, nil
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown opportunity kind %q", kind))
	}
}

// Kind returns the opportunity kind this catalog belongs to.
func (c *Catalog) Kind() Kind { return c.kind }

// Stages returns a copy of the catalog in rank order.
func (c *Catalog) Stages() []Stage {
	out := make([]Stage, len(c.stages))
	copy(out, c.stages)
	return out
}

// Initial returns the stage new opportunities start in.
func (c *Catalog) Initial() Stage { return c.stages[0] }

// Parse resolves a symbolic stage name.
func (c *Catalog) Parse(name string) (Stage, error) {
	i, ok := c.byName[name]
	if !ok {
		return Stage{}, apperr.Validation(fmt.Sprintf("unknown %s stage %q", c.kind, name))
	}
	return c.stages[i], nil
}

// Lookup resolves either a symbolic name or a display label (case-insensitive).
// CRM payloads carry labels; the API carries names.
func (c *Catalog) Lookup(nameOrLabel string) (Stage, bool) {
	if i, ok := c.byName[nameOrLabel]; ok {
		return c.stages[i], true
	}
	if i, ok := c.byLabel[strings.ToLower(strings.TrimSpace(nameOrLabel))]; ok {
		return c.stages[i], true
	}
	return Stage{}, false
}

// Rank returns the position of name in the catalog.
func (c *Catalog) Rank(name string) (int, error) {
	s, err := c.Parse(name)
	if err != nil {
		return 0, err
	}
	return s.Rank, nil
}

// IsTerminal reports whether name is a known terminal stage.
func (c *Catalog) IsTerminal(name string) bool {
	i, ok := c.byName[name]
	return ok && c.stages[i].Terminal
}

// IsValidTransition reports whether a generic stage change from -> to is allowed.
// Any stage may move to any other stage of the same catalog, except out of a
// terminal stage, which needs an explicit reopen.
func (c *Catalog) IsValidTransition(from, to string) bool {
	f, ok := c.byName[from]
	if !ok {
		return false
	}
	if _, ok := c.byName[to]; !ok {
		return false
	}
	return !c.stages[f].Terminal
}

// CanReopen reports whether a terminal stage may be reopened into to.
func (c *Catalog) CanReopen(from, to string) bool {
	f, ok := c.byName[from]
	if !ok {
		return false
	}
	t, ok := c.byName[to]
	if !ok {
		return false
	}
	return c.stages[f].Terminal && !c.stages[t].Terminal
}
