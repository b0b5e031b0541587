package domain

import (
	"testing"

	"talent_pipeline_backend/platform/apperr"
)

func TestCatalogsRankHappyPathBeforeLostTerminals(t *testing.T) {
	for _, kind := range []Kind{KindCandidate, KindJob} {
		catalog, err := CatalogFor(kind)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}

		stages := catalog.Stages()
		wonSeen := false
		for i, s := range stages {
			if s.Rank != i {
				t.Fatalf("%s: stage %q has rank %d at position %d", kind, s.Name, s.Rank, i)
			}
			if wonSeen && !s.Terminal {
				t.Fatalf("%s: open stage %q ranked after the won stage", kind, s.Name)
			}
			if s.Won {
				if !s.Terminal {
					t.Fatalf("%s: won stage %q must be terminal", kind, s.Name)
				}
				wonSeen = true
			}
		}
		if !wonSeen {
			t.Fatalf("%s: catalog has no won stage", kind)
		}
		if catalog.Initial().Name != "prospect" {
			t.Fatalf("%s: expected initial stage prospect, got %q", kind, catalog.Initial().Name)
		}
	}
}

func TestCatalogRankAndTerminal(t *testing.T) {
	catalog, _ := CatalogFor(KindCandidate)

	cvReview, err := catalog.Rank("cvReview")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	offer, _ := catalog.Rank("offer")
	if cvReview >= offer {
		t.Fatalf("expected cvReview (%d) before offer (%d)", cvReview, offer)
	}
	if !catalog.IsTerminal("relocated") || catalog.IsTerminal("jobOffer") {
		t.Fatal("unexpected terminal classification")
	}
	if _, err := catalog.Rank("hiringCompleted"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for job stage in candidate catalog, got %v", err)
	}
}

func TestIsValidTransition(t *testing.T) {
	catalog, _ := CatalogFor(KindCandidate)

	tests := []struct {
		from, to string
		want     bool
	}{
		{"cvReview", "offer", true},
		{"offer", "cvReview", true},
		{"prospect", "relocated", true},
		{"cvReview", "cvReview", true},
		{"noVisa", "cvReview", false},
		{"relocated", "relocating", false},
		{"cvReview", "hiringCompleted", false},
		{"bogus", "offer", false},
	}
	for _, tt := range tests {
		if got := catalog.IsValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %t, got %t", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestLookupAcceptsLabels(t *testing.T) {
	catalog, _ := CatalogFor(KindJob)

	s, ok := catalog.Lookup("cv review")
	if !ok || s.Name != "cvReview" {
		t.Fatalf("expected label lookup to resolve cvReview, got %+v ok=%t", s, ok)
	}
	if _, ok := catalog.Lookup("Closed - somewhere else"); ok {
		t.Fatal("expected unknown label to miss")
	}
}

func TestImpliedCandidateStatuses(t *testing.T) {
	catalog, _ := CatalogFor(KindCandidate)

	tests := map[string]string{
		"acceptance":                 CandidateStatusEmployed,
		"relocated":                  CandidateStatusEmployed,
		"notEligibleForTC":           CandidateStatusIneligible,
		"relocatedNoJobOfferPathway": CandidateStatusWithdrawn,
		"cvReview":                   "",
		"noVisa":                     "",
	}
	for name, want := range tests {
		s, err := catalog.Parse(name)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		if s.ImpliedStatus != want {
			t.Errorf("%s: expected implied status %q, got %q", name, want, s.ImpliedStatus)
		}
	}
}

func TestCatalogForRejectsUnknownKind(t *testing.T) {
	if _, err := CatalogFor(Kind("employer")); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
