package service

import (
	"context"

	"talent_pipeline_backend/internal/pipeline/domain"
	"talent_pipeline_backend/internal/pipeline/ports"
	"talent_pipeline_backend/internal/pipeline/repository"
	"talent_pipeline_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	reconcilePageSize    = 200
	reconcileConcurrency = 10
)

// Drift is a linked opportunity whose CRM state differs from the local state.
type Drift struct {
	OpportunityID uuid.UUID
	ExternalID    string
	LocalStage    string
	RemoteStage   string
	LocalClosed   bool
	RemoteClosed  bool
	LocalWon      bool
	RemoteWon     bool
}

// ReconcileReport summarizes one reconciliation run.
type ReconcileReport struct {
	Checked     int
	Failed      int
	Undecodable int
	Drifted     []Drift
}

// Reconciler compares linked opportunities with their CRM records. Local
// state is authoritative; differences are reported, not applied.
type Reconciler struct {
	repo repository.OpportunityStore
	crm  ports.CRMSync
	log  *logger.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(repo repository.OpportunityStore, crm ports.CRMSync, log *logger.Logger) *Reconciler {
	return &Reconciler{repo: repo, crm: crm, log: log}
}

type reconcileOutcome struct {
	failed      bool
	undecodable bool
	drift       *Drift
}

// Run walks every linked opportunity, fetching remote records ten at a time.
func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	after := uuid.Nil

	for {
		page, err := r.repo.ListLinkedOpportunities(ctx, after, reconcilePageSize)
		if err != nil {
			return report, err
		}
		if len(page) == 0 {
			break
		}

		outcomes := make([]reconcileOutcome, len(page))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(reconcileConcurrency)
		for i, opp := range page {
			g.Go(func() error {
				outcomes[i] = r.reconcileOne(gctx, opp)
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return report, err
		}

		for _, out := range outcomes {
			report.Checked++
			switch {
			case out.failed:
				report.Failed++
			case out.undecodable:
				report.Undecodable++
			case out.drift != nil:
				report.Drifted = append(report.Drifted, *out.drift)
			}
		}

		after = page[len(page)-1].ID
		if len(page) < reconcilePageSize {
			break
		}
	}

	r.log.Info("crm reconciliation finished",
		"checked", report.Checked,
		"drifted", len(report.Drifted),
		"failed", report.Failed,
		"undecodable", report.Undecodable,
	)
	return report, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, opp domain.Opportunity) reconcileOutcome {
	if opp.ExternalID == nil {
		return reconcileOutcome{}
	}
	remote, err := r.crm.FetchByID(ctx, *opp.ExternalID)
	if err != nil {
		r.log.Warn("crm fetch failed", "opportunity_id", opp.ID, "external_id", *opp.ExternalID, "error", err)
		return reconcileOutcome{failed: true}
	}
	return compareRemote(opp, remote, r.log)
}

func compareRemote(opp domain.Opportunity, remote ports.RemoteOpportunity, log *logger.Logger) reconcileOutcome {
	catalog, err := domain.CatalogFor(opp.Kind)
	if err != nil {
		return reconcileOutcome{failed: true}
	}
	stage, ok := catalog.Lookup(remote.StageName)
	if !ok {
		log.Warn("ignoring unknown crm stage", "opportunity_id", opp.ID, "stage", remote.StageName)
		return reconcileOutcome{undecodable: true}
	}

	if stage.Name == opp.Stage && remote.Closed == opp.Closed && remote.Won == opp.Won {
		return reconcileOutcome{}
	}

	log.Warn("crm opportunity drifted",
		"opportunity_id", opp.ID,
		"local_stage", opp.Stage,
		"remote_stage", stage.Name,
	)
	return reconcileOutcome{drift: &Drift{
		OpportunityID: opp.ID,
		ExternalID:    remote.ExternalID,
		LocalStage:    opp.Stage,
		RemoteStage:   stage.Name,
		LocalClosed:   opp.Closed,
		RemoteClosed:  remote.Closed,
		LocalWon:      opp.Won,
		RemoteWon:     remote.Won,
	}}
}
