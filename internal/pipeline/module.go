// Package pipeline provides the opportunity pipeline bounded context module:
// candidate and job opportunities, their stage catalogs, the task assignment
// ledger and the CRM sync boundary.
package pipeline

import (
	"talent_pipeline_backend/internal/directory"
	"talent_pipeline_backend/internal/events"
	apphttp "talent_pipeline_backend/internal/http"
	"talent_pipeline_backend/internal/pipeline/handler"
	"talent_pipeline_backend/internal/pipeline/ports"
	"talent_pipeline_backend/internal/pipeline/repository"
	"talent_pipeline_backend/internal/pipeline/service"
	"talent_pipeline_backend/platform/config"
	"talent_pipeline_backend/platform/logger"
	"talent_pipeline_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the pipeline bounded context module implementing http.Module.
type Module struct {
	handler      *handler.Handler
	orchestrator *service.Orchestrator
	catalog      *service.TaskCatalog
	reconciler   *service.Reconciler
}

// NewModule wires the pipeline. crmSync may be nil, in which case commands
// commit locally and nothing is pushed.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, cfg config.PipelineConfig, crmSync ports.CRMSync, log *logger.Logger) *Module {
	repo := repository.New(pool)
	dir := directory.New(pool)

	orchestrator := service.NewOrchestrator(service.Dependencies{
		Store:         repo,
		Directory:     dir,
		Lists:         dir,
		CRM:           crmSync,
		StatusUpdater: dir,
		Bus:           eventBus,
		SyncTimeout:   cfg.GetSyncTimeout(),
		Log:           log,
	})

	m := &Module{
		handler:      handler.New(orchestrator, val),
		orchestrator: orchestrator,
		catalog:      service.NewTaskCatalog(repo, log),
	}
	if crmSync != nil {
		m.reconciler = service.NewReconciler(repo, crmSync, log)
	}
	return m
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "pipeline"
}

// Orchestrator returns the command service for the scheduler worker.
func (m *Module) Orchestrator() *service.Orchestrator {
	return m.orchestrator
}

// TaskCatalog returns the task definition catalog.
func (m *Module) TaskCatalog() *service.TaskCatalog {
	return m.catalog
}

// Reconciler returns the CRM reconciler, or nil when no CRM is configured.
func (m *Module) Reconciler() *service.Reconciler {
	return m.reconciler
}

// SetReconcileTrigger enables the admin route that queues a CRM reconciliation run.
func (m *Module) SetReconcileTrigger(t handler.ReconcileTrigger) {
	m.handler.SetReconcileTrigger(t)
}

// RegisterRoutes mounts pipeline routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
