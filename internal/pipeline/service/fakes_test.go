package service

import (
	"context"
	"errors"
	"maps"
	"sort"
	"sync"
	"time"

	"talent_pipeline_backend/internal/events"
	"talent_pipeline_backend/internal/pipeline/domain"
	"talent_pipeline_backend/internal/pipeline/ports"
	"talent_pipeline_backend/internal/pipeline/repository"
	"talent_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
)

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// testStore is an in-memory repository.Store. WithinTx snapshots state and
// restores it when fn fails.
type testStore struct {
	mu            sync.Mutex
	opportunities map[uuid.UUID]domain.Opportunity
	tasks         map[uuid.UUID]domain.Task
	assignments   map[uuid.UUID]domain.TaskAssignment

	failAssignmentUpdates bool
	syncResults           []repository.SyncResult
}

func newTestStore() *testStore {
	return &testStore{
		opportunities: make(map[uuid.UUID]domain.Opportunity),
		tasks:         make(map[uuid.UUID]domain.Task),
		assignments:   make(map[uuid.UUID]domain.TaskAssignment),
	}
}

var _ repository.Store = (*testStore)(nil)

func (s *testStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repo repository.Repository) error) error {
	s.mu.Lock()
	opps := maps.Clone(s.opportunities)
	tasks := maps.Clone(s.tasks)
	assignments := maps.Clone(s.assignments)
	s.mu.Unlock()

	if err := fn(ctx, s); err != nil {
		s.mu.Lock()
		s.opportunities, s.tasks, s.assignments = opps, tasks, assignments
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *testStore) GetOpportunity(_ context.Context, id uuid.UUID) (domain.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.opportunities[id]
	if !ok {
		return domain.Opportunity{}, apperr.NotFound("opportunity not found")
	}
	return o, nil
}

func (s *testStore) GetOpportunityForUpdate(ctx context.Context, id uuid.UUID) (domain.Opportunity, error) {
	return s.GetOpportunity(ctx, id)
}

// openPairTaken mirrors the partial unique index on open candidate
// opportunities per (candidate, job).
func (s *testStore) openPairTaken(o domain.Opportunity) bool {
	if o.Kind != domain.KindCandidate || o.Closed || o.JobID == nil {
		return false
	}
	for _, other := range s.opportunities {
		if other.ID != o.ID && other.Kind == domain.KindCandidate && !other.Closed &&
			other.OwnerID == o.OwnerID && other.JobID != nil && *other.JobID == *o.JobID {
			return true
		}
	}
	return false
}

func (s *testStore) CreateOpportunity(_ context.Context, o domain.Opportunity) (domain.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openPairTaken(o) {
		return domain.Opportunity{}, apperr.Conflict("an open opportunity already exists for this candidate and job")
	}
	o.Version = 0
	s.opportunities[o.ID] = o
	return o, nil
}

func (s *testStore) UpdateOpportunity(_ context.Context, o domain.Opportunity) (domain.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.opportunities[o.ID]
	if !ok || current.Version != o.Version {
		return domain.Opportunity{}, apperr.Conflict("opportunity was modified by another request")
	}
	if s.openPairTaken(o) {
		return domain.Opportunity{}, apperr.Conflict("an open opportunity already exists for this candidate and job")
	}
	o.Version++
	o.ExternalID, o.LastSyncedAt, o.LastSyncError = current.ExternalID, current.LastSyncedAt, current.LastSyncError
	s.opportunities[o.ID] = o
	return o, nil
}

func (s *testStore) RecordSyncResult(_ context.Context, id uuid.UUID, result repository.SyncResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.opportunities[id]
	if !ok {
		return apperr.NotFound("opportunity not found")
	}
	if result.ExternalID != nil {
		o.ExternalID = result.ExternalID
	}
	if result.SyncedAt != nil {
		o.LastSyncedAt = result.SyncedAt
	}
	o.LastSyncError = result.Error
	s.opportunities[id] = o
	s.syncResults = append(s.syncResults, result)
	return nil
}

func (s *testStore) ListLinkedOpportunities(_ context.Context, afterID uuid.UUID, limit int) ([]domain.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Opportunity
	for _, o := range s.opportunities {
		if o.ExternalID != nil && o.ID.String() > afterID.String() {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *testStore) GetTask(_ context.Context, id uuid.UUID) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, apperr.NotFound("task not found")
	}
	return t, nil
}

func (s *testStore) ListTasks(_ context.Context) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *testStore) UpsertTaskByName(_ context.Context, t domain.Task) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.tasks {
		if existing.Name == t.Name {
			t.ID = id
			break
		}
	}
	s.tasks[t.ID] = t
	return t, nil
}

func (s *testStore) GetAssignment(_ context.Context, id uuid.UUID) (domain.TaskAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return domain.TaskAssignment{}, apperr.NotFound("task assignment not found")
	}
	return a, nil
}

func (s *testStore) GetAssignmentForUpdate(ctx context.Context, id uuid.UUID) (domain.TaskAssignment, error) {
	return s.GetAssignment(ctx, id)
}

func (s *testStore) CreateAssignment(_ context.Context, a domain.TaskAssignment) (domain.TaskAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Version = 0
	s.assignments[a.ID] = a
	return a, nil
}

func (s *testStore) UpdateAssignment(_ context.Context, a domain.TaskAssignment) (domain.TaskAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAssignmentUpdates {
		return domain.TaskAssignment{}, errors.New("connection reset")
	}
	current, ok := s.assignments[a.ID]
	if !ok || current.Version != a.Version {
		return domain.TaskAssignment{}, apperr.Conflict("task assignment was modified by another request")
	}
	a.Version++
	s.assignments[a.ID] = a
	return a, nil
}

func (s *testStore) DeleteAssignment(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[id]; !ok {
		return apperr.NotFound("task assignment not found")
	}
	delete(s.assignments, id)
	return nil
}

func (s *testStore) ListAssignmentsForCandidate(_ context.Context, candidateID uuid.UUID) ([]domain.TaskAssignment, error) {
	return s.candidateAssignments(candidateID, false), nil
}

func (s *testStore) ListAssignmentsForTaskAndList(_ context.Context, listID uuid.UUID, taskID *uuid.UUID) ([]domain.TaskAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TaskAssignment, 0)
	for _, a := range s.assignments {
		if a.RelatedListID == nil || *a.RelatedListID != listID {
			continue
		}
		if taskID != nil && a.TaskID != *taskID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *testStore) ListActiveAssignmentsForUpdate(_ context.Context, candidateID uuid.UUID) ([]domain.TaskAssignment, error) {
	return s.candidateAssignments(candidateID, true), nil
}

func (s *testStore) candidateAssignments(candidateID uuid.UUID, activeOnly bool) []domain.TaskAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TaskAssignment, 0)
	for _, a := range s.assignments {
		if a.CandidateID != candidateID {
			continue
		}
		if activeOnly && a.Status() != domain.AssignmentActive {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func (s *testStore) seedTask(name string, optional bool, days *int) domain.Task {
	t := domain.Task{ID: uuid.New(), Name: name, DisplayName: name, Optional: optional, DaysToComplete: days, TaskType: domain.TaskTypeSimple}
	s.tasks[t.ID] = t
	return t
}

func (s *testStore) seedOpportunity(kind domain.Kind, ownerID uuid.UUID, stage string) domain.Opportunity {
	catalog, _ := domain.CatalogFor(kind)
	st, _ := catalog.Parse(stage)
	o := domain.Opportunity{
		ID:        uuid.New(),
		Kind:      kind,
		OwnerID:   ownerID,
		Name:      "CAN-1001 (Nurse)",
		Stage:     stage,
		Closed:    st.Terminal,
		CreatedAt: fixedNow,
		UpdatedAt: fixedNow,
	}
	s.opportunities[o.ID] = o
	return o
}

func (s *testStore) seedAssignment(task domain.Task, candidateID uuid.UUID) domain.TaskAssignment {
	a := domain.TaskAssignment{ID: uuid.New(), TaskID: task.ID, Task: task, CandidateID: candidateID, ActivatedAt: fixedNow}
	s.assignments[a.ID] = a
	return a
}

type testDirectory struct {
	candidates map[uuid.UUID]ports.Candidate
	users      map[uuid.UUID]ports.User
}

func newTestDirectory() *testDirectory {
	return &testDirectory{candidates: make(map[uuid.UUID]ports.Candidate), users: make(map[uuid.UUID]ports.User)}
}

func (d *testDirectory) addCandidate(number string) ports.Candidate {
	c := ports.Candidate{ID: uuid.New(), CandidateNumber: number, Name: "Candidate " + number, Status: "active"}
	d.candidates[c.ID] = c
	return c
}

func (d *testDirectory) addUser() uuid.UUID {
	u := ports.User{ID: uuid.New(), Email: "officer@example.org", Name: "Case Officer"}
	d.users[u.ID] = u
	return u.ID
}

func (d *testDirectory) GetCandidate(_ context.Context, id uuid.UUID) (ports.Candidate, error) {
	c, ok := d.candidates[id]
	if !ok {
		return ports.Candidate{}, apperr.NotFound("candidate not found")
	}
	return c, nil
}

func (d *testDirectory) GetUser(_ context.Context, id uuid.UUID) (ports.User, error) {
	u, ok := d.users[id]
	if !ok {
		return ports.User{}, apperr.NotFound("user not found")
	}
	return u, nil
}

type testLists struct {
	members map[uuid.UUID][]ports.Candidate
}

func (l *testLists) CheckListExists(_ context.Context, listID uuid.UUID) error {
	if _, ok := l.members[listID]; !ok {
		return apperr.NotFound("saved list not found")
	}
	return nil
}

func (l *testLists) GetCandidatesInList(_ context.Context, listID uuid.UUID) ([]ports.Candidate, error) {
	members, ok := l.members[listID]
	if !ok {
		return nil, apperr.NotFound("saved list not found")
	}
	return append([]ports.Candidate(nil), members...), nil
}

type testCRM struct {
	mu     sync.Mutex
	err    error
	pushes []domain.Opportunity
	remote map[string]ports.RemoteOpportunity
	// fetchErr fails FetchByID for the listed external IDs.
	fetchErr map[string]error
}

func (c *testCRM) Push(ctx context.Context, opp domain.Opportunity) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		return "", errors.New("push called without a deadline")
	}
	c.pushes = append(c.pushes, opp)
	if c.err != nil {
		return "", c.err
	}
	if opp.ExternalID != nil {
		return *opp.ExternalID, nil
	}
	return "006" + opp.ID.String()[:12], nil
}

func (c *testCRM) FetchByID(_ context.Context, externalID string) (ports.RemoteOpportunity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fetchErr[externalID]; err != nil {
		return ports.RemoteOpportunity{}, err
	}
	r, ok := c.remote[externalID]
	if !ok {
		return ports.RemoteOpportunity{}, apperr.NotFound("remote opportunity not found")
	}
	return r, nil
}

type statusCall struct {
	candidateID uuid.UUID
	status      string
}

type testStatusUpdater struct {
	calls []statusCall
}

func (u *testStatusUpdater) UpdateCandidateStatus(_ context.Context, candidateID uuid.UUID, status, _ string) error {
	u.calls = append(u.calls, statusCall{candidateID: candidateID, status: status})
	return nil
}

// testBus records published events synchronously.
type testBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *testBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *testBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *testBus) Subscribe(string, events.Handler) {}

func (b *testBus) named(name string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, e := range b.published {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store     *testStore
	directory *testDirectory
	lists     *testLists
	crm       *testCRM
	status    *testStatusUpdater
	bus       *testBus
	orch      *Orchestrator
	actor     uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		store:     newTestStore(),
		directory: newTestDirectory(),
		lists:     &testLists{members: make(map[uuid.UUID][]ports.Candidate)},
		crm:       &testCRM{remote: make(map[string]ports.RemoteOpportunity)},
		status:    &testStatusUpdater{},
		bus:       &testBus{},
	}
	f.actor = f.directory.addUser()
	f.orch = NewOrchestrator(Dependencies{
		Store:         f.store,
		Directory:     f.directory,
		Lists:         f.lists,
		CRM:           f.crm,
		StatusUpdater: f.status,
		Bus:           f.bus,
		SyncTimeout:   time.Second,
		Now:           clock,
	})
	return f
}

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }
