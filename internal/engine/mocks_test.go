package engine

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/opskit/flowline/internal/domain"
	"github.com/opskit/flowline/internal/models"
)

// fakeClock implements core.Clock with a settable instant.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Now().Add(d)
	return ch
}
func (c *fakeClock) Sleep(d time.Duration) {}
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type MockWorkflowStore struct {
	SaveFunc                func(wf *domain.Workflow) (int64, error)
	UpdateFunc              func(wf *domain.Workflow) error
	UpdateStatusFunc        func(id int64, status string) error
	FindByIDFunc            func(id int64) (*domain.Workflow, error)
	FindActiveByTriggerFunc func(tenantID string, triggerType string) (*[]domain.Workflow, error)
	FindByTenantFunc        func(tenantID string) (*[]domain.Workflow, error)
}

func (m *MockWorkflowStore) Save(wf *domain.Workflow) (int64, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(wf)
	}
	return 1, nil
}
func (m *MockWorkflowStore) Update(wf *domain.Workflow) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(wf)
	}
	return nil
}
func (m *MockWorkflowStore) UpdateStatus(id int64, status string) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(id, status)
	}
	return nil
}
func (m *MockWorkflowStore) FindByID(id int64) (*domain.Workflow, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(id)
	}
	return nil, nil
}
func (m *MockWorkflowStore) FindActiveByTrigger(tenantID string, triggerType string) (*[]domain.Workflow, error) {
	if m.FindActiveByTriggerFunc != nil {
		return m.FindActiveByTriggerFunc(tenantID, triggerType)
	}
	return &[]domain.Workflow{}, nil
}
func (m *MockWorkflowStore) FindByTenant(tenantID string) (*[]domain.Workflow, error) {
	if m.FindByTenantFunc != nil {
		return m.FindByTenantFunc(tenantID)
	}
	return &[]domain.Workflow{}, nil
}

// memStepStore is a stateful in-memory StepStore.
type memStepStore struct {
	mu     sync.Mutex
	nextID int64
	steps  map[int64]domain.Step
}

func newMemStepStore() *memStepStore { return &memStepStore{steps: map[int64]domain.Step{}} }

func (m *memStepStore) Save(s *domain.Step) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	m.steps[s.ID] = *s
	return s.ID, nil
}
func (m *memStepStore) FindByID(id int64) (*domain.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.steps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}
func (m *memStepStore) FindByWorkflowID(workflowID int64) (*[]domain.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Step
	for _, s := range m.steps {
		if s.WorkflowID == workflowID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepOrder < out[j].StepOrder })
	return &out, nil
}

// memRunStore is a stateful in-memory RunStore enforcing the event key
// uniqueness the real table carries.
type memRunStore struct {
	mu     sync.Mutex
	nextID int64
	runs   map[int64]domain.Run
	now    func() time.Time
}

func newMemRunStore(now func() time.Time) *memRunStore {
	return &memRunStore{runs: map[int64]domain.Run{}, now: now}
}

func (m *memRunStore) Save(run *domain.Run) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.EventKey.Valid {
		for _, r := range m.runs {
			if r.WorkflowID == run.WorkflowID && r.EventKey.Valid && r.EventKey.String == run.EventKey.String {
				return 0, ErrDuplicateEventKeyForTest
			}
		}
	}
	m.nextID++
	run.ID = m.nextID
	m.runs[run.ID] = *run
	return run.ID, nil
}
func (m *memRunStore) FindByID(id int64) (*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}
func (m *memRunStore) FindByEventKey(workflowID int64, eventKey string) (*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.WorkflowID == workflowID && r.EventKey.Valid && r.EventKey.String == eventKey {
			run := r
			return &run, nil
		}
	}
	return nil, sql.ErrNoRows
}
func (m *memRunStore) UpdateStatus(id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[id]
	r.Status = status
	m.runs[id] = r
	return nil
}
func (m *memRunStore) MarkTerminal(id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[id]
	r.Status = status
	r.Completed = sql.NullTime{Time: m.now(), Valid: true}
	r.WakeAt = sql.NullTime{}
	m.runs[id] = r
	return nil
}
func (m *memRunStore) SetWakeAt(id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[id]
	r.WakeAt = sql.NullTime{Time: at, Valid: true}
	m.runs[id] = r
	return nil
}
func (m *memRunStore) ClearWakeAt(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[id]
	r.WakeAt = sql.NullTime{}
	m.runs[id] = r
	return nil
}
func (m *memRunStore) FindDueDelayed(limit int) (*[]domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Run
	for _, r := range m.runs {
		if r.Status == domain.RunStatusRunning && r.WakeAt.Valid && !r.WakeAt.Time.After(m.now()) {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return &out, nil
}
func (m *memRunStore) SearchRuns(req models.SearchRunsRequest) (*[]domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Run
	for _, r := range m.runs {
		if r.TenantID != req.TenantID {
			continue
		}
		if req.Status != "" && r.Status != req.Status {
			continue
		}
		if req.WorkflowID != 0 && r.WorkflowID != req.WorkflowID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return &out, nil
}

// ErrDuplicateEventKeyForTest stands in for the repository's unique violation
// sentinel so the coordinator's duplicate handling can be exercised without a
// database.
var ErrDuplicateEventKeyForTest = errors.New("duplicate event key")

type memStepExecutionStore struct {
	mu     sync.Mutex
	nextID int64
	execs  map[int64]domain.StepExecution
	now    func() time.Time
}

func newMemStepExecutionStore(now func() time.Time) *memStepExecutionStore {
	return &memStepExecutionStore{execs: map[int64]domain.StepExecution{}, now: now}
}

func (m *memStepExecutionStore) Save(se *domain.StepExecution) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	se.ID = m.nextID
	m.execs[se.ID] = *se
	return se.ID, nil
}
func (m *memStepExecutionStore) FindByID(id int64) (*domain.StepExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	se, ok := m.execs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &se, nil
}
func (m *memStepExecutionStore) FindOpenByRunID(runID int64) (*domain.StepExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var open *domain.StepExecution
	for _, se := range m.execs {
		if se.RunID != runID {
			continue
		}
		if se.Status != domain.StepExecutionStatusPending && se.Status != domain.StepExecutionStatusRunning {
			continue
		}
		cp := se
		if open == nil || cp.StepOrder > open.StepOrder {
			open = &cp
		}
	}
	if open == nil {
		return nil, sql.ErrNoRows
	}
	return open, nil
}
func (m *memStepExecutionStore) FindAllByRunID(runID int64) (*[]domain.StepExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.StepExecution
	for _, se := range m.execs {
		if se.RunID == runID {
			out = append(out, se)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepOrder < out[j].StepOrder })
	return &out, nil
}
func (m *memStepExecutionStore) Complete(id int64, status string, output string, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	se := m.execs[id]
	se.Status = status
	se.Completed = sql.NullTime{Time: m.now(), Valid: true}
	se.Output = sql.NullString{String: output, Valid: output != ""}
	se.Error = sql.NullString{String: errText, Valid: errText != ""}
	m.execs[id] = se
	return nil
}

type memApprovalStore struct {
	mu        sync.Mutex
	nextID    int64
	approvals map[int64]domain.Approval
	now       func() time.Time
}

func newMemApprovalStore(now func() time.Time) *memApprovalStore {
	return &memApprovalStore{approvals: map[int64]domain.Approval{}, now: now}
}

func (m *memApprovalStore) Save(a *domain.Approval) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	m.approvals[a.ID] = *a
	return a.ID, nil
}
func (m *memApprovalStore) FindByID(id int64) (*domain.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.approvals[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}
func (m *memApprovalStore) FindOpenByStepExecutionID(stepExecutionID int64) (*domain.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.approvals {
		if a.StepExecutionID == stepExecutionID && !a.Decided.Valid {
			cp := a
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}
func (m *memApprovalStore) RecordDecision(id int64, decision string, decidedBy string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.approvals[id]
	if !ok || a.Decided.Valid {
		return false, nil
	}
	a.Decided = sql.NullTime{Time: m.now(), Valid: true}
	a.DecidedBy = sql.NullString{String: decidedBy, Valid: true}
	a.Decision = sql.NullString{String: decision, Valid: true}
	m.approvals[id] = a
	return true, nil
}
func (m *memApprovalStore) FindTimedOut(limit int) (*[]domain.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Approval
	for _, a := range m.approvals {
		if !a.Decided.Valid && a.TimeoutAt.Valid && !a.TimeoutAt.Time.After(m.now()) {
			out = append(out, a)
			if len(out) == limit {
				break
			}
		}
	}
	return &out, nil
}
func (m *memApprovalStore) FindPendingByTenant(tenantID string) (*[]domain.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Approval
	for _, a := range m.approvals {
		if !a.Decided.Valid {
			out = append(out, a)
		}
	}
	return &out, nil
}

type MockMessenger struct {
	SendFunc func(ctx context.Context, channel string, recipient string, subject string, body string) error
	Sent     []SentMessage
	mu       sync.Mutex
}

type SentMessage struct {
	Channel   string
	Recipient string
	Subject   string
	Body      string
}

func (m *MockMessenger) Send(ctx context.Context, channel string, recipient string, subject string, body string) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, channel, recipient, subject, body); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMessage{Channel: channel, Recipient: recipient, Subject: subject, Body: body})
	return nil
}

type MockTimer struct {
	ScheduleResumeFunc func(ctx context.Context, runID int64, at time.Time) error
	Scheduled          []time.Time
	mu                 sync.Mutex
}

func (m *MockTimer) ScheduleResume(ctx context.Context, runID int64, at time.Time) error {
	if m.ScheduleResumeFunc != nil {
		return m.ScheduleResumeFunc(ctx, runID, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Scheduled = append(m.Scheduled, at)
	return nil
}

type MockNotifier struct {
	NotifyFunc func(ctx context.Context, approval *domain.Approval, run *domain.Run) error
	Notified   int
	mu         sync.Mutex
}

func (m *MockNotifier) NotifyApprovalRequested(ctx context.Context, approval *domain.Approval, run *domain.Run) error {
	if m.NotifyFunc != nil {
		return m.NotifyFunc(ctx, approval, run)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notified++
	return nil
}

// engineFixture wires a full in-memory engine for state machine tests.
type engineFixture struct {
	clock       *fakeClock
	steps       *memStepStore
	runs        *memRunStore
	execs       *memStepExecutionStore
	approvals   *memApprovalStore
	messenger   *MockMessenger
	timer       *MockTimer
	notifier    *MockNotifier
	coordinator *Coordinator
	gate        *ApprovalGate
}

func newEngineFixture() *engineFixture {
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	f := &engineFixture{
		clock:     clock,
		steps:     newMemStepStore(),
		runs:      newMemRunStore(clock.Now),
		execs:     newMemStepExecutionStore(clock.Now),
		approvals: newMemApprovalStore(clock.Now),
		messenger: &MockMessenger{},
		timer:     &MockTimer{},
		notifier:  &MockNotifier{},
	}
	executor := NewStepExecutor(f.messenger, f.approvals, f.notifier, clock, 3)
	f.coordinator = NewCoordinator(f.steps, f.runs, f.execs, f.approvals, executor, f.timer, clock)
	f.gate = NewApprovalGate(f.approvals, f.runs, f.execs, f.coordinator)
	return f
}

func (f *engineFixture) addStep(workflowID int64, order int, stepType string, config string) {
	f.steps.Save(&domain.Step{WorkflowID: workflowID, StepOrder: order, StepType: stepType, Config: config})
}
