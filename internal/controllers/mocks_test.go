package controllers

import (
	"time"

	"github.com/opskit/flowline/internal/domain"
	"github.com/opskit/flowline/internal/models"
)

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

type MockStepStore struct {
	SaveFunc             func(s *domain.Step) (int64, error)
	FindByIDFunc         func(id int64) (*domain.Step, error)
	FindByWorkflowIDFunc func(workflowID int64) (*[]domain.Step, error)
}

func (m *MockStepStore) Save(s *domain.Step) (int64, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(s)
	}
	return 1, nil
}
func (m *MockStepStore) FindByID(id int64) (*domain.Step, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(id)
	}
	return nil, nil
}
func (m *MockStepStore) FindByWorkflowID(workflowID int64) (*[]domain.Step, error) {
	if m.FindByWorkflowIDFunc != nil {
		return m.FindByWorkflowIDFunc(workflowID)
	}
	return &[]domain.Step{}, nil
}

type MockIntegrityStore struct {
	DeleteWorkflowFunc func(workflowID int64) error
	ReplaceStepsFunc   func(workflowID int64, steps []domain.Step) error
}

func (m *MockIntegrityStore) DeleteWorkflow(workflowID int64) error {
	if m.DeleteWorkflowFunc != nil {
		return m.DeleteWorkflowFunc(workflowID)
	}
	return nil
}
func (m *MockIntegrityStore) ReplaceSteps(workflowID int64, steps []domain.Step) error {
	if m.ReplaceStepsFunc != nil {
		return m.ReplaceStepsFunc(workflowID, steps)
	}
	return nil
}

type MockRunStore struct {
	SaveFunc           func(run *domain.Run) (int64, error)
	FindByIDFunc       func(id int64) (*domain.Run, error)
	FindByEventKeyFunc func(workflowID int64, eventKey string) (*domain.Run, error)
	UpdateStatusFunc   func(id int64, status string) error
	MarkTerminalFunc   func(id int64, status string) error
	SetWakeAtFunc      func(id int64, at time.Time) error
	ClearWakeAtFunc    func(id int64) error
	FindDueDelayedFunc func(limit int) (*[]domain.Run, error)
	SearchRunsFunc     func(req models.SearchRunsRequest) (*[]domain.Run, error)
}

func (m *MockRunStore) Save(run *domain.Run) (int64, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(run)
	}
	return 1, nil
}
func (m *MockRunStore) FindByID(id int64) (*domain.Run, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(id)
	}
	return nil, nil
}
func (m *MockRunStore) FindByEventKey(workflowID int64, eventKey string) (*domain.Run, error) {
	if m.FindByEventKeyFunc != nil {
		return m.FindByEventKeyFunc(workflowID, eventKey)
	}
	return nil, nil
}
func (m *MockRunStore) UpdateStatus(id int64, status string) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(id, status)
	}
	return nil
}
func (m *MockRunStore) MarkTerminal(id int64, status string) error {
	if m.MarkTerminalFunc != nil {
		return m.MarkTerminalFunc(id, status)
	}
	return nil
}
func (m *MockRunStore) SetWakeAt(id int64, at time.Time) error {
	if m.SetWakeAtFunc != nil {
		return m.SetWakeAtFunc(id, at)
	}
	return nil
}
func (m *MockRunStore) ClearWakeAt(id int64) error {
	if m.ClearWakeAtFunc != nil {
		return m.ClearWakeAtFunc(id)
	}
	return nil
}
func (m *MockRunStore) FindDueDelayed(limit int) (*[]domain.Run, error) {
	if m.FindDueDelayedFunc != nil {
		return m.FindDueDelayedFunc(limit)
	}
	return &[]domain.Run{}, nil
}
func (m *MockRunStore) SearchRuns(req models.SearchRunsRequest) (*[]domain.Run, error) {
	if m.SearchRunsFunc != nil {
		return m.SearchRunsFunc(req)
	}
	return &[]domain.Run{}, nil
}

type MockStepExecutionStore struct {
	SaveFunc            func(se *domain.StepExecution) (int64, error)
	FindByIDFunc        func(id int64) (*domain.StepExecution, error)
	FindOpenByRunIDFunc func(runID int64) (*domain.StepExecution, error)
	FindAllByRunIDFunc  func(runID int64) (*[]domain.StepExecution, error)
	CompleteFunc        func(id int64, status string, output string, errText string) error
}

func (m *MockStepExecutionStore) Save(se *domain.StepExecution) (int64, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(se)
	}
	return 1, nil
}
func (m *MockStepExecutionStore) FindByID(id int64) (*domain.StepExecution, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(id)
	}
	return nil, nil
}
func (m *MockStepExecutionStore) FindOpenByRunID(runID int64) (*domain.StepExecution, error) {
	if m.FindOpenByRunIDFunc != nil {
		return m.FindOpenByRunIDFunc(runID)
	}
	return nil, nil
}
func (m *MockStepExecutionStore) FindAllByRunID(runID int64) (*[]domain.StepExecution, error) {
	if m.FindAllByRunIDFunc != nil {
		return m.FindAllByRunIDFunc(runID)
	}
	return &[]domain.StepExecution{}, nil
}
func (m *MockStepExecutionStore) Complete(id int64, status string, output string, errText string) error {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(id, status, output, errText)
	}
	return nil
}

type MockApprovalStore struct {
	SaveFunc                      func(a *domain.Approval) (int64, error)
	FindByIDFunc                  func(id int64) (*domain.Approval, error)
	FindOpenByStepExecutionIDFunc func(stepExecutionID int64) (*domain.Approval, error)
	RecordDecisionFunc            func(id int64, decision string, decidedBy string) (bool, error)
	FindTimedOutFunc              func(limit int) (*[]domain.Approval, error)
	FindPendingByTenantFunc       func(tenantID string) (*[]domain.Approval, error)
}

func (m *MockApprovalStore) Save(a *domain.Approval) (int64, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(a)
	}
	return 1, nil
}
func (m *MockApprovalStore) FindByID(id int64) (*domain.Approval, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(id)
	}
	return nil, nil
}
func (m *MockApprovalStore) FindOpenByStepExecutionID(stepExecutionID int64) (*domain.Approval, error) {
	if m.FindOpenByStepExecutionIDFunc != nil {
		return m.FindOpenByStepExecutionIDFunc(stepExecutionID)
	}
	return nil, nil
}
func (m *MockApprovalStore) RecordDecision(id int64, decision string, decidedBy string) (bool, error) {
	if m.RecordDecisionFunc != nil {
		return m.RecordDecisionFunc(id, decision, decidedBy)
	}
	return true, nil
}
func (m *MockApprovalStore) FindTimedOut(limit int) (*[]domain.Approval, error) {
	if m.FindTimedOutFunc != nil {
		return m.FindTimedOutFunc(limit)
	}
	return &[]domain.Approval{}, nil
}
func (m *MockApprovalStore) FindPendingByTenant(tenantID string) (*[]domain.Approval, error) {
	if m.FindPendingByTenantFunc != nil {
		return m.FindPendingByTenantFunc(tenantID)
	}
	return &[]domain.Approval{}, nil
}

type MockUserStore struct {
	SaveFunc           func(u *domain.User) (int64, error)
	FindByKeyIDFunc    func(keyID string) (*domain.User, error)
	FindByUsernameFunc func(username string) (*domain.User, error)
}

func (m *MockUserStore) Save(u *domain.User) (int64, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(u)
	}
	return 1, nil
}
func (m *MockUserStore) FindByKeyID(keyID string) (*domain.User, error) {
	if m.FindByKeyIDFunc != nil {
		return m.FindByKeyIDFunc(keyID)
	}
	return nil, nil
}
func (m *MockUserStore) FindByUsername(username string) (*domain.User, error) {
	if m.FindByUsernameFunc != nil {
		return m.FindByUsernameFunc(username)
	}
	return nil, nil
}
