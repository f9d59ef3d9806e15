package engine

import (
	"context"
	"time"

	"github.com/opskit/flowline/internal/domain"
	"github.com/opskit/flowline/internal/models"
)

// WorkflowStore defines workflow definition persistence, matching
// repository.WorkflowRepository.
type WorkflowStore interface {
	Save(wf *domain.Workflow) (int64, error)
	Update(wf *domain.Workflow) error
	UpdateStatus(id int64, status string) error
	FindByID(id int64) (*domain.Workflow, error)
	FindActiveByTrigger(tenantID string, triggerType string) (*[]domain.Workflow, error)
	FindByTenant(tenantID string) (*[]domain.Workflow, error)
}

// StepStore defines workflow step persistence.
type StepStore interface {
	Save(s *domain.Step) (int64, error)
	FindByID(id int64) (*domain.Step, error)
	FindByWorkflowID(workflowID int64) (*[]domain.Step, error)
}

// RunStore defines run persistence.
type RunStore interface {
	Save(run *domain.Run) (int64, error)
	FindByID(id int64) (*domain.Run, error)
	FindByEventKey(workflowID int64, eventKey string) (*domain.Run, error)
	UpdateStatus(id int64, status string) error
	MarkTerminal(id int64, status string) error
	SetWakeAt(id int64, at time.Time) error
	ClearWakeAt(id int64) error
	FindDueDelayed(limit int) (*[]domain.Run, error)
	SearchRuns(req models.SearchRunsRequest) (*[]domain.Run, error)
}

// StepExecutionStore defines step execution persistence.
type StepExecutionStore interface {
	Save(se *domain.StepExecution) (int64, error)
	FindByID(id int64) (*domain.StepExecution, error)
	FindOpenByRunID(runID int64) (*domain.StepExecution, error)
	FindAllByRunID(runID int64) (*[]domain.StepExecution, error)
	Complete(id int64, status string, output string, errText string) error
}

// ApprovalStore defines approval persistence.
type ApprovalStore interface {
	Save(a *domain.Approval) (int64, error)
	FindByID(id int64) (*domain.Approval, error)
	FindOpenByStepExecutionID(stepExecutionID int64) (*domain.Approval, error)
	RecordDecision(id int64, decision string, decidedBy string) (bool, error)
	FindTimedOut(limit int) (*[]domain.Approval, error)
	FindPendingByTenant(tenantID string) (*[]domain.Approval, error)
}

// IntegrityStore is the administrative capability for cascade deletes. It is
// a distinct interface from the tenant-scoped stores on purpose: holders of
// the ordinary stores cannot remove dependent rows.
type IntegrityStore interface {
	DeleteWorkflow(workflowID int64) error
	ReplaceSteps(workflowID int64, steps []domain.Step) error
}

// UserStore defines API principal persistence.
type UserStore interface {
	Save(u *domain.User) (int64, error)
	FindByKeyID(keyID string) (*domain.User, error)
	FindByUsername(username string) (*domain.User, error)
}

// Messenger is the outbound channel collaborator invoked by action steps.
// Implementations own delivery mechanics; the engine only retries the call a
// bounded number of times before failing the step.
type Messenger interface {
	Send(ctx context.Context, channel string, recipient string, subject string, body string) error
}

// Timer is the scheduling collaborator that re-invokes the engine when a
// delay elapses or an approval times out. The engine persists the due time as
// run/approval state before calling it, so a lost nudge only delays a resume
// until the next scan.
type Timer interface {
	ScheduleResume(ctx context.Context, runID int64, at time.Time) error
}

// Notifier surfaces pending approvals to human approvers. Notification
// failure never fails the approval step.
type Notifier interface {
	NotifyApprovalRequested(ctx context.Context, approval *domain.Approval, run *domain.Run) error
}
