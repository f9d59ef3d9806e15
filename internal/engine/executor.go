package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/opskit/flowline/internal/core"
	"github.com/opskit/flowline/internal/domain"
)

// Suspension kinds a step outcome can report. A suspended run keeps its open
// step execution as the resume pointer; no goroutine waits on it.
const (
	SuspendNone     = ""
	SuspendApproval = "APPROVAL"
	SuspendDelay    = "DELAY"
)

// Outcome is the result of interpreting one step against the run context.
type Outcome struct {
	Status      string // SUCCEEDED | FAILED | SKIPPED for synchronous outcomes
	Output      string // JSON, stored as StepExecution.output
	ErrText     string // failure reason when Status is FAILED
	Suspend     string // SuspendApproval or SuspendDelay when the run must pause
	SkipToOrder int    // condition false-branch target, 0 for none
	WakeAt      time.Time
	Approval    *domain.Approval
}

// StepExecutor interprets a single step. It owns the per-type handlers and
// the bounded retry at the messaging collaborator boundary; it never retries
// an already-failed step, which would risk duplicate side effects.
type StepExecutor struct {
	messenger       Messenger
	approvals       ApprovalStore
	notifier        Notifier
	clock           core.Clock
	maxSendAttempts int
}

func NewStepExecutor(messenger Messenger, approvals ApprovalStore, notifier Notifier, clock core.Clock, maxSendAttempts int) *StepExecutor {
	if maxSendAttempts <= 0 {
		maxSendAttempts = 1
	}
	return &StepExecutor{
		messenger:       messenger,
		approvals:       approvals,
		notifier:        notifier,
		clock:           clock,
		maxSendAttempts: maxSendAttempts,
	}
}

// Execute runs one step. se is the already-created step execution row for
// this step; prior carries the run's finalized executions for context.
func (e *StepExecutor) Execute(ctx context.Context, run *domain.Run, step *domain.Step, se *domain.StepExecution, prior []domain.StepExecution) Outcome {
	switch step.StepType {
	case domain.StepTypeAction:
		return e.executeAction(ctx, run, step, prior)
	case domain.StepTypeCondition:
		return e.executeCondition(ctx, run, step, prior)
	case domain.StepTypeDelay:
		return e.executeDelay(ctx, run, step)
	case domain.StepTypeApproval:
		return e.executeApproval(ctx, run, step, se)
	default:
		// validation rejects unknown types at save time; reaching here means
		// the definition changed under a live run
		return Outcome{Status: domain.StepExecutionStatusFailed, ErrText: fmt.Sprintf("unknown step type %q", step.StepType)}
	}
}

func (e *StepExecutor) executeAction(ctx context.Context, run *domain.Run, step *domain.Step, prior []domain.StepExecution) Outcome {
	cfg, err := ParseActionConfig(step.Config)
	if err != nil {
		return Outcome{Status: domain.StepExecutionStatusFailed, ErrText: err.Error()}
	}

	fields := ExecutionContext(run, prior)
	recipient := ResolveTemplate(cfg.Recipient, fields)
	subject := ResolveTemplate(cfg.Subject, fields)
	body := ResolveTemplate(cfg.Body, fields)

	send := func() error {
		return e.messenger.Send(ctx, cfg.Channel, recipient, subject, body)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(e.maxSendAttempts-1)), ctx)
	if err := backoff.Retry(send, policy); err != nil {
		slog.ErrorContext(ctx, "Action step send failed after retries",
			"run_id", run.ID, "step_id", step.ID, "channel", cfg.Channel, "attempts", e.maxSendAttempts, "error", err)
		return Outcome{Status: domain.StepExecutionStatusFailed, ErrText: fmt.Sprintf("send via %s failed: %v", cfg.Channel, err)}
	}

	out, _ := json.Marshal(map[string]string{
		"channel":   cfg.Channel,
		"recipient": recipient,
		"subject":   subject,
		"body":      body,
	})
	return Outcome{Status: domain.StepExecutionStatusSucceeded, Output: string(out)}
}

func (e *StepExecutor) executeCondition(ctx context.Context, run *domain.Run, step *domain.Step, prior []domain.StepExecution) Outcome {
	cfg, err := ParseConditionConfig(step.Config)
	if err != nil {
		return Outcome{Status: domain.StepExecutionStatusFailed, ErrText: err.Error()}
	}

	fields := ExecutionContext(run, prior)
	if EvalAll(cfg.Predicates, fields) {
		out, _ := json.Marshal(map[string]string{"matched": "true"})
		return Outcome{Status: domain.StepExecutionStatusSucceeded, Output: string(out)}
	}
	out, _ := json.Marshal(map[string]string{"matched": "false"})
	return Outcome{Status: domain.StepExecutionStatusSkipped, Output: string(out), SkipToOrder: cfg.SkipToOrder}
}

func (e *StepExecutor) executeDelay(ctx context.Context, run *domain.Run, step *domain.Step) Outcome {
	_, dur, err := ParseDelayConfig(step.Config)
	if err != nil {
		return Outcome{Status: domain.StepExecutionStatusFailed, ErrText: err.Error()}
	}
	wakeAt := e.clock.Now().Add(dur)
	slog.InfoContext(ctx, "Delay step suspending run", "run_id", run.ID, "step_id", step.ID, "wake_at", wakeAt)
	return Outcome{Suspend: SuspendDelay, WakeAt: wakeAt}
}

func (e *StepExecutor) executeApproval(ctx context.Context, run *domain.Run, step *domain.Step, se *domain.StepExecution) Outcome {
	cfg, err := ParseApprovalConfig(step.Config)
	if err != nil {
		return Outcome{Status: domain.StepExecutionStatusFailed, ErrText: err.Error()}
	}

	// idempotent: a second invocation while an approval is open returns the
	// existing row instead of creating a duplicate
	if existing, err := e.approvals.FindOpenByStepExecutionID(se.ID); err == nil && existing != nil {
		return Outcome{Suspend: SuspendApproval, Approval: existing}
	}

	approval := &domain.Approval{
		StepExecutionID: se.ID,
		RunID:           run.ID,
		ApproverGroup:   cfg.Approvers,
		Requested:       e.clock.Now(),
	}
	if cfg.Timeout != "" {
		dur, _ := time.ParseDuration(cfg.Timeout)
		approval.TimeoutAt.Valid = true
		approval.TimeoutAt.Time = e.clock.Now().Add(dur)
		approval.TimeoutDecision.Valid = true
		approval.TimeoutDecision.String = cfg.timeoutDecisionOrDefault()
	}
	if _, err := e.approvals.Save(approval); err != nil {
		return Outcome{Status: domain.StepExecutionStatusFailed, ErrText: fmt.Sprintf("create approval: %v", err)}
	}

	if e.notifier != nil {
		if err := e.notifier.NotifyApprovalRequested(ctx, approval, run); err != nil {
			slog.WarnContext(ctx, "Approval notification failed", "approval_id", approval.ID, "run_id", run.ID, "error", err)
		}
	}
	slog.InfoContext(ctx, "Approval requested", "approval_id", approval.ID, "run_id", run.ID,
		"approvers", strings.TrimSpace(cfg.Approvers))
	return Outcome{Suspend: SuspendApproval, Approval: approval}
}
