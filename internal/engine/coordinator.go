package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/opskit/flowline/internal/core"
	"github.com/opskit/flowline/internal/domain"
)

// Coordinator owns the run state machine. It creates runs, drives step
// execution strictly in ascending step_order, and is the only component
// allowed to move a run between states. Execution is synchronous from the
// dispatch call site until the first suspension point; delays and approvals
// hand control back through ResumeDelayed and Resume.
type Coordinator struct {
	steps     StepStore
	runs      RunStore
	execs     StepExecutionStore
	approvals ApprovalStore
	executor  *StepExecutor
	timer     Timer
	clock     core.Clock
}

func NewCoordinator(steps StepStore, runs RunStore, execs StepExecutionStore, approvals ApprovalStore,
	executor *StepExecutor, timer Timer, clock core.Clock) *Coordinator {
	return &Coordinator{
		steps:     steps,
		runs:      runs,
		execs:     execs,
		approvals: approvals,
		executor:  executor,
		timer:     timer,
		clock:     clock,
	}
}

// StartRun creates a run for one matched workflow and synchronously drives it
// until completion, failure, or the first suspension point. When eventKey is
// non-empty, creation is idempotent: a retried dispatch for the same event
// firing returns the run already created rather than a duplicate.
func (c *Coordinator) StartRun(ctx context.Context, workflowID int64, eventType string, payload map[string]string,
	tenantID string, actorID string, eventKey string) (*domain.Run, error) {

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	if actorID == "" {
		actorID = "system"
	}

	run := &domain.Run{
		WorkflowID:   workflowID,
		TenantID:     tenantID,
		EventType:    eventType,
		EventPayload: string(payloadJSON),
		Status:       domain.RunStatusRunning,
		TriggeredBy:  actorID,
		Started:      c.clock.Now(),
	}
	if eventKey != "" {
		run.EventKey = sql.NullString{String: eventKey, Valid: true}
	}

	if _, err := c.runs.Save(run); err != nil {
		if eventKey != "" {
			if existing, findErr := c.runs.FindByEventKey(workflowID, eventKey); findErr == nil && existing != nil {
				slog.InfoContext(ctx, "Duplicate dispatch for event key, returning existing run",
					"workflow_id", workflowID, "event_key", eventKey, "run_id", existing.ID)
				return existing, nil
			}
		}
		return nil, fmt.Errorf("create run: %w", err)
	}

	slog.InfoContext(ctx, "Run started", "run_id", run.ID, "workflow_id", workflowID,
		"tenant_id", tenantID, "event_type", eventType, "triggered_by", actorID)

	if err := c.advance(ctx, run, 0); err != nil {
		return nil, err
	}
	return c.runs.FindByID(run.ID)
}

// advance executes steps with step_order greater than fromOrder until the
// run terminates or suspends. Step executions are created lazily, one as each
// step is reached; a failing step leaves the remainder uncreated.
func (c *Coordinator) advance(ctx context.Context, run *domain.Run, fromOrder int) error {
	stepsPtr, err := c.steps.FindByWorkflowID(run.WorkflowID)
	if err != nil {
		return fmt.Errorf("load steps: %w", err)
	}
	steps := *stepsPtr

	var prior []domain.StepExecution
	if priorPtr, err := c.execs.FindAllByRunID(run.ID); err == nil && priorPtr != nil {
		prior = *priorPtr
	}

	skipUntil := 0
	for i := range steps {
		step := steps[i]
		if step.StepOrder <= fromOrder {
			continue
		}
		if skipUntil > 0 && step.StepOrder >= skipUntil {
			skipUntil = 0
		}
		if skipUntil > 0 {
			// jumped over by a condition branch; still recorded so every
			// reached step has exactly one execution
			skipped := c.newStepExecution(run.ID, &step, domain.StepExecutionStatusSkipped)
			skipped.Completed = sql.NullTime{Time: c.clock.Now(), Valid: true}
			skipped.Output = sql.NullString{String: `{"reason":"skipped by condition branch"}`, Valid: true}
			if _, err := c.execs.Save(skipped); err != nil {
				return fmt.Errorf("record skipped step: %w", err)
			}
			prior = append(prior, *skipped)
			continue
		}

		se := c.newStepExecution(run.ID, &step, domain.StepExecutionStatusRunning)
		if _, err := c.execs.Save(se); err != nil {
			return fmt.Errorf("create step execution: %w", err)
		}

		outcome := c.executor.Execute(ctx, run, &step, se, prior)

		switch {
		case outcome.Suspend == SuspendApproval:
			if err := c.runs.UpdateStatus(run.ID, domain.RunStatusWaitingApproval); err != nil {
				return fmt.Errorf("suspend run for approval: %w", err)
			}
			if outcome.Approval != nil && outcome.Approval.TimeoutAt.Valid {
				if err := c.timer.ScheduleResume(ctx, run.ID, outcome.Approval.TimeoutAt.Time); err != nil {
					slog.WarnContext(ctx, "Failed to schedule approval timeout", "run_id", run.ID, "error", err)
				}
			}
			slog.InfoContext(ctx, "Run waiting for approval", "run_id", run.ID, "step_order", step.StepOrder)
			return nil

		case outcome.Suspend == SuspendDelay:
			if err := c.runs.SetWakeAt(run.ID, outcome.WakeAt); err != nil {
				return fmt.Errorf("suspend run for delay: %w", err)
			}
			if err := c.timer.ScheduleResume(ctx, run.ID, outcome.WakeAt); err != nil {
				slog.WarnContext(ctx, "Failed to schedule delay resume", "run_id", run.ID, "error", err)
			}
			slog.InfoContext(ctx, "Run delayed", "run_id", run.ID, "step_order", step.StepOrder, "wake_at", outcome.WakeAt)
			return nil

		case outcome.Status == domain.StepExecutionStatusFailed:
			if err := c.execs.Complete(se.ID, domain.StepExecutionStatusFailed, outcome.Output, outcome.ErrText); err != nil {
				return fmt.Errorf("finalize failed step: %w", err)
			}
			if err := c.runs.MarkTerminal(run.ID, domain.RunStatusFailed); err != nil {
				return fmt.Errorf("fail run: %w", err)
			}
			slog.WarnContext(ctx, "Run failed", "run_id", run.ID, "step_order", step.StepOrder, "error", outcome.ErrText)
			return nil

		case outcome.Status == domain.StepExecutionStatusSkipped:
			if err := c.execs.Complete(se.ID, domain.StepExecutionStatusSkipped, outcome.Output, ""); err != nil {
				return fmt.Errorf("finalize skipped step: %w", err)
			}
			se.Status = domain.StepExecutionStatusSkipped
			se.Output = sql.NullString{String: outcome.Output, Valid: outcome.Output != ""}
			prior = append(prior, *se)
			if outcome.SkipToOrder > step.StepOrder {
				skipUntil = outcome.SkipToOrder
			}

		default:
			if err := c.execs.Complete(se.ID, domain.StepExecutionStatusSucceeded, outcome.Output, ""); err != nil {
				return fmt.Errorf("finalize step: %w", err)
			}
			se.Status = domain.StepExecutionStatusSucceeded
			se.Output = sql.NullString{String: outcome.Output, Valid: outcome.Output != ""}
			prior = append(prior, *se)
		}
	}

	if err := c.runs.MarkTerminal(run.ID, domain.RunStatusCompleted); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	slog.InfoContext(ctx, "Run completed", "run_id", run.ID)
	return nil
}

func (c *Coordinator) newStepExecution(runID int64, step *domain.Step, status string) *domain.StepExecution {
	return &domain.StepExecution{
		RunID:     runID,
		StepID:    step.ID,
		StepOrder: step.StepOrder,
		Status:    status,
		Started:   c.clock.Now(),
	}
}

// Resume is invoked by the approval gate once a decision is recorded.
// APPROVED marks the open step execution succeeded and continues from the
// next step_order; REJECTED fails the execution and the run.
func (c *Coordinator) Resume(ctx context.Context, runID int64, decision string) (*domain.Run, error) {
	run, err := c.runs.FindByID(runID)
	if err != nil || run == nil {
		return nil, ErrRunNotFound
	}
	if domain.RunStatusTerminal(run.Status) {
		return nil, ErrRunAlreadyTerminal
	}
	if run.Status != domain.RunStatusWaitingApproval {
		return nil, ErrInvalidApprovalState
	}

	se, err := c.execs.FindOpenByRunID(runID)
	if err != nil || se == nil {
		return nil, ErrInvalidApprovalState
	}

	if decision == domain.DecisionApproved {
		if err := c.execs.Complete(se.ID, domain.StepExecutionStatusSucceeded, `{"decision":"approved"}`, ""); err != nil {
			return nil, fmt.Errorf("finalize approved step: %w", err)
		}
		if err := c.runs.UpdateStatus(runID, domain.RunStatusRunning); err != nil {
			return nil, fmt.Errorf("resume run: %w", err)
		}
		run.Status = domain.RunStatusRunning
		slog.InfoContext(ctx, "Run resumed after approval", "run_id", runID, "step_order", se.StepOrder)
		if err := c.advance(ctx, run, se.StepOrder); err != nil {
			return nil, err
		}
	} else {
		if err := c.execs.Complete(se.ID, domain.StepExecutionStatusFailed, `{"decision":"rejected"}`, "approval rejected"); err != nil {
			return nil, fmt.Errorf("finalize rejected step: %w", err)
		}
		if err := c.runs.MarkTerminal(runID, domain.RunStatusFailed); err != nil {
			return nil, fmt.Errorf("fail run: %w", err)
		}
		slog.InfoContext(ctx, "Run failed after rejection", "run_id", runID, "step_order", se.StepOrder)
	}
	return c.runs.FindByID(runID)
}

// ResumeDelayed continues a run whose delay wait has elapsed. Called by the
// timer collaborator, never by request handlers.
func (c *Coordinator) ResumeDelayed(ctx context.Context, runID int64) error {
	run, err := c.runs.FindByID(runID)
	if err != nil || run == nil {
		return ErrRunNotFound
	}
	if domain.RunStatusTerminal(run.Status) {
		return ErrRunAlreadyTerminal
	}
	if run.Status != domain.RunStatusRunning || !run.WakeAt.Valid {
		return ErrRunNotDelayed
	}

	se, err := c.execs.FindOpenByRunID(runID)
	if err != nil || se == nil {
		return ErrRunNotDelayed
	}

	out, _ := json.Marshal(map[string]string{"waited_until": run.WakeAt.Time.UTC().Format("2006-01-02T15:04:05Z07:00")})
	if err := c.execs.Complete(se.ID, domain.StepExecutionStatusSucceeded, string(out), ""); err != nil {
		return fmt.Errorf("finalize delay step: %w", err)
	}
	if err := c.runs.ClearWakeAt(runID); err != nil {
		return fmt.Errorf("clear wake time: %w", err)
	}
	run.WakeAt = sql.NullTime{}
	slog.InfoContext(ctx, "Run resumed after delay", "run_id", runID, "step_order", se.StepOrder)
	return c.advance(ctx, run, se.StepOrder)
}

// Cancel terminates a RUNNING or WAITING_APPROVAL run. The open step
// execution and approval are marked abandoned, a terminal marker distinct
// from failure so audit trails can tell operator cancellation apart from
// business-logic failure. No further steps execute.
func (c *Coordinator) Cancel(ctx context.Context, runID int64, actorID string) (*domain.Run, error) {
	run, err := c.runs.FindByID(runID)
	if err != nil || run == nil {
		return nil, ErrRunNotFound
	}
	if domain.RunStatusTerminal(run.Status) {
		return nil, ErrRunAlreadyTerminal
	}
	if actorID == "" {
		actorID = "system"
	}

	if se, err := c.execs.FindOpenByRunID(runID); err == nil && se != nil {
		if approval, err := c.approvals.FindOpenByStepExecutionID(se.ID); err == nil && approval != nil {
			if _, err := c.approvals.RecordDecision(approval.ID, domain.DecisionAbandoned, actorID); err != nil {
				return nil, fmt.Errorf("abandon approval: %w", err)
			}
		}
		if err := c.execs.Complete(se.ID, domain.StepExecutionStatusAbandoned, "", "cancelled by operator"); err != nil {
			return nil, fmt.Errorf("abandon step execution: %w", err)
		}
	}

	if err := c.runs.MarkTerminal(runID, domain.RunStatusCancelled); err != nil {
		return nil, fmt.Errorf("cancel run: %w", err)
	}
	slog.InfoContext(ctx, "Run cancelled", "run_id", runID, "cancelled_by", actorID)
	return c.runs.FindByID(runID)
}
