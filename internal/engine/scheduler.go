package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/opskit/flowline/internal/core"
	"github.com/opskit/flowline/internal/domain"
)

// Scheduler is the database-polling resume loop. Delayed runs and approval
// timeouts live as rows with due times; the scheduler sweeps for due rows on
// an interval and hands them back to the coordinator and gate. It also
// implements Timer so an in-process suspension can nudge the loop instead of
// waiting out a full tick.
type Scheduler struct {
	runs        RunStore
	approvals   ApprovalStore
	coordinator *Coordinator
	gate        *ApprovalGate
	clock       core.Clock
	interval    time.Duration
	batchSize   int
	wakeup      chan struct{}
}

func NewScheduler(runs RunStore, approvals ApprovalStore, coordinator *Coordinator, gate *ApprovalGate,
	clock core.Clock, interval time.Duration, batchSize int) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Scheduler{
		runs:        runs,
		approvals:   approvals,
		coordinator: coordinator,
		gate:        gate,
		clock:       clock,
		interval:    interval,
		batchSize:   batchSize,
		wakeup:      make(chan struct{}, 1),
	}
}

// ScheduleResume nudges the poll loop when the due time falls inside the
// current tick. The due time itself is already persisted on the run or
// approval row, so dropping the nudge costs one interval, never the resume.
func (s *Scheduler) ScheduleResume(ctx context.Context, runID int64, at time.Time) error {
	if at.Before(s.clock.Now().Add(s.interval)) {
		select {
		case s.wakeup <- struct{}{}:
		default:
		}
	}
	return nil
}

// Start runs the sweep loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("Scheduler started", "interval", s.interval, "batchSize", s.batchSize)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return
		case <-ticker.C:
		case <-s.wakeup:
		}
		s.Sweep(ctx)
	}
}

// Sweep performs one pass over due delayed runs and timed-out approvals.
// Exported so tests and the boot path can drive it without the loop.
func (s *Scheduler) Sweep(ctx context.Context) {
	s.sweepDelayed(ctx)
	s.sweepApprovalTimeouts(ctx)
}

func (s *Scheduler) sweepDelayed(ctx context.Context) {
	due, err := s.runs.FindDueDelayed(s.batchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to query due delayed runs", "error", err)
		return
	}
	for _, run := range *due {
		err := s.coordinator.ResumeDelayed(ctx, run.ID)
		switch {
		case err == nil:
		case errors.Is(err, ErrRunAlreadyTerminal), errors.Is(err, ErrRunNotDelayed):
			// cancelled or resumed between the query and this call
		default:
			slog.ErrorContext(ctx, "Failed to resume delayed run", "run_id", run.ID, "error", err)
		}
	}
}

func (s *Scheduler) sweepApprovalTimeouts(ctx context.Context) {
	timedOut, err := s.approvals.FindTimedOut(s.batchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to query timed out approvals", "error", err)
		return
	}
	for _, approval := range *timedOut {
		decision := domain.DecisionRejected
		if approval.TimeoutDecision.Valid && approval.TimeoutDecision.String != "" {
			decision = approval.TimeoutDecision.String
		}
		_, err := s.gate.Decide(ctx, approval.ID, decision, "system:timeout")
		switch {
		case err == nil:
			slog.InfoContext(ctx, "Approval timed out", "approval_id", approval.ID,
				"run_id", approval.RunID, "decision", decision)
		case errors.Is(err, ErrAlreadyDecided), errors.Is(err, ErrRunAlreadyTerminal), errors.Is(err, ErrInvalidApprovalState):
			// a human decided or the run was cancelled before the sweep got here
		default:
			slog.ErrorContext(ctx, "Failed to apply approval timeout", "approval_id", approval.ID, "error", err)
		}
	}
}
