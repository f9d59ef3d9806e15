package engine

import (
	"context"
	"log/slog"

	"github.com/opskit/flowline/internal/domain"
)

// ApprovalGate records human decisions against pending approvals and hands
// the winning decision to the coordinator. All guard checks run before the
// decision is persisted; rejected calls leave every row untouched.
type ApprovalGate struct {
	approvals   ApprovalStore
	runs        RunStore
	execs       StepExecutionStore
	coordinator *Coordinator
}

func NewApprovalGate(approvals ApprovalStore, runs RunStore, execs StepExecutionStore, coordinator *Coordinator) *ApprovalGate {
	return &ApprovalGate{
		approvals:   approvals,
		runs:        runs,
		execs:       execs,
		coordinator: coordinator,
	}
}

// Decide applies an APPROVED or REJECTED decision to an approval. Repeating
// an identical decision is idempotent and returns the run as-is; a
// conflicting decision gets ErrAlreadyDecided. Concurrent racing decisions
// are serialized by a guarded update, exactly one caller wins.
func (g *ApprovalGate) Decide(ctx context.Context, approvalID int64, decision string, decidedBy string) (*domain.Run, error) {
	approval, err := g.approvals.FindByID(approvalID)
	if err != nil || approval == nil {
		return nil, ErrApprovalNotFound
	}

	run, err := g.runs.FindByID(approval.RunID)
	if err != nil || run == nil {
		return nil, ErrRunNotFound
	}

	if approval.Decided.Valid {
		if approval.Decision.String == domain.DecisionAbandoned {
			return nil, ErrRunAlreadyTerminal
		}
		if approval.Decision.String == decision {
			slog.InfoContext(ctx, "Repeated identical decision, no-op",
				"approval_id", approvalID, "decision", decision, "decided_by", decidedBy)
			return run, nil
		}
		return nil, ErrAlreadyDecided
	}

	if domain.RunStatusTerminal(run.Status) {
		return nil, ErrRunAlreadyTerminal
	}
	if run.Status != domain.RunStatusWaitingApproval {
		return nil, ErrInvalidApprovalState
	}

	// the approval must belong to the run's current open step execution; a
	// stale approval from an earlier gate in the same run is rejected
	open, err := g.execs.FindOpenByRunID(run.ID)
	if err != nil || open == nil || open.ID != approval.StepExecutionID {
		return nil, ErrInvalidApprovalState
	}

	won, err := g.approvals.RecordDecision(approvalID, decision, decidedBy)
	if err != nil {
		return nil, err
	}
	if !won {
		// a concurrent caller decided first; re-read to distinguish the
		// idempotent repeat from the conflict
		if current, err := g.approvals.FindByID(approvalID); err == nil && current != nil &&
			current.Decided.Valid && current.Decision.String == decision {
			return g.runs.FindByID(run.ID)
		}
		return nil, ErrAlreadyDecided
	}

	slog.InfoContext(ctx, "Approval decided", "approval_id", approvalID, "run_id", run.ID,
		"decision", decision, "decided_by", decidedBy)
	return g.coordinator.Resume(ctx, run.ID, decision)
}
