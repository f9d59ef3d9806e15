package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opskit/flowline/internal/domain"
)

// ErrIntegrityCascade wraps any failure inside a cascade transaction. The
// transaction is rolled back whole; callers retry the triggering edit/delete.
var ErrIntegrityCascade = errors.New("integrity cascade failed")

// IntegrityRepository is the administrative capability for destructive
// cross-table operations. It is deliberately a separate type from the
// tenant-scoped repositories: ordinary read/write paths never gain delete
// rights on dependent rows by construction.
//
// Deletion order is fixed by the foreign-key graph:
// approval -> step_execution -> run -> workflow_step -> workflow.
type IntegrityRepository struct {
	db *sql.DB
}

func NewIntegrityRepository(db *sql.DB) *IntegrityRepository {
	return &IntegrityRepository{db: db}
}

// DeleteWorkflow removes a workflow and every dependent row as one atomic
// unit. Any failure aborts the whole cascade.
func (r *IntegrityRepository) DeleteWorkflow(workflowID int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIntegrityCascade, err)
	}
	defer tx.Rollback()

	if err := purgeRunHistory(tx, workflowID); err != nil {
		return fmt.Errorf("%w: %v", ErrIntegrityCascade, err)
	}
	if _, err := tx.Exec(`DELETE FROM workflow_step WHERE workflow_id = `+placeholder(1), workflowID); err != nil {
		return fmt.Errorf("%w: delete steps: %v", ErrIntegrityCascade, err)
	}
	if _, err := tx.Exec(`DELETE FROM workflow WHERE id = `+placeholder(1), workflowID); err != nil {
		return fmt.Errorf("%w: delete workflow: %v", ErrIntegrityCascade, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrIntegrityCascade, err)
	}
	slog.Info("Workflow cascade delete committed", "workflow_id", workflowID)
	return nil
}

// ReplaceSteps swaps a workflow's step list for a new one. The run history
// referencing the old steps is removed in the same transaction so no
// step_execution or approval row is left pointing at a dead step.
func (r *IntegrityRepository) ReplaceSteps(workflowID int64, steps []domain.Step) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIntegrityCascade, err)
	}
	defer tx.Rollback()

	if err := purgeRunHistory(tx, workflowID); err != nil {
		return fmt.Errorf("%w: %v", ErrIntegrityCascade, err)
	}
	if _, err := tx.Exec(`DELETE FROM workflow_step WHERE workflow_id = `+placeholder(1), workflowID); err != nil {
		return fmt.Errorf("%w: delete steps: %v", ErrIntegrityCascade, err)
	}
	for i := range steps {
		steps[i].WorkflowID = workflowID
		if _, err := insertStep(tx, &steps[i]); err != nil {
			return fmt.Errorf("%w: insert step %d: %v", ErrIntegrityCascade, steps[i].StepOrder, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrIntegrityCascade, err)
	}
	slog.Info("Workflow steps replaced", "workflow_id", workflowID, "steps", len(steps))
	return nil
}

// purgeRunHistory deletes approvals, step executions, and runs for a
// workflow, strictly in dependency order. Step executions are deleted by run
// id and defensively by step id to sweep any orphan left by a prior partial
// failure.
func purgeRunHistory(tx *sql.Tx, workflowID int64) error {
	if _, err := tx.Exec(`
		DELETE FROM approval
		WHERE step_execution_id IN (
		    SELECT id FROM step_execution
		    WHERE run_id IN (SELECT id FROM run WHERE workflow_id = `+placeholder(1)+`)
		)`, workflowID); err != nil {
		return fmt.Errorf("delete approvals: %v", err)
	}
	if _, err := tx.Exec(`
		DELETE FROM approval
		WHERE step_execution_id IN (
		    SELECT id FROM step_execution
		    WHERE step_id IN (SELECT id FROM workflow_step WHERE workflow_id = `+placeholder(1)+`)
		)`, workflowID); err != nil {
		return fmt.Errorf("delete orphan approvals: %v", err)
	}
	if _, err := tx.Exec(`
		DELETE FROM step_execution
		WHERE run_id IN (SELECT id FROM run WHERE workflow_id = `+placeholder(1)+`)`, workflowID); err != nil {
		return fmt.Errorf("delete step executions: %v", err)
	}
	if _, err := tx.Exec(`
		DELETE FROM step_execution
		WHERE step_id IN (SELECT id FROM workflow_step WHERE workflow_id = `+placeholder(1)+`)`, workflowID); err != nil {
		return fmt.Errorf("delete orphan step executions: %v", err)
	}
	if _, err := tx.Exec(`DELETE FROM run WHERE workflow_id = `+placeholder(1), workflowID); err != nil {
		return fmt.Errorf("delete runs: %v", err)
	}
	return nil
}
