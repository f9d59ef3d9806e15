package repository

import (
	"database/sql"
	"strings"

	"github.com/opskit/flowline/internal/core"
	"github.com/opskit/flowline/internal/domain"
)

const approvalColumns = ` id, step_execution_id, run_id, approver_group, requested,
		       timeout_at, timeout_decision, decided, decided_by, decision `

type ApprovalRepository struct {
	db    *sql.DB
	clock core.Clock
}

func NewApprovalRepository(db *sql.DB, clock core.Clock) *ApprovalRepository {
	return &ApprovalRepository{db: db, clock: clock}
}

func scanApproval(scan func(dest ...interface{}) error) (*domain.Approval, error) {
	var a domain.Approval
	err := scan(
		&a.ID,
		&a.StepExecutionID,
		&a.RunID,
		&a.ApproverGroup,
		&a.Requested,
		&a.TimeoutAt,
		&a.TimeoutDecision,
		&a.Decided,
		&a.DecidedBy,
		&a.Decision,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ApprovalRepository) Save(a *domain.Approval) (int64, error) {
	vals := []interface{}{a.StepExecutionID, a.RunID, a.ApproverGroup,
		formatDateInDatabase(a.Requested), formatDateInDatabaseNull(a.TimeoutAt), a.TimeoutDecision,
		formatDateInDatabaseNull(a.Decided), a.DecidedBy, a.Decision}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	base := `INSERT INTO approval (
		step_execution_id, run_id, approver_group, requested,
		timeout_at, timeout_decision, decided, decided_by, decision
	) VALUES (` + strings.Join(pps, ", ") + `)`
	var err error
	if supportsReturning() {
		query := base + " RETURNING id"
		err = r.db.QueryRow(query, vals...).Scan(&a.ID)
	} else {
		res, e := r.db.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				a.ID = id
			}
		}
	}
	return a.ID, err
}

func (r *ApprovalRepository) FindByID(id int64) (*domain.Approval, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approval WHERE id = ` + placeholder(1) + `
	`
	return scanApproval(r.db.QueryRow(query, id).Scan)
}

// FindOpenByStepExecutionID returns the undecided approval for a step
// execution, if any. At most one can exist; the executor relies on this to
// keep approval creation idempotent.
func (r *ApprovalRepository) FindOpenByStepExecutionID(stepExecutionID int64) (*domain.Approval, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approval
		WHERE step_execution_id = ` + placeholder(1) + `
		  AND decided IS NULL
		LIMIT 1
	`
	return scanApproval(r.db.QueryRow(query, stepExecutionID).Scan)
}

// RecordDecision stamps the decision onto a still-open approval. The guard on
// decided IS NULL makes racing deciders lose cleanly: false return means the
// approval was no longer open.
func (r *ApprovalRepository) RecordDecision(id int64, decision string, decidedBy string) (bool, error) {
	query := `
		UPDATE approval
		SET decision = ` + placeholder(1) + `, decided_by = ` + placeholder(2) + `,
		    decided = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(3) + ` AND decided IS NULL
	`
	result, err := r.db.Exec(query, decision, decidedBy, id)
	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

// FindTimedOut returns open approvals whose timeout_at has passed; the
// scheduler resolves these with their configured synthetic decision.
func (r *ApprovalRepository) FindTimedOut(limit int) (*[]domain.Approval, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approval
		WHERE decided IS NULL
		  AND timeout_at IS NOT NULL
		  AND ` + dateBeforeNow("timeout_at", r.clock) + `
		ORDER BY timeout_at ASC
		LIMIT ` + placeholder(1) + `
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var approvals []domain.Approval
	for rows.Next() {
		a, err := scanApproval(rows.Scan)
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, *a)
	}
	return &approvals, nil
}

// FindPendingByTenant lists open approvals for a tenant's runs, newest first.
func (r *ApprovalRepository) FindPendingByTenant(tenantID string) (*[]domain.Approval, error) {
	query := `
		SELECT a.id, a.step_execution_id, a.run_id, a.approver_group, a.requested,
		       a.timeout_at, a.timeout_decision, a.decided, a.decided_by, a.decision
		FROM approval a
		JOIN run r ON r.id = a.run_id
		WHERE r.tenant_id = ` + placeholder(1) + `
		  AND a.decided IS NULL
		ORDER BY a.id DESC
	`
	rows, err := r.db.Query(query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var approvals []domain.Approval
	for rows.Next() {
		a, err := scanApproval(rows.Scan)
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, *a)
	}
	return &approvals, nil
}
