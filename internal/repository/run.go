package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/opskit/flowline/internal/core"
	"github.com/opskit/flowline/internal/domain"
	"github.com/opskit/flowline/internal/models"
)

const runColumns = ` id, workflow_id, tenant_id, event_type, event_payload, event_key,
		       status, triggered_by, wake_at, started, completed `

type RunRepository struct {
	db    *sql.DB
	clock core.Clock
}

func NewRunRepository(db *sql.DB, clock core.Clock) *RunRepository {
	return &RunRepository{db: db, clock: clock}
}

func scanRun(scan func(dest ...interface{}) error) (*domain.Run, error) {
	var run domain.Run
	err := scan(
		&run.ID,
		&run.WorkflowID,
		&run.TenantID,
		&run.EventType,
		&run.EventPayload,
		&run.EventKey,
		&run.Status,
		&run.TriggeredBy,
		&run.WakeAt,
		&run.Started,
		&run.Completed,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Save inserts a run row. A unique violation on (workflow_id, event_key) is
// reported via ErrDuplicateEventKey so the coordinator can return the run
// already created for a retried dispatch.
func (r *RunRepository) Save(run *domain.Run) (int64, error) {
	vals := []interface{}{run.WorkflowID, run.TenantID, run.EventType, run.EventPayload, run.EventKey,
		run.Status, run.TriggeredBy, formatDateInDatabaseNull(run.WakeAt),
		formatDateInDatabase(run.Started), formatDateInDatabaseNull(run.Completed)}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	base := `INSERT INTO run (
		workflow_id, tenant_id, event_type, event_payload, event_key,
		status, triggered_by, wake_at, started, completed
	) VALUES (` + strings.Join(pps, ", ") + `)`
	var err error
	if supportsReturning() {
		query := base + " RETURNING id"
		err = r.db.QueryRow(query, vals...).Scan(&run.ID)
	} else {
		res, e := r.db.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				run.ID = id
			}
		}
	}
	if isUniqueViolation(err) {
		return 0, ErrDuplicateEventKey
	}
	return run.ID, err
}

// ErrDuplicateEventKey signals a run already exists for (workflow, event key).
var ErrDuplicateEventKey = fmt.Errorf("run already exists for event key")

func (r *RunRepository) FindByID(id int64) (*domain.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM run WHERE id = ` + placeholder(1) + `
	`
	return scanRun(r.db.QueryRow(query, id).Scan)
}

func (r *RunRepository) FindByEventKey(workflowID int64, eventKey string) (*domain.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM run WHERE workflow_id = ` + placeholder(1) + ` AND event_key = ` + placeholder(2) + `
	`
	return scanRun(r.db.QueryRow(query, workflowID, eventKey).Scan)
}

func (r *RunRepository) UpdateStatus(id int64, status string) error {
	query := `
		UPDATE run
		SET status = ` + placeholder(1) + `
		WHERE id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, status, id)
	return err
}

// MarkTerminal sets a terminal status and stamps completed in one write.
func (r *RunRepository) MarkTerminal(id int64, status string) error {
	query := `
		UPDATE run
		SET status = ` + placeholder(1) + `, completed = ` + nowFunc(r.clock) + `, wake_at = NULL
		WHERE id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, status, id)
	return err
}

func (r *RunRepository) SetWakeAt(id int64, at time.Time) error {
	query := `
		UPDATE run
		SET wake_at = ` + placeholder(1) + `
		WHERE id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, formatDateInDatabase(at), id)
	return err
}

func (r *RunRepository) ClearWakeAt(id int64) error {
	query := `
		UPDATE run
		SET wake_at = NULL
		WHERE id = ` + placeholder(1) + `
	`
	_, err := r.db.Exec(query, id)
	return err
}

// FindDueDelayed returns RUNNING runs whose wake_at has passed; the scheduler
// resumes these after their delay step's wait elapses.
func (r *RunRepository) FindDueDelayed(limit int) (*[]domain.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM run
		WHERE status = '` + domain.RunStatusRunning + `'
		  AND wake_at IS NOT NULL
		  AND ` + dateBeforeNow("wake_at", r.clock) + `
		ORDER BY wake_at ASC
		LIMIT ` + placeholder(1) + `
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return &runs, nil
}

// SearchRuns is the reporting projection feeding the runs list page.
func (r *RunRepository) SearchRuns(req models.SearchRunsRequest) (*[]domain.Run, error) {
	whereClause, args := buildRunWhereClause(req)

	query := `
		SELECT ` + runColumns + `
		FROM run
		` + whereClause + `
		ORDER BY id DESC
	` + buildRunLimitsAndOffset(req)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return &runs, nil
}

func buildRunLimitsAndOffset(req models.SearchRunsRequest) string {
	if req.Limit > 0 {
		return fmt.Sprintf(" LIMIT %d OFFSET %d", req.Limit, req.Offset)
	}
	return ""
}

func buildRunWhereClause(req models.SearchRunsRequest) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if req.TenantID != "" {
		args = append(args, req.TenantID)
		clauses = append(clauses, fmt.Sprintf("tenant_id = %s", placeholder(len(args))))
	}
	if req.WorkflowID != 0 {
		args = append(args, req.WorkflowID)
		clauses = append(clauses, fmt.Sprintf("workflow_id = %s", placeholder(len(args))))
	}
	if req.Status != "" {
		args = append(args, req.Status)
		clauses = append(clauses, fmt.Sprintf("status = %s", placeholder(len(args))))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
