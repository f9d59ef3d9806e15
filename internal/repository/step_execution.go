package repository

import (
	"database/sql"
	"strings"

	"github.com/opskit/flowline/internal/core"
	"github.com/opskit/flowline/internal/domain"
)

const stepExecutionColumns = ` id, run_id, step_id, step_order, status, started, completed, output, error `

type StepExecutionRepository struct {
	db    *sql.DB
	clock core.Clock
}

func NewStepExecutionRepository(db *sql.DB, clock core.Clock) *StepExecutionRepository {
	return &StepExecutionRepository{db: db, clock: clock}
}

func scanStepExecution(scan func(dest ...interface{}) error) (*domain.StepExecution, error) {
	var se domain.StepExecution
	err := scan(
		&se.ID,
		&se.RunID,
		&se.StepID,
		&se.StepOrder,
		&se.Status,
		&se.Started,
		&se.Completed,
		&se.Output,
		&se.Error,
	)
	if err != nil {
		return nil, err
	}
	return &se, nil
}

func (r *StepExecutionRepository) Save(se *domain.StepExecution) (int64, error) {
	vals := []interface{}{se.RunID, se.StepID, se.StepOrder, se.Status,
		formatDateInDatabase(se.Started), formatDateInDatabaseNull(se.Completed), se.Output, se.Error}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	base := `INSERT INTO step_execution (
		run_id, step_id, step_order, status, started, completed, output, error
	) VALUES (` + strings.Join(pps, ", ") + `)`
	var err error
	if supportsReturning() {
		query := base + " RETURNING id"
		err = r.db.QueryRow(query, vals...).Scan(&se.ID)
	} else {
		res, e := r.db.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				se.ID = id
			}
		}
	}
	return se.ID, err
}

func (r *StepExecutionRepository) FindByID(id int64) (*domain.StepExecution, error) {
	query := `
		SELECT ` + stepExecutionColumns + `
		FROM step_execution WHERE id = ` + placeholder(1) + `
	`
	return scanStepExecution(r.db.QueryRow(query, id).Scan)
}

// FindOpenByRunID returns the run's single non-terminal execution, the resume
// point while a run is suspended. sql.ErrNoRows when the run has none open.
func (r *StepExecutionRepository) FindOpenByRunID(runID int64) (*domain.StepExecution, error) {
	query := `
		SELECT ` + stepExecutionColumns + `
		FROM step_execution
		WHERE run_id = ` + placeholder(1) + `
		  AND status IN ('` + domain.StepExecutionStatusPending + `', '` + domain.StepExecutionStatusRunning + `')
		ORDER BY step_order DESC
		LIMIT 1
	`
	return scanStepExecution(r.db.QueryRow(query, runID).Scan)
}

func (r *StepExecutionRepository) FindAllByRunID(runID int64) (*[]domain.StepExecution, error) {
	query := `
		SELECT ` + stepExecutionColumns + `
		FROM step_execution
		WHERE run_id = ` + placeholder(1) + `
		ORDER BY step_order ASC
	`
	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []domain.StepExecution
	for rows.Next() {
		se, err := scanStepExecution(rows.Scan)
		if err != nil {
			return nil, err
		}
		executions = append(executions, *se)
	}
	return &executions, nil
}

// Complete finalizes an execution with a terminal status, its output and
// error text, and stamps completed.
func (r *StepExecutionRepository) Complete(id int64, status string, output string, errText string) error {
	query := `
		UPDATE step_execution
		SET status = ` + placeholder(1) + `, output = ` + placeholder(2) + `, error = ` + placeholder(3) + `,
		    completed = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(4) + `
	`
	var out interface{}
	if output != "" {
		out = output
	}
	var errVal interface{}
	if errText != "" {
		errVal = errText
	}
	_, err := r.db.Exec(query, status, out, errVal, id)
	return err
}
