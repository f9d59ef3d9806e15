package repository

import (
	"database/sql"
	"strings"

	"github.com/opskit/flowline/internal/domain"
)

const stepColumns = ` id, workflow_id, step_order, step_type, config `

// StepRepository reads and inserts workflow steps. Step replacement on an
// existing workflow must go through IntegrityRepository.ReplaceSteps so the
// dependent run history is cascaded in the same transaction.
type StepRepository struct {
	db *sql.DB
}

func NewStepRepository(db *sql.DB) *StepRepository {
	return &StepRepository{db: db}
}

func (r *StepRepository) Save(s *domain.Step) (int64, error) {
	return insertStep(r.db, s)
}

// insertStep works against *sql.DB and *sql.Tx alike so the integrity cascade
// can reuse it inside its transaction.
func insertStep(q queryer, s *domain.Step) (int64, error) {
	vals := []interface{}{s.WorkflowID, s.StepOrder, s.StepType, s.Config}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	base := `INSERT INTO workflow_step (
		workflow_id, step_order, step_type, config
	) VALUES (` + strings.Join(pps, ", ") + `)`
	var err error
	if supportsReturning() {
		query := base + " RETURNING id"
		err = q.QueryRow(query, vals...).Scan(&s.ID)
	} else {
		res, e := q.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				s.ID = id
			}
		}
	}
	return s.ID, err
}

// queryer is the subset of database/sql shared by *sql.DB and *sql.Tx.
type queryer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

func (r *StepRepository) FindByID(id int64) (*domain.Step, error) {
	query := `
		SELECT ` + stepColumns + `
		FROM workflow_step WHERE id = ` + placeholder(1) + `
	`
	var s domain.Step
	err := r.db.QueryRow(query, id).Scan(&s.ID, &s.WorkflowID, &s.StepOrder, &s.StepType, &s.Config)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindByWorkflowID returns the workflow's steps in ascending step_order, the
// only order execution is permitted to follow.
func (r *StepRepository) FindByWorkflowID(workflowID int64) (*[]domain.Step, error) {
	query := `
		SELECT ` + stepColumns + `
		FROM workflow_step
		WHERE workflow_id = ` + placeholder(1) + `
		ORDER BY step_order ASC
	`
	rows, err := r.db.Query(query, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []domain.Step
	for rows.Next() {
		var s domain.Step
		if err := rows.Scan(&s.ID, &s.WorkflowID, &s.StepOrder, &s.StepType, &s.Config); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return &steps, nil
}
