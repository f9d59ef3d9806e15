package repository

import (
	"database/sql"
	"strings"

	"github.com/opskit/flowline/internal/core"
	"github.com/opskit/flowline/internal/domain"
)

const workflowColumns = ` id, tenant_id, name, trigger_type, trigger_config, status, created, modified `

// WorkflowRepository provides tenant-scoped reads and writes over workflow
// definitions. Destructive operations that touch dependent rows live on
// IntegrityRepository instead.
type WorkflowRepository struct {
	db    *sql.DB
	clock core.Clock
}

func NewWorkflowRepository(db *sql.DB, clock core.Clock) *WorkflowRepository {
	return &WorkflowRepository{db: db, clock: clock}
}

func (r *WorkflowRepository) Save(wf *domain.Workflow) (int64, error) {
	vals := []interface{}{wf.TenantID, wf.Name, wf.TriggerType, wf.TriggerConfig, wf.Status,
		formatDateInDatabase(wf.Created), formatDateInDatabase(wf.Modified)}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	base := `INSERT INTO workflow (
		tenant_id, name, trigger_type, trigger_config, status, created, modified
	) VALUES (` + strings.Join(pps, ", ") + `)`
	var err error
	if supportsReturning() {
		query := base + " RETURNING id"
		err = r.db.QueryRow(query, vals...).Scan(&wf.ID)
	} else {
		res, e := r.db.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				wf.ID = id
			}
		}
	}
	return wf.ID, err
}

func (r *WorkflowRepository) Update(wf *domain.Workflow) error {
	query := `
		UPDATE workflow
		SET name = ` + placeholder(1) + `, trigger_type = ` + placeholder(2) + `,
		    trigger_config = ` + placeholder(3) + `, status = ` + placeholder(4) + `,
		    modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(5) + `
	`
	_, err := r.db.Exec(query, wf.Name, wf.TriggerType, wf.TriggerConfig, wf.Status, wf.ID)
	return err
}

func (r *WorkflowRepository) UpdateStatus(id int64, status string) error {
	query := `
		UPDATE workflow
		SET status = ` + placeholder(1) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, status, id)
	return err
}

func (r *WorkflowRepository) FindByID(id int64) (*domain.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflow WHERE id = ` + placeholder(1) + `
	`
	var wf domain.Workflow
	err := r.db.QueryRow(query, id).Scan(
		&wf.ID,
		&wf.TenantID,
		&wf.Name,
		&wf.TriggerType,
		&wf.TriggerConfig,
		&wf.Status,
		&wf.Created,
		&wf.Modified,
	)
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

// FindActiveByTrigger returns the tenant's ACTIVE workflows for a trigger
// type. This is the trigger matcher's only query path.
func (r *WorkflowRepository) FindActiveByTrigger(tenantID string, triggerType string) (*[]domain.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflow
		WHERE tenant_id = ` + placeholder(1) + `
		  AND trigger_type = ` + placeholder(2) + `
		  AND status = '` + domain.WorkflowStatusActive + `'
		ORDER BY id ASC
	`
	rows, err := r.db.Query(query, tenantID, triggerType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []domain.Workflow
	for rows.Next() {
		var wf domain.Workflow
		if err := rows.Scan(
			&wf.ID,
			&wf.TenantID,
			&wf.Name,
			&wf.TriggerType,
			&wf.TriggerConfig,
			&wf.Status,
			&wf.Created,
			&wf.Modified,
		); err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return &workflows, nil
}

func (r *WorkflowRepository) FindByTenant(tenantID string) (*[]domain.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflow
		WHERE tenant_id = ` + placeholder(1) + `
		ORDER BY id DESC
	`
	rows, err := r.db.Query(query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []domain.Workflow
	for rows.Next() {
		var wf domain.Workflow
		if err := rows.Scan(
			&wf.ID,
			&wf.TenantID,
			&wf.Name,
			&wf.TriggerType,
			&wf.TriggerConfig,
			&wf.Status,
			&wf.Created,
			&wf.Modified,
		); err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return &workflows, nil
}
