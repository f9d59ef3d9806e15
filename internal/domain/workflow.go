package domain

import "time"

const (
	WorkflowStatusDraft    = "DRAFT"
	WorkflowStatusActive   = "ACTIVE"
	WorkflowStatusArchived = "ARCHIVED"
)

const (
	StepTypeAction    = "ACTION"
	StepTypeCondition = "CONDITION"
	StepTypeDelay     = "DELAY"
	StepTypeApproval  = "APPROVAL"
)

// Workflow is a tenant-defined automation: a trigger plus an ordered step list.
// TriggerConfig and any builder layout data are stored as opaque JSON; execution
// order comes solely from the step_order column of the steps.
type Workflow struct {
	ID            int64     // BIGSERIAL
	TenantID      string    // TEXT
	Name          string    // TEXT
	TriggerType   string    // TEXT, one of the engine trigger catalog
	TriggerConfig string    // TEXT, JSON predicate conjunction
	Status        string    // TEXT: DRAFT | ACTIVE | ARCHIVED
	Created       time.Time // TIMESTAMP
	Modified      time.Time // TIMESTAMP
}

// Step is one ordered unit of work in a workflow. Config is type-specific JSON.
type Step struct {
	ID         int64  // BIGSERIAL
	WorkflowID int64  // BIGINT (foreign key)
	StepOrder  int    // INT, strictly increasing per workflow
	StepType   string // TEXT: ACTION | CONDITION | DELAY | APPROVAL
	Config     string // TEXT, JSON
}
