package domain

import (
	"database/sql"
	"time"
)

const (
	StepExecutionStatusPending   = "PENDING"
	StepExecutionStatusRunning   = "RUNNING"
	StepExecutionStatusSucceeded = "SUCCEEDED"
	StepExecutionStatusFailed    = "FAILED"
	StepExecutionStatusSkipped   = "SKIPPED"
	// StepExecutionStatusAbandoned marks an execution orphaned by operator
	// cancellation, distinct from FAILED so audit trails can tell them apart.
	StepExecutionStatusAbandoned = "ABANDONED"
)

// StepExecution records one step's outcome within one run. Created lazily as
// execution reaches the step, never pre-created for the whole run. StepOrder
// is denormalized so audit reads survive later step-list edits.
type StepExecution struct {
	ID        int64          // BIGSERIAL
	RunID     int64          // BIGINT (foreign key)
	StepID    int64          // BIGINT (foreign key)
	StepOrder int            // INT
	Status    string         // TEXT
	Started   time.Time      // TIMESTAMP
	Completed sql.NullTime   // TIMESTAMP
	Output    sql.NullString // TEXT, JSON result such as resolved message text
	Error     sql.NullString // TEXT, failure reason
}
