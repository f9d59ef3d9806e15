package domain

import (
	"database/sql"
	"time"
)

const (
	DecisionApproved  = "APPROVED"
	DecisionRejected  = "REJECTED"
	DecisionAbandoned = "ABANDONED"
)

// Approval is a human decision gate blocking a run's progress. At most one
// open (undecided) approval exists per step execution.
type Approval struct {
	ID              int64          // BIGSERIAL
	StepExecutionID int64          // BIGINT (foreign key)
	RunID           int64          // BIGINT (foreign key, denormalized for gate lookups)
	ApproverGroup   string         // TEXT
	Requested       time.Time      // TIMESTAMP
	TimeoutAt       sql.NullTime   // TIMESTAMP, synthetic decision due time
	TimeoutDecision sql.NullString // TEXT, decision applied on timeout (default REJECTED)
	Decided         sql.NullTime   // TIMESTAMP
	DecidedBy       sql.NullString // TEXT
	Decision        sql.NullString // TEXT: APPROVED | REJECTED | ABANDONED, NULL while open
}

// Open reports whether the approval is still awaiting a decision.
func (a *Approval) Open() bool {
	return !a.Decided.Valid
}
