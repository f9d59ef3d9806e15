package domain

import (
	"database/sql"
	"time"
)

const (
	RunStatusRunning         = "RUNNING"
	RunStatusWaitingApproval = "WAITING_APPROVAL"
	RunStatusCompleted       = "COMPLETED"
	RunStatusFailed          = "FAILED"
	RunStatusCancelled       = "CANCELLED"
)

// RunStatusTerminal reports whether a run status admits no further transitions.
func RunStatusTerminal(status string) bool {
	return status == RunStatusCompleted || status == RunStatusFailed || status == RunStatusCancelled
}

// Run is one execution instance of a workflow, created per matched trigger
// firing. EventPayload is an immutable snapshot of the triggering event.
type Run struct {
	ID           int64          // BIGSERIAL
	WorkflowID   int64          // BIGINT (foreign key)
	TenantID     string         // TEXT
	EventType    string         // TEXT
	EventPayload string         // TEXT, JSON snapshot
	EventKey     sql.NullString // TEXT, idempotency token, unique per workflow when set
	Status       string         // TEXT: RUNNING | WAITING_APPROVAL | COMPLETED | FAILED | CANCELLED
	TriggeredBy  string         // TEXT, actor id or "system"
	WakeAt       sql.NullTime   // TIMESTAMP, resume time while suspended on a delay step
	Started      time.Time      // TIMESTAMP
	Completed    sql.NullTime   // TIMESTAMP
}
