package models

import "time"

// DispatchEventRequest is the payload entity-mutation collaborators post after
// a committed state change. Payload is a flat key/value map; when it carries
// an "event_id" key, run creation is idempotent per matched workflow.
type DispatchEventRequest struct {
	TenantID  string            `json:"tenantId"`
	EventType string            `json:"eventType"`
	Payload   map[string]string `json:"payload"`
	ActorID   string            `json:"actorId"`
}

type DispatchEventResponse struct {
	RunIDs []int64 `json:"runIds"`
}

// SaveStepRequest is one step in a workflow save. Config is type-specific JSON
// kept as a raw string; the engine validates it before the save is accepted.
type SaveStepRequest struct {
	StepOrder int    `json:"stepOrder"`
	StepType  string `json:"stepType"`
	Config    string `json:"config"`
}

type SaveWorkflowRequest struct {
	TenantID      string            `json:"tenantId"`
	Name          string            `json:"name"`
	TriggerType   string            `json:"triggerType"`
	TriggerConfig string            `json:"triggerConfig"`
	Status        string            `json:"status"`
	Steps         []SaveStepRequest `json:"steps"`
}

type SaveWorkflowResponse struct {
	ID int64 `json:"id"`
}

type WorkflowApiResponse struct {
	ID            int64             `json:"id"`
	TenantID      string            `json:"tenantId"`
	Name          string            `json:"name"`
	TriggerType   string            `json:"triggerType"`
	TriggerConfig string            `json:"triggerConfig"`
	Status        string            `json:"status"`
	Created       time.Time         `json:"created"`
	Modified      time.Time         `json:"modified"`
	Steps         []StepApiResponse `json:"steps,omitempty"`
}

type StepApiResponse struct {
	ID        int64  `json:"id"`
	StepOrder int    `json:"stepOrder"`
	StepType  string `json:"stepType"`
	Config    string `json:"config"`
}

// SearchRunsRequest filters the runs reporting projection. TenantID is
// mandatory; everything else narrows the result.
type SearchRunsRequest struct {
	TenantID   string `json:"tenantId"`
	WorkflowID int64  `json:"workflowId,omitempty"`
	Status     string `json:"status,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

type RunApiResponse struct {
	ID             int64                      `json:"id"`
	WorkflowID     int64                      `json:"workflowId"`
	WorkflowName   string                     `json:"workflowName,omitempty"`
	TenantID       string                     `json:"tenantId"`
	EventType      string                     `json:"eventType"`
	Status         string                     `json:"status"`
	TriggeredBy    string                     `json:"triggeredBy"`
	Started        time.Time                  `json:"started"`
	Completed      *time.Time                 `json:"completed,omitempty"`
	StepExecutions []StepExecutionApiResponse `json:"stepExecutions,omitempty"`
}

type StepExecutionApiResponse struct {
	ID        int64      `json:"id"`
	StepID    int64      `json:"stepId"`
	StepOrder int        `json:"stepOrder"`
	Status    string     `json:"status"`
	Started   time.Time  `json:"started"`
	Completed *time.Time `json:"completed,omitempty"`
	Output    string     `json:"output,omitempty"`
	Error     string     `json:"error,omitempty"`
}

type ApprovalApiResponse struct {
	ID              int64      `json:"id"`
	RunID           int64      `json:"runId"`
	StepExecutionID int64      `json:"stepExecutionId"`
	ApproverGroup   string     `json:"approverGroup"`
	Requested       time.Time  `json:"requested"`
	TimeoutAt       *time.Time `json:"timeoutAt,omitempty"`
	Decided         *time.Time `json:"decided,omitempty"`
	DecidedBy       string     `json:"decidedBy,omitempty"`
	Decision        string     `json:"decision,omitempty"`
}

type DecideApprovalRequest struct {
	Decision string `json:"decision"`
}

type CancelRunResponse struct {
	OK bool `json:"ok"`
}
