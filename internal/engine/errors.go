package engine

import "errors"

// Guard errors for the run state machine and approval gate. These mark
// programming or race conditions; every one of them is a no-op for state.
var (
	// ErrRunAlreadyTerminal is returned for any attempt to execute, approve,
	// reject, or cancel against a COMPLETED, FAILED, or CANCELLED run.
	ErrRunAlreadyTerminal = errors.New("run is already terminal")

	// ErrInvalidApprovalState is returned when a decision arrives for a run
	// that is not waiting on an approval, or for an approval that does not
	// belong to the run's current open step execution.
	ErrInvalidApprovalState = errors.New("run is not waiting on this approval")

	// ErrAlreadyDecided is returned when a conflicting decision arrives for an
	// approval that was already decided. A repeated identical decision is not
	// an error; it returns the prior result.
	ErrAlreadyDecided = errors.New("approval already decided")

	// ErrRunNotDelayed is returned when a delay resume arrives for a run that
	// is not suspended on a delay step.
	ErrRunNotDelayed = errors.New("run is not suspended on a delay")

	// ErrWorkflowNotFound is returned when an operation references an unknown
	// workflow id.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrRunNotFound is returned when an operation references an unknown run id.
	ErrRunNotFound = errors.New("run not found")

	// ErrApprovalNotFound is returned when a decision references an unknown
	// approval id.
	ErrApprovalNotFound = errors.New("approval not found")
)
