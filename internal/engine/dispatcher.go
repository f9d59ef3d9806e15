package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/opskit/flowline/internal/domain"
)

// Dispatcher is the single entry point for incoming events. It validates the
// payload against the trigger catalog, asks the matcher which workflows fire,
// and starts one run per match.
type Dispatcher struct {
	matcher     *TriggerMatcher
	coordinator *Coordinator
}

func NewDispatcher(matcher *TriggerMatcher, coordinator *Coordinator) *Dispatcher {
	return &Dispatcher{matcher: matcher, coordinator: coordinator}
}

// Dispatch processes one event for one tenant. Unknown event types are a
// no-op. When the payload carries an event_id the dispatch is idempotent per
// workflow; without one, each call is a distinct firing and a crashed caller
// retrying may start a second run.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID string, eventType string, payload map[string]string, actorID string) ([]*domain.Run, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}
	if !KnownTrigger(eventType) {
		slog.DebugContext(ctx, "Dropping event with unknown type", "event_type", eventType, "tenant_id", tenantID)
		return nil, nil
	}

	var verr error
	for _, key := range RequiredPayloadKeys(eventType) {
		if payload[key] == "" {
			verr = multierror.Append(verr, fmt.Errorf("payload key %q is required for %s events", key, eventType))
		}
	}
	if verr != nil {
		return nil, verr
	}

	eventID := payload["event_id"]
	if eventID == "" {
		eventID = uuid.NewString()
	}
	eventKey := eventType + ":" + eventID

	workflowIDs, err := d.matcher.Match(ctx, tenantID, eventType, payload)
	if err != nil {
		return nil, fmt.Errorf("match workflows: %w", err)
	}
	if len(workflowIDs) == 0 {
		slog.DebugContext(ctx, "No workflows matched event", "event_type", eventType, "tenant_id", tenantID)
		return nil, nil
	}

	// a failure starting one run must not block the others; the caller gets
	// every run that did start plus the combined error
	var runs []*domain.Run
	var rerr error
	for _, workflowID := range workflowIDs {
		run, err := d.coordinator.StartRun(ctx, workflowID, eventType, payload, tenantID, actorID, eventKey)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to start run for matched workflow",
				"workflow_id", workflowID, "event_type", eventType, "tenant_id", tenantID, "error", err)
			rerr = multierror.Append(rerr, fmt.Errorf("workflow %d: %w", workflowID, err))
			continue
		}
		runs = append(runs, run)
	}
	return runs, rerr
}
