package engine

import (
	"context"
	"log/slog"
)

// TriggerMatcher finds the active workflows of a tenant whose trigger type
// and filter predicates match an incoming event. Pure read, no side effects.
type TriggerMatcher struct {
	workflows WorkflowStore
}

func NewTriggerMatcher(workflows WorkflowStore) *TriggerMatcher {
	return &TriggerMatcher{workflows: workflows}
}

// Match returns the ids of every matching workflow. Unknown event types
// return an empty list, never an error: events the engine does not recognize
// are a no-op, not a bug. A predicate referencing a field absent from the
// payload fails closed, as does a workflow whose stored filter no longer
// parses.
func (m *TriggerMatcher) Match(ctx context.Context, tenantID string, eventType string, payload map[string]string) ([]int64, error) {
	if !KnownTrigger(eventType) {
		slog.DebugContext(ctx, "Ignoring unrecognized event type", "event_type", eventType, "tenant_id", tenantID)
		return nil, nil
	}

	workflows, err := m.workflows.FindActiveByTrigger(tenantID, eventType)
	if err != nil {
		return nil, err
	}

	var matched []int64
	for _, wf := range *workflows {
		cfg, err := ParseTriggerConfig(wf.TriggerConfig)
		if err != nil {
			slog.WarnContext(ctx, "Skipping workflow with unparseable trigger config",
				"workflow_id", wf.ID, "tenant_id", tenantID, "error", err)
			continue
		}
		if EvalAll(cfg.Predicates, payload) {
			matched = append(matched, wf.ID)
		}
	}
	return matched, nil
}
