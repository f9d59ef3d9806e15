package engine

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/opskit/flowline/internal/domain"
)

// ValidateWorkflow checks a workflow definition and its steps before save.
// All problems are reported together rather than first-error-wins.
func ValidateWorkflow(wf *domain.Workflow, steps []domain.Step) error {
	var result error

	if wf.Name == "" {
		result = multierror.Append(result, fmt.Errorf("workflow name is required"))
	}
	if wf.TenantID == "" {
		result = multierror.Append(result, fmt.Errorf("tenant id is required"))
	}
	if !KnownTrigger(wf.TriggerType) {
		result = multierror.Append(result, fmt.Errorf("unknown trigger type %q", wf.TriggerType))
	}
	if cfg, err := ParseTriggerConfig(wf.TriggerConfig); err != nil {
		result = multierror.Append(result, fmt.Errorf("trigger config: %w", err))
	} else {
		for i, p := range cfg.Predicates {
			if err := p.Validate(); err != nil {
				result = multierror.Append(result, fmt.Errorf("trigger predicate %d: %w", i+1, err))
			}
		}
	}

	orders := make(map[int]bool, len(steps))
	lastOrder := 0
	for i := range steps {
		step := steps[i]
		prefix := fmt.Sprintf("step %d", i+1)

		if step.StepOrder < 1 {
			result = multierror.Append(result, fmt.Errorf("%s: step order must be 1 or greater", prefix))
		} else if step.StepOrder <= lastOrder {
			result = multierror.Append(result, fmt.Errorf("%s: step order %d is not strictly increasing", prefix, step.StepOrder))
		}
		lastOrder = step.StepOrder
		orders[step.StepOrder] = true

		if err := validateStepConfig(&step); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", prefix, err))
		}
	}

	// condition branch targets must name a later step in this workflow
	for i := range steps {
		step := steps[i]
		if step.StepType != domain.StepTypeCondition {
			continue
		}
		cfg, err := ParseConditionConfig(step.Config)
		if err != nil {
			continue // reported above
		}
		if cfg.SkipToOrder != 0 {
			if cfg.SkipToOrder <= step.StepOrder {
				result = multierror.Append(result,
					fmt.Errorf("step %d: skip target %d must be after step order %d", i+1, cfg.SkipToOrder, step.StepOrder))
			} else if !orders[cfg.SkipToOrder] {
				result = multierror.Append(result,
					fmt.Errorf("step %d: skip target %d does not name a step", i+1, cfg.SkipToOrder))
			}
		}
	}

	return result
}

func validateStepConfig(step *domain.Step) error {
	switch step.StepType {
	case domain.StepTypeAction:
		if _, err := ParseActionConfig(step.Config); err != nil {
			return err
		}
	case domain.StepTypeCondition:
		cfg, err := ParseConditionConfig(step.Config)
		if err != nil {
			return err
		}
		if len(cfg.Predicates) == 0 {
			return fmt.Errorf("condition config requires at least one predicate")
		}
	case domain.StepTypeDelay:
		if _, _, err := ParseDelayConfig(step.Config); err != nil {
			return err
		}
	case domain.StepTypeApproval:
		if _, err := ParseApprovalConfig(step.Config); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown step type %q", step.StepType)
	}
	return nil
}
