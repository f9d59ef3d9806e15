package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/opskit/flowline/internal/domain"
)

// ActionConfig drives an action step: a message template dispatched through
// the messaging collaborator. Recipient, subject and body may carry
// {{field}} placeholders.
type ActionConfig struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// ConditionConfig drives a condition step. When the predicate conjunction
// does not match, the step is skipped; if SkipToOrder is set, execution jumps
// there and every jumped-over step is recorded as skipped too.
type ConditionConfig struct {
	Predicates  []Predicate `json:"predicates"`
	SkipToOrder int         `json:"skip_to_order,omitempty"`
}

type DelayConfig struct {
	Duration string `json:"duration"`
}

// ApprovalConfig drives an approval step. Timeout, when set, has the
// scheduler apply TimeoutDecision (default rejected) once it elapses.
type ApprovalConfig struct {
	Approvers       string `json:"approvers"`
	Timeout         string `json:"timeout,omitempty"`
	TimeoutDecision string `json:"timeout_decision,omitempty"`
}

func decodeStepConfig(raw string, v interface{}) error {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func ParseActionConfig(raw string) (*ActionConfig, error) {
	var cfg ActionConfig
	if err := decodeStepConfig(raw, &cfg); err != nil {
		return nil, fmt.Errorf("invalid action config: %w", err)
	}
	if cfg.Channel == "" {
		return nil, fmt.Errorf("action config requires a channel")
	}
	if cfg.Recipient == "" {
		return nil, fmt.Errorf("action config requires a recipient")
	}
	return &cfg, nil
}

func ParseConditionConfig(raw string) (*ConditionConfig, error) {
	var cfg ConditionConfig
	if err := decodeStepConfig(raw, &cfg); err != nil {
		return nil, fmt.Errorf("invalid condition config: %w", err)
	}
	for _, p := range cfg.Predicates {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("invalid condition config: %w", err)
		}
	}
	return &cfg, nil
}

func ParseDelayConfig(raw string) (*DelayConfig, time.Duration, error) {
	var cfg DelayConfig
	if err := decodeStepConfig(raw, &cfg); err != nil {
		return nil, 0, fmt.Errorf("invalid delay config: %w", err)
	}
	dur, err := time.ParseDuration(cfg.Duration)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid delay duration %q: %w", cfg.Duration, err)
	}
	if dur <= 0 {
		return nil, 0, fmt.Errorf("delay duration must be positive, got %q", cfg.Duration)
	}
	return &cfg, dur, nil
}

func ParseApprovalConfig(raw string) (*ApprovalConfig, error) {
	var cfg ApprovalConfig
	if err := decodeStepConfig(raw, &cfg); err != nil {
		return nil, fmt.Errorf("invalid approval config: %w", err)
	}
	if cfg.Approvers == "" {
		return nil, fmt.Errorf("approval config requires an approver set")
	}
	if cfg.Timeout != "" {
		if _, err := time.ParseDuration(cfg.Timeout); err != nil {
			return nil, fmt.Errorf("invalid approval timeout %q: %w", cfg.Timeout, err)
		}
	}
	if cfg.TimeoutDecision != "" {
		switch strings.ToUpper(cfg.TimeoutDecision) {
		case domain.DecisionApproved, domain.DecisionRejected:
		default:
			return nil, fmt.Errorf("invalid approval timeout decision %q", cfg.TimeoutDecision)
		}
	}
	return &cfg, nil
}

// timeoutDecisionOrDefault normalizes the configured synthetic decision;
// an unset value rejects, the conservative default.
func (c *ApprovalConfig) timeoutDecisionOrDefault() string {
	if c.TimeoutDecision == "" {
		return domain.DecisionRejected
	}
	return strings.ToUpper(c.TimeoutDecision)
}
