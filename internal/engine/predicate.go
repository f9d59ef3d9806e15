package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Predicate is one field test inside a trigger filter or condition step.
// Values are compared as strings for eq/neq/contains and numerically for the
// range operators.
type Predicate struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value string `json:"value"`
}

const (
	OpEq       = "eq"
	OpNeq      = "neq"
	OpGt       = "gt"
	OpGte      = "gte"
	OpLt       = "lt"
	OpLte      = "lte"
	OpContains = "contains"
)

var knownOps = map[string]bool{
	OpEq: true, OpNeq: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true, OpContains: true,
}

// TriggerConfig is the persisted shape of a workflow's trigger filter: a
// conjunction of predicates over the event payload. An empty predicate list
// matches every event of the trigger type.
type TriggerConfig struct {
	Predicates []Predicate `json:"predicates"`
}

// ParseTriggerConfig decodes the stored JSON. An empty string is a valid
// match-all filter.
func ParseTriggerConfig(raw string) (*TriggerConfig, error) {
	cfg := &TriggerConfig{}
	if strings.TrimSpace(raw) == "" {
		return cfg, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("invalid trigger config: %w", err)
	}
	for _, p := range cfg.Predicates {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (p Predicate) Validate() error {
	if p.Field == "" {
		return fmt.Errorf("predicate field must not be empty")
	}
	if !knownOps[p.Op] {
		return fmt.Errorf("unknown predicate op: %q", p.Op)
	}
	return nil
}

// Eval tests the predicate against a flat field map. A predicate referencing
// an absent field evaluates to false, as does a range op over a non-numeric
// value: the filter fails closed rather than erroring.
func (p Predicate) Eval(fields map[string]string) bool {
	actual, ok := fields[p.Field]
	if !ok {
		return false
	}
	switch p.Op {
	case OpEq:
		return actual == p.Value
	case OpNeq:
		return actual != p.Value
	case OpContains:
		return strings.Contains(actual, p.Value)
	case OpGt, OpGte, OpLt, OpLte:
		a, err1 := strconv.ParseFloat(actual, 64)
		b, err2 := strconv.ParseFloat(p.Value, 64)
		if err1 != nil || err2 != nil {
			return false
		}
		switch p.Op {
		case OpGt:
			return a > b
		case OpGte:
			return a >= b
		case OpLt:
			return a < b
		case OpLte:
			return a <= b
		}
	}
	return false
}

// EvalAll is the conjunction over all predicates.
func EvalAll(predicates []Predicate, fields map[string]string) bool {
	for _, p := range predicates {
		if !p.Eval(fields) {
			return false
		}
	}
	return true
}
