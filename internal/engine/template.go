package engine

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/opskit/flowline/internal/domain"
)

var templateFieldPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// ResolveTemplate substitutes {{field}} placeholders from the execution
// context. Unknown fields resolve to the empty string; message templates must
// not leak placeholder syntax to recipients.
func ResolveTemplate(tmpl string, fields map[string]string) string {
	return templateFieldPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := templateFieldPattern.FindStringSubmatch(m)[1]
		return fields[name]
	})
}

// ExecutionContext flattens the run's triggering payload and the outputs of
// prior step executions into one field map. Prior outputs are exposed as
// steps.<order>.<field> for JSON-object outputs, steps.<order>.output for
// anything else.
func ExecutionContext(run *domain.Run, prior []domain.StepExecution) map[string]string {
	fields := map[string]string{}

	var payload map[string]string
	if err := json.Unmarshal([]byte(run.EventPayload), &payload); err == nil {
		for k, v := range payload {
			fields[k] = v
		}
	}

	for _, se := range prior {
		if !se.Output.Valid || se.Output.String == "" {
			continue
		}
		prefix := fmt.Sprintf("steps.%d.", se.StepOrder)
		var out map[string]string
		if err := json.Unmarshal([]byte(se.Output.String), &out); err == nil {
			for k, v := range out {
				fields[prefix+k] = v
			}
		} else {
			fields[prefix+"output"] = se.Output.String
		}
	}
	return fields
}
