package checks

import (
	"context"

	"github.com/triage-ai/palisade/services/intent_guard/internal/engine"
	"github.com/triage-ai/palisade/services/intent_guard/internal/registry"
)

// ArgumentValidator checks tool arguments against the tool's JSON schema.
type ArgumentValidator interface {
	ValidateArguments(toolName string, args registry.Args) error
}

// ArgumentSchemaCheck blocks catalogued calls whose arguments do not match
// the tool's schema. Tools outside the catalog are left alone.
type ArgumentSchemaCheck struct {
	validator ArgumentValidator
}

func NewArgumentSchemaCheck(v ArgumentValidator) *ArgumentSchemaCheck {
	return &ArgumentSchemaCheck{validator: v}
}

func (c *ArgumentSchemaCheck) Name() string {
	return "argument_schema"
}

func (c *ArgumentSchemaCheck) Check(_ context.Context, call *engine.Call) (*engine.Decision, error) {
	if call.Tool == nil {
		return nil, nil
	}
	if err := c.validator.ValidateArguments(call.ToolName, call.Args); err != nil {
		return engine.Blocked(c.Name(), engine.MsgInvalidArguments(call.ToolName, err)), nil
	}
	return nil, nil
}

// WithArgumentSchemas returns list with an ArgumentSchemaCheck placed ahead
// of command approval, so malformed commands never reach a human.
func WithArgumentSchemas(list []engine.Check, v ArgumentValidator) []engine.Check {
	out := make([]engine.Check, 0, len(list)+1)
	inserted := false
	for _, c := range list {
		if !inserted && c.Name() == "command_approval" {
			out = append(out, NewArgumentSchemaCheck(v))
			inserted = true
		}
		out = append(out, c)
	}
	if !inserted {
		out = append(out, NewArgumentSchemaCheck(v))
	}
	return out
}
