// Package checks implements the ordered steps of the pre-execution gate.
package checks

import (
	"context"

	"github.com/triage-ai/palisade/services/intent_guard/internal/engine"
	"github.com/triage-ai/palisade/services/intent_guard/internal/intents"
)

// ActivationCheck blocks every call made without a valid active intent.
// It applies to all tools, unknown and MCP tools included.
type ActivationCheck struct {
	intents intents.Registry
}

func NewActivationCheck(reg intents.Registry) *ActivationCheck {
	return &ActivationCheck{intents: reg}
}

func (c *ActivationCheck) Name() string {
	return "activation"
}

func (c *ActivationCheck) Check(_ context.Context, call *engine.Call) (*engine.Decision, error) {
	active, ok := intents.ResolveActive(c.intents, call.Root)
	if !ok {
		return engine.Blocked(c.Name(), engine.MsgNoActiveIntent), nil
	}
	call.Active = active
	return nil, nil
}
