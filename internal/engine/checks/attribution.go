package checks

import (
	"context"
	"strings"

	"github.com/triage-ai/palisade/services/intent_guard/internal/engine"
	"github.com/triage-ai/palisade/services/intent_guard/internal/registry"
)

// AttributionCheck requires every write to name the active intent and a
// mutation class.
type AttributionCheck struct{}

func NewAttributionCheck() *AttributionCheck {
	return &AttributionCheck{}
}

func (c *AttributionCheck) Name() string {
	return "attribution"
}

func (c *AttributionCheck) Check(_ context.Context, call *engine.Call) (*engine.Decision, error) {
	if !call.IsWrite() {
		return nil, nil
	}

	toolIntentID, _ := call.Args.String("intent_id")
	toolIntentID = strings.TrimSpace(toolIntentID)
	if toolIntentID == "" {
		return engine.Blocked(c.Name(), engine.MsgMissingIntentID), nil
	}

	mutation, _ := call.Args.String("mutation_class")
	if mutation != registry.MutationASTRefactor && mutation != registry.MutationIntentEvolution {
		return engine.Blocked(c.Name(), engine.MsgBadMutationClass), nil
	}

	if toolIntentID != call.Active.ID {
		return engine.Blocked(c.Name(), engine.MsgIntentMismatch(toolIntentID, call.Active.ID)), nil
	}
	return nil, nil
}
