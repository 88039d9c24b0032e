package checks

import (
	"context"

	"github.com/triage-ai/palisade/services/intent_guard/internal/engine"
	"github.com/triage-ai/palisade/services/intent_guard/internal/policy"
)

// ScopeCheck confines writes to the active intent's scope globs. An
// intent with no scope permits no writes.
type ScopeCheck struct{}

func NewScopeCheck() *ScopeCheck {
	return &ScopeCheck{}
}

func (c *ScopeCheck) Name() string {
	return "scope"
}

func (c *ScopeCheck) Check(_ context.Context, call *engine.Call) (*engine.Decision, error) {
	if !call.IsWrite() {
		return nil, nil
	}
	rel, ok := call.TargetPath()
	if !ok {
		return nil, nil
	}

	scope := call.Active.ScopePaths
	if len(scope) == 0 {
		return engine.Blocked(c.Name(), engine.MsgEmptyScope), nil
	}
	if !policy.IsPathWithinScope(rel, scope) {
		return engine.Blocked(c.Name(), engine.MsgOutOfScope(rel, scope)), nil
	}
	return nil, nil
}
