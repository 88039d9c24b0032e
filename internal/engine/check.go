package engine

import (
	"context"

	"github.com/triage-ai/palisade/services/intent_guard/internal/intents"
	"github.com/triage-ai/palisade/services/intent_guard/internal/registry"
)

// Check is one step of the gate. Checks run in order; the first non-nil
// Decision ends evaluation. Implementations must respect ctx.
type Check interface {
	// Name returns the check's unique identifier.
	Name() string

	// Check inspects the call. A nil Decision falls through to the next
	// check. A returned error blocks the call.
	Check(ctx context.Context, call *Call) (*Decision, error)
}

// Request is the gate input for one tool call.
type Request struct {
	Root      string        `json:"workspace_root"`
	SessionID string        `json:"session_id"`
	ToolName  string        `json:"tool_name"`
	Args      registry.Args `json:"tool_args"`
}

// Call carries a Request through the checks.
type Call struct {
	Request
	Tool *registry.ToolDefinition // nil for tools outside the catalog

	// Active is set by the activation check. Later checks may rely on it.
	Active *intents.Intent
}

// TargetPath returns the write target named by the tool's path argument.
func (c *Call) TargetPath() (string, bool) {
	return c.Tool.TargetPath(c.Args)
}

// IsWrite reports whether the call targets a write-class tool.
func (c *Call) IsWrite() bool {
	return c.Tool.IsWrite()
}
