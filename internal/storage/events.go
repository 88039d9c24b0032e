package storage

import "time"

// EventWriter is the interface for writing gate audit events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *GateEvent)
	Close()
}

// Hooks an event can come from.
const (
	HookPreToolUse  = "pre_tool_use"
	HookPostToolUse = "post_tool_use"
	HookEndSession  = "end_session"
)

// GateEvent is one hook invocation to be persisted.
type GateEvent struct {
	RequestID     string    `json:"request_id"`
	WorkspaceID   string    `json:"workspace_id"`
	Timestamp     time.Time `json:"timestamp"`
	Hook          string    `json:"hook"`
	SessionID     string    `json:"session_id"`
	ToolName      string    `json:"tool_name"`
	ArgumentsJSON string    `json:"arguments_json"`
	Decision      string    `json:"decision"` // "continue", "blocked", "handled"; empty for post hooks
	Check         string    `json:"check"`
	Reason        string    `json:"reason"`
	ActiveIntent  string    `json:"active_intent"`
	UserConfirmed bool      `json:"user_confirmed"`
	Snapshots     int32     `json:"snapshots"`
	Traced        bool      `json:"traced"`
	LatencyMs     float32   `json:"latency_ms"`
	Source        string    `json:"source"`
}
