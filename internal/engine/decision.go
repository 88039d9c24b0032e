package engine

// Kind is the terminal state of a gate evaluation.
type Kind string

const (
	// KindContinue lets the real tool run.
	KindContinue Kind = "continue"
	// KindBlocked rejects the call; Message is returned as a tool error.
	KindBlocked Kind = "blocked"
	// KindHandled means the gate produced the tool result itself.
	KindHandled Kind = "handled"
)

// Decision is the outcome of PreToolUse.
type Decision struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"tool_result,omitempty"`
	// Check names the step that decided. Empty for continue.
	Check string `json:"check,omitempty"`
}

// Continue returns a pass-through decision.
func Continue() Decision {
	return Decision{Kind: KindContinue}
}

// Blocked returns a rejection carrying msg.
func Blocked(check, msg string) *Decision {
	return &Decision{Kind: KindBlocked, Message: msg, Check: check}
}

// Handled returns a decision whose message is the tool result.
func Handled(check, msg string) *Decision {
	return &Decision{Kind: KindHandled, Message: msg, Check: check}
}

// Proceed reports whether the real tool should run.
func (d Decision) Proceed() bool {
	return d.Kind == KindContinue
}
