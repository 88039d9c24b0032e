package engine

import (
	"time"

	"github.com/triage-ai/palisade/services/intent_guard/internal/locking"
)

// DefaultApprovalTimeout bounds how long a destructive command waits for a
// human answer before it is rejected.
const DefaultApprovalTimeout = 5 * time.Minute

// Config holds gate and recorder tunables.
type Config struct {
	ApprovalTimeout time.Duration
	Limits          locking.Limits
	// ValidateArguments adds the argument schema check to the gate.
	ValidateArguments bool
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		ApprovalTimeout: DefaultApprovalTimeout,
		Limits:          locking.DefaultLimits(),
	}
}
