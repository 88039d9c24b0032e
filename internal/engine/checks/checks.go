package checks

import (
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/intent_guard/internal/approval"
	"github.com/triage-ai/palisade/services/intent_guard/internal/engine"
	"github.com/triage-ai/palisade/services/intent_guard/internal/intents"
	"github.com/triage-ai/palisade/services/intent_guard/internal/locking"
)

// Default returns the gate steps in evaluation order. The approval
// provider is bounded by cfg.ApprovalTimeout.
func Default(reg intents.Registry, store *locking.Store, provider approval.Provider, cfg engine.Config, logger *zap.Logger) []engine.Check {
	return []engine.Check{
		NewActivationCheck(reg),
		NewReadTrackingCheck(store, logger),
		NewAttributionCheck(),
		NewScopeCheck(),
		NewStalenessCheck(store),
		NewCommandApprovalCheck(approval.WithTimeout(provider, cfg.ApprovalTimeout, logger), logger),
	}
}
