package checks

import (
	"context"

	"github.com/triage-ai/palisade/services/intent_guard/internal/engine"
	"github.com/triage-ai/palisade/services/intent_guard/internal/locking"
)

// StalenessCheck allows a write only when the target still matches the
// snapshot taken when the agent last read it.
type StalenessCheck struct {
	store *locking.Store
}

func NewStalenessCheck(store *locking.Store) *StalenessCheck {
	return &StalenessCheck{store: store}
}

func (c *StalenessCheck) Name() string {
	return "staleness"
}

func (c *StalenessCheck) Check(_ context.Context, call *engine.Call) (*engine.Decision, error) {
	if !call.IsWrite() {
		return nil, nil
	}
	rel, ok := call.TargetPath()
	if !ok {
		return nil, nil
	}

	key := locking.Key{SessionID: call.SessionID, IntentID: call.Active.ID, RelPath: locking.CleanRelPath(rel)}
	switch c.store.Verify(call.Root, key) {
	case locking.NoSnapshot:
		return engine.Blocked(c.Name(), engine.MsgNoSnapshot(rel)), nil
	case locking.Changed:
		return engine.Blocked(c.Name(), engine.MsgStaleFile(rel)), nil
	case locking.Unverifiable:
		return engine.Blocked(c.Name(), engine.MsgUnverifiable(rel)), nil
	}
	return nil, nil
}
