package checks

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/intent_guard/internal/engine"
	"github.com/triage-ai/palisade/services/intent_guard/internal/locking"
	"github.com/triage-ai/palisade/services/intent_guard/internal/registry"
)

// ReadTrackingCheck snapshots the file named by a read_file call. It never
// decides: an unreadable file simply leaves no snapshot.
type ReadTrackingCheck struct {
	store  *locking.Store
	logger *zap.Logger
}

func NewReadTrackingCheck(store *locking.Store, logger *zap.Logger) *ReadTrackingCheck {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadTrackingCheck{store: store, logger: logger}
}

func (c *ReadTrackingCheck) Name() string {
	return "read_tracking"
}

func (c *ReadTrackingCheck) Check(_ context.Context, call *engine.Call) (*engine.Decision, error) {
	if call.ToolName != registry.ToolReadFile {
		return nil, nil
	}
	rel, ok := call.Args.String("path")
	if !ok || strings.TrimSpace(rel) == "" {
		return nil, nil
	}

	key := locking.Key{SessionID: call.SessionID, IntentID: call.Active.ID, RelPath: locking.CleanRelPath(rel)}
	if err := c.store.Capture(call.Root, key, registry.ToolReadFile); err != nil {
		c.logger.Debug("read snapshot skipped",
			zap.String("path", rel),
			zap.Error(err),
		)
	}
	return nil, nil
}
