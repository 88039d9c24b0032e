package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/intent_guard/internal/intents"
	"github.com/triage-ai/palisade/services/intent_guard/internal/registry"
)

// IntentGuardEngine is the pre-execution gate. It runs its checks in
// order against every tool call except the intent handshake, which it
// resolves itself.
type IntentGuardEngine struct {
	tools   registry.ToolRegistry
	intents intents.Registry
	checks  []Check
	logger  *zap.Logger
}

// NewIntentGuardEngine creates an engine with the given ordered checks.
func NewIntentGuardEngine(tools registry.ToolRegistry, reg intents.Registry, checks []Check, logger *zap.Logger) *IntentGuardEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntentGuardEngine{
		tools:   tools,
		intents: reg,
		checks:  checks,
		logger:  logger,
	}
}

// PreToolUse decides whether a tool call may run. Policy rejections are
// Decisions, never errors.
func (e *IntentGuardEngine) PreToolUse(ctx context.Context, req *Request) (Decision, time.Duration) {
	start := time.Now()

	var d Decision
	if req.ToolName == registry.ToolSelectActiveIntent {
		d = e.selectIntent(req)
	} else {
		d = e.runChecks(ctx, req)
	}

	latency := time.Since(start)
	e.logger.Debug("gate decision",
		zap.String("tool_name", req.ToolName),
		zap.String("session_id", req.SessionID),
		zap.String("kind", string(d.Kind)),
		zap.String("check", d.Check),
		zap.String("reason", d.Message),
		zap.Duration("latency", latency),
	)
	return d, latency
}

func (e *IntentGuardEngine) runChecks(ctx context.Context, req *Request) Decision {
	call := &Call{Request: *req, Tool: e.tools.GetTool(req.ToolName)}

	for _, c := range e.checks {
		if err := ctx.Err(); err != nil {
			return *Blocked(c.Name(), msgCheckFailed(c.Name(), err))
		}
		d, err := c.Check(ctx, call)
		if err != nil {
			e.logger.Warn("check error, blocking call",
				zap.String("check", c.Name()),
				zap.String("tool_name", req.ToolName),
				zap.Error(err),
			)
			return *Blocked(c.Name(), msgCheckFailed(c.Name(), err))
		}
		if d != nil {
			if d.Check == "" {
				d.Check = c.Name()
			}
			return *d
		}
	}
	return Continue()
}
