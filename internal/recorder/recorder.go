// Package recorder runs the post-execution side effects of a tool call:
// snapshot capture for read-like tools and trace entries for writes.
package recorder

import (
	"context"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/intent_guard/internal/locking"
	"github.com/triage-ai/palisade/services/intent_guard/internal/registry"
	"github.com/triage-ai/palisade/services/intent_guard/internal/trace"
)

// Request is a finished tool call and its textual result.
type Request struct {
	Root       string        `json:"workspace_root"`
	SessionID  string        `json:"session_id"`
	ModelID    string        `json:"model_id"`
	ToolName   string        `json:"tool_name"`
	Args       registry.Args `json:"tool_args"`
	ToolResult string        `json:"tool_result"`
	// SnapshotSession partitions read snapshots when a process serves
	// several workspaces. Empty means SessionID.
	SnapshotSession string `json:"-"`
}

func (r *Request) snapshotSession() string {
	if r.SnapshotSession != "" {
		return r.SnapshotSession
	}
	return r.SessionID
}

// Result summarizes what was recorded. It is informational only.
type Result struct {
	Snapshots int          `json:"snapshots"`
	Trace     *trace.Entry `json:"trace,omitempty"`
}

// Recorder is the post-execution hook. Every side effect is best-effort:
// PostToolUse has no error to return.
type Recorder struct {
	tools     registry.ToolRegistry
	snapshots []locking.SnapshotRecorder
	tracer    *trace.Tracer
	logger    *zap.Logger
}

// New creates a Recorder.
func New(tools registry.ToolRegistry, snapshots []locking.SnapshotRecorder, tracer *trace.Tracer, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		tools:     tools,
		snapshots: snapshots,
		tracer:    tracer,
		logger:    logger,
	}
}

// PostToolUse runs all snapshot recorders regardless of the tool outcome,
// then appends a trace entry for write-class tools.
func (r *Recorder) PostToolUse(ctx context.Context, req *Request) Result {
	var res Result
	obs := locking.Observation{
		Root:      req.Root,
		SessionID: req.snapshotSession(),
		ToolName:  req.ToolName,
		Args:      req.Args,
		Result:    req.ToolResult,
	}
	for _, s := range r.snapshots {
		res.Snapshots += s.Record(obs)
	}

	if r.tracer != nil && r.tools.GetTool(req.ToolName).IsWrite() {
		if entry, ok := r.tracer.Record(ctx, trace.Write{
			Root:      req.Root,
			SessionID: req.SessionID,
			ModelID:   req.ModelID,
			ToolName:  req.ToolName,
			Args:      req.Args,
		}); ok {
			res.Trace = entry
		}
	}

	r.logger.Debug("post tool use recorded",
		zap.String("tool_name", req.ToolName),
		zap.String("session_id", req.SessionID),
		zap.Int("snapshots", res.Snapshots),
		zap.Bool("traced", res.Trace != nil),
	)
	return res
}
