package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/triage-ai/palisade/services/intent_guard/internal/approval"
	"github.com/triage-ai/palisade/services/intent_guard/internal/auth"
	"github.com/triage-ai/palisade/services/intent_guard/internal/engine"
	"github.com/triage-ai/palisade/services/intent_guard/internal/intents"
	"github.com/triage-ai/palisade/services/intent_guard/internal/locking"
	"github.com/triage-ai/palisade/services/intent_guard/internal/recorder"
	"github.com/triage-ai/palisade/services/intent_guard/internal/storage"
)

// IntentGuardServer implements IntentGuardService.
type IntentGuardServer struct {
	engine   *engine.IntentGuardEngine
	recorder *recorder.Recorder
	store    *locking.Store
	intents  intents.Registry
	auth     auth.Authenticator
	writer   storage.EventWriter
	logger   *zap.Logger
}

// NewIntentGuardServer creates a new IntentGuardServer with the given dependencies.
func NewIntentGuardServer(
	eng *engine.IntentGuardEngine,
	rec *recorder.Recorder,
	store *locking.Store,
	reg intents.Registry,
	authenticator auth.Authenticator,
	writer storage.EventWriter,
	logger *zap.Logger,
) *IntentGuardServer {
	return &IntentGuardServer{
		engine:   eng,
		recorder: rec,
		store:    store,
		intents:  reg,
		auth:     authenticator,
		writer:   writer,
		logger:   logger,
	}
}

// PreToolUse runs the gate for one tool call.
func (s *IntentGuardServer) PreToolUse(ctx context.Context, req *PreToolUseRequest) (*PreToolUseResponse, error) {
	ws, err := s.auth.Authenticate(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "authentication failed: %v", err)
	}
	if req.SessionID == "" || req.ToolName == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id and tool_name are required")
	}

	// A confirmation carried on the request answers the approval prompt.
	ctx = approval.WithConfirmation(ctx, req.UserConfirmed)
	d, latency := s.engine.PreToolUse(ctx, &engine.Request{
		Root:      ws.Root,
		SessionID: snapshotSession(ws, req.SessionID),
		ToolName:  req.ToolName,
		Args:      req.ToolArgs,
	})

	requestID := uuid.New().String()
	latencyMs := float32(float64(latency) / float64(time.Millisecond))

	resp := &PreToolUseResponse{
		Decision:   string(d.Kind),
		ToolResult: d.Message,
		Check:      d.Check,
		Enforced:   true,
		RequestID:  requestID,
		LatencyMs:  latencyMs,
	}
	if d.Kind == engine.KindBlocked && ws.Shadow() {
		resp.Decision = string(engine.KindContinue)
		resp.ToolResult = ""
		resp.ShadowResult = d.Message
		resp.Enforced = false
	}

	s.writeEvent(&storage.GateEvent{
		RequestID:     requestID,
		WorkspaceID:   ws.WorkspaceID,
		Hook:          storage.HookPreToolUse,
		SessionID:     req.SessionID,
		ToolName:      req.ToolName,
		ArgumentsJSON: argumentsJSON(req.ToolArgs),
		Decision:      string(d.Kind),
		Check:         d.Check,
		Reason:        d.Message,
		ActiveIntent:  s.activeIntentID(ws.Root),
		UserConfirmed: req.UserConfirmed,
		LatencyMs:     latencyMs,
		Source:        sourceFor(ws, req.ClientTraceID),
	})
	return resp, nil
}

// PostToolUse records snapshots and trace entries for a finished call.
func (s *IntentGuardServer) PostToolUse(ctx context.Context, req *PostToolUseRequest) (*PostToolUseResponse, error) {
	start := time.Now()

	ws, err := s.auth.Authenticate(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "authentication failed: %v", err)
	}
	if req.SessionID == "" || req.ToolName == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id and tool_name are required")
	}

	res := s.recorder.PostToolUse(ctx, &recorder.Request{
		Root:       ws.Root,
		SessionID:  req.SessionID,
		ModelID:    req.ModelID,
		ToolName:   req.ToolName,
		Args:       req.ToolArgs,
		ToolResult: req.ToolResult,

		SnapshotSession: snapshotSession(ws, req.SessionID),
	})

	requestID := uuid.New().String()
	resp := &PostToolUseResponse{
		RequestID: requestID,
		Snapshots: int32(res.Snapshots),
	}
	activeIntent := ""
	if res.Trace != nil {
		resp.TraceID = res.Trace.ID
		activeIntent = res.Trace.IntentID()
	}

	s.writeEvent(&storage.GateEvent{
		RequestID:     requestID,
		WorkspaceID:   ws.WorkspaceID,
		Hook:          storage.HookPostToolUse,
		SessionID:     req.SessionID,
		ToolName:      req.ToolName,
		ArgumentsJSON: argumentsJSON(req.ToolArgs),
		ActiveIntent:  activeIntent,
		Snapshots:     resp.Snapshots,
		Traced:        res.Trace != nil,
		LatencyMs:     float32(float64(time.Since(start)) / float64(time.Millisecond)),
		Source:        sourceFor(ws, ""),
	})
	return resp, nil
}

// EndSession drops every read snapshot the session captured.
func (s *IntentGuardServer) EndSession(ctx context.Context, req *EndSessionRequest) (*EndSessionResponse, error) {
	ws, err := s.auth.Authenticate(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "authentication failed: %v", err)
	}
	if req.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}

	cleared := s.store.ClearSession(snapshotSession(ws, req.SessionID))
	s.logger.Debug("session ended",
		zap.String("workspace_id", ws.WorkspaceID),
		zap.String("session_id", req.SessionID),
		zap.Int("cleared", cleared),
		zap.Int("snapshots_held", s.store.Len()),
	)

	s.writeEvent(&storage.GateEvent{
		RequestID:   uuid.New().String(),
		WorkspaceID: ws.WorkspaceID,
		Hook:        storage.HookEndSession,
		SessionID:   req.SessionID,
		Snapshots:   int32(cleared),
		Source:      sourceFor(ws, ""),
	})
	return &EndSessionResponse{ClearedSnapshots: int32(cleared)}, nil
}

func (s *IntentGuardServer) writeEvent(event *storage.GateEvent) {
	if s.writer == nil {
		return
	}
	event.Timestamp = time.Now()
	s.writer.Write(event)
}

func (s *IntentGuardServer) activeIntentID(root string) string {
	if s.intents == nil {
		return ""
	}
	if in, ok := intents.ResolveActive(s.intents, root); ok {
		return in.ID
	}
	return ""
}

// snapshotSession scopes a client session id to its workspace. Clients pick
// their own ids, so two tenants may send the same one.
func snapshotSession(ws *auth.WorkspaceContext, sessionID string) string {
	return ws.WorkspaceID + "/" + sessionID
}

func argumentsJSON(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func sourceFor(ws *auth.WorkspaceContext, clientTraceID string) string {
	src := "intent_guard:" + ws.Mode
	if clientTraceID != "" {
		src += ":" + clientTraceID
	}
	return src
}
