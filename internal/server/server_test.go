package server

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/triage-ai/palisade/services/intent_guard/internal/approval"
	"github.com/triage-ai/palisade/services/intent_guard/internal/auth"
	"github.com/triage-ai/palisade/services/intent_guard/internal/engine"
	"github.com/triage-ai/palisade/services/intent_guard/internal/engine/checks"
	"github.com/triage-ai/palisade/services/intent_guard/internal/intents"
	"github.com/triage-ai/palisade/services/intent_guard/internal/locking"
	"github.com/triage-ai/palisade/services/intent_guard/internal/recorder"
	"github.com/triage-ai/palisade/services/intent_guard/internal/registry"
	"github.com/triage-ai/palisade/services/intent_guard/internal/storage"
	"github.com/triage-ai/palisade/services/intent_guard/internal/trace"
)

const registryYAML = `active_intent_id: intent_1
intents:
  - id: intent_1
    title: Build the widget
    scope:
      paths:
        - src/**
  - id: intent_2
    title: Docs
    scope:
      paths:
        - docs/**
`

// memWriter collects events synchronously.
type memWriter struct {
	mu     sync.Mutex
	events []*storage.GateEvent
}

func (w *memWriter) Write(e *storage.GateEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, e)
}

func (w *memWriter) Close() {}

func (w *memWriter) all() []*storage.GateEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*storage.GateEvent(nil), w.events...)
}

// shadowAuth serves one root in shadow mode.
type shadowAuth struct{ root string }

func (a shadowAuth) Authenticate(ctx context.Context) (*auth.WorkspaceContext, error) {
	if _, err := auth.ExtractBearerToken(ctx); err != nil {
		return nil, err
	}
	return &auth.WorkspaceContext{WorkspaceID: "ws-shadow", Root: a.root, Mode: auth.ModeShadow}, nil
}

type testServer struct {
	root   string
	client *Client
	store  *locking.Store
	writer *memWriter
}

func setupTestServer(t *testing.T, authFor func(root string) auth.Authenticator) *testServer {
	t.Helper()

	root := t.TempDir()
	writeFile(t, root, ".orchestration/active_intents.yaml", registryYAML)

	logger := zap.NewNop()
	catalog := registry.DefaultCatalog()
	reg := intents.NewFileRegistry(logger)
	store := locking.NewStore()
	cfg := engine.DefaultConfig()

	eng := engine.NewIntentGuardEngine(catalog, reg,
		checks.Default(reg, store, approval.Preconfirmed{}, cfg, logger), logger)
	tracer := trace.NewTracer(catalog, reg, logger).WithRevision(func(context.Context, string) (string, bool) {
		return "abc123", true
	})
	rec := recorder.New(catalog, locking.DefaultRecorders(store, reg, cfg.Limits, logger), tracer, logger)
	writer := &memWriter{}

	srv := grpc.NewServer()
	RegisterIntentGuardServiceServer(srv, NewIntentGuardServer(eng, rec, store, reg, authFor(root), writer, logger))

	lis, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return &testServer{root: root, client: NewClient(conn), store: store, writer: writer}
}

func staticAuth(root string) auth.Authenticator {
	return auth.NewStaticAuthenticator(root)
}

func authCtx() context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer igk_test_key_123")
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (ts *testServer) pre(t *testing.T, tool string, args registry.Args, confirmed bool) *PreToolUseResponse {
	t.Helper()
	resp, err := ts.client.PreToolUse(authCtx(), &PreToolUseRequest{
		SessionID:     "task_1",
		ToolName:      tool,
		ToolArgs:      args,
		UserConfirmed: confirmed,
	})
	if err != nil {
		t.Fatalf("PreToolUse(%s) failed: %v", tool, err)
	}
	return resp
}

func TestPreToolUse_Unauthenticated(t *testing.T) {
	ts := setupTestServer(t, staticAuth)

	_, err := ts.client.PreToolUse(context.Background(), &PreToolUseRequest{SessionID: "s", ToolName: registry.ToolReadFile})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestPreToolUse_InvalidArgument(t *testing.T) {
	ts := setupTestServer(t, staticAuth)

	_, err := ts.client.PreToolUse(authCtx(), &PreToolUseRequest{ToolName: registry.ToolReadFile})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestPreToolUse_OutOfScopeWriteBlocked(t *testing.T) {
	ts := setupTestServer(t, staticAuth)

	resp := ts.pre(t, registry.ToolWriteToFile, registry.Args{
		"path": "docs/readme.md", "content": "x", "intent_id": "intent_1", "mutation_class": "AST_REFACTOR",
	}, false)
	if resp.Decision != "blocked" || !resp.Enforced {
		t.Fatalf("expected enforced block, got %+v", resp)
	}
	if resp.Check != "scope" || !strings.Contains(resp.ToolResult, "Out-of-scope") {
		t.Fatalf("unexpected block: %+v", resp)
	}
	if resp.RequestID == "" {
		t.Fatal("expected request id")
	}

	events := ts.writer.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Hook != storage.HookPreToolUse || e.Decision != "blocked" || e.ActiveIntent != "intent_1" {
		t.Fatalf("unexpected event: %+v", e)
	}
	if !strings.Contains(e.ArgumentsJSON, `"docs/readme.md"`) {
		t.Fatalf("arguments not recorded: %s", e.ArgumentsJSON)
	}
}

func TestPreToolUse_HandshakeIsHandled(t *testing.T) {
	ts := setupTestServer(t, staticAuth)

	resp := ts.pre(t, registry.ToolSelectActiveIntent, registry.Args{"intent_id": "intent_2"}, false)
	if resp.Decision != "handled" || !strings.Contains(resp.ToolResult, "<id>intent_2</id>") {
		t.Fatalf("expected handled intent context, got %+v", resp)
	}

	// The selection is persisted: docs/ is now in scope and src/ is not.
	resp = ts.pre(t, registry.ToolWriteToFile, registry.Args{
		"path": "src/a.ts", "content": "x", "intent_id": "intent_2", "mutation_class": "AST_REFACTOR",
	}, false)
	if resp.Decision != "blocked" || resp.Check != "scope" {
		t.Fatalf("expected scope block after switching intent, got %+v", resp)
	}
}

func TestPreToolUse_DestructiveCommandUsesConfirmation(t *testing.T) {
	ts := setupTestServer(t, staticAuth)

	resp := ts.pre(t, registry.ToolExecuteCommand, registry.Args{"command": "rm -rf build"}, false)
	if resp.Decision != "blocked" || resp.ToolResult != engine.MsgCommandRejected("rm -rf build") {
		t.Fatalf("expected rejection without confirmation, got %+v", resp)
	}

	resp = ts.pre(t, registry.ToolExecuteCommand, registry.Args{"command": "rm -rf build"}, true)
	if resp.Decision != "continue" {
		t.Fatalf("expected continue with confirmation, got %+v", resp)
	}

	resp = ts.pre(t, registry.ToolExecuteCommand, registry.Args{"command": "ls -la"}, false)
	if resp.Decision != "continue" {
		t.Fatalf("safe command must continue, got %+v", resp)
	}
}

func TestPreToolUse_McpToolGated(t *testing.T) {
	ts := setupTestServer(t, staticAuth)
	writeFile(t, ts.root, ".orchestration/active_intents.yaml", "active_intent_id: null\nintents: []\n")

	resp := ts.pre(t, registry.ToolUseMcpTool, registry.Args{"server_name": "github", "tool_name": "create_issue"}, false)
	if resp.Decision != "blocked" || resp.ToolResult != engine.MsgNoActiveIntent {
		t.Fatalf("expected activation block for MCP tool, got %+v", resp)
	}
}

func TestPreToolUse_ShadowModeNeverBlocks(t *testing.T) {
	ts := setupTestServer(t, func(root string) auth.Authenticator { return shadowAuth{root: root} })

	resp := ts.pre(t, registry.ToolWriteToFile, registry.Args{
		"path": "docs/readme.md", "content": "x", "intent_id": "intent_1", "mutation_class": "AST_REFACTOR",
	}, false)
	if resp.Decision != "continue" || resp.Enforced || resp.ToolResult != "" {
		t.Fatalf("shadow mode must continue, got %+v", resp)
	}
	if !strings.Contains(resp.ShadowResult, "Out-of-scope") {
		t.Fatalf("expected suppressed message, got %q", resp.ShadowResult)
	}

	events := ts.writer.all()
	if len(events) != 1 || events[0].Decision != "blocked" || events[0].WorkspaceID != "ws-shadow" {
		t.Fatalf("shadow decision must still be recorded as blocked: %+v", events)
	}
}

func TestReadWriteFlow(t *testing.T) {
	ts := setupTestServer(t, staticAuth)
	writeFile(t, ts.root, "src/a.ts", "old\n")

	writeArgs := registry.Args{
		"path": "src/a.ts", "content": "new\nline\n", "intent_id": "intent_1", "mutation_class": "AST_REFACTOR",
	}

	resp := ts.pre(t, registry.ToolWriteToFile, writeArgs, false)
	if resp.Decision != "blocked" || resp.ToolResult != engine.MsgNoSnapshot("src/a.ts") {
		t.Fatalf("write before read must be blocked, got %+v", resp)
	}

	if resp := ts.pre(t, registry.ToolReadFile, registry.Args{"path": "src/a.ts"}, false); resp.Decision != "continue" {
		t.Fatalf("read must continue, got %+v", resp)
	}
	if resp := ts.pre(t, registry.ToolWriteToFile, writeArgs, false); resp.Decision != "continue" {
		t.Fatalf("write after read must continue, got %+v", resp)
	}

	writeFile(t, ts.root, "src/a.ts", "new\nline\n")
	post, err := ts.client.PostToolUse(authCtx(), &PostToolUseRequest{
		SessionID:  "task_1",
		ModelID:    "model-x",
		ToolName:   registry.ToolWriteToFile,
		ToolArgs:   writeArgs,
		ToolResult: "ok",
	})
	if err != nil {
		t.Fatalf("PostToolUse failed: %v", err)
	}
	if post.TraceID == "" {
		t.Fatalf("expected a trace entry, got %+v", post)
	}

	entries, err := trace.ReadAll(ts.root)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != post.TraceID || entries[0].IntentID() != "intent_1" {
		t.Fatalf("unexpected trace entries: %+v", entries)
	}
	if entries[0].VCS.RevisionID != "abc123" {
		t.Fatalf("expected revision abc123, got %q", entries[0].VCS.RevisionID)
	}

	// The file changed after the read, so another write is stale.
	resp = ts.pre(t, registry.ToolWriteToFile, writeArgs, false)
	if resp.Decision != "blocked" || resp.ToolResult != engine.MsgStaleFile("src/a.ts") {
		t.Fatalf("expected stale block, got %+v", resp)
	}
}

func TestPostToolUse_ListingCapturesSnapshots(t *testing.T) {
	ts := setupTestServer(t, staticAuth)
	writeFile(t, ts.root, "src/a.ts", "a")
	writeFile(t, ts.root, "src/b.ts", "b")

	post, err := ts.client.PostToolUse(authCtx(), &PostToolUseRequest{
		SessionID:  "task_1",
		ToolName:   registry.ToolListFiles,
		ToolArgs:   registry.Args{"path": "src"},
		ToolResult: "a.ts\nb.ts\n",
	})
	if err != nil {
		t.Fatalf("PostToolUse failed: %v", err)
	}
	if post.Snapshots != 2 {
		t.Fatalf("expected 2 snapshots, got %d", post.Snapshots)
	}

	resp := ts.pre(t, registry.ToolWriteToFile, registry.Args{
		"path": "src/b.ts", "content": "b2", "intent_id": "intent_1", "mutation_class": "INTENT_EVOLUTION",
	}, false)
	if resp.Decision != "continue" {
		t.Fatalf("listing snapshot must satisfy staleness check, got %+v", resp)
	}
}

func TestEndSession_ClearsSnapshots(t *testing.T) {
	ts := setupTestServer(t, staticAuth)
	writeFile(t, ts.root, "src/a.ts", "a")

	ts.pre(t, registry.ToolReadFile, registry.Args{"path": "src/a.ts"}, false)
	if ts.store.Len() != 1 {
		t.Fatalf("expected 1 snapshot, got %d", ts.store.Len())
	}

	resp, err := ts.client.EndSession(authCtx(), &EndSessionRequest{SessionID: "task_1"})
	if err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if resp.ClearedSnapshots != 1 || ts.store.Len() != 0 {
		t.Fatalf("expected snapshots cleared, got %+v (len %d)", resp, ts.store.Len())
	}

	_, err = ts.client.EndSession(authCtx(), &EndSessionRequest{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

// tokenAuth maps API keys to workspaces.
type tokenAuth map[string]*auth.WorkspaceContext

func (a tokenAuth) Authenticate(ctx context.Context) (*auth.WorkspaceContext, error) {
	token, err := auth.ExtractBearerToken(ctx)
	if err != nil {
		return nil, err
	}
	ws, ok := a[token]
	if !ok {
		return nil, auth.ErrUnauthenticated
	}
	return ws, nil
}

func tokenCtx(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func TestSnapshotsArePartitionedByWorkspace(t *testing.T) {
	var rootB string
	ts := setupTestServer(t, func(rootA string) auth.Authenticator {
		rootB = t.TempDir()
		writeFile(t, rootB, ".orchestration/active_intents.yaml", registryYAML)
		return tokenAuth{
			"igk_tenant_a": {WorkspaceID: "ws-a", Root: rootA, Mode: auth.ModeEnforce},
			"igk_tenant_b": {WorkspaceID: "ws-b", Root: rootB, Mode: auth.ModeEnforce},
		}
	})
	// Identical content in both workspaces.
	writeFile(t, ts.root, "src/a.ts", "same")
	writeFile(t, rootB, "src/a.ts", "same")

	pre := func(token, tool string, args registry.Args) *PreToolUseResponse {
		t.Helper()
		resp, err := ts.client.PreToolUse(tokenCtx(token), &PreToolUseRequest{SessionID: "task_1", ToolName: tool, ToolArgs: args})
		if err != nil {
			t.Fatalf("PreToolUse(%s) failed: %v", tool, err)
		}
		return resp
	}
	writeArgs := registry.Args{"path": "src/a.ts", "content": "x", "intent_id": "intent_1", "mutation_class": "AST_REFACTOR"}

	pre("igk_tenant_a", registry.ToolReadFile, registry.Args{"path": "src/a.ts"})

	if resp := pre("igk_tenant_b", registry.ToolWriteToFile, writeArgs); resp.ToolResult != engine.MsgNoSnapshot("src/a.ts") {
		t.Fatalf("workspace B must not reuse A's read, got %+v", resp)
	}

	end, err := ts.client.EndSession(tokenCtx("igk_tenant_b"), &EndSessionRequest{SessionID: "task_1"})
	if err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if end.ClearedSnapshots != 0 {
		t.Fatalf("workspace B must not clear A's snapshots, cleared %d", end.ClearedSnapshots)
	}

	if resp := pre("igk_tenant_a", registry.ToolWriteToFile, writeArgs); resp.Decision != "continue" {
		t.Fatalf("workspace A's read must survive B's EndSession, got %+v", resp)
	}
}
