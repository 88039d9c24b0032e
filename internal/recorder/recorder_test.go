package recorder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/intent_guard/internal/contenthash"
	"github.com/triage-ai/palisade/services/intent_guard/internal/intents"
	"github.com/triage-ai/palisade/services/intent_guard/internal/locking"
	"github.com/triage-ai/palisade/services/intent_guard/internal/registry"
	"github.com/triage-ai/palisade/services/intent_guard/internal/trace"
)

const activeYAML = `active_intent_id: intent_1
intents:
  - id: intent_1
    title: Test
    scope:
      paths:
        - src/**
`

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

func newTestRecorder(t *testing.T) (*Recorder, *locking.Store, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, ".orchestration/active_intents.yaml", activeYAML)
	logger := zap.NewNop()
	reg := intents.NewFileRegistry(logger)
	cat := registry.DefaultCatalog()
	store := locking.NewStore()
	tracer := trace.NewTracer(cat, reg, logger).WithRevision(func(context.Context, string) (string, bool) { return "", false })
	return New(cat, locking.DefaultRecorders(store, reg, locking.DefaultLimits(), logger), tracer, logger), store, root
}

func TestPostToolUse_SearchRecordsSnapshots(t *testing.T) {
	rec, store, root := newTestRecorder(t)
	writeFile(t, root, "src/index.ts", "A\n")

	res := rec.PostToolUse(context.Background(), &Request{
		Root:       root,
		SessionID:  "task_1",
		ToolName:   registry.ToolSearchFiles,
		Args:       registry.Args{"path": "src", "regex": "A"},
		ToolResult: "Found 1 result.\n\n# src/index.ts\n  1 | A\n",
	})
	if res.Snapshots != 1 || res.Trace != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	got, ok := store.Get(locking.Key{SessionID: "task_1", IntentID: "intent_1", RelPath: "src/index.ts"})
	if !ok || got.Hash != contenthash.Sum("A\n") {
		t.Fatalf("expected snapshot, got %+v %v", got, ok)
	}
}

func TestPostToolUse_WriteAppendsTrace(t *testing.T) {
	rec, _, root := newTestRecorder(t)
	res := rec.PostToolUse(context.Background(), &Request{
		Root:       root,
		SessionID:  "task_1",
		ModelID:    "m",
		ToolName:   registry.ToolWriteToFile,
		Args:       registry.Args{"path": "src/a.ts", "content": "x\n", "intent_id": "intent_1", "mutation_class": "AST_REFACTOR"},
		ToolResult: "ok",
	})
	if res.Trace == nil {
		t.Fatal("expected a trace entry")
	}
	entries, err := trace.ReadAll(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].IntentID() != "intent_1" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestPostToolUse_FailedReadsAreSilent(t *testing.T) {
	rec, store, root := newTestRecorder(t)
	res := rec.PostToolUse(context.Background(), &Request{
		Root:       root,
		SessionID:  "task_1",
		ToolName:   registry.ToolListFiles,
		Args:       registry.Args{"path": "src"},
		ToolResult: "missing.ts\nalso-missing.ts\n",
	})
	if res.Snapshots != 0 || store.Len() != 0 {
		t.Fatalf("expected nothing recorded, got %+v", res)
	}
}

func TestPostToolUse_SnapshotSessionPartitionsSnapshots(t *testing.T) {
	rec, store, root := newTestRecorder(t)
	writeFile(t, root, "src/index.ts", "A\n")

	res := rec.PostToolUse(context.Background(), &Request{
		Root:            root,
		SessionID:       "task_1",
		SnapshotSession: "ws-a/task_1",
		ToolName:        registry.ToolSearchFiles,
		ToolResult:      "# src/index.ts\n  1 | A\n",
	})
	if res.Snapshots != 1 {
		t.Fatalf("expected 1 snapshot, got %+v", res)
	}
	if _, ok := store.Get(locking.Key{SessionID: "ws-a/task_1", IntentID: "intent_1", RelPath: "src/index.ts"}); !ok {
		t.Fatal("expected snapshot under the partitioned session")
	}
	if _, ok := store.Get(locking.Key{SessionID: "task_1", IntentID: "intent_1", RelPath: "src/index.ts"}); ok {
		t.Fatal("raw session id must not hold the snapshot")
	}
}
