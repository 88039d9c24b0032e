package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/triage-ai/palisade/services/intent_guard/internal/dispatch"
	"github.com/triage-ai/palisade/services/intent_guard/internal/intents"
)

const testRegistry = `# team intents
active_intent_id: intent_1
intents:
  - id: intent_1
    title: Build the widget
    summary: Widget work
    scope:
      paths:
        - src/**
  - id: intent_2
    title: Docs
    scope:
      paths: []
`

func setupWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, ".orchestration/active_intents.yaml", testRegistry)
	return root
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

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestIntentsList(t *testing.T) {
	root := setupWorkspace(t)

	out, err := run(t, "intents", "list", "--root", root)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "* intent_1\tBuild the widget") || !strings.Contains(out, "  intent_2\tDocs") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestIntentsShow(t *testing.T) {
	root := setupWorkspace(t)

	out, err := run(t, "intents", "show", "--root", root)
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !strings.Contains(out, "Scope: src/**") || !strings.Contains(out, "Summary: Widget work") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	out, err = run(t, "intents", "show", "intent_2", "--root", root)
	if err != nil {
		t.Fatalf("show intent_2 failed: %v", err)
	}
	if !strings.Contains(out, "all writes blocked") {
		t.Fatalf("empty scope not reported:\n%s", out)
	}

	if _, err := run(t, "intents", "show", "ghost", "--root", root); err == nil {
		t.Fatal("expected error for unknown intent")
	}
}

func TestIntentsShow_Prompt(t *testing.T) {
	root := setupWorkspace(t)

	out, err := run(t, "intents", "show", "--prompt", "--root", root)
	if err != nil {
		t.Fatalf("show --prompt failed: %v", err)
	}
	want := "# Active Intent\nID: intent_1\nTitle: Build the widget\nSummary: Widget work\nScope (paths): src/**\n"
	if out != want {
		t.Fatalf("prompt section = %q, want %q", out, want)
	}

	if _, err := run(t, "intents", "show", "--prompt", "intent_2", "--root", root); err == nil {
		t.Fatal("expected error when --prompt is given an intent id")
	}

	if _, err := run(t, "intents", "select", "--clear", "--root", root); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if _, err := run(t, "intents", "show", "--prompt", "--root", root); err == nil {
		t.Fatal("expected error with no active intent")
	}
}

func TestIntentsSelect(t *testing.T) {
	root := setupWorkspace(t)

	if _, err := run(t, "intents", "select", "intent_2", "--root", root); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	doc := intents.NewFileRegistry(nil).Load(root)
	if doc.ActiveIntentID != "intent_2" {
		t.Fatalf("expected intent_2 active, got %q", doc.ActiveIntentID)
	}
	data, err := os.ReadFile(intents.FilePath(root))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "# team intents") {
		t.Fatalf("comment not preserved:\n%s", data)
	}

	if _, err := run(t, "intents", "select", "ghost", "--root", root); err == nil {
		t.Fatal("expected error for unknown intent")
	}

	if _, err := run(t, "intents", "select", "--clear", "--root", root); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if _, ok := intents.NewFileRegistry(nil).Load(root).Active(); ok {
		t.Fatal("expected no active intent after --clear")
	}
}

func TestIntentsValidate(t *testing.T) {
	root := setupWorkspace(t)

	if _, err := run(t, "intents", "validate", "--root", root); err != nil {
		t.Fatalf("valid registry rejected: %v", err)
	}

	bad := filepath.Join(root, "bad.yaml")
	if err := os.WriteFile(bad, []byte("active_intent_id: ghost\nintents: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "intents", "validate", bad); err == nil {
		t.Fatal("expected dangling active id to fail validation")
	}
}

func TestToolsValidate(t *testing.T) {
	if _, err := run(t, "tools", "validate", "select_active_intent", `{"intent_id":"intent_1"}`); err != nil {
		t.Fatalf("valid arguments rejected: %v", err)
	}
	if _, err := run(t, "tools", "validate", "write_to_file", `{"path":"a.ts","content":"x","intent_id":"i","mutation_class":"BOGUS"}`); err == nil {
		t.Fatal("expected invalid mutation_class to fail")
	}
	if _, err := run(t, "tools", "validate", "read_file", `not json`); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestToolsList(t *testing.T) {
	out, err := run(t, "tools", "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "write_to_file\twrite\tpath=path") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestClassify(t *testing.T) {
	out, err := run(t, "classify", "rm", "-rf", "build")
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if !strings.HasPrefix(out, "destructive\t") {
		t.Fatalf("expected destructive, got %q", out)
	}

	out, err = run(t, "classify", "git status")
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if !strings.HasPrefix(out, "safe\t") {
		t.Fatalf("expected safe, got %q", out)
	}
}

func TestHash(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello\r\n")

	out, err := run(t, "hash", filepath.Join(root, "a.txt"))
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !strings.HasPrefix(out, "sha256:") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestTraceShow_Empty(t *testing.T) {
	root := setupWorkspace(t)

	out, err := run(t, "trace", "show", "--root", root)
	if err != nil {
		t.Fatalf("trace show failed: %v", err)
	}
	if out != "" {
		t.Fatalf("expected no output, got %q", out)
	}
}

func TestReplay(t *testing.T) {
	root := setupWorkspace(t)
	writeFile(t, root, "src/a.ts", "old")

	blocks := `[
  {"type": "text"},
  {"type": "tool_use", "id": "t1", "name": "write_to_file", "input": {"path": "src/a.ts", "content": "x", "intent_id": "intent_1", "mutation_class": "AST_REFACTOR"}},
  {"type": "tool_use", "id": "t2", "name": "read_file", "input": {"path": "src/a.ts"}},
  {"type": "tool_use", "id": "t3", "name": "write_to_file", "input": {"path": "src/a.ts", "content": "x", "intent_id": "intent_1", "mutation_class": "AST_REFACTOR"}},
  {"type": "tool_use", "id": "t4", "name": "execute_command", "input": {"command": "rm -rf src"}},
  {"type": "tool_use", "id": "t5", "name": "read_file", "partial": true}
]`
	path := filepath.Join(root, "blocks.json")
	if err := os.WriteFile(path, []byte(blocks), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "replay", path, "--root", root, "--approve", "no")
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	var results []dispatch.ToolResult
	dec := json.NewDecoder(strings.NewReader(out))
	for dec.More() {
		var r dispatch.ToolResult
		if err := dec.Decode(&r); err != nil {
			t.Fatalf("decode: %v", err)
		}
		results = append(results, r)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d:\n%s", len(results), out)
	}
	if !results[0].IsError || !strings.Contains(results[0].Content, "No read snapshot") {
		t.Fatalf("write before read must be blocked: %+v", results[0])
	}
	if results[1].IsError || results[1].Content != "old" {
		t.Fatalf("read must return content: %+v", results[1])
	}
	if results[2].IsError || !strings.Contains(results[2].Content, "not executed") {
		t.Fatalf("write after read must pass the gate: %+v", results[2])
	}
	if !results[3].IsError || !strings.Contains(results[3].Content, "rejected by user") {
		t.Fatalf("destructive command must be rejected: %+v", results[3])
	}
}

func TestReplay_InvalidApproveMode(t *testing.T) {
	root := setupWorkspace(t)
	path := filepath.Join(root, "blocks.json")
	if err := os.WriteFile(path, []byte(`[]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "replay", path, "--root", root, "--approve", "maybe"); err == nil {
		t.Fatal("expected invalid --approve to fail")
	}
}

func TestEvents_RequiresDSN(t *testing.T) {
	t.Setenv("CLICKHOUSE_DSN", "")
	if _, err := run(t, "events"); err == nil || !strings.Contains(err.Error(), "DSN") {
		t.Fatalf("expected missing DSN error, got %v", err)
	}
}
