// Package dispatch connects the gate and the post-execution recorder to an
// agent tool loop. It turns assistant tool-use blocks into tool results.
package dispatch

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/intent_guard/internal/engine"
	"github.com/triage-ai/palisade/services/intent_guard/internal/recorder"
	"github.com/triage-ai/palisade/services/intent_guard/internal/registry"
)

// Block types produced by the assistant.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockMcpToolUse = "mcp_tool_use"
)

// Block is one element of an assistant message.
type Block struct {
	Type    string        `json:"type"`
	ID      string        `json:"id,omitempty"`
	Name    string        `json:"name,omitempty"`
	Input   registry.Args `json:"input,omitempty"`
	Partial bool          `json:"partial,omitempty"`

	// Set on mcp_tool_use blocks.
	ServerName string         `json:"server_name,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	Arguments  map[string]any `json:"arguments,omitempty"`
}

// ToolResult answers one tool-use block.
type ToolResult struct {
	Type      string `json:"type"`
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Session identifies the workspace and agent session issuing tool calls.
type Session struct {
	Root      string
	SessionID string
	ModelID   string
}

// Gate decides whether a call may run.
type Gate interface {
	PreToolUse(ctx context.Context, req *engine.Request) (engine.Decision, time.Duration)
}

// PostHook observes a finished call.
type PostHook interface {
	PostToolUse(ctx context.Context, req *recorder.Request) recorder.Result
}

// Executor runs the real tool.
type Executor interface {
	Execute(ctx context.Context, toolName string, args registry.Args) (string, error)
}

// Dispatcher gates, executes and records tool-use blocks in order.
type Dispatcher struct {
	gate   Gate
	post   PostHook
	exec   Executor
	logger *zap.Logger
}

// New creates a Dispatcher.
func New(gate Gate, post PostHook, exec Executor, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{gate: gate, post: post, exec: exec, logger: logger}
}

// Present handles every complete tool-use block and returns one result per
// block. Partial blocks are still streaming and produce nothing.
func (d *Dispatcher) Present(ctx context.Context, sess Session, blocks []Block) []ToolResult {
	var results []ToolResult
	for _, b := range blocks {
		if b.Partial {
			continue
		}
		toolName, args, ok := toolCall(b)
		if !ok {
			continue
		}
		results = append(results, d.run(ctx, sess, b.ID, toolName, args))
	}
	return results
}

func (d *Dispatcher) run(ctx context.Context, sess Session, id, toolName string, args registry.Args) ToolResult {
	decision, _ := d.gate.PreToolUse(ctx, &engine.Request{
		Root:      sess.Root,
		SessionID: sess.SessionID,
		ToolName:  toolName,
		Args:      args,
	})
	if !decision.Proceed() {
		return ToolResult{
			Type:      "tool_result",
			ToolUseID: id,
			Content:   decision.Message,
			IsError:   decision.Kind == engine.KindBlocked || strings.HasPrefix(decision.Message, "Error:"),
		}
	}

	output, err := d.exec.Execute(ctx, toolName, args)
	res := ToolResult{Type: "tool_result", ToolUseID: id, Content: output}
	if err != nil {
		d.logger.Debug("tool execution failed",
			zap.String("tool_name", toolName),
			zap.Error(err),
		)
		res.Content = "Error: " + err.Error()
		res.IsError = true
	}

	d.post.PostToolUse(ctx, &recorder.Request{
		Root:       sess.Root,
		SessionID:  sess.SessionID,
		ModelID:    sess.ModelID,
		ToolName:   toolName,
		Args:       args,
		ToolResult: res.Content,
	})
	return res
}

// toolCall maps a block onto a gate tool name and arguments. MCP tool uses
// are gated as use_mcp_tool.
func toolCall(b Block) (string, registry.Args, bool) {
	switch b.Type {
	case BlockToolUse:
		return b.Name, b.Input, true
	case BlockMcpToolUse:
		return registry.ToolUseMcpTool, registry.Args{
			"server_name": b.ServerName,
			"tool_name":   b.ToolName,
			"arguments":   b.Arguments,
		}, true
	default:
		return "", nil, false
	}
}
