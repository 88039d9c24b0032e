package trace

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/intent_guard/internal/contenthash"
	"github.com/triage-ai/palisade/services/intent_guard/internal/intents"
	"github.com/triage-ai/palisade/services/intent_guard/internal/locking"
	"github.com/triage-ai/palisade/services/intent_guard/internal/registry"
)

// Write describes a finished write-class tool call.
type Write struct {
	Root      string
	SessionID string
	ModelID   string
	ToolName  string
	Args      registry.Args
}

// Tracer builds and appends trace entries. Tracing is diagnostic: Record
// never returns an error and a failed append only logs.
type Tracer struct {
	tools    registry.ToolRegistry
	intents  intents.Registry
	appender *Appender
	revision RevisionFunc
	now      func() time.Time
	newID    func() string
	logger   *zap.Logger
}

// NewTracer creates a Tracer that resolves revisions with GitRevision.
func NewTracer(tools registry.ToolRegistry, reg intents.Registry, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracer{
		tools:    tools,
		intents:  reg,
		appender: &Appender{},
		revision: GitRevision,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		logger:   logger,
	}
}

// WithRevision replaces the revision lookup.
func (t *Tracer) WithRevision(fn RevisionFunc) *Tracer {
	t.revision = fn
	return t
}

// Record appends an entry for w and returns it. No entry is written for
// non-write tools, when no intent is active, or when the call's intent_id
// contradicts the active intent.
func (t *Tracer) Record(ctx context.Context, w Write) (*Entry, bool) {
	td := t.tools.GetTool(w.ToolName)
	if !td.IsWrite() {
		return nil, false
	}
	rel, ok := td.TargetPath(w.Args)
	if !ok {
		return nil, false
	}

	active, ok := intents.ResolveActive(t.intents, w.Root)
	if !ok {
		return nil, false
	}
	toolIntentID := w.Args.Trimmed("intent_id")
	if toolIntentID != "" && toolIntentID != active.ID {
		t.logger.Warn("trace skipped, intent_id contradicts active intent",
			zap.String("tool_intent_id", toolIntentID),
			zap.String("active_intent_id", active.ID),
		)
		return nil, false
	}
	related := active.ID
	if toolIntentID != "" {
		related = toolIntentID
	}

	content, ok := t.hashSource(td, w, rel)
	if !ok {
		return nil, false
	}

	entry := &Entry{
		SchemaVersion: SchemaVersion,
		EventType:     EventToolWrite,
		ID:            t.newID(),
		Timestamp:     t.now(),
		Files: []File{{
			RelativePath: rel,
			Conversations: []Conversation{{
				URL:         w.SessionID,
				Tool:        Tool{Name: w.ToolName},
				Contributor: Contributor{EntityType: "AI", ModelIdentifier: modelOrUnknown(w.ModelID)},
				Ranges: []Range{{
					StartLine:   0,
					EndLine:     lastLine(content),
					ContentHash: contenthash.Sum(content),
				}},
				MutationClass: mutationClass(w.Args),
				Related:       []Related{{Type: "specification", Value: related}},
			}},
		}},
	}
	if t.revision != nil {
		if rev, ok := t.revision(ctx, w.Root); ok {
			entry.VCS = &VCS{RevisionID: rev}
		}
	}

	if err := t.appender.Append(w.Root, entry); err != nil {
		t.logger.Warn("trace append failed",
			zap.String("path", FilePath(w.Root)),
			zap.Error(err),
		)
		return nil, false
	}
	return entry, true
}

// hashSource picks the text to fingerprint: the full new content for
// file writers, the added block for diff appliers, and the post-edit file
// on disk otherwise or when a diff adds nothing.
func (t *Tracer) hashSource(td *registry.ToolDefinition, w Write, rel string) (string, bool) {
	if td.ContentArgument != "" {
		if s, ok := w.Args.String(td.ContentArgument); ok {
			return s, true
		}
	}
	if td.DiffArgument != "" {
		if diff, ok := w.Args.String(td.DiffArgument); ok {
			if added, ok := AddedBlock(diff); ok {
				return added, true
			}
		}
	} else if s, ok := w.Args.String("content"); ok {
		return s, true
	}

	data, err := os.ReadFile(locking.AbsPath(w.Root, rel))
	if err != nil {
		t.logger.Debug("trace skipped, post-edit content unreadable",
			zap.String("path", rel),
			zap.Error(err),
		)
		return "", false
	}
	return string(data), true
}

func mutationClass(args registry.Args) string {
	switch m, _ := args.String("mutation_class"); m {
	case registry.MutationASTRefactor, registry.MutationIntentEvolution:
		return m
	default:
		return registry.MutationUnknown
	}
}

func modelOrUnknown(id string) string {
	if strings.TrimSpace(id) == "" {
		return "unknown"
	}
	return id
}

// lastLine is the zero-based index of the last line of content.
func lastLine(content string) int {
	return strings.Count(contenthash.Normalize(content), "\n")
}
