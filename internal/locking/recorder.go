package locking

import (
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/intent_guard/internal/intents"
	"github.com/triage-ai/palisade/services/intent_guard/internal/registry"
)

// Per-call caps on how many files a recorder will read.
const (
	MaxListingFiles = 50
	MaxSearchFiles  = 20
)

// Limits bounds the filesystem work of one recorder call.
type Limits struct {
	ListingFiles int
	SearchFiles  int
}

// DefaultLimits returns the standard caps.
func DefaultLimits() Limits {
	return Limits{ListingFiles: MaxListingFiles, SearchFiles: MaxSearchFiles}
}

// Observation is a finished tool call as seen by the recorders.
type Observation struct {
	Root      string
	SessionID string
	ToolName  string
	Args      registry.Args
	Result    string
}

// SnapshotRecorder turns the output of one read-like tool into snapshots.
//
// Recording is best-effort and never returns an error: paths that cannot
// be read are skipped, and a call with no active intent records nothing.
// Record reports how many snapshots were stored.
type SnapshotRecorder interface {
	Tool() string
	Record(obs Observation) int
}

type pathRecorder struct {
	tool     string
	maxFiles int
	extract  func(obs Observation) []string

	store  *Store
	intent intents.Registry
	logger *zap.Logger
}

func (r *pathRecorder) Tool() string { return r.tool }

func (r *pathRecorder) Record(obs Observation) int {
	if obs.ToolName != r.tool {
		return 0
	}
	active, ok := intents.ResolveActive(r.intent, obs.Root)
	if !ok {
		return 0
	}

	paths := r.extract(obs)
	if r.maxFiles > 0 && len(paths) > r.maxFiles {
		paths = paths[:r.maxFiles]
	}

	stored := 0
	for _, rel := range paths {
		rel = CleanRelPath(rel)
		key := Key{SessionID: obs.SessionID, IntentID: active.ID, RelPath: rel}
		if err := r.store.Capture(obs.Root, key, r.tool); err != nil {
			r.logger.Debug("snapshot skipped",
				zap.String("tool", r.tool),
				zap.String("path", rel),
				zap.Error(err),
			)
			continue
		}
		stored++
	}
	return stored
}

// NewListFilesRecorder records every file named in a directory listing.
func NewListFilesRecorder(store *Store, reg intents.Registry, maxFiles int, logger *zap.Logger) SnapshotRecorder {
	return newPathRecorder(registry.ToolListFiles, maxFiles, store, reg, logger, func(obs Observation) []string {
		entries := ListFilesPaths(obs.Result)
		dir, _ := obs.Args.String("path")
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			out = append(out, JoinListingPath(dir, e))
		}
		return out
	})
}

// NewSearchFilesRecorder records the files of regex search results.
func NewSearchFilesRecorder(store *Store, reg intents.Registry, maxFiles int, logger *zap.Logger) SnapshotRecorder {
	return newPathRecorder(registry.ToolSearchFiles, maxFiles, store, reg, logger, func(obs Observation) []string {
		return SearchFilesPaths(obs.Result)
	})
}

// NewCodebaseSearchRecorder records the files of semantic search results.
func NewCodebaseSearchRecorder(store *Store, reg intents.Registry, maxFiles int, logger *zap.Logger) SnapshotRecorder {
	return newPathRecorder(registry.ToolCodebaseSearch, maxFiles, store, reg, logger, func(obs Observation) []string {
		return CodebaseSearchPaths(obs.Result)
	})
}

// NewResourceRecorder records the workspace file behind a file:// resource
// URI. The tool output is not inspected.
func NewResourceRecorder(store *Store, reg intents.Registry, logger *zap.Logger) SnapshotRecorder {
	return newPathRecorder(registry.ToolAccessMcpResource, 1, store, reg, logger, func(obs Observation) []string {
		uri := obs.Args.Trimmed("uri")
		if uri == "" {
			return nil
		}
		rel, ok := ResourceRelPath(obs.Root, uri)
		if !ok {
			return nil
		}
		return []string{rel}
	})
}

// DefaultRecorders returns one recorder per supported read-like tool.
func DefaultRecorders(store *Store, reg intents.Registry, limits Limits, logger *zap.Logger) []SnapshotRecorder {
	return []SnapshotRecorder{
		NewListFilesRecorder(store, reg, limits.ListingFiles, logger),
		NewSearchFilesRecorder(store, reg, limits.SearchFiles, logger),
		NewCodebaseSearchRecorder(store, reg, limits.SearchFiles, logger),
		NewResourceRecorder(store, reg, logger),
	}
}

func newPathRecorder(tool string, maxFiles int, store *Store, reg intents.Registry, logger *zap.Logger, extract func(Observation) []string) *pathRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &pathRecorder{
		tool:     tool,
		maxFiles: maxFiles,
		extract:  extract,
		store:    store,
		intent:   reg,
		logger:   logger,
	}
}
