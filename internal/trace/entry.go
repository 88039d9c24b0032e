// Package trace appends one attribution record per write to the
// workspace's agent trace (.orchestration/agent_trace.jsonl).
package trace

import (
	"path/filepath"
	"time"
)

// RelativePath is the trace file location relative to the workspace root.
var RelativePath = filepath.Join(".orchestration", "agent_trace.jsonl")

// FilePath returns the trace path for a workspace root.
func FilePath(root string) string {
	return filepath.Join(root, RelativePath)
}

const (
	SchemaVersion  = "1.0"
	EventToolWrite = "tool_write"
)

// Entry is one line of the trace file.
type Entry struct {
	SchemaVersion string    `json:"schema_version"`
	EventType     string    `json:"event_type"`
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	VCS           *VCS      `json:"vcs,omitempty"`
	Files         []File    `json:"files"`
}

type VCS struct {
	RevisionID string `json:"revision_id"`
}

type File struct {
	RelativePath  string         `json:"relative_path"`
	Conversations []Conversation `json:"conversations"`
}

type Conversation struct {
	URL           string      `json:"url"`
	Tool          Tool        `json:"tool"`
	Contributor   Contributor `json:"contributor"`
	Ranges        []Range     `json:"ranges"`
	MutationClass string      `json:"mutation_class"`
	Related       []Related   `json:"related"`
}

type Tool struct {
	Name string `json:"name"`
}

type Contributor struct {
	EntityType      string `json:"entity_type"`
	ModelIdentifier string `json:"model_identifier"`
}

type Range struct {
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line"`
	ContentHash string `json:"content_hash"`
}

type Related struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// IntentID returns the intent the entry is attributed to.
func (e *Entry) IntentID() string {
	if len(e.Files) == 0 || len(e.Files[0].Conversations) == 0 || len(e.Files[0].Conversations[0].Related) == 0 {
		return ""
	}
	return e.Files[0].Conversations[0].Related[0].Value
}
