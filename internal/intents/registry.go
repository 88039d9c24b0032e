package intents

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Registry loads and persists the intent registry of a workspace.
//
// Load never fails: a missing or unparsable registry is an empty Document.
type Registry interface {
	Load(root string) *Document
	SetActive(root, intentID string) error
}

// FileRegistry reads the registry file on every Load.
type FileRegistry struct {
	logger *zap.Logger
}

// NewFileRegistry creates a FileRegistry.
func NewFileRegistry(logger *zap.Logger) *FileRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileRegistry{logger: logger}
}

// Load reads and parses the registry under root.
func (r *FileRegistry) Load(root string) *Document {
	path := FilePath(root)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.logger.Debug("intent registry unreadable, treating as empty",
				zap.String("path", path),
				zap.Error(err),
			)
		}
		return &Document{}
	}
	doc, err := Parse(data)
	if err != nil {
		r.logger.Warn("intent registry unparsable, treating as empty",
			zap.String("path", path),
			zap.Error(err),
		)
		return &Document{}
	}
	return doc
}

// SetActive persists intentID as active_intent_id. An empty id clears it.
func (r *FileRegistry) SetActive(root, intentID string) error {
	return Write(FilePath(root), r.Load(root), intentID)
}

// Write serializes doc with the given active id to path, creating parent
// directories as needed.
func Write(path string, doc *Document, activeID string) error {
	data, err := doc.Marshal(activeID)
	if err != nil {
		return fmt.Errorf("Write: marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("Write: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("Write: %w", err)
	}
	return nil
}

// ResolveActive loads the registry and returns the active intent, if any.
func ResolveActive(reg Registry, root string) (*Intent, bool) {
	return reg.Load(root).Active()
}

// PromptSection renders a short "# Active Intent" block for the system
// prompt. It returns "" when no valid intent is active.
func PromptSection(reg Registry, root string) string {
	active, ok := ResolveActive(reg, root)
	if !ok {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n# Active Intent\n")
	b.WriteString("ID: " + active.ID + "\n")
	b.WriteString("Title: " + active.Title)
	if active.Summary != "" {
		b.WriteString("\nSummary: " + active.Summary)
	}
	if len(active.ScopePaths) > 0 {
		b.WriteString("\nScope (paths): " + strings.Join(active.ScopePaths, ", "))
	}
	b.WriteString("\n")
	return b.String()
}
