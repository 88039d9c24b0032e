// Package intents reads and writes the workspace intent registry
// (.orchestration/active_intents.yaml) and resolves the active intent.
//
// Two historical shapes are accepted: the repository shape (`intents`
// entries with title/scope.paths) and the plan-document shape
// (`active_intents` entries with name/owned_scope). Both normalize to Intent.
// Only the active_intent_id key is ever written back.
package intents

import (
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RelativePath is the registry location relative to the workspace root.
var RelativePath = filepath.Join(".orchestration", "active_intents.yaml")

// FilePath returns the registry path for a workspace root.
func FilePath(root string) string {
	return filepath.Join(root, RelativePath)
}

// Intent is the normalized form of a registry entry.
type Intent struct {
	ID          string
	Title       string
	Summary     string
	Constraints []string
	// ScopePaths is never nil for a resolved intent. An empty slice means
	// no path may be written under this intent.
	ScopePaths []string
}

type repoScope struct {
	Paths []string `yaml:"paths"`
}

// repoIntent is the repository shape. Plan-document field names are
// tolerated inside it; repository names win when both are present.
type repoIntent struct {
	ID          string     `yaml:"id"`
	Title       string     `yaml:"title"`
	Summary     string     `yaml:"summary"`
	Constraints []string   `yaml:"constraints"`
	Scope       *repoScope `yaml:"scope"`
	Name        string     `yaml:"name"`
	OwnedScope  []string   `yaml:"owned_scope"`
}

type planIntent struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	OwnedScope  []string `yaml:"owned_scope"`
	Constraints []string `yaml:"constraints"`
}

type fileShape struct {
	ActiveIntentID *string      `yaml:"active_intent_id"`
	Intents        []repoIntent `yaml:"intents"`
	ActiveIntents  []planIntent `yaml:"active_intents"`
}

// Document is a parsed registry. The zero value is an empty registry.
type Document struct {
	ActiveIntentID string
	intents        []repoIntent
	planIntents    []planIntent
	// root keeps the original YAML so writes preserve unknown keys and comments.
	root *yaml.Node
}

// Parse decodes registry YAML. An empty input yields an empty Document.
func Parse(data []byte) (*Document, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if node.Kind == 0 {
		return &Document{}, nil
	}

	var shape fileShape
	if err := node.Decode(&shape); err != nil {
		return nil, err
	}

	doc := &Document{
		intents:     shape.Intents,
		planIntents: shape.ActiveIntents,
		root:        &node,
	}
	if shape.ActiveIntentID != nil {
		doc.ActiveIntentID = *shape.ActiveIntentID
	}
	return doc, nil
}

// Find returns the normalized intent with the given id. Repository entries
// are searched before plan-document entries.
func (d *Document) Find(id string) (*Intent, bool) {
	if d == nil || id == "" {
		return nil, false
	}
	for _, in := range d.intents {
		if in.ID == id {
			return fromRepo(in), true
		}
	}
	for _, in := range d.planIntents {
		if in.ID == id {
			return fromPlan(in), true
		}
	}
	return nil, false
}

// Active resolves active_intent_id. A missing or dangling id yields false.
func (d *Document) Active() (*Intent, bool) {
	if d == nil || d.ActiveIntentID == "" {
		return nil, false
	}
	return d.Find(d.ActiveIntentID)
}

func fromRepo(in repoIntent) *Intent {
	scope := in.OwnedScope
	if in.Scope != nil && in.Scope.Paths != nil {
		scope = in.Scope.Paths
	}
	return &Intent{
		ID:          in.ID,
		Title:       firstNonBlank(in.Title, in.Name, in.ID),
		Summary:     strings.TrimSpace(in.Summary),
		Constraints: nonEmpty(in.Constraints),
		ScopePaths:  nonEmpty(scope),
	}
}

func fromPlan(in planIntent) *Intent {
	return &Intent{
		ID:          in.ID,
		Title:       firstNonBlank(in.Name, in.ID),
		Constraints: nonEmpty(in.Constraints),
		ScopePaths:  nonEmpty(in.OwnedScope),
	}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Choice is a selectable intent for pickers.
type Choice struct {
	ID    string
	Label string
}

// Choices lists repository-shape intents that have both an id and a label.
func (d *Document) Choices() []Choice {
	if d == nil {
		return nil
	}
	var out []Choice
	for _, in := range d.intents {
		id := strings.TrimSpace(in.ID)
		label := firstNonBlank(in.Title, in.ID)
		if id == "" || label == "" {
			continue
		}
		out = append(out, Choice{ID: in.ID, Label: label})
	}
	return out
}

// Marshal serializes the document with active_intent_id set to id (null
// when id is empty). Everything else round-trips untouched.
func (d *Document) Marshal(id string) ([]byte, error) {
	var root *yaml.Node
	if d != nil && d.root != nil {
		root = cloneNode(d.root)
	} else {
		root = &yaml.Node{Kind: yaml.DocumentNode}
	}
	setActiveID(root, id)

	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func setActiveID(doc *yaml.Node, id string) {
	if doc.Kind != yaml.DocumentNode {
		doc = &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{doc}}
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
	}
	mapping := doc.Content[0]

	value := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	if id != "" {
		value = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: id}
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == "active_intent_id" {
			value.HeadComment = mapping.Content[i+1].HeadComment
			value.LineComment = mapping.Content[i+1].LineComment
			mapping.Content[i+1] = value
			return
		}
	}

	key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "active_intent_id"}
	mapping.Content = append([]*yaml.Node{key, value}, mapping.Content...)
	// The primary shape always carries an intents list.
	if !hasKey(mapping, "intents") && !hasKey(mapping, "active_intents") {
		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "intents"},
			&yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle},
		)
	}
}

func hasKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return true
		}
	}
	return false
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	c := *n
	if len(n.Content) > 0 {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = cloneNode(child)
		}
	}
	return &c
}
