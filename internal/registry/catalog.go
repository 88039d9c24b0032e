package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Catalog is the fixed, name-driven tool set. Tool classes are never
// inferred from arguments.
type Catalog struct {
	tools map[string]*ToolDefinition

	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

// NewCatalog builds a catalog from definitions. Later duplicates win.
func NewCatalog(defs ...ToolDefinition) *Catalog {
	c := &Catalog{
		tools:    make(map[string]*ToolDefinition, len(defs)),
		compiled: make(map[string]*jsonschema.Schema),
	}
	for i := range defs {
		td := defs[i]
		c.tools[td.ToolName] = &td
	}
	return c
}

// DefaultCatalog returns the built-in tool set.
func DefaultCatalog() *Catalog {
	return NewCatalog(defaultTools()...)
}

// GetTool implements ToolRegistry.
func (c *Catalog) GetTool(toolName string) *ToolDefinition {
	return c.tools[toolName]
}

// Names returns all tool names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.tools))
	for name := range c.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateArguments checks args against the tool's JSON schema. Tools
// without a schema accept anything.
func (c *Catalog) ValidateArguments(toolName string, args Args) error {
	td := c.tools[toolName]
	if td == nil {
		return fmt.Errorf("unknown tool %q", toolName)
	}
	if td.ArgumentSchema == nil {
		return nil
	}

	sch, err := c.schemaFor(td)
	if err != nil {
		return fmt.Errorf("invalid argument_schema for %s: %w", toolName, err)
	}

	raw, err := json.Marshal(map[string]any(args))
	if err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func (c *Catalog) schemaFor(td *ToolDefinition) (*jsonschema.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sch, ok := c.compiled[td.ToolName]; ok {
		return sch, nil
	}

	schemaBytes, err := json.Marshal(td.ArgumentSchema)
	if err != nil {
		return nil, err
	}
	schemaObj, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
	if err != nil {
		return nil, err
	}

	url := td.ToolName + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, schemaObj); err != nil {
		return nil, err
	}
	sch, err := compiler.Compile(url)
	if err != nil {
		return nil, err
	}
	c.compiled[td.ToolName] = sch
	return sch, nil
}
