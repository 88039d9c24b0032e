package intents

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// ErrRegistryInvalid is returned by Lint when the registry does not match
// either supported shape.
var ErrRegistryInvalid = errors.New("intent registry invalid")

const registrySchema = `{
  "type": "object",
  "properties": {
    "active_intent_id": {"type": ["string", "null"]},
    "intents": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "title": {"type": "string"},
          "name": {"type": "string"},
          "summary": {"type": "string"},
          "constraints": {"type": "array", "items": {"type": "string"}},
          "scope": {
            "type": "object",
            "properties": {
              "paths": {"type": "array", "items": {"type": "string"}}
            }
          },
          "owned_scope": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "active_intents": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "owned_scope": {"type": "array", "items": {"type": "string"}},
          "constraints": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

var (
	registrySchemaOnce sync.Once
	registrySchemaObj  *jsonschema.Schema
	registrySchemaErr  error
)

func compiledRegistrySchema() (*jsonschema.Schema, error) {
	registrySchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(registrySchema))
		if err != nil {
			registrySchemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("active_intents.schema.json", doc); err != nil {
			registrySchemaErr = err
			return
		}
		registrySchemaObj, registrySchemaErr = c.Compile("active_intents.schema.json")
	})
	return registrySchemaObj, registrySchemaErr
}

// Lint validates raw registry YAML against the accepted shapes and checks
// that a non-empty active_intent_id refers to a known intent. Unlike Load,
// it reports problems instead of tolerating them.
func Lint(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryInvalid, err)
	}
	if raw == nil {
		return nil
	}

	// Round-trip through JSON so the validator sees plain JSON values.
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryInvalid, err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryInvalid, err)
	}

	sch, err := compiledRegistrySchema()
	if err != nil {
		return fmt.Errorf("Lint: compile schema: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryInvalid, err)
	}

	doc, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryInvalid, err)
	}
	if doc.ActiveIntentID != "" {
		if _, ok := doc.Find(doc.ActiveIntentID); !ok {
			return fmt.Errorf("%w: active_intent_id %q does not match any intent", ErrRegistryInvalid, doc.ActiveIntentID)
		}
	}
	return nil
}
