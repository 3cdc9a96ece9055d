package nodes

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// schemaCache compiles each named schema once; node calls happen on the hot
// path of every generation request so recompiling per call would be wasteful.
var schemaCache sync.Map // map[string]*jsonschema.Schema

func compileSchema(name, schemaJSON string) (*jsonschema.Schema, error) {
	if s, ok := schemaCache.Load(name); ok {
		return s.(*jsonschema.Schema), nil
	}
	var doc any
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema %s: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name+".json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", name, err)
	}
	schema, err := c.Compile(name + ".json")
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	schemaCache.Store(name, schema)
	return schema, nil
}

// validateAgainstSchema re-marshals v, drops object keys whose value is null
// (so a nil slice or pointer counts as an absent field), and checks the
// result against the named JSON schema, giving VALIDATION_FAILED a concrete
// structural check on the gateway's JSON-mode responses beyond
// "SafeJSONParse didn't error".
func validateAgainstSchema(name, schemaJSON string, v any) error {
	schema, err := compileSchema(name, schemaJSON)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("unmarshal for validation: %w", err)
	}
	var dropNulls func(any)
	dropNulls = func(x any) {
		if m, ok := x.(map[string]any); ok {
			for k, e := range m {
				if e == nil {
					delete(m, k)
				}
				dropNulls(e)
			}
		} else if s, ok := x.([]any); ok {
			for _, e := range s {
				dropNulls(e)
			}
		}
	}
	dropNulls(doc)
	return schema.Validate(doc)
}

const structuredContentSchema = `{
  "type": "object",
  "required": ["sections"],
  "properties": {
    "title": {"type": "string"},
    "outline": {"type": "array", "items": {"type": "string"}},
    "sections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title"],
        "properties": {
          "title": {"type": "string"},
          "content": {"type": "string"}
        }
      }
    },
    "markdown": {"type": "string"},
    "visual_markers": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "marker_id": {"type": "string"},
          "type": {"type": "string"},
          "title": {"type": "string"},
          "description": {"type": "string"},
          "position": {"type": "integer"}
        }
      }
    },
    "executive_summary": {"type": "string"},
    "slides": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "bullets": {"type": "array", "items": {"type": "string"}},
          "speaker_notes": {"type": "string"}
        }
      }
    }
  }
}`

const faqDataSchema = `{
  "type": "object",
  "required": ["items"],
  "properties": {
    "title": {"type": "string"},
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["question", "answer"],
        "properties": {
          "id": {"type": "string"},
          "question": {"type": "string"},
          "answer": {"type": "string"},
          "tags": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

const mindMapTreeSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "summary": {"type": "string"},
    "central_node": {
      "type": "object",
      "required": ["label"],
      "properties": {
        "label": {"type": "string"},
        "children": {"type": "array"}
      }
    }
  }
}`
