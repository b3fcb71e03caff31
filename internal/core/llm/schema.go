package llm

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/generative-ai-go/genai"

	coreerrors "github.com/lueurxax/channel-digest/internal/core/errors"
)

// Type is a JSON schema type.
type Type string

// Supported schema types.
const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeBoolean Type = "boolean"
	TypeNumber  Type = "number"
)

// Schema is the subset of JSON Schema used to describe structured responses.
type Schema struct {
	Type        Type               `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// String renders the schema as compact JSON for prompt embedding.
func (s *Schema) String() string {
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}

	return string(b)
}

// Validate checks that data is a JSON document of the schema's shape.
// Unknown fields are allowed; missing required fields and wrong types are not.
func (s *Schema) Validate(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %w", coreerrors.ErrMalformedResponse, err)
	}

	if s == nil {
		return nil
	}

	return s.check("$", v)
}

func (s *Schema) check(path string, v any) error {
	switch s.Type {
	case TypeObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return typeMismatch(path, s.Type)
		}

		for _, key := range s.Required {
			if _, present := obj[key]; !present {
				return fmt.Errorf("%w: %s.%s is required", coreerrors.ErrMalformedResponse, path, key)
			}
		}

		for key, sub := range s.Properties {
			val, present := obj[key]
			if !present || val == nil {
				continue
			}

			if err := sub.check(path+"."+key, val); err != nil {
				return err
			}
		}
	case TypeArray:
		arr, ok := v.([]any)
		if !ok {
			return typeMismatch(path, s.Type)
		}

		if s.Items == nil {
			return nil
		}

		for i, item := range arr {
			if err := s.Items.check(fmt.Sprintf("%s[%d]", path, i), item); err != nil {
				return err
			}
		}
	case TypeString:
		if _, ok := v.(string); !ok {
			return typeMismatch(path, s.Type)
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return typeMismatch(path, s.Type)
		}
	case TypeNumber:
		if _, ok := v.(float64); !ok {
			return typeMismatch(path, s.Type)
		}
	}

	return nil
}

func typeMismatch(path string, want Type) error {
	return fmt.Errorf("%w: %s must be %s", coreerrors.ErrMalformedResponse, path, want)
}

// toGenai converts the schema for Gemini's structured output mode.
func (s *Schema) toGenai() *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
	}

	switch s.Type {
	case TypeObject:
		out.Type = genai.TypeObject
	case TypeArray:
		out.Type = genai.TypeArray
	case TypeString:
		out.Type = genai.TypeString
	case TypeBoolean:
		out.Type = genai.TypeBoolean
	case TypeNumber:
		out.Type = genai.TypeNumber
	}

	if s.Items != nil {
		out.Items = s.Items.toGenai()
	}

	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))

		for name, sub := range s.Properties {
			out.Properties[name] = sub.toGenai()
		}
	}

	return out
}

// skeleton builds a minimal document that satisfies the schema.
func (s *Schema) skeleton() any {
	switch s.Type {
	case TypeObject:
		obj := make(map[string]any, len(s.Properties))

		keys := make([]string, 0, len(s.Properties))
		for k := range s.Properties {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		for _, k := range keys {
			obj[k] = s.Properties[k].skeleton()
		}

		return obj
	case TypeArray:
		return []any{}
	case TypeBoolean:
		return true
	case TypeNumber:
		return 0
	default:
		return ""
	}
}
