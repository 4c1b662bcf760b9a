// Package schema generates JSON Schemas for the SDK's configuration types.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Option adjusts a generated schema.
type Option func(*jsonschema.Schema)

// WithID sets the schema's $id.
func WithID(id string) Option {
	return func(s *jsonschema.Schema) {
		s.ID = jsonschema.ID(id)
	}
}

// WithTitle sets the schema's title.
func WithTitle(title string) Option {
	return func(s *jsonschema.Schema) {
		s.Title = title
	}
}

// GenerateSchema creates a JSON schema from a Go struct.
// It uses the `invopop/jsonschema` library to reflect on the struct
// and generate a standard JSON Schema (Draft 2020-12).
func GenerateSchema(v any, opts ...Option) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true, // Expand struct definitions inline
	}
	schema := reflector.Reflect(v)
	for _, opt := range opts {
		opt(schema)
	}

	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	return jsonBytes, nil
}
