package mcpserver

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaGenerator derives a JSON Schema object for a tool's input record.
type SchemaGenerator interface {
	Generate(v any) (json.RawMessage, error)
}

// ReflectGenerator builds schemas by reflecting over struct tags. Fields
// marked jsonschema:"required" land in the schema's required list;
// everything else is optional.
type ReflectGenerator struct{}

// Generate implements SchemaGenerator.
func (ReflectGenerator) Generate(v any) (json.RawMessage, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	schema := reflector.Reflect(v)

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	// Strip document-level keys; the CLI expects a bare object schema.
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("reparse schema: %w", err)
	}
	delete(m, "$schema")
	delete(m, "$id")

	return json.Marshal(m)
}

// SchemaFor reflects a schema from the type parameter's zero value.
func SchemaFor[T any]() (json.RawMessage, error) {
	var v T
	return ReflectGenerator{}.Generate(&v)
}
