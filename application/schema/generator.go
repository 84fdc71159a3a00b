// Package schema generates the JSON schemas of the boundary's wire shapes.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/wireformat"
)

// GenerateSchema creates a JSON schema (Draft 2020-12) from a Go struct.
func GenerateSchema(v any) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(v)

	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return jsonBytes, nil
}

// AppSchema is the schema of a trusted application's exported command
// table.
func AppSchema() ([]byte, error) {
	return GenerateSchema(&wireformat.AppWire{})
}

// InvocationSchema is the schema of an invocation record.
func InvocationSchema() ([]byte, error) {
	return GenerateSchema(&wireformat.InvocationWire{})
}

// DeviceCatalogSchema is the schema of a secure data path device catalog.
func DeviceCatalogSchema() ([]byte, error) {
	return GenerateSchema(&entities.DeviceCatalog{})
}

// All returns every schema keyed by name.
func All() (map[string]json.RawMessage, error) {
	gens := map[string]func() ([]byte, error){
		"app":            AppSchema,
		"invocation":     InvocationSchema,
		"device_catalog": DeviceCatalogSchema,
	}
	out := make(map[string]json.RawMessage, len(gens))
	for name, gen := range gens {
		b, err := gen()
		if err != nil {
			return nil, fmt.Errorf("%s schema: %w", name, err)
		}
		out[name] = b
	}
	return out, nil
}
