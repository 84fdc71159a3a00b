// Package validation checks wire documents against the JSON schemas of the
// boundary contract.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/splitworld/tee-sdk/application/schema"
)

// WireValidator validates command tables and invocation records.
// It is safe for concurrent use.
type WireValidator struct {
	app        *jsonschema.Schema
	invocation *jsonschema.Schema
}

// NewWireValidator compiles the wire schemas.
func NewWireValidator() (*WireValidator, error) {
	app, err := compile("app.json", schema.AppSchema)
	if err != nil {
		return nil, err
	}
	invocation, err := compile("invocation.json", schema.InvocationSchema)
	if err != nil {
		return nil, err
	}
	return &WireValidator{app: app, invocation: invocation}, nil
}

func compile(name string, generate func() ([]byte, error)) (*jsonschema.Schema, error) {
	doc, err := generate()
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource %s: %w", name, err)
	}
	sch, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", name, err)
	}
	return sch, nil
}

// ValidateApp checks a command table document.
func (v *WireValidator) ValidateApp(doc []byte) error {
	return validate(v.app, doc)
}

// ValidateInvocation checks an invocation record.
func (v *WireValidator) ValidateInvocation(doc []byte) error {
	return validate(v.invocation, doc)
}

// ValidateAppValue marshals value and checks it as a command table.
func (v *WireValidator) ValidateAppValue(value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to prepare validation object: %w", err)
	}
	return v.ValidateApp(b)
}

func validate(sch *jsonschema.Schema, doc []byte) error {
	var obj any
	if err := json.Unmarshal(doc, &obj); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := sch.Validate(obj); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("schema validation failed: %s", ve.Error())
		}
		return err
	}
	return nil
}
