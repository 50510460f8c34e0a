// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package customfield

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/samber/oops"
)

// FieldOptionsSchemaID is the $id of the FieldOptions JSON Schema.
const FieldOptionsSchemaID = "https://holomush.dev/schemas/field-options.schema.json"

// FieldOption is one selectable choice of a SingleChoice or MultiChoice field.
type FieldOption struct {
	Value string `json:"value" jsonschema:"minLength=1,description=Stored token for this choice"`
	Label string `json:"label,omitempty" jsonschema:"description=Display text; defaults to value"`
}

// DisplayLabel returns Label, falling back to Value.
func (o FieldOption) DisplayLabel() string {
	if o.Label == "" {
		return o.Value
	}
	return o.Label
}

// FieldOptions is the ordered choice list of a definition.
type FieldOptions []FieldOption

// Has reports whether value is one of the declared option values.
func (o FieldOptions) Has(value string) bool {
	return o.IndexOf(value) >= 0
}

// IndexOf returns the declaration index of value, or -1.
func (o FieldOptions) IndexOf(value string) int {
	for i, opt := range o {
		if opt.Value == value {
			return i
		}
	}
	return -1
}

// Values returns the option values in declaration order.
func (o FieldOptions) Values() []string {
	values := make([]string, len(o))
	for i, opt := range o {
		values[i] = opt.Value
	}
	return values
}

// Validate checks that the list is non-empty with unique, non-blank values.
func (o FieldOptions) Validate() error {
	if len(o) == 0 {
		return &ValidationError{Field: "field_options", Message: "choice fields require at least one option"}
	}
	seen := make(map[string]struct{}, len(o))
	for i, opt := range o {
		if strings.TrimSpace(opt.Value) == "" {
			return &ValidationError{Field: "field_options", Message: fmt.Sprintf("option %d has an empty value", i)}
		}
		if _, dup := seen[opt.Value]; dup {
			return &ValidationError{Field: "field_options", Message: fmt.Sprintf("duplicate option value %q", opt.Value)}
		}
		seen[opt.Value] = struct{}{}
	}
	return nil
}

// Marshal encodes the options as a JSON array. Nil encodes as an empty array.
func (o FieldOptions) Marshal() ([]byte, error) {
	if o == nil {
		o = FieldOptions{}
	}
	b, err := json.Marshal([]FieldOption(o))
	if err != nil {
		return nil, oops.With("operation", "marshal field options").Wrap(err)
	}
	return b, nil
}

// ParseFieldOptions decodes and schema-validates a serialized option list.
// Empty input yields nil options.
func ParseFieldOptions(data []byte) (FieldOptions, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, &ValidationError{Field: "field_options", Message: "malformed JSON: " + err.Error()}
	}

	sch, err := fieldOptionsSchema()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(doc); err != nil {
		return nil, &ValidationError{Field: "field_options", Message: "does not match schema: " + err.Error()}
	}

	var opts FieldOptions
	if err := json.Unmarshal(data, &opts); err != nil {
		return nil, &ValidationError{Field: "field_options", Message: "malformed JSON: " + err.Error()}
	}
	return opts, nil
}

// GenerateFieldOptionsSchema reflects the JSON Schema for FieldOptions.
func GenerateFieldOptionsSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&FieldOptions{})
	schema.ID = jsonschema.ID(FieldOptionsSchemaID)
	schema.Title = "Custom Field Options"
	schema.Description = "Ordered value/label pairs for single and multi choice fields"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").Wrap(err)
	}
	return data, nil
}

var (
	optionsSchemaOnce sync.Once
	optionsSchema     *jschema.Schema
	optionsSchemaErr  error
)

func fieldOptionsSchema() (*jschema.Schema, error) {
	optionsSchemaOnce.Do(func() {
		optionsSchema, optionsSchemaErr = compileFieldOptionsSchema()
	})
	return optionsSchema, optionsSchemaErr
}

func compileFieldOptionsSchema() (*jschema.Schema, error) {
	schemaBytes, err := GenerateFieldOptionsSchema()
	if err != nil {
		return nil, err
	}

	schemaDoc, err := jschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
	if err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("operation", "parse schema").Wrap(err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("field-options.schema.json", schemaDoc); err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("operation", "add schema resource").Wrap(err)
	}
	sch, err := c.Compile("field-options.schema.json")
	if err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("operation", "compile schema").Wrap(err)
	}
	return sch, nil
}
