// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package seed imports form definitions (tabs and fields) from YAML.
//
// A seed file lists scopes; each scope carries tabs with their fields and
// optionally fields that belong to no tab:
//
//	scopes:
//	  - entity_type: membership
//	    tabs:
//	      - name: Personal
//	        fields:
//	          - name: shirt_size
//	            type: single_choice
//	            required: true
//	            options:
//	              - {value: S, label: Small}
//	              - {value: M, label: Medium}
//	    fields:
//	      - name: notes
//	        type: text
//
// Applying a seed is idempotent: existing tabs and fields are matched by name
// and updated in place.
package seed

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/holomush/customfields/internal/customfield"
)

// Document is a parsed seed file.
type Document struct {
	Scopes []ScopeSeed `yaml:"scopes"`
}

// ScopeSeed declares the form of one definition scope.
type ScopeSeed struct {
	EntityType string      `yaml:"entity_type"`
	EntityID   string      `yaml:"entity_id,omitempty"`
	Tabs       []TabSeed   `yaml:"tabs,omitempty"`
	Fields     []FieldSeed `yaml:"fields,omitempty"`
}

// TabSeed declares a tab and the fields shown on it.
type TabSeed struct {
	Name         string      `yaml:"name"`
	DisplayOrder *int        `yaml:"display_order,omitempty"`
	Fields       []FieldSeed `yaml:"fields,omitempty"`
}

// FieldSeed declares one field definition.
type FieldSeed struct {
	Name         string                   `yaml:"name"`
	Type         string                   `yaml:"type"`
	Required     bool                     `yaml:"required,omitempty"`
	Profile      bool                     `yaml:"profile,omitempty"`
	DisplayOrder *int                     `yaml:"display_order,omitempty"`
	Options      customfield.FieldOptions `yaml:"options,omitempty"`
}

// Parse decodes and validates a seed document. Unknown keys are rejected.
func Parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, oops.Code("SEED_INVALID").Errorf("seed data is empty")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, oops.Code("SEED_INVALID").With("operation", "decode YAML").Wrap(err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks every declaration without touching storage, collecting all
// problems into one ValidationErrors.
func (d *Document) Validate() error {
	var errs customfield.ValidationErrors
	add := func(path string, err error) {
		var ve *customfield.ValidationError
		if errors.As(err, &ve) {
			errs = append(errs, &customfield.ValidationError{Field: path + "." + ve.Field, Message: ve.Message})
			return
		}
		errs = append(errs, &customfield.ValidationError{Field: path, Message: err.Error()})
	}

	if len(d.Scopes) == 0 {
		errs = append(errs, &customfield.ValidationError{Field: "scopes", Message: "at least one scope is required"})
	}
	for i, s := range d.Scopes {
		path := fmt.Sprintf("scopes[%d]", i)
		scope, err := s.scope()
		if err != nil {
			add(path, err)
			continue
		}

		tabNames := make(map[string]struct{}, len(s.Tabs))
		fieldNames := make(map[string]string)
		checkField := func(fpath string, f FieldSeed) {
			if _, err := f.input(scope, nil); err != nil {
				add(fpath, err)
			}
			if prev, dup := fieldNames[f.Name]; dup {
				errs = append(errs, &customfield.ValidationError{
					Field:   fpath + ".name",
					Message: fmt.Sprintf("duplicates %s", prev),
				})
				return
			}
			fieldNames[f.Name] = fpath
		}

		for j, t := range s.Tabs {
			tpath := fmt.Sprintf("%s.tabs[%d]", path, j)
			if err := customfield.ValidateTabName(t.Name); err != nil {
				add(tpath, err)
			}
			if _, dup := tabNames[t.Name]; dup {
				errs = append(errs, &customfield.ValidationError{Field: tpath + ".name", Message: "duplicate tab name"})
			}
			tabNames[t.Name] = struct{}{}
			for k, f := range t.Fields {
				checkField(fmt.Sprintf("%s.fields[%d]", tpath, k), f)
			}
		}
		for k, f := range s.Fields {
			checkField(fmt.Sprintf("%s.fields[%d]", path, k), f)
		}
	}

	if len(errs) > 0 {
		return oops.Code("SEED_INVALID").With("fields", errs.Fields()).Wrap(errs)
	}
	return nil
}

func (s ScopeSeed) scope() (customfield.Scope, error) {
	et, err := customfield.ParseEntityType(s.EntityType)
	if err != nil {
		return customfield.Scope{}, &customfield.ValidationError{Field: "entity_type", Message: fmt.Sprintf("unknown entity type %q", s.EntityType)}
	}
	scope := customfield.Scope{EntityType: et, EntityID: s.EntityID}
	if err := scope.Validate(); err != nil {
		return customfield.Scope{}, err
	}
	return scope, nil
}

// input converts the seed to a definition input, validating name, type and options.
func (f FieldSeed) input(scope customfield.Scope, tab *customfield.FieldTab) (customfield.DefinitionInput, error) {
	ft, err := customfield.ParseFieldType(f.Type)
	if err != nil {
		return customfield.DefinitionInput{}, &customfield.ValidationError{Field: "type", Message: fmt.Sprintf("unknown field type %q", f.Type)}
	}
	in := customfield.DefinitionInput{
		Scope:        scope,
		FieldName:    f.Name,
		FieldType:    ft,
		FieldOptions: f.Options,
		IsRequired:   f.Required,
		IsProfile:    f.Profile,
	}
	if f.DisplayOrder != nil {
		in.DisplayOrder = *f.DisplayOrder
	}
	if tab != nil {
		id := tab.ID
		in.FieldTabID = &id
	}
	if err := customfield.ValidateDefinitionInput(in); err != nil {
		return customfield.DefinitionInput{}, err
	}
	return in, nil
}
