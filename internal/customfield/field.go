// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package customfield

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// FieldType governs how a stored value is validated and interpreted.
type FieldType uint8

// Field types. Values are persisted; never renumber.
const (
	FieldTypeText FieldType = iota + 1
	FieldTypeNumber
	FieldTypeDate
	FieldTypeBoolean
	FieldTypeSingleChoice
	FieldTypeMultiChoice
)

var fieldTypeNames = map[FieldType]string{
	FieldTypeText:         "text",
	FieldTypeNumber:       "number",
	FieldTypeDate:         "date",
	FieldTypeBoolean:      "boolean",
	FieldTypeSingleChoice: "single_choice",
	FieldTypeMultiChoice:  "multi_choice",
}

// String returns the field type name.
func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	_, ok := fieldTypeNames[t]
	return ok
}

// IsChoice reports whether the type draws its values from FieldOptions.
func (t FieldType) IsChoice() bool {
	return t == FieldTypeSingleChoice || t == FieldTypeMultiChoice
}

// ParseFieldType resolves a field type name such as "text" or "MultiChoice".
func ParseFieldType(s string) (FieldType, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for t, name := range fieldTypeNames {
		if normalized == name || normalized == strings.ReplaceAll(name, "_", "") {
			return t, nil
		}
	}
	return 0, &ValidationError{Field: "field_type", Message: "unknown field type " + s}
}

// FieldTab groups field definitions into a UI section.
type FieldTab struct {
	ID           ulid.ULID
	Scope        Scope
	TabName      string
	DisplayOrder int
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Active reports whether the tab has not been soft-deleted.
func (t *FieldTab) Active() bool {
	return t.Status == StatusActive
}

// FieldDefinition describes one admin-defined attribute for a scope.
type FieldDefinition struct {
	ID           ulid.ULID
	FieldTabID   *ulid.ULID // nil when the field belongs to no tab
	Scope        Scope
	FieldName    string
	FieldType    FieldType
	FieldOptions FieldOptions
	IsRequired   bool
	DisplayOrder int
	IsProfile    bool
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Active reports whether the definition has not been soft-deleted.
func (d *FieldDefinition) Active() bool {
	return d.Status == StatusActive
}

// FieldValue is the stored value of one definition for one entity instance.
// FieldName is captured at write time and is not updated when the definition
// is renamed.
type FieldValue struct {
	ID                ulid.ULID
	FieldDefinitionID ulid.ULID
	Instance          Scope
	FieldName         string
	Value             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
