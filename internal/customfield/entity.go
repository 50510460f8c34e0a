// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package customfield implements admin-defined custom attributes for business
// entities. Field definitions are grouped into tabs and scoped by
// (EntityType, EntityID); values are attached to concrete entity instances.
package customfield

import (
	"strconv"
	"strings"

	"github.com/samber/oops"
)

// MaxEntityIDLength is the longest entity identifier accepted at the boundary.
const MaxEntityIDLength = 32

// EntityType identifies which kind of business entity owns custom fields.
type EntityType uint8

// Known entity types. Values are persisted; never renumber.
const (
	EntityTypeUnknown EntityType = iota
	EntityTypeMembership
	EntityTypeEvent
	EntityTypeGroup
	EntityTypeMembershipGroup
	EntityTypeOrder
	EntityTypeArticle
	EntityTypeShowcase
)

var entityTypeNames = map[EntityType]string{
	EntityTypeMembership:      "membership",
	EntityTypeEvent:           "event",
	EntityTypeGroup:           "group",
	EntityTypeMembershipGroup: "membership_group",
	EntityTypeOrder:           "order",
	EntityTypeArticle:         "article",
	EntityTypeShowcase:        "showcase",
}

// String returns the lowercase name of the entity type.
func (t EntityType) String() string {
	if name, ok := entityTypeNames[t]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(t)) + ")"
}

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	_, ok := entityTypeNames[t]
	return ok
}

// EntityTypes returns every known entity type in declaration order.
func EntityTypes() []EntityType {
	types := make([]EntityType, 0, len(entityTypeNames))
	for t := EntityTypeMembership; t <= EntityTypeShowcase; t++ {
		types = append(types, t)
	}
	return types
}

// ParseEntityType resolves a name such as "membership" or "MembershipGroup".
func ParseEntityType(s string) (EntityType, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for t, name := range entityTypeNames {
		if normalized == name || normalized == strings.ReplaceAll(name, "_", "") {
			return t, nil
		}
	}
	return EntityTypeUnknown, oops.Code("ENTITY_TYPE_INVALID").
		With("entity_type", s).
		Wrapf(ErrValidation, "unknown entity type %q", s)
}

// Scope identifies a custom-field configuration or a concrete entity instance.
// Definitions use it to select which form applies; values use it to name the
// instance they belong to.
type Scope struct {
	EntityType EntityType
	EntityID   string
}

// String renders the scope as "type:id".
func (s Scope) String() string {
	return s.EntityType.String() + ":" + s.EntityID
}

// Validate checks the entity type and identifier.
func (s Scope) Validate() error {
	if !s.EntityType.Valid() {
		return &ValidationError{Field: "entity_type", Message: "unknown entity type " + s.EntityType.String()}
	}
	if len(s.EntityID) > MaxEntityIDLength {
		return &ValidationError{Field: "entity_id", Message: "exceeds maximum length of " + strconv.Itoa(MaxEntityIDLength)}
	}
	return nil
}

// Status is the lifecycle state of a tab or definition.
type Status uint8

// Status values. Active rows are listed; deleted rows are retained for history.
const (
	StatusActive Status = iota
	StatusDeleted
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}
