// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package customfield

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// TabRepository manages field tab persistence.
type TabRepository interface {
	// Get retrieves a tab by ID regardless of status.
	// Returns an error matching ErrNotFound if no row exists.
	Get(ctx context.Context, id ulid.ULID) (*FieldTab, error)

	// Create persists a new tab.
	Create(ctx context.Context, tab *FieldTab) error

	// Update modifies name, display order and status of an existing tab.
	Update(ctx context.Context, tab *FieldTab) error

	// ListActive returns non-deleted tabs for the scope ordered by
	// display_order, then created_at, then id.
	ListActive(ctx context.Context, scope Scope) ([]*FieldTab, error)
}

// DefinitionRepository manages field definition persistence.
type DefinitionRepository interface {
	// Get retrieves a definition by ID regardless of status.
	// Returns an error matching ErrNotFound if no row exists.
	Get(ctx context.Context, id ulid.ULID) (*FieldDefinition, error)

	// Create persists a new definition.
	// Returns an error matching ErrConflict if an active definition with the
	// same name exists in the scope.
	Create(ctx context.Context, def *FieldDefinition) error

	// Update modifies an existing definition.
	Update(ctx context.Context, def *FieldDefinition) error

	// ListActive returns non-deleted definitions for the scope ordered by
	// display_order, then created_at, then id.
	ListActive(ctx context.Context, scope Scope) ([]*FieldDefinition, error)

	// FindActiveByName returns the active definition with the given name in scope.
	// Returns an error matching ErrNotFound if none exists.
	FindActiveByName(ctx context.Context, scope Scope, name string) (*FieldDefinition, error)
}

// ValueRepository manages field value persistence.
type ValueRepository interface {
	// ListByEntity returns every stored value for the instance.
	ListByEntity(ctx context.Context, instance Scope) ([]*FieldValue, error)

	// Upsert inserts the value or replaces the existing row for
	// (FieldDefinitionID, Instance.EntityID).
	Upsert(ctx context.Context, v *FieldValue) error

	// Delete removes the value for (definitionID, entityID). Missing rows are not an error.
	Delete(ctx context.Context, definitionID ulid.ULID, entityID string) error

	// DeleteByEntity removes every value of the instance.
	DeleteByEntity(ctx context.Context, instance Scope) error

	// CountByDefinition returns how many values reference the definition.
	CountByDefinition(ctx context.Context, definitionID ulid.ULID) (int, error)

	// LockEntity serialises writers of the instance's value set until the
	// enclosing transaction ends. It must be called inside InTransaction.
	LockEntity(ctx context.Context, instance Scope) error
}

// Transactor runs fn inside a single storage transaction. Repository calls
// made with the context passed to fn participate in that transaction.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
