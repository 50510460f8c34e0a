// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package customfield

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefinitionSource resolves active definitions by ID. *Registry implements it.
type DefinitionSource interface {
	GetDefinition(ctx context.Context, id ulid.ULID) (*FieldDefinition, error)
}

// ValueStoreConfig holds dependencies for ValueStore.
type ValueStoreConfig struct {
	Definitions DefinitionSource
	Values      ValueRepository
	Transactor  Transactor
	// MaxTextLength bounds Text values; zero selects DefaultMaxTextLength.
	MaxTextLength int
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// ValueStore persists the custom values of concrete entity instances and
// enforces per-type validation on write.
type ValueStore struct {
	definitions DefinitionSource
	values      ValueRepository
	tx          Transactor
	validator   ValueValidator
	now         func() time.Time
}

// NewValueStore creates a ValueStore with the given configuration.
func NewValueStore(cfg ValueStoreConfig) *ValueStore {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ValueStore{
		definitions: cfg.Definitions,
		values:      cfg.Values,
		tx:          cfg.Transactor,
		validator:   NewValueValidator(cfg.MaxTextLength),
		now:         func() time.Time { return now().UTC() },
	}
}

// Validate checks raw against def and returns the canonical stored form.
// A blank optional value normalises to "".
func (s *ValueStore) Validate(def *FieldDefinition, raw string) (string, error) {
	normalized, err := s.validator.Normalize(def, raw)
	if err != nil {
		recordRejection(def.FieldType)
		return "", err
	}
	return normalized, nil
}

// GetValues returns the stored raw values of an instance keyed by the field
// name captured when each value was written. Unset fields are absent.
func (s *ValueStore) GetValues(ctx context.Context, instance Scope) (map[string]string, error) {
	rows, err := s.values.ListByEntity(ctx, instance)
	if err != nil {
		return nil, oops.With("entity", instance.String()).Wrapf(err, "list values")
	}
	// Oldest first so the most recent write wins if two rows share a name.
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].UpdatedAt.Before(rows[j].UpdatedAt) })

	out := make(map[string]string, len(rows))
	for _, v := range rows {
		if v.Value == "" {
			continue
		}
		out[v.FieldName] = v.Value
	}
	return out, nil
}

// SetValue validates raw against the definition and upserts it for the
// instance. A blank value on an optional field removes the stored value.
func (s *ValueStore) SetValue(ctx context.Context, definitionID ulid.ULID, instance Scope, raw string) error {
	if err := validateInstance(instance); err != nil {
		return err
	}
	def, err := s.definitions.GetDefinition(ctx, definitionID)
	if err != nil {
		return err
	}
	if def.Scope.EntityType != instance.EntityType {
		return &ValidationError{
			Field:   def.FieldName,
			Message: "field belongs to entity type " + def.Scope.EntityType.String(),
		}
	}

	normalized, err := s.Validate(def, raw)
	if err != nil {
		return oops.Code("FIELD_VALUE_INVALID").
			With("definition_id", definitionID.String()).
			With("entity", instance.String()).
			Wrap(err)
	}

	return s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.values.LockEntity(ctx, instance); err != nil {
			return err
		}
		if normalized == "" {
			return s.values.Delete(ctx, def.ID, instance.EntityID)
		}
		return s.upsert(ctx, def, instance, normalized)
	})
}

// DeleteValue removes the value of one definition for an instance.
// Deleting a value that does not exist is a no-op.
func (s *ValueStore) DeleteValue(ctx context.Context, definitionID ulid.ULID, entityID string) error {
	if err := s.values.Delete(ctx, definitionID, entityID); err != nil {
		return oops.With("definition_id", definitionID.String()).
			With("entity_id", entityID).
			Wrapf(err, "delete value")
	}
	return nil
}

// DeleteAllForEntity removes every value of an instance across all definitions.
func (s *ValueStore) DeleteAllForEntity(ctx context.Context, instance Scope) error {
	if err := s.values.DeleteByEntity(ctx, instance); err != nil {
		return oops.With("entity", instance.String()).Wrapf(err, "delete entity values")
	}
	return nil
}

// upsert writes an already-normalised value, capturing the definition's
// current name.
func (s *ValueStore) upsert(ctx context.Context, def *FieldDefinition, instance Scope, normalized string) error {
	now := s.now()
	v := &FieldValue{
		ID:                ulid.Make(),
		FieldDefinitionID: def.ID,
		Instance:          instance,
		FieldName:         def.FieldName,
		Value:             normalized,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.values.Upsert(ctx, v); err != nil {
		return oops.With("definition_id", def.ID.String()).
			With("entity", instance.String()).
			Wrapf(err, "upsert value")
	}
	return nil
}

func validateInstance(instance Scope) error {
	if err := instance.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(instance.EntityID) == "" {
		return &ValidationError{Field: "entity_id", Message: "cannot be empty"}
	}
	return nil
}
