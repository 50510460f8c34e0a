// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/customfields/internal/customfield"
)

const definitionColumns = `id, field_tab_id, entity_type, entity_id, field_name, field_type,
	field_options, is_required, display_order, is_profile, status, created_at, updated_at`

// DefinitionRepository implements customfield.DefinitionRepository using PostgreSQL.
type DefinitionRepository struct {
	pool Pool
}

// NewDefinitionRepository creates a new DefinitionRepository.
func NewDefinitionRepository(pool Pool) *DefinitionRepository {
	return &DefinitionRepository{pool: pool}
}

// Get retrieves a definition by ID.
func (r *DefinitionRepository) Get(ctx context.Context, id ulid.ULID) (*customfield.FieldDefinition, error) {
	row := dbFromCtx(ctx, r.pool).QueryRow(ctx, `
		SELECT `+definitionColumns+`
		FROM field_definitions WHERE id = $1
	`, id.String())

	def, err := scanDefinition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("FIELD_NOT_FOUND").With("definition_id", id.String()).Wrap(customfield.ErrNotFound)
	}
	if err != nil {
		return nil, wrapStorage(oops.Code("FIELD_GET_FAILED").With("definition_id", id.String()), "get definition", err)
	}
	return def, nil
}

// Create persists a new definition. The partial unique index on active
// names surfaces as ErrConflict.
func (r *DefinitionRepository) Create(ctx context.Context, def *customfield.FieldDefinition) error {
	options, err := def.FieldOptions.Marshal()
	if err != nil {
		return oops.Code("FIELD_CREATE_FAILED").With("definition_id", def.ID.String()).Wrap(err)
	}
	_, err = dbFromCtx(ctx, r.pool).Exec(ctx, `
		INSERT INTO field_definitions (`+definitionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, def.ID.String(), ulidToStringPtr(def.FieldTabID), int16(def.Scope.EntityType), def.Scope.EntityID,
		def.FieldName, int16(def.FieldType), options, def.IsRequired, def.DisplayOrder, def.IsProfile,
		int16(def.Status), def.CreatedAt, def.UpdatedAt)
	if err != nil {
		return wrapStorage(oops.Code("FIELD_CREATE_FAILED").
			With("definition_id", def.ID.String()).
			With("field_name", def.FieldName), "create definition", err)
	}
	return nil
}

// Update modifies an existing definition. Scope and created_at never change.
func (r *DefinitionRepository) Update(ctx context.Context, def *customfield.FieldDefinition) error {
	options, err := def.FieldOptions.Marshal()
	if err != nil {
		return oops.Code("FIELD_UPDATE_FAILED").With("definition_id", def.ID.String()).Wrap(err)
	}
	result, err := dbFromCtx(ctx, r.pool).Exec(ctx, `
		UPDATE field_definitions
		SET field_tab_id = $2, field_name = $3, field_type = $4, field_options = $5,
			is_required = $6, display_order = $7, is_profile = $8, status = $9, updated_at = $10
		WHERE id = $1
	`, def.ID.String(), ulidToStringPtr(def.FieldTabID), def.FieldName, int16(def.FieldType), options,
		def.IsRequired, def.DisplayOrder, def.IsProfile, int16(def.Status), def.UpdatedAt)
	if err != nil {
		return wrapStorage(oops.Code("FIELD_UPDATE_FAILED").
			With("definition_id", def.ID.String()).
			With("field_name", def.FieldName), "update definition", err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("FIELD_NOT_FOUND").With("definition_id", def.ID.String()).Wrap(customfield.ErrNotFound)
	}
	return nil
}

// ListActive returns the active definitions of a scope in display order.
func (r *DefinitionRepository) ListActive(ctx context.Context, scope customfield.Scope) ([]*customfield.FieldDefinition, error) {
	rows, err := dbFromCtx(ctx, r.pool).Query(ctx, `
		SELECT `+definitionColumns+`
		FROM field_definitions
		WHERE entity_type = $1 AND entity_id = $2 AND status = $3
		ORDER BY display_order, created_at, id
	`, int16(scope.EntityType), scope.EntityID, int16(customfield.StatusActive))
	if err != nil {
		return nil, wrapStorage(oops.Code("FIELD_QUERY_FAILED").With("scope", scope.String()), "list definitions", err)
	}
	defer rows.Close()

	defs := make([]*customfield.FieldDefinition, 0)
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, wrapStorage(oops.Code("FIELD_SCAN_FAILED"), "scan definition", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorage(oops.Code("FIELD_ITERATE_FAILED"), "iterate definitions", err)
	}
	return defs, nil
}

// FindActiveByName returns the active definition named name in scope.
func (r *DefinitionRepository) FindActiveByName(ctx context.Context, scope customfield.Scope, name string) (*customfield.FieldDefinition, error) {
	row := dbFromCtx(ctx, r.pool).QueryRow(ctx, `
		SELECT `+definitionColumns+`
		FROM field_definitions
		WHERE entity_type = $1 AND entity_id = $2 AND field_name = $3 AND status = $4
	`, int16(scope.EntityType), scope.EntityID, name, int16(customfield.StatusActive))

	def, err := scanDefinition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("FIELD_NOT_FOUND").
			With("scope", scope.String()).
			With("field_name", name).
			Wrap(customfield.ErrNotFound)
	}
	if err != nil {
		return nil, wrapStorage(oops.Code("FIELD_GET_FAILED").With("field_name", name), "find definition", err)
	}
	return def, nil
}

func scanDefinition(row pgx.Row) (*customfield.FieldDefinition, error) {
	var (
		def        customfield.FieldDefinition
		idStr      string
		tabIDStr   *string
		entityType int16
		fieldType  int16
		status     int16
		options    []byte
	)
	if err := row.Scan(&idStr, &tabIDStr, &entityType, &def.Scope.EntityID, &def.FieldName, &fieldType,
		&options, &def.IsRequired, &def.DisplayOrder, &def.IsProfile, &status,
		&def.CreatedAt, &def.UpdatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("FIELD_PARSE_FAILED").With("field", "id").With("value", idStr).Wrap(err)
	}
	tabID, err := parseOptionalULID(tabIDStr, "field_tab_id")
	if err != nil {
		return nil, oops.Code("FIELD_PARSE_FAILED").With("definition_id", idStr).Wrap(err)
	}
	opts, err := customfield.ParseFieldOptions(options)
	if err != nil {
		return nil, oops.Code("FIELD_PARSE_FAILED").With("definition_id", idStr).With("field", "field_options").Wrap(err)
	}

	def.ID = id
	def.FieldTabID = tabID
	def.FieldOptions = opts
	def.Scope.EntityType = customfield.EntityType(entityType)
	def.FieldType = customfield.FieldType(fieldType)
	def.Status = customfield.Status(status)
	return &def, nil
}

// Compile-time interface check.
var _ customfield.DefinitionRepository = (*DefinitionRepository)(nil)
