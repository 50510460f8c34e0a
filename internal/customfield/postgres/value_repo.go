// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/customfields/internal/customfield"
)

const valueColumns = `id, field_definition_id, entity_type, entity_id, field_name, value, created_at, updated_at`

// entityLockPrefix namespaces advisory lock keys taken by LockEntity.
const entityLockPrefix = "customfield:"

// ValueRepository implements customfield.ValueRepository using PostgreSQL.
type ValueRepository struct {
	pool Pool
}

// NewValueRepository creates a new ValueRepository.
func NewValueRepository(pool Pool) *ValueRepository {
	return &ValueRepository{pool: pool}
}

// ListByEntity returns every stored value of the instance ordered by definition ID.
func (r *ValueRepository) ListByEntity(ctx context.Context, instance customfield.Scope) ([]*customfield.FieldValue, error) {
	rows, err := dbFromCtx(ctx, r.pool).Query(ctx, `
		SELECT `+valueColumns+`
		FROM field_values
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY field_definition_id
	`, int16(instance.EntityType), instance.EntityID)
	if err != nil {
		return nil, wrapStorage(oops.Code("FIELD_VALUE_QUERY_FAILED").With("entity", instance.String()), "list values", err)
	}
	defer rows.Close()

	values := make([]*customfield.FieldValue, 0)
	for rows.Next() {
		v, err := scanValue(rows)
		if err != nil {
			return nil, wrapStorage(oops.Code("FIELD_VALUE_SCAN_FAILED"), "scan value", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorage(oops.Code("FIELD_VALUE_ITERATE_FAILED"), "iterate values", err)
	}
	return values, nil
}

// Upsert inserts the value or replaces the row for (definition, entity).
// On replace the original id and created_at are kept and copied back into v.
func (r *ValueRepository) Upsert(ctx context.Context, v *customfield.FieldValue) error {
	var (
		idStr     string
		createdAt = v.CreatedAt
	)
	err := dbFromCtx(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO field_values (`+valueColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (field_definition_id, entity_id) DO UPDATE
		SET field_name = EXCLUDED.field_name,
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`, v.ID.String(), v.FieldDefinitionID.String(), int16(v.Instance.EntityType), v.Instance.EntityID,
		v.FieldName, v.Value, v.CreatedAt, v.UpdatedAt).Scan(&idStr, &createdAt)
	if err != nil {
		return wrapStorage(oops.Code("FIELD_VALUE_UPSERT_FAILED").
			With("definition_id", v.FieldDefinitionID.String()).
			With("entity", v.Instance.String()), "upsert value", err)
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return oops.Code("FIELD_VALUE_PARSE_FAILED").With("field", "id").With("value", idStr).Wrap(err)
	}
	v.ID = id
	v.CreatedAt = createdAt
	return nil
}

// Delete removes the value for (definitionID, entityID). Missing rows are ignored.
func (r *ValueRepository) Delete(ctx context.Context, definitionID ulid.ULID, entityID string) error {
	_, err := dbFromCtx(ctx, r.pool).Exec(ctx, `
		DELETE FROM field_values WHERE field_definition_id = $1 AND entity_id = $2
	`, definitionID.String(), entityID)
	if err != nil {
		return wrapStorage(oops.Code("FIELD_VALUE_DELETE_FAILED").
			With("definition_id", definitionID.String()).
			With("entity_id", entityID), "delete value", err)
	}
	return nil
}

// DeleteByEntity removes every value of the instance.
func (r *ValueRepository) DeleteByEntity(ctx context.Context, instance customfield.Scope) error {
	_, err := dbFromCtx(ctx, r.pool).Exec(ctx, `
		DELETE FROM field_values WHERE entity_type = $1 AND entity_id = $2
	`, int16(instance.EntityType), instance.EntityID)
	if err != nil {
		return wrapStorage(oops.Code("FIELD_VALUE_DELETE_FAILED").With("entity", instance.String()), "delete entity values", err)
	}
	return nil
}

// CountByDefinition returns how many values reference the definition.
func (r *ValueRepository) CountByDefinition(ctx context.Context, definitionID ulid.ULID) (int, error) {
	var n int64
	err := dbFromCtx(ctx, r.pool).QueryRow(ctx, `
		SELECT count(*) FROM field_values WHERE field_definition_id = $1
	`, definitionID.String()).Scan(&n)
	if err != nil {
		return 0, wrapStorage(oops.Code("FIELD_VALUE_COUNT_FAILED").With("definition_id", definitionID.String()), "count values", err)
	}
	return int(n), nil
}

// LockEntity takes a transaction-scoped advisory lock keyed on the instance.
// Concurrent saves of the same instance queue behind it until commit or rollback.
func (r *ValueRepository) LockEntity(ctx context.Context, instance customfield.Scope) error {
	tx, ok := txFromCtx(ctx)
	if !ok {
		return oops.Code("FIELD_VALUE_LOCK_FAILED").
			With("entity", instance.String()).
			Errorf("LockEntity requires a transaction")
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		entityLockPrefix+instance.String()); err != nil {
		return wrapStorage(oops.Code("FIELD_VALUE_LOCK_FAILED").With("entity", instance.String()), "lock entity", err)
	}
	return nil
}

func scanValue(row pgx.Row) (*customfield.FieldValue, error) {
	var (
		v          customfield.FieldValue
		idStr      string
		defIDStr   string
		entityType int16
	)
	if err := row.Scan(&idStr, &defIDStr, &entityType, &v.Instance.EntityID, &v.FieldName, &v.Value,
		&v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("FIELD_VALUE_PARSE_FAILED").With("field", "id").With("value", idStr).Wrap(err)
	}
	defID, err := ulid.Parse(defIDStr)
	if err != nil {
		return nil, oops.Code("FIELD_VALUE_PARSE_FAILED").With("field", "field_definition_id").With("value", defIDStr).Wrap(err)
	}
	v.ID = id
	v.FieldDefinitionID = defID
	v.Instance.EntityType = customfield.EntityType(entityType)
	return &v, nil
}

// Compile-time interface check.
var _ customfield.ValueRepository = (*ValueRepository)(nil)
