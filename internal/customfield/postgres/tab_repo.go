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

const tabColumns = `id, entity_type, entity_id, tab_name, display_order, status, created_at, updated_at`

// TabRepository implements customfield.TabRepository using PostgreSQL.
type TabRepository struct {
	pool Pool
}

// NewTabRepository creates a new TabRepository.
func NewTabRepository(pool Pool) *TabRepository {
	return &TabRepository{pool: pool}
}

// Get retrieves a tab by ID.
func (r *TabRepository) Get(ctx context.Context, id ulid.ULID) (*customfield.FieldTab, error) {
	row := dbFromCtx(ctx, r.pool).QueryRow(ctx, `
		SELECT `+tabColumns+`
		FROM field_tabs WHERE id = $1
	`, id.String())

	tab, err := scanTab(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("FIELD_TAB_NOT_FOUND").With("tab_id", id.String()).Wrap(customfield.ErrNotFound)
	}
	if err != nil {
		return nil, wrapStorage(oops.Code("FIELD_TAB_GET_FAILED").With("tab_id", id.String()), "get tab", err)
	}
	return tab, nil
}

// Create persists a new tab.
func (r *TabRepository) Create(ctx context.Context, tab *customfield.FieldTab) error {
	_, err := dbFromCtx(ctx, r.pool).Exec(ctx, `
		INSERT INTO field_tabs (`+tabColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, tab.ID.String(), int16(tab.Scope.EntityType), tab.Scope.EntityID, tab.TabName,
		tab.DisplayOrder, int16(tab.Status), tab.CreatedAt, tab.UpdatedAt)
	if err != nil {
		return wrapStorage(oops.Code("FIELD_TAB_CREATE_FAILED").With("tab_id", tab.ID.String()), "create tab", err)
	}
	return nil
}

// Update modifies name, display order and status of an existing tab.
func (r *TabRepository) Update(ctx context.Context, tab *customfield.FieldTab) error {
	result, err := dbFromCtx(ctx, r.pool).Exec(ctx, `
		UPDATE field_tabs
		SET tab_name = $2, display_order = $3, status = $4, updated_at = $5
		WHERE id = $1
	`, tab.ID.String(), tab.TabName, tab.DisplayOrder, int16(tab.Status), tab.UpdatedAt)
	if err != nil {
		return wrapStorage(oops.Code("FIELD_TAB_UPDATE_FAILED").With("tab_id", tab.ID.String()), "update tab", err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("FIELD_TAB_NOT_FOUND").With("tab_id", tab.ID.String()).Wrap(customfield.ErrNotFound)
	}
	return nil
}

// ListActive returns the active tabs of a scope in display order.
func (r *TabRepository) ListActive(ctx context.Context, scope customfield.Scope) ([]*customfield.FieldTab, error) {
	rows, err := dbFromCtx(ctx, r.pool).Query(ctx, `
		SELECT `+tabColumns+`
		FROM field_tabs
		WHERE entity_type = $1 AND entity_id = $2 AND status = $3
		ORDER BY display_order, created_at, id
	`, int16(scope.EntityType), scope.EntityID, int16(customfield.StatusActive))
	if err != nil {
		return nil, wrapStorage(oops.Code("FIELD_TAB_QUERY_FAILED").With("scope", scope.String()), "list tabs", err)
	}
	defer rows.Close()

	tabs := make([]*customfield.FieldTab, 0)
	for rows.Next() {
		tab, err := scanTab(rows)
		if err != nil {
			return nil, wrapStorage(oops.Code("FIELD_TAB_SCAN_FAILED"), "scan tab", err)
		}
		tabs = append(tabs, tab)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorage(oops.Code("FIELD_TAB_ITERATE_FAILED"), "iterate tabs", err)
	}
	return tabs, nil
}

func scanTab(row pgx.Row) (*customfield.FieldTab, error) {
	var (
		tab        customfield.FieldTab
		idStr      string
		entityType int16
		status     int16
	)
	if err := row.Scan(&idStr, &entityType, &tab.Scope.EntityID, &tab.TabName,
		&tab.DisplayOrder, &status, &tab.CreatedAt, &tab.UpdatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("FIELD_TAB_PARSE_FAILED").With("field", "id").With("value", idStr).Wrap(err)
	}
	tab.ID = id
	tab.Scope.EntityType = customfield.EntityType(entityType)
	tab.Status = customfield.Status(status)
	return &tab, nil
}

// Compile-time interface check.
var _ customfield.TabRepository = (*TabRepository)(nil)
