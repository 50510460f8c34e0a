// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/customfields/internal/customfield"
	"github.com/holomush/customfields/internal/customfield/customfieldtest"
)

var (
	tabCols   = []string{"id", "entity_type", "entity_id", "tab_name", "display_order", "status", "created_at", "updated_at"}
	defCols   = []string{"id", "field_tab_id", "entity_type", "entity_id", "field_name", "field_type", "field_options", "is_required", "display_order", "is_profile", "status", "created_at", "updated_at"}
	valueCols = []string{"id", "field_definition_id", "entity_type", "entity_id", "field_name", "value", "created_at", "updated_at"}

	fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

const (
	tabID   = "01JBX00000000000000000TAB1"
	fieldID = "01JBX0000000000000000FDEF1"
	valueID = "01JBX0000000000000000VAE01"
)

func mustULID(t *testing.T, s string) ulid.ULID {
	t.Helper()
	id, err := ulid.Parse(s)
	require.NoError(t, err)
	return id
}

func strPtr(s string) *string { return &s }

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock
}

func TestTabRepository_Get(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		wantCode  string
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM field_tabs WHERE id = \$1`).
					WithArgs(tabID).
					WillReturnRows(pgxmock.NewRows(tabCols).
						AddRow(tabID, int16(1), "", "Personal", 2, int16(0), fixedTime, fixedTime))
			},
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM field_tabs WHERE id = \$1`).
					WithArgs(tabID).
					WillReturnRows(pgxmock.NewRows(tabCols))
			},
			wantErr:  customfield.ErrNotFound,
			wantCode: "FIELD_TAB_NOT_FOUND",
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM field_tabs WHERE id = \$1`).
					WithArgs(tabID).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr:  customfield.ErrStorage,
			wantCode: "FIELD_TAB_GET_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setupMock(mock)

			tab, err := NewTabRepository(mock).Get(context.Background(), mustULID(t, tabID))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				customfieldtest.AssertErrorCode(t, err, tt.wantCode)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tabID, tab.ID.String())
				assert.Equal(t, customfield.EntityTypeMembership, tab.Scope.EntityType)
				assert.Equal(t, "Personal", tab.TabName)
				assert.Equal(t, 2, tab.DisplayOrder)
				assert.True(t, tab.Active())
			}
			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestTabRepository_CreateAndUpdate(t *testing.T) {
	mock := newMock(t)
	repo := NewTabRepository(mock)
	tab := &customfield.FieldTab{
		ID:           mustULID(t, tabID),
		Scope:        customfield.Scope{EntityType: customfield.EntityTypeEvent, EntityID: "7"},
		TabName:      "Logistics",
		DisplayOrder: 1,
		CreatedAt:    fixedTime,
		UpdatedAt:    fixedTime,
	}

	mock.ExpectExec(`INSERT INTO field_tabs`).
		WithArgs(tabID, int16(2), "7", "Logistics", 1, int16(0), fixedTime, fixedTime).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.Create(context.Background(), tab))

	tab.Status = customfield.StatusDeleted
	mock.ExpectExec(`UPDATE field_tabs`).
		WithArgs(tabID, "Logistics", 1, int16(1), fixedTime).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err := repo.Update(context.Background(), tab)
	require.ErrorIs(t, err, customfield.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTabRepository_ListActive(t *testing.T) {
	mock := newMock(t)
	scope := customfield.Scope{EntityType: customfield.EntityTypeGroup, EntityID: "g1"}

	mock.ExpectQuery(`SELECT .+ FROM field_tabs\s+WHERE entity_type = \$1 AND entity_id = \$2 AND status = \$3`).
		WithArgs(int16(3), "g1", int16(0)).
		WillReturnRows(pgxmock.NewRows(tabCols).
			AddRow("01JBX00000000000000000TAB1", int16(3), "g1", "A", 0, int16(0), fixedTime, fixedTime).
			AddRow("01JBX00000000000000000TAB2", int16(3), "g1", "B", 1, int16(0), fixedTime, fixedTime))

	tabs, err := NewTabRepository(mock).ListActive(context.Background(), scope)
	require.NoError(t, err)
	require.Len(t, tabs, 2)
	assert.Equal(t, "A", tabs[0].TabName)
	assert.Equal(t, scope, tabs[1].Scope)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefinitionRepository_Get(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT .+ FROM field_definitions WHERE id = \$1`).
		WithArgs(fieldID).
		WillReturnRows(pgxmock.NewRows(defCols).
			AddRow(fieldID, strPtr(tabID), int16(1), "", "tshirt", int16(5),
				[]byte(`[{"value":"S"},{"value":"M","label":"Medium"}]`),
				true, 3, false, int16(0), fixedTime, fixedTime))

	def, err := NewDefinitionRepository(mock).Get(context.Background(), mustULID(t, fieldID))
	require.NoError(t, err)
	require.NotNil(t, def.FieldTabID)
	assert.Equal(t, tabID, def.FieldTabID.String())
	assert.Equal(t, customfield.FieldTypeSingleChoice, def.FieldType)
	assert.Equal(t, []string{"S", "M"}, def.FieldOptions.Values())
	assert.Equal(t, "Medium", def.FieldOptions[1].DisplayLabel())
	assert.True(t, def.IsRequired)
	assert.Equal(t, 3, def.DisplayOrder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefinitionRepository_GetRejectsCorruptOptions(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT .+ FROM field_definitions WHERE id = \$1`).
		WithArgs(fieldID).
		WillReturnRows(pgxmock.NewRows(defCols).
			AddRow(fieldID, (*string)(nil), int16(1), "", "tshirt", int16(5),
				[]byte(`[{"label":"no value"}]`),
				false, 0, false, int16(0), fixedTime, fixedTime))

	_, err := NewDefinitionRepository(mock).Get(context.Background(), mustULID(t, fieldID))
	require.Error(t, err)
	assert.ErrorIs(t, err, customfield.ErrStorage)
}

func TestDefinitionRepository_CreateNameConflict(t *testing.T) {
	mock := newMock(t)
	def := &customfield.FieldDefinition{
		ID:        mustULID(t, fieldID),
		Scope:     customfield.Scope{EntityType: customfield.EntityTypeMembership},
		FieldName: "nickname",
		FieldType: customfield.FieldTypeText,
		CreatedAt: fixedTime,
		UpdatedAt: fixedTime,
	}

	mock.ExpectExec(`INSERT INTO field_definitions`).
		WithArgs(fieldID, (*string)(nil), int16(1), "", "nickname", int16(1), []byte(`[]`),
			false, 0, false, int16(0), fixedTime, fixedTime).
		WillReturnError(&pgconn.PgError{
			Code:           pgerrcode.UniqueViolation,
			ConstraintName: "field_definitions_active_name_idx",
		})

	err := NewDefinitionRepository(mock).Create(context.Background(), def)
	require.ErrorIs(t, err, customfield.ErrConflict)
	customfieldtest.AssertErrorCode(t, err, "FIELD_CREATE_FAILED")
	customfieldtest.AssertErrorContext(t, err, "constraint", "field_definitions_active_name_idx")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefinitionRepository_FindActiveByNameNotFound(t *testing.T) {
	mock := newMock(t)
	scope := customfield.Scope{EntityType: customfield.EntityTypeOrder, EntityID: "shop"}

	mock.ExpectQuery(`SELECT .+ FROM field_definitions\s+WHERE entity_type = \$1 AND entity_id = \$2 AND field_name = \$3`).
		WithArgs(int16(5), "shop", "gift_note", int16(0)).
		WillReturnRows(pgxmock.NewRows(defCols))

	_, err := NewDefinitionRepository(mock).FindActiveByName(context.Background(), scope, "gift_note")
	require.ErrorIs(t, err, customfield.ErrNotFound)
	customfieldtest.AssertErrorCode(t, err, "FIELD_NOT_FOUND")
}

func TestValueRepository_ListByEntity(t *testing.T) {
	mock := newMock(t)
	instance := customfield.Scope{EntityType: customfield.EntityTypeMembership, EntityID: "42"}

	mock.ExpectQuery(`SELECT .+ FROM field_values\s+WHERE entity_type = \$1 AND entity_id = \$2`).
		WithArgs(int16(1), "42").
		WillReturnRows(pgxmock.NewRows(valueCols).
			AddRow(valueID, fieldID, int16(1), "42", "nickname", "Bob", fixedTime, fixedTime))

	values, err := NewValueRepository(mock).ListByEntity(context.Background(), instance)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, fieldID, values[0].FieldDefinitionID.String())
	assert.Equal(t, instance, values[0].Instance)
	assert.Equal(t, "Bob", values[0].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValueRepository_UpsertKeepsOriginalIdentity(t *testing.T) {
	mock := newMock(t)
	created := fixedTime.Add(-time.Hour)
	v := &customfield.FieldValue{
		ID:                ulid.Make(),
		FieldDefinitionID: mustULID(t, fieldID),
		Instance:          customfield.Scope{EntityType: customfield.EntityTypeMembership, EntityID: "42"},
		FieldName:         "nickname",
		Value:             "Robert",
		CreatedAt:         fixedTime,
		UpdatedAt:         fixedTime,
	}

	mock.ExpectQuery(`INSERT INTO field_values .+ ON CONFLICT \(field_definition_id, entity_id\) DO UPDATE`).
		WithArgs(v.ID.String(), fieldID, int16(1), "42", "nickname", "Robert", fixedTime, fixedTime).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(valueID, created))

	require.NoError(t, NewValueRepository(mock).Upsert(context.Background(), v))
	assert.Equal(t, valueID, v.ID.String())
	assert.Equal(t, created, v.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValueRepository_UpsertMissingDefinition(t *testing.T) {
	mock := newMock(t)
	v := &customfield.FieldValue{
		ID:                ulid.Make(),
		FieldDefinitionID: mustULID(t, fieldID),
		Instance:          customfield.Scope{EntityType: customfield.EntityTypeMembership, EntityID: "42"},
		FieldName:         "nickname",
		Value:             "Robert",
		CreatedAt:         fixedTime,
		UpdatedAt:         fixedTime,
	}

	mock.ExpectQuery(`INSERT INTO field_values`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: "field_values_field_definition_id_fkey"})

	err := NewValueRepository(mock).Upsert(context.Background(), v)
	require.ErrorIs(t, err, customfield.ErrNotFound)
	customfieldtest.AssertErrorCode(t, err, "FIELD_VALUE_UPSERT_FAILED")
}

func TestValueRepository_CountByDefinition(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM field_values WHERE field_definition_id = \$1`).
		WithArgs(fieldID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

	n, err := NewValueRepository(mock).CountByDefinition(context.Background(), mustULID(t, fieldID))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestValueRepository_LockEntity(t *testing.T) {
	instance := customfield.Scope{EntityType: customfield.EntityTypeEvent, EntityID: "9"}

	t.Run("requires a transaction", func(t *testing.T) {
		mock := newMock(t)
		err := NewValueRepository(mock).LockEntity(context.Background(), instance)
		require.Error(t, err)
		customfieldtest.AssertErrorCode(t, err, "FIELD_VALUE_LOCK_FAILED")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("takes advisory lock inside transaction", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtextextended\(\$1, 0\)\)`).
			WithArgs("customfield:event:9").
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mock.ExpectCommit()

		repo := NewValueRepository(mock)
		err := NewTransactor(mock).InTransaction(context.Background(), func(ctx context.Context) error {
			return repo.LockEntity(ctx, instance)
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWrapStorage(t *testing.T) {
	t.Run("plain error matches ErrStorage", func(t *testing.T) {
		err := wrapStorage(oops.Code("X_FAILED"), "do thing", errors.New("io"))
		require.ErrorIs(t, err, customfield.ErrStorage)
		var se *customfield.StorageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "do thing", se.Op)
	})

	t.Run("unique violation matches ErrConflict", func(t *testing.T) {
		err := wrapStorage(oops.Code("X_FAILED"), "insert", &pgconn.PgError{Code: pgerrcode.UniqueViolation})
		assert.ErrorIs(t, err, customfield.ErrConflict)
		assert.NotErrorIs(t, err, customfield.ErrStorage)
	})
}
