// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements the customfield repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/customfields/internal/customfield"
)

// Pool abstracts *pgxpool.Pool so repositories can be driven by pgxmock.
type Pool interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// querier is satisfied by both Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// dbFromCtx returns the transaction stored by Transactor, or pool when the
// caller is outside a transaction.
func dbFromCtx(ctx context.Context, pool Pool) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

func txFromCtx(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// wrapStorage wraps a database failure so it matches customfield.ErrStorage,
// translating constraint violations into domain errors first.
func wrapStorage(b oops.OopsErrorBuilder, op string, err error) error {
	b = b.With("operation", op)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return b.With("constraint", pgErr.ConstraintName).Wrap(customfield.ErrConflict)
		case pgerrcode.ForeignKeyViolation:
			return b.With("constraint", pgErr.ConstraintName).Wrap(customfield.ErrNotFound)
		}
	}
	return b.Wrap(&customfield.StorageError{Op: op, Err: err})
}

// parseOptionalULID parses an optional ULID string pointer into a ULID pointer.
// Returns nil if the input is nil. Wraps parse errors with the field name for context.
func parseOptionalULID(strPtr *string, fieldName string) (*ulid.ULID, error) {
	if strPtr == nil {
		return nil, nil
	}
	id, err := ulid.Parse(*strPtr)
	if err != nil {
		return nil, oops.With("operation", "parse "+fieldName).With(fieldName, *strPtr).Wrap(err)
	}
	return &id, nil
}

// ulidToStringPtr converts a ULID pointer to a string pointer for SQL parameters.
func ulidToStringPtr(id *ulid.ULID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
