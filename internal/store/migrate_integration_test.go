// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/customfields/internal/store"
)

func tableExists(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	var exists bool
	err := pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, "public."+name).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func TestMigrator_FullCycle(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("customfields_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx) //nolint:errcheck // best-effort cleanup

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := store.Open(ctx, store.PoolConfig{URL: connStr, Attempts: 5, Timeout: 5 * time.Second})
	require.NoError(t, err)
	defer pool.Close()

	migrator, err := store.NewMigrator(connStr)
	require.NoError(t, err)
	defer migrator.Close() //nolint:errcheck // best-effort cleanup

	st, err := migrator.Status()
	require.NoError(t, err)
	assert.Zero(t, st.Version)
	assert.Equal(t, []uint{1, 2, 3}, st.Pending)

	require.NoError(t, migrator.Up())
	for _, table := range []string{"field_tabs", "field_definitions", "field_values"} {
		assert.True(t, tableExists(ctx, t, pool, table), "%s should exist after Up", table)
	}

	require.NoError(t, migrator.Steps(-1))
	assert.False(t, tableExists(ctx, t, pool, "field_values"), "Steps(-1) should drop field_values")
	assert.True(t, tableExists(ctx, t, pool, "field_definitions"))

	require.NoError(t, migrator.Steps(1))
	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)
	assert.False(t, dirty)

	require.NoError(t, migrator.Down())
	assert.False(t, tableExists(ctx, t, pool, "field_tabs"))

	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Force(2))
	version, _, err = migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version, "Force should record the version without running migrations")
}
