// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store owns the PostgreSQL connection pool and schema migrations
// for custom field storage.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// PoolConfig controls how Open connects.
type PoolConfig struct {
	URL string
	// Attempts is the number of connection attempts; values below 1 mean one.
	Attempts uint64
	// Timeout bounds each attempt.
	Timeout time.Duration
	// Backoff is the initial delay between attempts; zero selects 500ms.
	Backoff time.Duration
}

const (
	defaultBackoff    = 500 * time.Millisecond
	maxBackoff        = 5 * time.Second
	defaultConnectTimeout = 10 * time.Second
)

// Open creates a pgx pool and pings it, retrying with exponential backoff
// while the database is unreachable.
func Open(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, oops.Code("DATABASE_URL_MISSING").Errorf("database URL is empty")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, oops.Code("DATABASE_URL_INVALID").Wrap(err)
	}

	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	base := cfg.Backoff
	if base <= 0 {
		base = defaultBackoff
	}
	backoff := retry.WithMaxRetries(attempts-1, retry.WithCappedDuration(maxBackoff, retry.NewExponential(base)))

	attempt := 0
	pool, err := retry.DoValue(ctx, backoff, func(ctx context.Context) (*pgxpool.Pool, error) {
		attempt++
		p, err := connect(ctx, poolCfg, timeout)
		if err != nil {
			slog.WarnContext(ctx, "database not ready",
				"attempt", attempt,
				"max_attempts", attempts,
				"error", err)
			return nil, retry.RetryableError(err)
		}
		return p, nil
	})
	if err != nil {
		return nil, oops.Code("DATABASE_CONNECT_FAILED").With("attempts", attempt).Wrap(err)
	}
	return pool, nil
}

func connect(ctx context.Context, cfg *pgxpool.Config, timeout time.Duration) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg.Copy())
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by Open
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err //nolint:wrapcheck // wrapped by Open
	}
	return pool, nil
}
