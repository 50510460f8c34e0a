// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"

	"github.com/samber/oops"

	"github.com/holomush/customfields/internal/config"
	"github.com/holomush/customfields/internal/customfield"
	"github.com/holomush/customfields/internal/customfield/memstore"
	"github.com/holomush/customfields/internal/customfield/postgres"
	"github.com/holomush/customfields/internal/store"
)

// Deps contains injectable dependencies for the CLI.
// All fields with nil values will use their default implementations.
type Deps struct {
	// BackendFactory opens the storage the admin commands operate on.
	// Default: openPostgresBackend
	BackendFactory func(ctx context.Context, cfg *config.Config) (*Backend, error)

	// MigratorFactory creates a schema migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)
}

func (d Deps) withDefaults() Deps {
	if d.BackendFactory == nil {
		d.BackendFactory = openPostgresBackend
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(url string) (Migrator, error) {
			m, err := store.NewMigrator(url)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	return d
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	Status() (*store.MigrationStatus, error)
	Close() error
}

// Backend bundles the custom-field services built over one store.
type Backend struct {
	Registry   *customfield.Registry
	Values     *customfield.ValueStore
	Facade     *customfield.Facade
	Transactor customfield.Transactor
	close      func()
}

// Close releases the underlying store.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

type repositories struct {
	tabs   customfield.TabRepository
	defs   customfield.DefinitionRepository
	values customfield.ValueRepository
	tx     customfield.Transactor
}

func newBackend(cfg *config.Config, repos repositories, closeFn func()) (*Backend, error) {
	scopes, err := cfg.Scopes()
	if err != nil {
		return nil, err
	}
	reg := customfield.NewRegistry(customfield.RegistryConfig{
		Tabs:        repos.tabs,
		Definitions: repos.defs,
		Values:      repos.values,
	})
	values := customfield.NewValueStore(customfield.ValueStoreConfig{
		Definitions:   reg,
		Values:        repos.values,
		Transactor:    repos.tx,
		MaxTextLength: cfg.Fields.TextMaxLength,
	})
	return &Backend{
		Registry: reg,
		Values:   values,
		Facade: customfield.NewFacade(customfield.FacadeConfig{
			Registry:   reg,
			Values:     values,
			ValueRepo:  repos.values,
			Transactor: repos.tx,
			Scopes:     scopes,
		}),
		Transactor: repos.tx,
		close:      closeFn,
	}, nil
}

// openPostgresBackend connects to database.url, retrying per configuration.
func openPostgresBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	url, err := requireDatabaseURL(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := store.Open(ctx, store.PoolConfig{
		URL:      url,
		Attempts: cfg.Database.ConnectAttempts,
		Timeout:  cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	b, err := newBackend(cfg, repositories{
		tabs:   postgres.NewTabRepository(pool),
		defs:   postgres.NewDefinitionRepository(pool),
		values: postgres.NewValueRepository(pool),
		tx:     postgres.NewTransactor(pool),
	}, pool.Close)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

// newMemoryBackend builds a backend over an empty in-process store.
func newMemoryBackend(cfg *config.Config) (*Backend, error) {
	s := memstore.New()
	return newBackend(cfg, repositories{
		tabs:   s.Tabs(),
		defs:   s.Definitions(),
		values: s.Values(),
		tx:     s,
	}, nil)
}

func requireDatabaseURL(cfg *config.Config) (string, error) {
	if cfg.Database.URL == "" {
		return "", oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database URL is required: set database.url, --database-url or %s", config.DatabaseURLEnv)
	}
	return cfg.Database.URL, nil
}
