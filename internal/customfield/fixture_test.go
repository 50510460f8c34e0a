// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package customfield_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/holomush/customfields/internal/customfield"
	"github.com/holomush/customfields/internal/customfield/memstore"
)

// stepClock returns a strictly increasing time on every call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	store    *memstore.Store
	registry *customfield.Registry
	values   *customfield.ValueStore
	facade   *customfield.Facade
}

func newFixture(t *testing.T, scopes customfield.ScopeResolver) *fixture {
	t.Helper()
	store := memstore.New()
	clock := newStepClock()
	reg := customfield.NewRegistry(customfield.RegistryConfig{
		Tabs:        store.Tabs(),
		Definitions: store.Definitions(),
		Values:      store.Values(),
		Now:         clock.Now,
	})
	values := customfield.NewValueStore(customfield.ValueStoreConfig{
		Definitions: reg,
		Values:      store.Values(),
		Transactor:  store,
		Now:         clock.Now,
	})
	return &fixture{
		store:    store,
		registry: reg,
		values:   values,
		facade: customfield.NewFacade(customfield.FacadeConfig{
			Registry:   reg,
			Values:     values,
			ValueRepo:  store.Values(),
			Transactor: store,
			Scopes:     scopes,
		}),
	}
}

func (f *fixture) tab(t *testing.T, scope customfield.Scope, name string, order int) *customfield.FieldTab {
	t.Helper()
	tab := &customfield.FieldTab{Scope: scope, TabName: name, DisplayOrder: order}
	require.NoError(t, f.registry.CreateTab(context.Background(), tab))
	return tab
}

func (f *fixture) field(t *testing.T, in customfield.DefinitionInput) *customfield.FieldDefinition {
	t.Helper()
	def, err := f.registry.CreateDefinition(context.Background(), in)
	require.NoError(t, err)
	return def
}

func choices(values ...string) customfield.FieldOptions {
	opts := make(customfield.FieldOptions, len(values))
	for i, v := range values {
		opts[i] = customfield.FieldOption{Value: v}
	}
	return opts
}

func ptr[T any](v T) *T { return &v }
