// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memstore provides an in-process implementation of the customfield
// repositories. Transactions are serialised and roll back by restoring a
// snapshot, so it suits tests and dry runs rather than production load.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/customfields/internal/customfield"
)

type txKey struct{}

type valueKey struct {
	definitionID ulid.ULID
	entityID     string
}

// Store holds tabs, definitions and values in memory.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	tabs   map[ulid.ULID]customfield.FieldTab
	defs   map[ulid.ULID]customfield.FieldDefinition
	values map[valueKey]customfield.FieldValue
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		tabs:   make(map[ulid.ULID]customfield.FieldTab),
		defs:   make(map[ulid.ULID]customfield.FieldDefinition),
		values: make(map[valueKey]customfield.FieldValue),
	}
}

// Tabs returns the tab repository view.
func (s *Store) Tabs() *TabRepository { return &TabRepository{s: s} }

// Definitions returns the definition repository view.
func (s *Store) Definitions() *DefinitionRepository { return &DefinitionRepository{s: s} }

// Values returns the value repository view.
func (s *Store) Values() *ValueRepository { return &ValueRepository{s: s} }

// InTransaction runs fn with exclusive write access. If fn returns an error
// every change made through the context is discarded. Nested calls join the
// outer transaction.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// ValueCount returns the number of stored value rows.
func (s *Store) ValueCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// write runs fn under the data lock, taking the transaction lock first when
// the caller is not already inside a transaction.
func (s *Store) write(ctx context.Context, fn func() error) error {
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

type snapshot struct {
	tabs   map[ulid.ULID]customfield.FieldTab
	defs   map[ulid.ULID]customfield.FieldDefinition
	values map[valueKey]customfield.FieldValue
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		tabs:   make(map[ulid.ULID]customfield.FieldTab, len(s.tabs)),
		defs:   make(map[ulid.ULID]customfield.FieldDefinition, len(s.defs)),
		values: make(map[valueKey]customfield.FieldValue, len(s.values)),
	}
	for k, v := range s.tabs {
		snap.tabs[k] = v
	}
	for k, v := range s.defs {
		snap.defs[k] = v
	}
	for k, v := range s.values {
		snap.values[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs = snap.tabs
	s.defs = snap.defs
	s.values = snap.values
}

// TabRepository implements customfield.TabRepository.
type TabRepository struct{ s *Store }

// Get retrieves a tab by ID.
func (r *TabRepository) Get(_ context.Context, id ulid.ULID) (*customfield.FieldTab, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	tab, ok := r.s.tabs[id]
	if !ok {
		return nil, oops.Code("FIELD_TAB_NOT_FOUND").With("tab_id", id.String()).Wrap(customfield.ErrNotFound)
	}
	return &tab, nil
}

// Create persists a new tab.
func (r *TabRepository) Create(ctx context.Context, tab *customfield.FieldTab) error {
	return r.s.write(ctx, func() error {
		if _, exists := r.s.tabs[tab.ID]; exists {
			return oops.Code("FIELD_TAB_DUPLICATE_ID").With("tab_id", tab.ID.String()).Wrap(customfield.ErrConflict)
		}
		r.s.tabs[tab.ID] = *tab
		return nil
	})
}

// Update replaces an existing tab.
func (r *TabRepository) Update(ctx context.Context, tab *customfield.FieldTab) error {
	return r.s.write(ctx, func() error {
		existing, ok := r.s.tabs[tab.ID]
		if !ok {
			return oops.Code("FIELD_TAB_NOT_FOUND").With("tab_id", tab.ID.String()).Wrap(customfield.ErrNotFound)
		}
		updated := *tab
		updated.Scope = existing.Scope
		updated.CreatedAt = existing.CreatedAt
		r.s.tabs[tab.ID] = updated
		return nil
	})
}

// ListActive returns the active tabs of scope in display order.
func (r *TabRepository) ListActive(_ context.Context, scope customfield.Scope) ([]*customfield.FieldTab, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*customfield.FieldTab, 0)
	for _, t := range r.s.tabs {
		if t.Scope == scope && t.Active() {
			tab := t
			out = append(out, &tab)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Compare(out[j].ID) < 0
	})
	return out, nil
}

// DefinitionRepository implements customfield.DefinitionRepository.
type DefinitionRepository struct{ s *Store }

// Get retrieves a definition by ID.
func (r *DefinitionRepository) Get(_ context.Context, id ulid.ULID) (*customfield.FieldDefinition, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	def, ok := r.s.defs[id]
	if !ok {
		return nil, oops.Code("FIELD_NOT_FOUND").With("definition_id", id.String()).Wrap(customfield.ErrNotFound)
	}
	return cloneDefinition(def), nil
}

// Create persists a new definition, enforcing name uniqueness among the
// active definitions of its scope.
func (r *DefinitionRepository) Create(ctx context.Context, def *customfield.FieldDefinition) error {
	return r.s.write(ctx, func() error {
		if _, exists := r.s.defs[def.ID]; exists {
			return oops.Code("FIELD_DUPLICATE_ID").With("definition_id", def.ID.String()).Wrap(customfield.ErrConflict)
		}
		if err := r.checkName(def); err != nil {
			return err
		}
		r.s.defs[def.ID] = *cloneDefinition(*def)
		return nil
	})
}

// Update replaces an existing definition.
func (r *DefinitionRepository) Update(ctx context.Context, def *customfield.FieldDefinition) error {
	return r.s.write(ctx, func() error {
		existing, ok := r.s.defs[def.ID]
		if !ok {
			return oops.Code("FIELD_NOT_FOUND").With("definition_id", def.ID.String()).Wrap(customfield.ErrNotFound)
		}
		if def.Active() {
			if err := r.checkName(def); err != nil {
				return err
			}
		}
		updated := *cloneDefinition(*def)
		updated.Scope = existing.Scope
		updated.CreatedAt = existing.CreatedAt
		r.s.defs[def.ID] = updated
		return nil
	})
}

// ListActive returns the active definitions of scope in display order.
func (r *DefinitionRepository) ListActive(_ context.Context, scope customfield.Scope) ([]*customfield.FieldDefinition, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*customfield.FieldDefinition, 0)
	for _, d := range r.s.defs {
		if d.Scope == scope && d.Active() {
			out = append(out, cloneDefinition(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Compare(out[j].ID) < 0
	})
	return out, nil
}

// FindActiveByName returns the active definition named name in scope.
func (r *DefinitionRepository) FindActiveByName(_ context.Context, scope customfield.Scope, name string) (*customfield.FieldDefinition, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, d := range r.s.defs {
		if d.Scope == scope && d.Active() && d.FieldName == name {
			return cloneDefinition(d), nil
		}
	}
	return nil, oops.Code("FIELD_NOT_FOUND").
		With("scope", scope.String()).
		With("field_name", name).
		Wrap(customfield.ErrNotFound)
}

// checkName must be called with the data lock held.
func (r *DefinitionRepository) checkName(def *customfield.FieldDefinition) error {
	for id, other := range r.s.defs {
		if id != def.ID && other.Active() && other.Scope == def.Scope && other.FieldName == def.FieldName {
			return oops.Code("FIELD_NAME_CONFLICT").
				With("scope", def.Scope.String()).
				With("field_name", def.FieldName).
				Wrap(customfield.ErrConflict)
		}
	}
	return nil
}

func cloneDefinition(d customfield.FieldDefinition) *customfield.FieldDefinition {
	if d.FieldTabID != nil {
		tabID := *d.FieldTabID
		d.FieldTabID = &tabID
	}
	if d.FieldOptions != nil {
		d.FieldOptions = append(customfield.FieldOptions(nil), d.FieldOptions...)
	}
	return &d
}

// ValueRepository implements customfield.ValueRepository.
type ValueRepository struct{ s *Store }

// ListByEntity returns the instance's values ordered by definition ID.
func (r *ValueRepository) ListByEntity(_ context.Context, instance customfield.Scope) ([]*customfield.FieldValue, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*customfield.FieldValue, 0)
	for _, v := range r.s.values {
		if v.Instance == instance {
			val := v
			out = append(out, &val)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FieldDefinitionID.Compare(out[j].FieldDefinitionID) < 0
	})
	return out, nil
}

// Upsert inserts or replaces the value for (definition, entity).
func (r *ValueRepository) Upsert(ctx context.Context, v *customfield.FieldValue) error {
	return r.s.write(ctx, func() error {
		if _, ok := r.s.defs[v.FieldDefinitionID]; !ok {
			return oops.Code("FIELD_NOT_FOUND").
				With("definition_id", v.FieldDefinitionID.String()).
				Wrap(customfield.ErrNotFound)
		}
		key := valueKey{definitionID: v.FieldDefinitionID, entityID: v.Instance.EntityID}
		if existing, ok := r.s.values[key]; ok {
			v.ID = existing.ID
			v.CreatedAt = existing.CreatedAt
		}
		r.s.values[key] = *v
		return nil
	})
}

// Delete removes the value for (definitionID, entityID) if present.
func (r *ValueRepository) Delete(ctx context.Context, definitionID ulid.ULID, entityID string) error {
	return r.s.write(ctx, func() error {
		delete(r.s.values, valueKey{definitionID: definitionID, entityID: entityID})
		return nil
	})
}

// DeleteByEntity removes every value of the instance.
func (r *ValueRepository) DeleteByEntity(ctx context.Context, instance customfield.Scope) error {
	return r.s.write(ctx, func() error {
		for k, v := range r.s.values {
			if v.Instance == instance {
				delete(r.s.values, k)
			}
		}
		return nil
	})
}

// CountByDefinition returns how many values reference the definition.
func (r *ValueRepository) CountByDefinition(_ context.Context, definitionID ulid.ULID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for k := range r.s.values {
		if k.definitionID == definitionID {
			n++
		}
	}
	return n, nil
}

// LockEntity is satisfied by the store-wide transaction lock.
func (r *ValueRepository) LockEntity(ctx context.Context, instance customfield.Scope) error {
	if !inTx(ctx) {
		return oops.Code("FIELD_VALUE_LOCK_FAILED").
			With("entity", instance.String()).
			Errorf("LockEntity requires a transaction")
	}
	return nil
}

// Compile-time interface checks.
var (
	_ customfield.TabRepository        = (*TabRepository)(nil)
	_ customfield.DefinitionRepository = (*DefinitionRepository)(nil)
	_ customfield.ValueRepository      = (*ValueRepository)(nil)
	_ customfield.Transactor           = (*Store)(nil)
)
