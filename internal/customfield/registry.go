// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package customfield

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RegistryConfig holds dependencies for Registry.
type RegistryConfig struct {
	Tabs        TabRepository
	Definitions DefinitionRepository
	Values      ValueRepository
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// Registry owns the catalog of tabs and field definitions.
// It holds no state of its own; all reads and writes go to the repositories.
type Registry struct {
	tabs        TabRepository
	definitions DefinitionRepository
	values      ValueRepository
	now         func() time.Time
}

// NewRegistry creates a Registry with the given configuration.
func NewRegistry(cfg RegistryConfig) *Registry {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		tabs:        cfg.Tabs,
		definitions: cfg.Definitions,
		values:      cfg.Values,
		now:         func() time.Time { return now().UTC() },
	}
}

// DefinitionInput describes a definition to create.
type DefinitionInput struct {
	Scope        Scope
	FieldTabID   *ulid.ULID
	FieldName    string
	FieldType    FieldType
	FieldOptions FieldOptions
	IsRequired   bool
	DisplayOrder int
	IsProfile    bool
}

// DefinitionPatch lists the fields to change on an existing definition.
// Nil pointers are left unchanged. ClearTab detaches the field from its tab.
type DefinitionPatch struct {
	FieldTabID   *ulid.ULID
	ClearTab     bool
	FieldName    *string
	FieldType    *FieldType
	FieldOptions *FieldOptions
	IsRequired   *bool
	DisplayOrder *int
	IsProfile    *bool
}

// TabPatch lists the fields to change on an existing tab.
type TabPatch struct {
	TabName      *string
	DisplayOrder *int
}

// ListOption narrows ListDefinitions.
type ListOption func(*listOptions)

type listOptions struct {
	excludeTabless bool
	profileOnly    bool
}

// WithoutTabless excludes definitions that belong to no tab.
func WithoutTabless() ListOption {
	return func(o *listOptions) { o.excludeTabless = true }
}

// ProfileOnly restricts the listing to IsProfile definitions.
func ProfileOnly() ListOption {
	return func(o *listOptions) { o.profileOnly = true }
}

// ListTabs returns the active tabs of a scope sorted by DisplayOrder, ties
// broken by creation order. An unconfigured scope yields an empty slice.
func (r *Registry) ListTabs(ctx context.Context, scope Scope) ([]*FieldTab, error) {
	tabs, err := r.tabs.ListActive(ctx, scope)
	if err != nil {
		return nil, oops.With("scope", scope.String()).Wrapf(err, "list tabs")
	}
	out := make([]*FieldTab, 0, len(tabs))
	for _, t := range tabs {
		if t.Active() {
			out = append(out, t)
		}
	}
	sortTabs(out)
	return out, nil
}

// GetTab returns an active tab.
func (r *Registry) GetTab(ctx context.Context, id ulid.ULID) (*FieldTab, error) {
	tab, err := r.tabs.Get(ctx, id)
	if err != nil {
		return nil, oops.With("tab_id", id.String()).Wrapf(err, "get tab")
	}
	if !tab.Active() {
		return nil, oops.Code("FIELD_TAB_NOT_FOUND").With("tab_id", id.String()).Wrap(ErrNotFound)
	}
	return tab, nil
}

// CreateTab validates and persists a new tab. The ID is generated if not set.
func (r *Registry) CreateTab(ctx context.Context, tab *FieldTab) error {
	if err := tab.Scope.Validate(); err != nil {
		return err
	}
	if err := ValidateTabName(tab.TabName); err != nil {
		return err
	}
	if err := r.ensureTabNameFree(ctx, tab.Scope, tab.TabName, ulid.ULID{}); err != nil {
		return err
	}

	if tab.ID.IsZero() {
		tab.ID = ulid.Make()
	}
	now := r.now()
	tab.Status = StatusActive
	tab.CreatedAt = now
	tab.UpdatedAt = now

	if err := r.tabs.Create(ctx, tab); err != nil {
		return oops.Wrapf(err, "create tab %s", tab.ID)
	}
	return nil
}

// UpdateTab renames or reorders an active tab.
func (r *Registry) UpdateTab(ctx context.Context, id ulid.ULID, patch TabPatch) (*FieldTab, error) {
	tab, err := r.GetTab(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.TabName != nil && *patch.TabName != tab.TabName {
		if err := ValidateTabName(*patch.TabName); err != nil {
			return nil, err
		}
		if err := r.ensureTabNameFree(ctx, tab.Scope, *patch.TabName, tab.ID); err != nil {
			return nil, err
		}
		tab.TabName = *patch.TabName
	}
	if patch.DisplayOrder != nil {
		tab.DisplayOrder = *patch.DisplayOrder
	}
	tab.UpdatedAt = r.now()

	if err := r.tabs.Update(ctx, tab); err != nil {
		return nil, oops.Wrapf(err, "update tab %s", id)
	}
	return tab, nil
}

// SoftDeleteTab marks a tab deleted. Its definitions stay active and are
// presented as tabless until reassigned.
func (r *Registry) SoftDeleteTab(ctx context.Context, id ulid.ULID) error {
	tab, err := r.GetTab(ctx, id)
	if err != nil {
		return err
	}
	tab.Status = StatusDeleted
	tab.UpdatedAt = r.now()
	if err := r.tabs.Update(ctx, tab); err != nil {
		return oops.Wrapf(err, "delete tab %s", id)
	}
	return nil
}

// ListDefinitions returns the active definitions of a scope sorted by
// DisplayOrder, ties broken by creation order. Tabless definitions are
// included unless WithoutTabless is given.
func (r *Registry) ListDefinitions(ctx context.Context, scope Scope, opts ...ListOption) ([]*FieldDefinition, error) {
	var o listOptions
	for _, opt := range opts {
		opt(&o)
	}

	defs, err := r.definitions.ListActive(ctx, scope)
	if err != nil {
		return nil, oops.With("scope", scope.String()).Wrapf(err, "list definitions")
	}
	out := make([]*FieldDefinition, 0, len(defs))
	for _, d := range defs {
		if !d.Active() {
			continue
		}
		if o.excludeTabless && d.FieldTabID == nil {
			continue
		}
		if o.profileOnly && !d.IsProfile {
			continue
		}
		out = append(out, d)
	}
	sortDefinitions(out)
	return out, nil
}

// ListProfileDefinitions returns the public-profile subset of a scope.
func (r *Registry) ListProfileDefinitions(ctx context.Context, scope Scope) ([]*FieldDefinition, error) {
	return r.ListDefinitions(ctx, scope, ProfileOnly())
}

// GetDefinition returns an active definition.
func (r *Registry) GetDefinition(ctx context.Context, id ulid.ULID) (*FieldDefinition, error) {
	def, err := r.definitions.Get(ctx, id)
	if err != nil {
		return nil, oops.With("definition_id", id.String()).Wrapf(err, "get definition")
	}
	if !def.Active() {
		return nil, oops.Code("FIELD_NOT_FOUND").With("definition_id", id.String()).Wrap(ErrNotFound)
	}
	return def, nil
}

// FindDefinition returns the active definition named name in scope.
func (r *Registry) FindDefinition(ctx context.Context, scope Scope, name string) (*FieldDefinition, error) {
	def, err := r.definitions.FindActiveByName(ctx, scope, name)
	if err != nil {
		return nil, oops.With("scope", scope.String()).With("field_name", name).Wrapf(err, "find definition")
	}
	return def, nil
}

// CreateDefinition validates and persists a new definition.
func (r *Registry) CreateDefinition(ctx context.Context, in DefinitionInput) (*FieldDefinition, error) {
	now := r.now()
	def := &FieldDefinition{
		ID:           ulid.Make(),
		FieldTabID:   in.FieldTabID,
		Scope:        in.Scope,
		FieldName:    in.FieldName,
		FieldType:    in.FieldType,
		FieldOptions: in.FieldOptions,
		IsRequired:   in.IsRequired,
		DisplayOrder: in.DisplayOrder,
		IsProfile:    in.IsProfile,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := r.validateDefinition(ctx, def); err != nil {
		return nil, err
	}
	if err := r.definitions.Create(ctx, def); err != nil {
		return nil, oops.Wrapf(err, "create definition %q", def.FieldName)
	}
	return def, nil
}

// UpdateDefinition applies patch to an active definition. Renaming does not
// touch FieldName on values already stored. Changing FieldType is rejected
// once any value references the definition.
func (r *Registry) UpdateDefinition(ctx context.Context, id ulid.ULID, patch DefinitionPatch) (*FieldDefinition, error) {
	def, err := r.GetDefinition(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.FieldType != nil && *patch.FieldType != def.FieldType {
		count, err := r.values.CountByDefinition(ctx, id)
		if err != nil {
			return nil, oops.With("definition_id", id.String()).Wrapf(err, "count values")
		}
		if count > 0 {
			return nil, oops.Code("FIELD_TYPE_LOCKED").
				With("definition_id", id.String()).
				With("values", count).
				Wrapf(ErrConflict, "field %q already has %d stored values; its type cannot change", def.FieldName, count)
		}
		def.FieldType = *patch.FieldType
		if !def.FieldType.IsChoice() && patch.FieldOptions == nil {
			def.FieldOptions = nil
		}
	}
	if patch.ClearTab {
		def.FieldTabID = nil
	} else if patch.FieldTabID != nil {
		tabID := *patch.FieldTabID
		def.FieldTabID = &tabID
	}
	if patch.FieldName != nil {
		def.FieldName = *patch.FieldName
	}
	if patch.FieldOptions != nil {
		def.FieldOptions = *patch.FieldOptions
	}
	if patch.IsRequired != nil {
		def.IsRequired = *patch.IsRequired
	}
	if patch.DisplayOrder != nil {
		def.DisplayOrder = *patch.DisplayOrder
	}
	if patch.IsProfile != nil {
		def.IsProfile = *patch.IsProfile
	}
	def.UpdatedAt = r.now()

	if err := r.validateDefinition(ctx, def); err != nil {
		return nil, err
	}
	if err := r.definitions.Update(ctx, def); err != nil {
		return nil, oops.Wrapf(err, "update definition %s", id)
	}
	return def, nil
}

// SoftDeleteDefinition marks a definition deleted. Stored values are kept
// but no longer listed.
func (r *Registry) SoftDeleteDefinition(ctx context.Context, id ulid.ULID) error {
	def, err := r.GetDefinition(ctx, id)
	if err != nil {
		return err
	}
	def.Status = StatusDeleted
	def.UpdatedAt = r.now()
	if err := r.definitions.Update(ctx, def); err != nil {
		return oops.Wrapf(err, "delete definition %s", id)
	}
	return nil
}

// validateDefinition runs shape checks, tab resolution and the name
// uniqueness check against the other active definitions of the scope.
func (r *Registry) validateDefinition(ctx context.Context, def *FieldDefinition) error {
	if err := validateDefinitionShape(def); err != nil {
		return err
	}

	if def.FieldTabID != nil {
		tab, err := r.tabs.Get(ctx, *def.FieldTabID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return oops.Code("FIELD_TAB_NOT_FOUND").With("tab_id", def.FieldTabID.String()).Wrap(err)
			}
			return oops.With("tab_id", def.FieldTabID.String()).Wrapf(err, "get tab")
		}
		if !tab.Active() {
			return oops.Code("FIELD_TAB_NOT_FOUND").With("tab_id", def.FieldTabID.String()).Wrap(ErrNotFound)
		}
		if tab.Scope != def.Scope {
			return &ValidationError{Field: "field_tab_id", Message: "tab belongs to scope " + tab.Scope.String()}
		}
	}

	existing, err := r.definitions.FindActiveByName(ctx, def.Scope, def.FieldName)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return oops.With("field_name", def.FieldName).Wrapf(err, "check field name")
	case existing.ID != def.ID:
		return oops.Code("FIELD_NAME_CONFLICT").
			With("scope", def.Scope.String()).
			With("field_name", def.FieldName).
			Wrapf(ErrConflict, "field %q already exists in %s", def.FieldName, def.Scope)
	}
	return nil
}

func (r *Registry) ensureTabNameFree(ctx context.Context, scope Scope, name string, self ulid.ULID) error {
	tabs, err := r.tabs.ListActive(ctx, scope)
	if err != nil {
		return oops.With("scope", scope.String()).Wrapf(err, "list tabs")
	}
	for _, t := range tabs {
		if t.Active() && t.TabName == name && t.ID != self {
			return oops.Code("FIELD_TAB_NAME_CONFLICT").
				With("scope", scope.String()).
				With("tab_name", name).
				Wrapf(ErrConflict, "tab %q already exists in %s", name, scope)
		}
	}
	return nil
}

func sortTabs(tabs []*FieldTab) {
	sort.SliceStable(tabs, func(i, j int) bool {
		a, b := tabs[i], tabs[j]
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.Compare(b.ID) < 0
	})
}

func sortDefinitions(defs []*FieldDefinition) {
	sort.SliceStable(defs, func(i, j int) bool {
		a, b := defs[i], defs[j]
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.Compare(b.ID) < 0
	})
}
