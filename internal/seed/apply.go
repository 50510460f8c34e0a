// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package seed

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/customfields/internal/customfield"
)

// Result counts what Apply did.
type Result struct {
	TabsCreated     int
	TabsUpdated     int
	TabsUnchanged   int
	FieldsCreated   int
	FieldsUpdated   int
	FieldsUnchanged int
}

// Changed reports whether Apply wrote anything.
func (r *Result) Changed() bool {
	return r.TabsCreated+r.TabsUpdated+r.FieldsCreated+r.FieldsUpdated > 0
}

// Apply creates or updates the tabs and fields declared by doc inside a
// single transaction. Tabs are matched by name and fields by name within
// their scope; declarations already in the desired state are left alone.
// Definitions present in storage but absent from doc are not touched.
func Apply(ctx context.Context, reg *customfield.Registry, tx customfield.Transactor, doc *Document) (*Result, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	res := &Result{}
	err := tx.InTransaction(ctx, func(ctx context.Context) error {
		for _, s := range doc.Scopes {
			if err := applyScope(ctx, reg, s, res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, oops.Code("SEED_FAILED").Wrap(err)
	}

	slog.InfoContext(ctx, "seed applied",
		"tabs_created", res.TabsCreated,
		"tabs_updated", res.TabsUpdated,
		"fields_created", res.FieldsCreated,
		"fields_updated", res.FieldsUpdated,
		"unchanged", res.TabsUnchanged+res.FieldsUnchanged)
	return res, nil
}

func applyScope(ctx context.Context, reg *customfield.Registry, s ScopeSeed, res *Result) error {
	scope, err := s.scope()
	if err != nil {
		return err
	}

	existing, err := reg.ListTabs(ctx, scope)
	if err != nil {
		return err
	}
	byName := make(map[string]*customfield.FieldTab, len(existing))
	for _, t := range existing {
		byName[t.TabName] = t
	}

	for i, ts := range s.Tabs {
		tab, err := applyTab(ctx, reg, scope, byName[ts.Name], ts, i, res)
		if err != nil {
			return err
		}
		for j, fs := range ts.Fields {
			if err := applyField(ctx, reg, scope, tab, fs, j, res); err != nil {
				return err
			}
		}
	}
	for j, fs := range s.Fields {
		if err := applyField(ctx, reg, scope, nil, fs, j, res); err != nil {
			return err
		}
	}
	return nil
}

func applyTab(ctx context.Context, reg *customfield.Registry, scope customfield.Scope, current *customfield.FieldTab, ts TabSeed, index int, res *Result) (*customfield.FieldTab, error) {
	order := index
	if ts.DisplayOrder != nil {
		order = *ts.DisplayOrder
	}

	if current == nil {
		tab := &customfield.FieldTab{Scope: scope, TabName: ts.Name, DisplayOrder: order}
		if err := reg.CreateTab(ctx, tab); err != nil {
			return nil, oops.With("scope", scope.String()).With("tab_name", ts.Name).Wrapf(err, "create tab")
		}
		slog.DebugContext(ctx, "seed created tab", "scope", scope.String(), "tab", ts.Name, "tab_id", tab.ID.String())
		res.TabsCreated++
		return tab, nil
	}

	if ts.DisplayOrder == nil || current.DisplayOrder == order {
		res.TabsUnchanged++
		return current, nil
	}
	tab, err := reg.UpdateTab(ctx, current.ID, customfield.TabPatch{DisplayOrder: &order})
	if err != nil {
		return nil, oops.With("scope", scope.String()).With("tab_name", ts.Name).Wrapf(err, "update tab")
	}
	slog.DebugContext(ctx, "seed updated tab", "scope", scope.String(), "tab", ts.Name)
	res.TabsUpdated++
	return tab, nil
}

func applyField(ctx context.Context, reg *customfield.Registry, scope customfield.Scope, tab *customfield.FieldTab, fs FieldSeed, index int, res *Result) error {
	in, err := fs.input(scope, tab)
	if err != nil {
		return err
	}
	if fs.DisplayOrder == nil {
		in.DisplayOrder = index
	}

	current, err := reg.FindDefinition(ctx, scope, fs.Name)
	if errors.Is(err, customfield.ErrNotFound) {
		def, err := reg.CreateDefinition(ctx, in)
		if err != nil {
			return oops.With("scope", scope.String()).With("field_name", fs.Name).Wrapf(err, "create field")
		}
		slog.DebugContext(ctx, "seed created field", "scope", scope.String(), "field", fs.Name, "definition_id", def.ID.String())
		res.FieldsCreated++
		return nil
	}
	if err != nil {
		return err
	}

	patch, changed := diffDefinition(current, in, fs.DisplayOrder != nil)
	if !changed {
		res.FieldsUnchanged++
		return nil
	}
	if _, err := reg.UpdateDefinition(ctx, current.ID, patch); err != nil {
		return oops.With("scope", scope.String()).With("field_name", fs.Name).Wrapf(err, "update field")
	}
	slog.DebugContext(ctx, "seed updated field", "scope", scope.String(), "field", fs.Name)
	res.FieldsUpdated++
	return nil
}

// diffDefinition builds the patch that moves current to the desired input.
// Display order is only compared when the seed declares one.
func diffDefinition(current *customfield.FieldDefinition, in customfield.DefinitionInput, withOrder bool) (customfield.DefinitionPatch, bool) {
	var patch customfield.DefinitionPatch
	changed := false

	if current.FieldType != in.FieldType {
		ft := in.FieldType
		patch.FieldType = &ft
		changed = true
	}
	if !sameOptions(current.FieldOptions, in.FieldOptions) {
		opts := in.FieldOptions
		patch.FieldOptions = &opts
		changed = true
	}
	if current.IsRequired != in.IsRequired {
		v := in.IsRequired
		patch.IsRequired = &v
		changed = true
	}
	if current.IsProfile != in.IsProfile {
		v := in.IsProfile
		patch.IsProfile = &v
		changed = true
	}
	if withOrder && current.DisplayOrder != in.DisplayOrder {
		v := in.DisplayOrder
		patch.DisplayOrder = &v
		changed = true
	}

	switch {
	case in.FieldTabID == nil && current.FieldTabID != nil:
		patch.ClearTab = true
		changed = true
	case in.FieldTabID != nil && (current.FieldTabID == nil || *current.FieldTabID != *in.FieldTabID):
		id := *in.FieldTabID
		patch.FieldTabID = &id
		changed = true
	}
	return patch, changed
}

func sameOptions(a, b customfield.FieldOptions) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
