// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package customfield

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/holomush/customfields/internal/customfield"

// FacadeConfig holds dependencies for Facade.
type FacadeConfig struct {
	Registry   *Registry
	Values     *ValueStore
	ValueRepo  ValueRepository
	Transactor Transactor
	// Scopes maps instances to definition scopes; defaults to IdentityScopes.
	Scopes ScopeResolver
}

// Facade is the entry point used by entity-owning collaborators to read the
// form schema, read and write an instance's attributes, and purge attributes
// when an instance is deleted.
type Facade struct {
	registry *Registry
	values   *ValueStore
	repo     ValueRepository
	tx       Transactor
	scopes   ScopeResolver
	tracer   trace.Tracer
}

// NewFacade creates a Facade with the given configuration.
func NewFacade(cfg FacadeConfig) *Facade {
	scopes := cfg.Scopes
	if scopes == nil {
		scopes = IdentityScopes{}
	}
	return &Facade{
		registry: cfg.Registry,
		values:   cfg.Values,
		repo:     cfg.ValueRepo,
		tx:       cfg.Transactor,
		scopes:   scopes,
		tracer:   otel.Tracer(tracerName),
	}
}

// TabGroup is one section of a rendered form. Tab is nil for the trailing
// group of definitions that have no visible tab.
type TabGroup struct {
	Tab         *FieldTab
	Definitions []*FieldDefinition
}

// GetSchema groups the scope's active definitions under their active tabs in
// tab order. Definitions with no tab, or whose tab is deleted, form a
// trailing group with a nil Tab.
func (f *Facade) GetSchema(ctx context.Context, entityType EntityType, entityID string) ([]TabGroup, error) {
	ctx, span := f.startSpan(ctx, "customfield.GetSchema", entityType, entityID)
	defer span.End()

	scope := Scope{EntityType: entityType, EntityID: entityID}
	groups, err := f.schema(ctx, scope)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	return groups, nil
}

func (f *Facade) schema(ctx context.Context, scope Scope) ([]TabGroup, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	tabs, err := f.registry.ListTabs(ctx, scope)
	if err != nil {
		return nil, err
	}
	defs, err := f.registry.ListDefinitions(ctx, scope)
	if err != nil {
		return nil, err
	}

	groups := make([]TabGroup, 0, len(tabs)+1)
	index := make(map[ulid.ULID]int, len(tabs))
	for _, t := range tabs {
		index[t.ID] = len(groups)
		groups = append(groups, TabGroup{Tab: t, Definitions: []*FieldDefinition{}})
	}

	var tabless []*FieldDefinition
	for _, d := range defs {
		if d.FieldTabID != nil {
			if i, ok := index[*d.FieldTabID]; ok {
				groups[i].Definitions = append(groups[i].Definitions, d)
				continue
			}
		}
		tabless = append(tabless, d)
	}
	if len(tabless) > 0 {
		groups = append(groups, TabGroup{Definitions: tabless})
	}
	return groups, nil
}

// GetEntityAttributes returns the instance's values for the active
// definitions of its scope, keyed by the definition's current name and
// coerced per Coerce. Unset fields are absent. A stored value that no longer
// coerces is returned as its raw string.
func (f *Facade) GetEntityAttributes(ctx context.Context, entityType EntityType, entityID string) (map[string]any, error) {
	ctx, span := f.startSpan(ctx, "customfield.GetEntityAttributes", entityType, entityID)
	defer span.End()

	attrs, err := f.attributes(ctx, Scope{EntityType: entityType, EntityID: entityID})
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	return attrs, nil
}

func (f *Facade) attributes(ctx context.Context, instance Scope) (map[string]any, error) {
	if err := validateInstance(instance); err != nil {
		return nil, err
	}
	scope, err := f.resolveScope(ctx, instance)
	if err != nil {
		return nil, err
	}
	defs, err := f.registry.ListDefinitions(ctx, scope)
	if err != nil {
		return nil, err
	}
	stored, err := f.repo.ListByEntity(ctx, instance)
	if err != nil {
		return nil, oops.With("entity", instance.String()).Wrapf(err, "list values")
	}

	byDef := make(map[ulid.ULID]*FieldValue, len(stored))
	for _, v := range stored {
		byDef[v.FieldDefinitionID] = v
	}

	attrs := make(map[string]any, len(stored))
	for _, d := range defs {
		v, ok := byDef[d.ID]
		if !ok || v.Value == "" {
			continue
		}
		typed, err := Coerce(d, v.Value)
		if err != nil {
			slog.WarnContext(ctx, "stored custom field value no longer coerces",
				"entity", instance.String(),
				"field_name", d.FieldName,
				"field_type", d.FieldType.String(),
				"error", err)
			attrs[d.FieldName] = v.Value
			continue
		}
		attrs[d.FieldName] = typed
	}
	return attrs, nil
}

// SaveEntityAttributes replaces the instance's custom attributes with
// submission, a map of field name to raw user input.
//
// Every submitted value is validated and all failures are returned together
// as ValidationErrors. Unknown names fail. A required field that is neither
// submitted with content nor already stored fails. On success, every stored
// value whose definition is not submitted is deleted, so an empty submission
// clears the instance. A blank optional value clears the field. Either every
// write happens or none does.
func (f *Facade) SaveEntityAttributes(ctx context.Context, entityType EntityType, entityID string, submission map[string]string) (err error) {
	ctx, span := f.startSpan(ctx, "customfield.SaveEntityAttributes", entityType, entityID)
	span.SetAttributes(attribute.Int("customfield.submitted", len(submission)))
	start := time.Now()
	defer func() {
		recordSave(entityType, err, time.Since(start))
		if err != nil {
			failSpan(span, err)
		}
		span.End()
	}()

	instance := Scope{EntityType: entityType, EntityID: entityID}
	if err := validateInstance(instance); err != nil {
		return err
	}
	scope, err := f.resolveScope(ctx, instance)
	if err != nil {
		return err
	}

	err = f.tx.InTransaction(ctx, func(ctx context.Context) error {
		return f.save(ctx, scope, instance, submission)
	})
	if err != nil {
		return err
	}

	slog.DebugContext(ctx, "saved entity attributes",
		"entity", instance.String(),
		"scope", scope.String(),
		"fields", len(submission))
	return nil
}

// save runs inside the transaction opened by SaveEntityAttributes.
func (f *Facade) save(ctx context.Context, scope, instance Scope, submission map[string]string) error {
	if err := f.repo.LockEntity(ctx, instance); err != nil {
		return err
	}

	defs, err := f.registry.ListDefinitions(ctx, scope)
	if err != nil {
		return err
	}
	byName := make(map[string]*FieldDefinition, len(defs))
	for _, d := range defs {
		byName[d.FieldName] = d
	}

	existing, err := f.repo.ListByEntity(ctx, instance)
	if err != nil {
		return oops.With("entity", instance.String()).Wrapf(err, "list values")
	}
	stored := make(map[ulid.ULID]*FieldValue, len(existing))
	for _, v := range existing {
		if v.Value != "" {
			stored[v.FieldDefinitionID] = v
		}
	}

	names := make([]string, 0, len(submission))
	for name := range submission {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs ValidationErrors
	writes := make(map[ulid.ULID]string, len(submission))
	submitted := make(map[ulid.ULID]struct{}, len(submission))
	for _, name := range names {
		def, ok := byName[name]
		if !ok {
			errs = append(errs, &ValidationError{Field: name, Message: "is not a defined field"})
			continue
		}
		submitted[def.ID] = struct{}{}
		normalized, err := f.values.Validate(def, submission[name])
		if err != nil {
			errs = append(errs, asValidationErrors(def.FieldName, err)...)
			continue
		}
		if normalized != "" {
			writes[def.ID] = normalized
		}
	}

	keep := make(map[ulid.ULID]struct{}, len(writes))
	for id := range writes {
		keep[id] = struct{}{}
	}
	for _, d := range defs {
		if !d.IsRequired {
			continue
		}
		if _, ok := submitted[d.ID]; ok {
			continue
		}
		if _, ok := stored[d.ID]; ok {
			continue
		}
		errs = append(errs, &ValidationError{Field: d.FieldName, Message: "is required"})
	}

	if len(errs) > 0 {
		return oops.Code("ATTRIBUTES_INVALID").
			With("entity", instance.String()).
			With("fields", errs.Fields()).
			Wrap(errs.sorted())
	}

	for _, v := range existing {
		if _, ok := keep[v.FieldDefinitionID]; ok {
			continue
		}
		if err := f.repo.Delete(ctx, v.FieldDefinitionID, instance.EntityID); err != nil {
			return oops.With("entity", instance.String()).
				With("definition_id", v.FieldDefinitionID.String()).
				Wrapf(err, "delete replaced value")
		}
	}
	for _, d := range defs {
		normalized, ok := writes[d.ID]
		if !ok {
			continue
		}
		if err := f.values.upsert(ctx, d, instance, normalized); err != nil {
			return err
		}
	}
	return nil
}

// OnEntityDeleted purges every custom value of a deleted instance.
// Entity-owning collaborators must call it when they hard-delete a record.
func (f *Facade) OnEntityDeleted(ctx context.Context, entityType EntityType, entityID string) error {
	ctx, span := f.startSpan(ctx, "customfield.OnEntityDeleted", entityType, entityID)
	defer span.End()

	instance := Scope{EntityType: entityType, EntityID: entityID}
	if err := validateInstance(instance); err != nil {
		failSpan(span, err)
		return err
	}
	if err := f.values.DeleteAllForEntity(ctx, instance); err != nil {
		failSpan(span, err)
		return err
	}
	EntityPurges.WithLabelValues(entityType.String()).Inc()
	slog.DebugContext(ctx, "purged entity attributes", "entity", instance.String())
	return nil
}

func (f *Facade) resolveScope(ctx context.Context, instance Scope) (Scope, error) {
	scope, err := f.scopes.ResolveScope(ctx, instance)
	if err != nil {
		return Scope{}, oops.With("entity", instance.String()).Wrapf(err, "resolve definition scope")
	}
	if err := scope.Validate(); err != nil {
		return Scope{}, err
	}
	return scope, nil
}

func (f *Facade) startSpan(ctx context.Context, name string, entityType EntityType, entityID string) (context.Context, trace.Span) {
	return f.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("customfield.entity_type", entityType.String()),
		attribute.String("customfield.entity_id", entityID),
	))
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, outcomeOf(err))
}

// asValidationErrors flattens err into per-field entries named field.
func asValidationErrors(field string, err error) ValidationErrors {
	if ve, ok := err.(*ValidationError); ok { //nolint:errorlint // Normalize returns the concrete type
		return ValidationErrors{ve}
	}
	return ValidationErrors{{Field: field, Message: err.Error()}}
}
