// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package customfield

import "context"

// ScopeResolver maps a concrete entity instance to the definition scope whose
// form applies to it, e.g. a membership to the group that defines its fields.
type ScopeResolver interface {
	ResolveScope(ctx context.Context, instance Scope) (Scope, error)
}

// ScopeResolverFunc adapts a function to ScopeResolver.
type ScopeResolverFunc func(ctx context.Context, instance Scope) (Scope, error)

// ResolveScope calls f.
func (f ScopeResolverFunc) ResolveScope(ctx context.Context, instance Scope) (Scope, error) {
	return f(ctx, instance)
}

// IdentityScopes uses the instance itself as the definition scope.
type IdentityScopes struct{}

// ResolveScope returns instance unchanged.
func (IdentityScopes) ResolveScope(_ context.Context, instance Scope) (Scope, error) {
	return instance, nil
}

// FixedScopes pins the definition scope ID per entity type. Entity types
// without an entry fall back to the instance itself.
type FixedScopes map[EntityType]string

// ResolveScope returns the pinned scope for the instance's entity type.
func (f FixedScopes) ResolveScope(_ context.Context, instance Scope) (Scope, error) {
	if id, ok := f[instance.EntityType]; ok {
		return Scope{EntityType: instance.EntityType, EntityID: id}, nil
	}
	return instance, nil
}
