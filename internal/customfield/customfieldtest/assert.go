// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package customfieldtest holds assertions shared by customfield tests.
package customfieldtest

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/customfields/internal/customfield"
)

// AssertErrorCode asserts that err is an oops error with the given code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

// AssertErrorContext asserts that err is an oops error with the given context key/value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	ctx := oopsErr.Context()
	assert.Contains(t, ctx, key)
	assert.Equal(t, value, ctx[key])
}

// RequireValidationErrors asserts that err carries per-field validation
// failures and returns them. A lone ValidationError is returned as a
// one-element list.
func RequireValidationErrors(t *testing.T, err error) customfield.ValidationErrors {
	t.Helper()
	require.ErrorIs(t, err, customfield.ErrValidation)
	var errs customfield.ValidationErrors
	if errors.As(err, &errs) {
		return errs
	}
	var single *customfield.ValidationError
	require.True(t, errors.As(err, &single), "expected validation errors, got %T", err)
	return customfield.ValidationErrors{single}
}

// AssertInvalidFields asserts that err reports exactly the given fields as invalid.
func AssertInvalidFields(t *testing.T, err error, fields ...string) {
	t.Helper()
	errs := RequireValidationErrors(t, err)
	assert.ElementsMatch(t, fields, errs.Fields())
}
