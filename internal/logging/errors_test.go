// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/holomush/customfields/internal/customfield"
)

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Options{Writer: &buf})

	err := oops.Code("FIELD_NOT_FOUND").
		With("definition_id", "01JBX0000000000000000FDEF1").
		Errorf("no such field")

	LogError(context.Background(), logger, "update failed", err)

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "update failed", entry["msg"])
	assert.Equal(t, "FIELD_NOT_FOUND", entry["code"])
	assert.Contains(t, entry["context"], "definition_id")
}

func TestLogError_WithValidationErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Options{Writer: &buf})

	err := oops.Code("ATTRIBUTES_INVALID").Wrap(customfield.ValidationErrors{
		{Field: "shirt", Message: "is not an allowed option"},
		{Field: "age", Message: "must be a number"},
	})

	LogError(context.Background(), logger, "save failed", err)

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "ATTRIBUTES_INVALID", entry["code"])
	assert.Equal(t, []any{"age", "shirt"}, entry["invalid_fields"])
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Options{Writer: &buf})

	LogError(context.Background(), logger, "operation failed", errors.New("standard error"))

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "standard error", entry["error"])
	assert.NotContains(t, entry, "code")
}

func TestLogError_NilLoggerUsesDefault(t *testing.T) {
	var buf bytes.Buffer
	original := slog.Default()
	defer slog.SetDefault(original)
	slog.SetDefault(Setup(Options{Writer: &buf}))

	LogError(context.Background(), nil, "operation failed", errors.New("boom"))

	assert.Contains(t, buf.String(), "boom")
}
