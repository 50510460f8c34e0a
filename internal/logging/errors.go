// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package logging

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/customfields/internal/customfield"
)

// LogError logs err at Error level. oops errors contribute their code and
// context; validation failures contribute the names of the rejected fields.
func LogError(ctx context.Context, logger *slog.Logger, msg string, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"error", err.Error()}

	if oopsErr, ok := oops.AsOops(err); ok {
		if code := oopsErr.Code(); code != nil && code != "" {
			attrs = append(attrs, "code", code)
		}
		if c := oopsErr.Context(); len(c) > 0 {
			attrs = append(attrs, "context", c)
		}
	}

	var verrs customfield.ValidationErrors
	if errors.As(err, &verrs) {
		attrs = append(attrs, "invalid_fields", verrs.Fields())
	}

	logger.ErrorContext(ctx, msg, attrs...)
}
