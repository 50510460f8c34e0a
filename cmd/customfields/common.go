// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/customfields/internal/customfield"
)

// Default timeout for commands that touch the database.
const defaultCommandTimeout = 30 * time.Second

// scopeFlags selects a definition scope.
type scopeFlags struct {
	entityType string
	entityID   string
}

func (f *scopeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.entityType, "entity-type", "t", "", "entity type (membership, event, group, ...)")
	cmd.Flags().StringVarP(&f.entityID, "entity-id", "e", "", "scope entity ID; empty for the type-wide scope")
	_ = cmd.MarkFlagRequired("entity-type") //nolint:errcheck // flag defined above
}

func (f *scopeFlags) scope() (customfield.Scope, error) {
	et, err := customfield.ParseEntityType(f.entityType)
	if err != nil {
		return customfield.Scope{}, err
	}
	scope := customfield.Scope{EntityType: et, EntityID: f.entityID}
	if err := scope.Validate(); err != nil {
		return customfield.Scope{}, err
	}
	return scope, nil
}

// parseInstance reads ENTITY_TYPE ENTITY_ID positional arguments.
func parseInstance(typeArg, idArg string) (customfield.Scope, error) {
	et, err := customfield.ParseEntityType(typeArg)
	if err != nil {
		return customfield.Scope{}, err
	}
	return customfield.Scope{EntityType: et, EntityID: idArg}, nil
}

func parseID(kind, s string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, oops.Code("INVALID_ID").
			With(kind, s).
			Wrap(&customfield.ValidationError{Field: kind, Message: "must be a ULID"})
	}
	return id, nil
}

// withBackend opens the configured backend for the duration of fn.
func (a *app) withBackend(cmd *cobra.Command, fn func(ctx context.Context, b *Backend) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), defaultCommandTimeout)
	defer cancel()

	b, err := a.deps.BackendFactory(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(ctx, b)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func tabID(id *ulid.ULID) string {
	if id == nil {
		return "-"
	}
	return id.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func describeOptions(opts customfield.FieldOptions) string {
	if len(opts) == 0 {
		return "-"
	}
	return strings.Join(opts.Values(), ",")
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
