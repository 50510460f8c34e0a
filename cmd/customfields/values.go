// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/customfields/internal/customfield"
)

func newValuesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "values",
		Short: "Read and write custom field values of entity instances",
	}
	cmd.AddCommand(newValuesFormCmd(a))
	cmd.AddCommand(newValuesGetCmd(a))
	cmd.AddCommand(newValuesSetCmd(a))
	cmd.AddCommand(newValuesUnsetCmd(a))
	cmd.AddCommand(newValuesSaveCmd(a))
	cmd.AddCommand(newValuesPurgeCmd(a))
	return cmd
}

func newValuesFormCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "form ENTITY_TYPE [SCOPE_ID]",
		Short: "Show the tabs and fields a scope's form renders",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scopeID := ""
			if len(args) == 2 {
				scopeID = args[1]
			}
			scope, err := parseInstance(args[0], scopeID)
			if err != nil {
				return err
			}
			return a.withBackend(cmd, func(ctx context.Context, b *Backend) error {
				groups, err := b.Facade.GetSchema(ctx, scope.EntityType, scope.EntityID)
				if err != nil {
					return err
				}
				return writeForm(cmd, groups)
			})
		},
	}
}

func writeForm(cmd *cobra.Command, groups []customfield.TabGroup) error {
	out := cmd.OutOrStdout()
	if len(groups) == 0 {
		fmt.Fprintln(out, "No fields configured")
		return nil
	}
	tw := newTable(out)
	for _, g := range groups {
		title := "(no tab)"
		if g.Tab != nil {
			title = g.Tab.TabName
		}
		fmt.Fprintf(tw, "[%s]\n", title)
		for _, d := range g.Definitions {
			marker := ""
			if d.IsRequired {
				marker = "*"
			}
			fmt.Fprintf(tw, "  %s%s\t%s\t%s\n", d.FieldName, marker, d.FieldType, describeOptions(d.FieldOptions))
		}
	}
	if err := tw.Flush(); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}

func newValuesGetCmd(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "get ENTITY_TYPE ENTITY_ID",
		Short: "Print an instance's custom field values as JSON",
		Long: `Print an instance's custom field values as JSON, keyed by the current
field name and typed per field. With --raw, prints the stored strings keyed
by the name each value was written under.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			instance, err := parseInstance(args[0], args[1])
			if err != nil {
				return err
			}
			return a.withBackend(cmd, func(ctx context.Context, b *Backend) error {
				var v any
				if raw {
					v, err = b.Values.GetValues(ctx, instance)
				} else {
					v, err = b.Facade.GetEntityAttributes(ctx, instance.EntityType, instance.EntityID)
				}
				if err != nil {
					return err
				}
				return writeJSON(cmd, v)
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print stored strings instead of typed values")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}

func newValuesSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set FIELD_ID ENTITY_TYPE ENTITY_ID VALUE",
		Short: "Validate and store one field value",
		Long: `Validate VALUE against the field definition and store its canonical
form. A blank VALUE clears the field.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("field_id", args[0])
			if err != nil {
				return err
			}
			instance, err := parseInstance(args[1], args[2])
			if err != nil {
				return err
			}
			return a.withBackend(cmd, func(ctx context.Context, b *Backend) error {
				if err := b.Values.SetValue(ctx, id, instance, args[3]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s on %s\n", id, instance)
				return nil
			})
		},
	}
}

func newValuesUnsetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unset FIELD_ID ENTITY_ID",
		Short: "Delete one stored field value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("field_id", args[0])
			if err != nil {
				return err
			}
			return a.withBackend(cmd, func(ctx context.Context, b *Backend) error {
				if err := b.Values.DeleteValue(ctx, id, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unset %s on %s\n", id, args[1])
				return nil
			})
		},
	}
}

func newValuesSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save ENTITY_TYPE ENTITY_ID [NAME=VALUE ...]",
		Short: "Replace an instance's custom field values",
		Long: `Save a full form submission for an instance. Fields not named are
cleared; a required field may be omitted only when a value is already stored.
Either all values are stored or, if any fails validation, none are.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			instance, err := parseInstance(args[0], args[1])
			if err != nil {
				return err
			}
			submission, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}
			return a.withBackend(cmd, func(ctx context.Context, b *Backend) error {
				if err := b.Facade.SaveEntityAttributes(ctx, instance.EntityType, instance.EntityID, submission); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s on %s\n", plural(len(submission), "field"), instance)
				return nil
			})
		},
	}
}

// parseAssignments turns NAME=VALUE arguments into a submission. VALUE may
// be empty; a repeated NAME is rejected.
func parseAssignments(args []string) (map[string]string, error) {
	submission := make(map[string]string, len(args))
	var errs customfield.ValidationErrors
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		switch {
		case !ok || name == "":
			errs = append(errs, &customfield.ValidationError{Field: arg, Message: "expected NAME=VALUE"})
		case hasKey(submission, name):
			errs = append(errs, &customfield.ValidationError{Field: name, Message: "given more than once"})
		default:
			submission[name] = value
		}
	}
	if len(errs) > 0 {
		return nil, oops.Code("INVALID_ARGUMENTS").Wrap(errs)
	}
	return submission, nil
}

func hasKey(m map[string]string, k string) bool {
	_, ok := m[k]
	return ok
}

func newValuesPurgeCmd(a *app) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "purge ENTITY_TYPE ENTITY_ID",
		Short: "Delete every custom field value of a removed instance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return oops.Code("CONFIRMATION_REQUIRED").
					Errorf("purge deletes every stored value of the instance; rerun with --yes to confirm")
			}
			instance, err := parseInstance(args[0], args[1])
			if err != nil {
				return err
			}
			return a.withBackend(cmd, func(ctx context.Context, b *Backend) error {
				if err := b.Facade.OnEntityDeleted(ctx, instance.EntityType, instance.EntityID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged values of %s\n", instance)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm deleting the values")
	return cmd
}
