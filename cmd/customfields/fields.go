// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/customfields/internal/customfield"
)

func newFieldsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fields",
		Short: "Manage field definitions",
	}
	cmd.AddCommand(newFieldsListCmd(a))
	cmd.AddCommand(newFieldsCreateCmd(a))
	cmd.AddCommand(newFieldsUpdateCmd(a))
	cmd.AddCommand(newFieldsDeleteCmd(a))
	return cmd
}

func newFieldsListCmd(a *app) *cobra.Command {
	var (
		sf          scopeFlags
		match       string
		profileOnly bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the active field definitions of a scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := sf.scope()
			if err != nil {
				return err
			}
			var g glob.Glob
			if match != "" {
				if g, err = glob.Compile(match); err != nil {
					return oops.Code("INVALID_PATTERN").With("pattern", match).Wrap(err)
				}
			}
			return a.withBackend(cmd, func(ctx context.Context, b *Backend) error {
				var opts []customfield.ListOption
				if profileOnly {
					opts = append(opts, customfield.ProfileOnly())
				}
				defs, err := b.Registry.ListDefinitions(ctx, scope, opts...)
				if err != nil {
					return err
				}
				if g != nil {
					defs = filterDefinitions(defs, g)
				}
				return writeDefinitions(cmd, defs)
			})
		},
	}
	sf.bind(cmd)
	cmd.Flags().StringVar(&match, "match", "", "only list fields whose name matches this glob, e.g. 'emergency_*'")
	cmd.Flags().BoolVar(&profileOnly, "profile", false, "only list fields shown on the public profile")
	return cmd
}

func filterDefinitions(defs []*customfield.FieldDefinition, g glob.Glob) []*customfield.FieldDefinition {
	out := defs[:0]
	for _, d := range defs {
		if g.Match(d.FieldName) {
			out = append(out, d)
		}
	}
	return out
}

func writeDefinitions(cmd *cobra.Command, defs []*customfield.FieldDefinition) error {
	if len(defs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No fields")
		return nil
	}
	tw := newTable(cmd.OutOrStdout())
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tTAB\tREQUIRED\tPROFILE\tORDER\tOPTIONS")
	for _, d := range defs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			d.ID, d.FieldName, d.FieldType, tabID(d.FieldTabID),
			yesNo(d.IsRequired), yesNo(d.IsProfile), d.DisplayOrder, describeOptions(d.FieldOptions))
	}
	if err := tw.Flush(); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}

// definitionFlags holds the flags shared by fields create and update.
type definitionFlags struct {
	name     string
	typ      string
	tab      string
	required bool
	profile  bool
	order    int
	options  string
}

func (f *definitionFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "field name (lowercase letters, digits, underscores)")
	cmd.Flags().StringVar(&f.typ, "type", "", "field type (text, number, date, boolean, single_choice, multi_choice)")
	cmd.Flags().StringVar(&f.tab, "tab", "", "tab ID or name")
	cmd.Flags().BoolVar(&f.required, "required", false, "require a value on save")
	cmd.Flags().BoolVar(&f.profile, "profile", false, "show on the public profile")
	cmd.Flags().IntVar(&f.order, "order", 0, "display order")
	cmd.Flags().StringVar(&f.options, "options", "", `choice options as JSON, e.g. '[{"value":"s"},{"value":"m"}]'`)
}

func (f *definitionFlags) fieldType() (customfield.FieldType, error) {
	return customfield.ParseFieldType(f.typ)
}

func (f *definitionFlags) fieldOptions() (customfield.FieldOptions, error) {
	if f.options == "" {
		return nil, nil
	}
	return customfield.ParseFieldOptions([]byte(f.options))
}

// resolveTab accepts a tab ULID or the name of an active tab in scope.
func resolveTab(ctx context.Context, reg *customfield.Registry, scope customfield.Scope, ref string) (*ulid.ULID, error) {
	if id, err := ulid.Parse(ref); err == nil {
		tab, err := reg.GetTab(ctx, id)
		if err != nil {
			return nil, err
		}
		if tab.Scope != scope {
			return nil, oops.Code("FIELD_TAB_SCOPE_MISMATCH").
				With("tab_id", id.String()).
				With("scope", scope.String()).
				Wrap(customfield.ErrNotFound)
		}
		return &id, nil
	}
	tabs, err := reg.ListTabs(ctx, scope)
	if err != nil {
		return nil, err
	}
	for _, t := range tabs {
		if t.TabName == ref {
			id := t.ID
			return &id, nil
		}
	}
	return nil, oops.Code("FIELD_TAB_NOT_FOUND").
		With("tab", ref).
		With("scope", scope.String()).
		Wrap(customfield.ErrNotFound)
}

func newFieldsCreateCmd(a *app) *cobra.Command {
	var (
		sf scopeFlags
		df definitionFlags
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a field definition in a scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := sf.scope()
			if err != nil {
				return err
			}
			ft, err := df.fieldType()
			if err != nil {
				return err
			}
			opts, err := df.fieldOptions()
			if err != nil {
				return err
			}
			return a.withBackend(cmd, func(ctx context.Context, b *Backend) error {
				in := customfield.DefinitionInput{
					Scope:        scope,
					FieldName:    df.name,
					FieldType:    ft,
					FieldOptions: opts,
					IsRequired:   df.required,
					DisplayOrder: df.order,
					IsProfile:    df.profile,
				}
				if df.tab != "" {
					if in.FieldTabID, err = resolveTab(ctx, b.Registry, scope, df.tab); err != nil {
						return err
					}
				}
				def, err := b.Registry.CreateDefinition(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s field %q (%s)\n", def.FieldType, def.FieldName, def.ID)
				return nil
			})
		},
	}
	sf.bind(cmd)
	df.bind(cmd)
	_ = cmd.MarkFlagRequired("name") //nolint:errcheck // flag defined above
	_ = cmd.MarkFlagRequired("type") //nolint:errcheck // flag defined above
	return cmd
}

func newFieldsUpdateCmd(a *app) *cobra.Command {
	var (
		df       definitionFlags
		clearTab bool
	)
	cmd := &cobra.Command{
		Use:   "update FIELD_ID",
		Short: "Change a field definition",
		Long: `Change a field definition. Only the flags given are applied. The type
cannot change once any value has been stored for the field.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("field_id", args[0])
			if err != nil {
				return err
			}
			if clearTab && df.tab != "" {
				return oops.Code("FLAG_CONFLICT").Errorf("--tab and --no-tab are mutually exclusive")
			}
			patch, err := df.patch(cmd)
			if err != nil {
				return err
			}
			patch.ClearTab = clearTab
			return a.withBackend(cmd, func(ctx context.Context, b *Backend) error {
				if df.tab != "" {
					current, err := b.Registry.GetDefinition(ctx, id)
					if err != nil {
						return err
					}
					if patch.FieldTabID, err = resolveTab(ctx, b.Registry, current.Scope, df.tab); err != nil {
						return err
					}
				}
				def, err := b.Registry.UpdateDefinition(ctx, id, patch)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s field %q (%s)\n", def.FieldType, def.FieldName, def.ID)
				return nil
			})
		},
	}
	df.bind(cmd)
	cmd.Flags().BoolVar(&clearTab, "no-tab", false, "detach the field from its tab")
	return cmd
}

// patch builds a DefinitionPatch from the flags the user set. The tab is
// resolved separately because it needs the store.
func (f *definitionFlags) patch(cmd *cobra.Command) (customfield.DefinitionPatch, error) {
	var p customfield.DefinitionPatch
	flags := cmd.Flags()
	if flags.Changed("name") {
		p.FieldName = &f.name
	}
	if flags.Changed("type") {
		ft, err := f.fieldType()
		if err != nil {
			return p, err
		}
		p.FieldType = &ft
	}
	if flags.Changed("options") {
		opts, err := f.fieldOptions()
		if err != nil {
			return p, err
		}
		p.FieldOptions = &opts
	}
	if flags.Changed("required") {
		p.IsRequired = &f.required
	}
	if flags.Changed("profile") {
		p.IsProfile = &f.profile
	}
	if flags.Changed("order") {
		p.DisplayOrder = &f.order
	}
	return p, nil
}

func newFieldsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete FIELD_ID",
		Short: "Soft-delete a field definition",
		Long: `Soft-delete a field definition. Stored values are kept but no longer
returned; the name becomes available for a new definition.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("field_id", args[0])
			if err != nil {
				return err
			}
			return a.withBackend(cmd, func(ctx context.Context, b *Backend) error {
				if err := b.Registry.SoftDeleteDefinition(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted field %s\n", id)
				return nil
			})
		},
	}
}
