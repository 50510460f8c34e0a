// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/customfields/internal/customfield"
)

func newTabsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tabs",
		Short: "Manage field tabs",
	}
	cmd.AddCommand(newTabsListCmd(a))
	cmd.AddCommand(newTabsCreateCmd(a))
	cmd.AddCommand(newTabsUpdateCmd(a))
	cmd.AddCommand(newTabsDeleteCmd(a))
	return cmd
}

func newTabsListCmd(a *app) *cobra.Command {
	var sf scopeFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the active tabs of a scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := sf.scope()
			if err != nil {
				return err
			}
			return a.withBackend(cmd, func(ctx context.Context, b *Backend) error {
				tabs, err := b.Registry.ListTabs(ctx, scope)
				if err != nil {
					return err
				}
				return writeTabs(cmd, tabs)
			})
		},
	}
	sf.bind(cmd)
	return cmd
}

func writeTabs(cmd *cobra.Command, tabs []*customfield.FieldTab) error {
	if len(tabs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tabs")
		return nil
	}
	tw := newTable(cmd.OutOrStdout())
	fmt.Fprintln(tw, "ID\tNAME\tORDER")
	for _, t := range tabs {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", t.ID, t.TabName, t.DisplayOrder)
	}
	if err := tw.Flush(); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}

func newTabsCreateCmd(a *app) *cobra.Command {
	var (
		sf    scopeFlags
		order int
	)
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a tab in a scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := sf.scope()
			if err != nil {
				return err
			}
			return a.withBackend(cmd, func(ctx context.Context, b *Backend) error {
				tab := &customfield.FieldTab{Scope: scope, TabName: args[0], DisplayOrder: order}
				if err := b.Registry.CreateTab(ctx, tab); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created tab %q (%s)\n", tab.TabName, tab.ID)
				return nil
			})
		},
	}
	sf.bind(cmd)
	cmd.Flags().IntVar(&order, "order", 0, "display order")
	return cmd
}

func newTabsUpdateCmd(a *app) *cobra.Command {
	var (
		name  string
		order int
	)
	cmd := &cobra.Command{
		Use:   "update TAB_ID",
		Short: "Rename or reorder a tab",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("tab_id", args[0])
			if err != nil {
				return err
			}
			var patch customfield.TabPatch
			if cmd.Flags().Changed("name") {
				patch.TabName = &name
			}
			if cmd.Flags().Changed("order") {
				patch.DisplayOrder = &order
			}
			if patch.TabName == nil && patch.DisplayOrder == nil {
				return oops.Code("NOTHING_TO_UPDATE").Errorf("set --name or --order")
			}
			return a.withBackend(cmd, func(ctx context.Context, b *Backend) error {
				tab, err := b.Registry.UpdateTab(ctx, id, patch)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated tab %q (%s), order %d\n", tab.TabName, tab.ID, tab.DisplayOrder)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new tab name")
	cmd.Flags().IntVar(&order, "order", 0, "new display order")
	return cmd
}

func newTabsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete TAB_ID",
		Short: "Soft-delete a tab; its fields become tabless",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("tab_id", args[0])
			if err != nil {
				return err
			}
			return a.withBackend(cmd, func(ctx context.Context, b *Backend) error {
				if err := b.Registry.SoftDeleteTab(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted tab %s\n", id)
				return nil
			})
		},
	}
}
