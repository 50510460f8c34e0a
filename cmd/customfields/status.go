// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/holomush/customfields/internal/store"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the schema migration status",
		Long:  `Show the applied schema version, whether it is dirty, and any pending migrations.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withMigrator(func(m Migrator) error {
				st, err := m.Status()
				if err != nil {
					return err
				}
				return writeStatus(cmd.OutOrStdout(), st)
			})
		},
	}
}

func writeStatus(w io.Writer, st *store.MigrationStatus) error {
	current := "none"
	if st.Version > 0 {
		current = fmt.Sprintf("%d (%s)", st.Version, st.Name)
	}
	if _, err := fmt.Fprintf(w, "Version: %s\n", current); err != nil {
		return err
	}
	if st.Dirty {
		if _, err := fmt.Fprintln(w, "State:   dirty; repair the schema then run 'migrate force'"); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "Applied: %d\n", len(st.Applied)); err != nil {
		return err
	}
	if len(st.Pending) == 0 {
		_, err := fmt.Fprintln(w, "Pending: none")
		return err
	}
	if _, err := fmt.Fprintf(w, "Pending: %d\n", len(st.Pending)); err != nil {
		return err
	}
	for _, v := range st.Pending {
		name, err := store.MigrationName(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "  %s\n", name); err != nil {
			return err
		}
	}
	return nil
}
