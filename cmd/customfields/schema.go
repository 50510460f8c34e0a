// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/customfields/internal/customfield"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for field options",
		Long: `Print the JSON Schema that field_options documents of single and multi
choice fields must satisfy.`,
		Args: cobra.NoArgs,
		// Needs neither configuration nor a database.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := customfield.GenerateFieldOptionsSchema()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(data, '\n'))
			return err //nolint:wrapcheck // write to stdout
		},
	}
}
