// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/customfields/internal/seed"
)

func newSeedCmd(a *app) *cobra.Command {
	var (
		dryRun  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "seed FILE",
		Short: "Create or update tabs and field definitions from a YAML file",
		Long: `Apply a YAML seed file declaring tabs and field definitions per scope.
Existing tabs and fields are matched by name and updated in place, so the
same file can be applied repeatedly. Everything is applied in a single
transaction.

With --dry-run the file is validated and applied to an empty in-memory
store; no database is contacted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return oops.Code("SEED_READ_FAILED").With("path", args[0]).Wrap(err)
			}
			doc, err := seed.Parse(data)
			if err != nil {
				return oops.With("path", args[0]).Wrap(err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			var b *Backend
			if dryRun {
				b, err = newMemoryBackend(a.cfg)
			} else {
				b, err = a.deps.BackendFactory(ctx, a.cfg)
			}
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := seed.Apply(ctx, b.Registry, b.Transactor, doc)
			if err != nil {
				return err
			}
			writeSeedResult(cmd, res, dryRun)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and apply against an in-memory store only")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultCommandTimeout, "timeout for applying the seed")

	return cmd
}

func writeSeedResult(cmd *cobra.Command, res *seed.Result, dryRun bool) {
	out := cmd.OutOrStdout()
	prefix := ""
	if dryRun {
		prefix = "(dry run) "
	}
	if !res.Changed() {
		fmt.Fprintf(out, "%sNothing to do: %s and %s already up to date\n", prefix,
			plural(res.TabsUnchanged, "tab"), plural(res.FieldsUnchanged, "field"))
		return
	}
	fmt.Fprintf(out, "%sTabs: %d created, %d updated, %d unchanged\n", prefix,
		res.TabsCreated, res.TabsUpdated, res.TabsUnchanged)
	fmt.Fprintf(out, "%sFields: %d created, %d updated, %d unchanged\n", prefix,
		res.FieldsCreated, res.FieldsUpdated, res.FieldsUnchanged)
}
