// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/customfields/internal/config"
	"github.com/holomush/customfields/internal/logging"
)

const serviceName = "customfields"

// app carries state shared by every subcommand of one invocation.
type app struct {
	configFile string
	cfg        *config.Config
	deps       Deps
}

// NewRootCmd creates the root command for the customfields CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(Deps{})
}

func newRootCmd(deps Deps) *cobra.Command {
	a := &app{deps: deps.withDefaults()}

	cmd := &cobra.Command{
		Use:   "customfields",
		Short: "Administer custom fields for entity records",
		Long: `customfields manages admin-defined attributes for memberships, events,
groups and other entity types: tabs and field definitions per scope, and the
typed values stored for each entity instance in PostgreSQL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "config file path (default $XDG_CONFIG_HOME/customfields/config.yaml when present)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newMigrateCmd(a))
	cmd.AddCommand(newSeedCmd(a))
	cmd.AddCommand(newTabsCmd(a))
	cmd.AddCommand(newFieldsCmd(a))
	cmd.AddCommand(newValuesCmd(a))
	cmd.AddCommand(newSchemaCmd())
	cmd.AddCommand(newStatusCmd(a))

	return cmd
}

// load reads configuration and installs the process logger.
func (a *app) load(cmd *cobra.Command) error {
	path := a.configFile
	if path == "" {
		found, err := config.Discover()
		if err != nil {
			return err
		}
		path = found
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return err
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	a.cfg = cfg
	logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
		Writer:  cmd.ErrOrStderr(),
	})
	return nil
}
