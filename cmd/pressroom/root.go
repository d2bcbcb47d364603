// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pressroom/pressroom/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the pressroom CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pressroom",
		Short: "Pressroom - authentication and session lifecycle for the CMS",
		Long: `Pressroom manages identities, login sessions and password recovery
for a multi-tenant CMS. It stores state in PostgreSQL, rotates refresh
tokens and throttles repeated login failures.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/pressroom/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd(deps))
	cmd.AddCommand(NewMigrateCmd(deps))
	cmd.AddCommand(NewSweepCmd(deps))
	cmd.AddCommand(NewBootstrapAdminCmd(deps))
	cmd.AddCommand(NewSendResetCmd(deps))

	return cmd
}

// loadConfig reads the configuration for cmd. Without --config the XDG
// config file is used when present. Flags registered on the root command are
// inherited, so cmd.Flags() carries the overrides.
func loadConfig(cmd *cobra.Command, deps *Deps) (*config.Config, error) {
	path := configFile
	if path == "" {
		path = config.Discover(deps.Getenv)
	}
	return config.Loader{
		Path:   path,
		Flags:  cmd.Flags(),
		Getenv: deps.Getenv,
	}.Load()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
