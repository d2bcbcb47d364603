// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewSweepCmd creates the sweep subcommand.
func NewSweepCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one retention sweep",
		Long: `Delete expired sessions and login attempts older than the retention
period once, then exit. Useful from cron when the daemon is not running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweep(cmd, deps.withDefaults())
		},
	}
}

func runSweep(cmd *cobra.Command, deps *Deps) error {
	ctx := commandContext(cmd)
	cfg, err := loadConfig(cmd, deps)
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, deps, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.sweeper().RunOnce(ctx)
	cmd.Printf("Deleted %d expired session(s) and %d login attempt(s)\n", result.Sessions, result.Attempts)
	return err
}
