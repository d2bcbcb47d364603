// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/pressroom/pressroom/internal/auth"
)

// EnvBootstrapPassword carries the initial administrator password so it never
// appears in shell history or the process list.
const EnvBootstrapPassword = "PRESSROOM_BOOTSTRAP_PASSWORD"

type bootstrapOptions struct {
	email     string
	firstName string
	lastName  string
}

// NewBootstrapAdminCmd creates the bootstrap-admin subcommand.
func NewBootstrapAdminCmd(deps *Deps) *cobra.Command {
	opts := &bootstrapOptions{}

	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create the first administrator account",
		Long: `Create a verified administrator account. The password is read from
the PRESSROOM_BOOTSTRAP_PASSWORD environment variable. Running the command
again with the same email leaves the existing account untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBootstrapAdmin(cmd, opts, deps.withDefaults())
		},
	}

	cmd.Flags().StringVar(&opts.email, "email", "", "administrator email address (required)")
	cmd.Flags().StringVar(&opts.firstName, "first-name", "", "administrator first name")
	cmd.Flags().StringVar(&opts.lastName, "last-name", "", "administrator last name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runBootstrapAdmin(cmd *cobra.Command, opts *bootstrapOptions, deps *Deps) error {
	password := deps.Getenv(EnvBootstrapPassword)
	if password == "" {
		return oops.Code("CONFIG_MISSING_SECRET").With("env", EnvBootstrapPassword).
			Errorf("%s environment variable is required", EnvBootstrapPassword)
	}

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

	identity, created, err := a.service.BootstrapAdmin(ctx, auth.BootstrapRequest{
		Email:     opts.email,
		Password:  password,
		FirstName: opts.firstName,
		LastName:  opts.lastName,
	})
	if err != nil {
		return err
	}

	if created {
		cmd.Printf("Created administrator %s (%s)\n", identity.Email, identity.ID)
	} else {
		cmd.Printf("Identity %s already exists (%s), nothing to do\n", identity.Email, identity.ID)
	}
	return nil
}

// NewSendResetCmd creates the send-reset subcommand.
func NewSendResetCmd(deps *Deps) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "send-reset",
		Short: "Send a password reset link to an identity",
		Long: `Start the password recovery flow on behalf of a user. The outcome is
reported the same way whether or not the email is registered.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps := deps.withDefaults()
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

			if err := a.service.ForgotPassword(ctx, email, cliOrigin); err != nil {
				return err
			}
			cmd.Println("If the address is registered, a reset link has been sent")
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address of the identity (required)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}
