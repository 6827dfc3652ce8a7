// SPDX-License-Identifier: AGPL-3.0-or-later

/*
sddgov - governance tooling for Markdown source-of-truth documents in spec-driven development.
It lints PRDs, Epics, research and decision records, and guards implementation work with
worktree and approval gates.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package commands holds the cobra command tree of the sddgov CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bartekus/sddgov/cmd/sddgov/internal/clierr"
	"github.com/bartekus/sddgov/internal/logger"
)

// Feature: CLI_CONTRACT
// Spec: spec/cli/contract.md

// NewRootCmd constructs the sddgov root command.
func NewRootCmd() *cobra.Command {
	version := os.Getenv("SDDGOV_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	var verbose bool
	cmd := &cobra.Command{
		Use:           "sddgov",
		Short:         "sddgov - source-of-truth governance for spec-driven development",
		Long:          "sddgov validates Markdown SoT documents and gates implementation work on approved estimates.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetOutput(cmd.ErrOrStderr())
			logger.SetVerbose(verbose)
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "", err)
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of sddgov",
		Args:  usageArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sddgov version %s\n", version)
		},
	})

	cmd.AddCommand(NewLintCommand())
	cmd.AddCommand(NewSanitizeCommand())
	cmd.AddCommand(NewRefsCommand())
	cmd.AddCommand(NewApprovalCommand())
	cmd.AddCommand(NewReviewCommand())
	cmd.AddCommand(NewGateCommand())
	cmd.AddCommand(NewDecisionsCommand())
	cmd.AddCommand(NewIssueCommand())
	cmd.AddCommand(NewSoTCommand())
	cmd.AddCommand(NewSyncDocsCommand())
	cmd.AddCommand(NewEpicCommand())
	cmd.AddCommand(NewRunCommand())

	return cmd
}

// usageArgs maps argument validation failures to the usage exit code.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return clierr.Wrap(clierr.CodeUsage, "", err)
		}
		return nil
	}
}
