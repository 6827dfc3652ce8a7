// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/bartekus/sddgov/cmd/sddgov/commands"
	"github.com/bartekus/sddgov/cmd/sddgov/internal/clierr"
)

// Feature: CLI_CONTRACT
// Spec: spec/cli/contract.md

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		if !clierr.IsReported(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(clierr.ExitCodeOf(err))
	}
}
