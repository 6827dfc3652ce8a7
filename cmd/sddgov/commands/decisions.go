package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bartekus/sddgov/cmd/sddgov/internal/clierr"
	"github.com/bartekus/sddgov/internal/decisions"
)

// Feature: DECISION_INDEX
// Spec: spec/core/decisions.md

// NewDecisionsCommand returns `sddgov decisions`.
func NewDecisionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "Decision record tooling",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate docs/decisions.md against the records in docs/decisions/",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			problems, err := decisions.Validate(ws.Root)
			if errors.Is(err, decisions.ErrNoIndex) {
				return clierr.Newf(clierr.CodeFatal, "[FAIL] %v", err)
			}
			if err != nil {
				return clierr.Wrap(clierr.CodeFatal, "", err)
			}
			if len(problems) > 0 {
				var b strings.Builder
				b.WriteString("[FAIL] decision validation failed:\n")
				for _, p := range problems {
					fmt.Fprintf(&b, "- %s\n", p)
				}
				_, _ = fmt.Fprint(cmd.ErrOrStderr(), b.String())
				return clierr.Reported(clierr.CodeFindings)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "[OK] decision validation passed")
			return err
		},
	})
	return cmd
}
