package commands

import (
	"github.com/spf13/cobra"

	"github.com/bartekus/sddgov/cmd/sddgov/internal/clierr"
	"github.com/bartekus/sddgov/internal/projection"
	"github.com/bartekus/sddgov/internal/sotlint"
)

// Feature: SOT_LINT
// Spec: spec/core/lint.md

// NewLintCommand returns `sddgov lint`.
func NewLintCommand() *cobra.Command {
	var (
		asJSON  bool
		exclude []string
		workers int
		tracked bool
	)

	cmd := &cobra.Command{
		Use:   "lint [roots...]",
		Short: "Validate Markdown SoT documents",
		Long: `Lint every Markdown document under the given roots (default: lint.roots
from .sddgov.yaml, or docs). Exits 1 when any finding is reported and 3 on a
fatal error such as invalid UTF-8.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			roots := args
			if len(roots) == 0 {
				roots = ws.Config.Lint.Roots
			}
			if workers == 0 {
				workers = ws.Config.Lint.Workers
			}
			l, err := sotlint.New(ws.Root, sotlint.Options{
				Workers: workers,
				Exclude: append(append([]string{}, ws.Config.Lint.Exclude...), exclude...),
				Tracked: tracked,
			})
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "", err)
			}
			findings, err := l.Lint(cmd.Context(), roots)
			if err != nil {
				return clierr.Wrap(clierr.CodeFatal, "", err)
			}

			if asJSON {
				if findings == nil {
					findings = []sotlint.Finding{}
				}
				data, err := projection.MarshalJSON(map[string]any{"ok": len(findings) == 0, "findings": findings})
				if err != nil {
					return err
				}
				if _, err := cmd.OutOrStdout().Write(data); err != nil {
					return err
				}
			} else if len(findings) == 0 {
				sotlint.WriteReport(cmd.OutOrStdout(), nil)
			} else {
				sotlint.WriteReport(cmd.ErrOrStderr(), findings)
			}
			if len(findings) > 0 {
				return clierr.Reported(clierr.CodeFindings)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit findings as JSON")
	cmd.Flags().StringArrayVar(&exclude, "exclude", nil, "doublestar glob of repo-relative paths to skip (repeatable)")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent file checks (default: lint.workers)")
	cmd.Flags().BoolVar(&tracked, "tracked", false, "only lint files tracked by git")

	return cmd
}
