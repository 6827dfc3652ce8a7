package commands

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bartekus/sddgov/cmd/sddgov/internal/clierr"
	"github.com/bartekus/sddgov/internal/gitctx"
	"github.com/bartekus/sddgov/internal/issues"
	"github.com/bartekus/sddgov/internal/projection"
	"github.com/bartekus/sddgov/internal/syncdocs"
)

// Feature: SYNC_DOCS
// Spec: spec/core/sync-docs.md

// NewSyncDocsCommand returns `sddgov syncdocs`.
func NewSyncDocsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "syncdocs",
		Short: "Documentation sync tooling",
	}
	cmd.AddCommand(newSyncDocsInputsCommand())
	return cmd
}

func newSyncDocsInputsCommand() *cobra.Command {
	var (
		opts   syncdocs.Options
		mode   string
		ghRepo string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "inputs",
		Short: "Resolve the PRD, Epic and diff a sync-docs run works on",
		Long: `Resolve PRD and Epic (flags, then the issue's PRD/Epic fields, then a single
PRD under docs/prd with the Epic that references it) and the diff source
(auto, staged, worktree, range or pr). Unless --dry-run is set, diff.patch and
inputs.json are written under <state_dir>/sync-docs/<scope>/<run>. The inputs
document is printed to stdout.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			repo, err := gitctx.Open(cmd.Context(), ws.Root)
			if err != nil {
				return clierr.Wrap(clierr.CodeFatal, "", err)
			}
			opts.Mode = syncdocs.DiffMode(mode)
			opts.StateDir = ws.Config.StateDir
			if ghRepo == "" {
				ghRepo = ws.Config.GitHub.Repo
			}
			if ghRepo != "" {
				owner, name, err := splitRepo(ghRepo)
				if err != nil {
					return err
				}
				client := issues.NewGitHubClient(cmd.Context(), ws.Config.GitHub.Token)
				opts.FetchIssue = func(ctx context.Context, n int) (*issues.Issue, error) {
					return issues.GitHubSource{Client: client, Owner: owner, Repo: name, Number: n}.Fetch(ctx)
				}
				opts.PRDiff = issues.PullDiffer{Client: client, Owner: owner, Repo: name}.Diff
			}

			res, err := syncdocs.Resolve(cmd.Context(), repo, opts)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "", err)
			}
			if !dryRun {
				if err := res.Write(); err != nil {
					return clierr.Wrap(clierr.CodeFatal, "", err)
				}
			}
			data, err := projection.MarshalJSON(res.JSON())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.PRD, "prd", "", "PRD reference (path or GitHub URL)")
	cmd.Flags().StringVar(&opts.Epic, "epic", "", "Epic reference (path or GitHub URL)")
	cmd.Flags().IntVar(&opts.Issue, "issue", 0, "issue number (default: from the branch name)")
	cmd.Flags().IntVar(&opts.PR, "pr", 0, "pull request number (implies --diff-mode pr)")
	cmd.Flags().StringVar(&mode, "diff-mode", string(syncdocs.DiffAuto), "auto, staged, worktree, range or pr")
	cmd.Flags().StringVar(&opts.BaseRef, "base-ref", syncdocs.DefaultBaseRef, "base ref for the range mode")
	cmd.Flags().StringVar(&opts.OutputRoot, "output-root", "", "output root (default: <state_dir>/sync-docs)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run id (default: a timestamp)")
	cmd.Flags().StringVar(&ghRepo, "gh-repo", "", "OWNER/REPO for issue and pull request lookups (default: github.repo)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve and print without writing files")
	return cmd
}

func splitRepo(s string) (string, string, error) {
	owner, name, ok := strings.Cut(s, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", clierr.Newf(clierr.CodeUsage, "invalid repository %q (expected OWNER/REPO)", s)
	}
	return owner, name, nil
}
