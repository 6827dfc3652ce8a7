package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bartekus/sddgov/cmd/sddgov/internal/clierr"
	"github.com/bartekus/sddgov/internal/issuefiles"
	"github.com/bartekus/sddgov/internal/issues"
	"github.com/bartekus/sddgov/internal/projection"
	"github.com/bartekus/sddgov/internal/refs"
)

// Feature: ISSUE_SOURCES
// Spec: spec/core/issues.md

// issueFlags selects where an issue body comes from. At most one source
// may be given.
type issueFlags struct {
	ref      string
	bodyFile string
	jsonFile string
	repo     string
}

func (f *issueFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.ref, "issue", "", "GitHub issue number or URL (fetched through the API)")
	cmd.Flags().StringVar(&f.bodyFile, "issue-body-file", "", "local Markdown issue body, or a JSON object with a body")
	cmd.Flags().StringVar(&f.jsonFile, "issue-json-file", "", "local JSON object with body/title/url")
	cmd.Flags().StringVar(&f.repo, "gh-repo", "", "OWNER/REPO for bare issue numbers (default: github.repo)")
}

// source returns the selected issue source, or nil when none was given.
func (f *issueFlags) source(ctx context.Context, ws *workspace) (issues.Source, error) {
	set := 0
	for _, v := range []string{f.ref, f.bodyFile, f.jsonFile} {
		if v != "" {
			set++
		}
	}
	switch {
	case set > 1:
		return nil, clierr.New(clierr.CodeUsage, "--issue, --issue-body-file and --issue-json-file are mutually exclusive")
	case f.bodyFile != "":
		return issues.FileSource{Path: f.bodyFile}, nil
	case f.jsonFile != "":
		return issues.JSONSource{Path: f.jsonFile}, nil
	case f.ref != "":
		owner, repo, n, err := issues.ParseRef(f.ref, f.defaultRepo(ws))
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, "", err)
		}
		client := issues.NewGitHubClient(ctx, ws.Config.GitHub.Token)
		return issues.GitHubSource{Client: client, Owner: owner, Repo: repo, Number: n}, nil
	}
	return nil, nil
}

func (f *issueFlags) defaultRepo(ws *workspace) string {
	if f.repo != "" {
		return f.repo
	}
	return ws.Config.GitHub.Repo
}

// NewIssueCommand returns `sddgov issue`.
func NewIssueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue body tooling",
	}
	cmd.AddCommand(newIssueFilesCommand())
	return cmd
}

func newIssueFilesCommand() *cobra.Command {
	var (
		src        issueFlags
		mode       string
		allowEmpty bool
		format     string
	)

	cmd := &cobra.Command{
		Use:   "files",
		Short: "Extract declared change-target files from an issue body",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := issuefiles.Mode(mode)
			if m != issuefiles.ModeSection && m != issuefiles.ModeAnywhere {
				return clierr.Newf(clierr.CodeUsage, "invalid --mode %q (expected section or anywhere)", mode)
			}
			if format != "lines" && format != "json" {
				return clierr.Newf(clierr.CodeUsage, "invalid --format %q (expected lines or json)", format)
			}
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			s, err := src.source(cmd.Context(), ws)
			if err != nil {
				return err
			}
			if s == nil {
				return clierr.New(clierr.CodeUsage, "one of --issue, --issue-body-file or --issue-json-file is required")
			}
			is, err := s.Fetch(cmd.Context())
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "", err)
			}
			paths, err := issuefiles.Extract(refs.NewResolver(ws.Root), is.Body, issuefiles.Options{Mode: m, AllowEmpty: allowEmpty})
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "", err)
			}

			if format == "json" {
				data, err := projection.MarshalJSON(paths)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			var b strings.Builder
			for _, p := range paths {
				fmt.Fprintln(&b, p)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), b.String())
			return err
		},
	}

	src.register(cmd)
	cmd.Flags().StringVar(&mode, "mode", string(issuefiles.ModeSection), "extraction mode (section, anywhere)")
	cmd.Flags().BoolVar(&allowEmpty, "allow-empty", false, "allow an empty result")
	cmd.Flags().StringVar(&format, "format", "lines", "output format (lines, json)")
	return cmd
}
