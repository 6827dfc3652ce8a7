package commands

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bartekus/sddgov/cmd/sddgov/internal/clierr"
	"github.com/bartekus/sddgov/internal/approval"
	"github.com/bartekus/sddgov/internal/gate"
	"github.com/bartekus/sddgov/internal/gitctx"
)

// Feature: APPROVAL_GATE
// Spec: spec/gates/approval.md

// NewApprovalCommand returns `sddgov approval`.
func NewApprovalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approval",
		Short: "Create and validate estimate approval records",
	}
	cmd.AddCommand(newApprovalCreateCommand())
	cmd.AddCommand(newApprovalValidateCommand())
	return cmd
}

func newApprovalCreateCommand() *cobra.Command {
	var opts approval.CreateOptions

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Hash the approved estimate and write approval.json",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("issue") {
				return clierr.New(clierr.CodeUsage, "--issue is required")
			}
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			opts.StateDir = ws.Config.StateDir
			path, err := approval.Create(ws.Root, opts)
			switch {
			case errors.Is(err, approval.ErrUsage), errors.Is(err, approval.ErrExists), errors.Is(err, approval.ErrMissingEstimate):
				return clierr.Wrap(clierr.CodeUsage, "", err)
			case err != nil:
				return clierr.Wrap(clierr.CodeFatal, "", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "OK: wrote %s\n", relPath(ws.Root, path))
			return err
		},
	}

	cmd.Flags().IntVar(&opts.Issue, "issue", 0, "issue number")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "implementation mode (impl, tdd, custom)")
	cmd.Flags().StringVar(&opts.Approver, "approver", approval.DefaultApprover, "who approved the estimate")
	cmd.Flags().StringVar(&opts.ApprovedAt, "approved-at", "", "approval time as YYYY-MM-DDTHH:MM:SSZ (default: now)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing approval.json")
	return cmd
}

func newApprovalValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Run the approval gate for the current issue branch",
		Long: `Validate .agentic-sdd/approvals/issue-N/approval.json against the current
estimate for the issue of the current branch. Branches without an issue
number pass. Exits 2 when blocked.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newChecker(cmd)
			if err != nil {
				return err
			}
			return reportGate(cmd, c.Approval(cmd.Context()))
		},
	}
}

func newChecker(cmd *cobra.Command) (*gate.Checker, error) {
	ws, err := openWorkspace(cmd)
	if err != nil {
		return nil, err
	}
	repo, err := gitctx.Open(cmd.Context(), ws.Root)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeFatal, "", err)
	}
	return &gate.Checker{Repo: repo, StateDir: ws.Config.StateDir}, nil
}

// reportGate prints a gate refusal and maps it to the blocked exit code.
func reportGate(cmd *cobra.Command, err error) error {
	var blocked *gate.Blocked
	if errors.As(err, &blocked) {
		gate.WriteBlocked(cmd.ErrOrStderr(), blocked)
		return clierr.Reported(clierr.CodeBlocked)
	}
	if err != nil {
		return clierr.Wrap(clierr.CodeFatal, "", err)
	}
	return nil
}

func relPath(root, p string) string {
	if rel, err := filepath.Rel(root, p); err == nil {
		return filepath.ToSlash(rel)
	}
	return p
}
