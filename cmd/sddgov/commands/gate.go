package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/bartekus/sddgov/internal/gate"
)

// Feature: WORKFLOW_GATES
// Spec: spec/gates/workflow.md

// NewGateCommand returns `sddgov gate`.
func NewGateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Workflow gates for issue branches",
		Long: `Gates exit 0 when work may proceed and 2 when blocked. The commit and impl
gates read an editor hook payload (JSON) from stdin.`,
	}
	cmd.AddCommand(newGateWorktreeCommand())
	cmd.AddCommand(newGateHookCommand("commit", "Gate git commit/push commands (hook input on stdin)", gate.CommitHook))
	cmd.AddCommand(newGateHookCommand("impl", "Gate file edits (hook input on stdin)", gate.ImplHook))
	return cmd
}

func newGateWorktreeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worktree",
		Short: "Require a linked worktree on issue branches",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newChecker(cmd)
			if err != nil {
				return err
			}
			return reportGate(cmd, c.Worktree(cmd.Context()))
		},
	}
}

type hookFunc = func(ctx context.Context, dir, stateDir string, in gate.HookInput) error

func newGateHookCommand(name, short string, hook hookFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			in := gate.ReadHookInput(cmd.InOrStdin())
			wd, err := os.Getwd()
			if err != nil {
				wd = ws.Root
			}
			return reportGate(cmd, hook(cmd.Context(), wd, ws.Config.StateDir, in))
		},
	}
}
