package commands

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bartekus/sddgov/cmd/sddgov/internal/clierr"
	"github.com/bartekus/sddgov/internal/projection"
	"github.com/bartekus/sddgov/internal/runner"
	"github.com/bartekus/sddgov/internal/skills"
)

// Feature: CHECK_RUNNER
// Spec: spec/cli/run.md

type runOptions struct {
	json     bool
	stateDir string
}

func (o *runOptions) store(ws *workspace) *runner.StateStore {
	dir := o.stateDir
	if dir == "" {
		dir = ws.Config.Run.StateDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(ws.Root, filepath.FromSlash(dir))
	}
	return runner.NewStateStore(dir)
}

func (o *runOptions) runner(cmd *cobra.Command) (*runner.Runner, error) {
	ws, err := openWorkspace(cmd)
	if err != nil {
		return nil, err
	}
	deps := &runner.Deps{RepoRoot: ws.Root, Config: &ws.Config}
	return runner.NewRunner(skills.Registry, o.store(ws), deps, cmd.OutOrStdout()), nil
}

// runExit maps a failed run to the findings exit code. Check output has
// already been printed.
func runExit(err error) error {
	if err == nil {
		return nil
	}
	var failed *runner.FailedError
	if errors.As(err, &failed) {
		return clierr.Wrap(clierr.CodeFindings, "", err)
	}
	if errors.Is(err, runner.ErrUnknownCheck) {
		return clierr.Wrap(clierr.CodeUsage, "", err)
	}
	return clierr.Wrap(clierr.CodeFatal, "", err)
}

// NewRunCommand returns `sddgov run`.
func NewRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <check>... | run <subcommand>",
		Short: "Run named governance checks with resumable state",
		Long: `Run the named checks in order, or use a subcommand. State is kept in
run.state_dir (default .agentic-sdd/run) so "run resume" re-runs only the
checks that failed last time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			r, err := opts.runner(cmd)
			if err != nil {
				return err
			}
			return runExit(r.RunList(cmd.Context(), args))
		},
	}
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "output results in JSON (list, report)")
	cmd.PersistentFlags().StringVar(&opts.stateDir, "state-dir", "", "directory for run state (default: run.state_dir)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available checks",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]string, 0, len(skills.Registry))
			for _, c := range skills.Registry {
				ids = append(ids, c.ID())
			}
			if opts.json {
				data, err := projection.MarshalJSON(map[string]any{"checks": ids})
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			_, err := cmd.OutOrStdout().Write([]byte(strings.Join(ids, "\n") + "\n"))
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Run all checks",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.runner(cmd)
			if err != nil {
				return err
			}
			return runExit(r.RunAll(cmd.Context()))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "resume",
		Short: "Re-run the checks that failed last time",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.runner(cmd)
			if err != nil {
				return err
			}
			return runExit(r.Resume(cmd.Context()))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "report",
		Short: "Show the last run",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			store := opts.store(ws)
			if !opts.json {
				return runner.WriteReport(cmd.OutOrStdout(), store)
			}
			last, err := store.ReadLastRun()
			if err != nil {
				return clierr.Wrap(clierr.CodeFatal, "", err)
			}
			data, err := projection.MarshalJSON(last)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Clear run state",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			return opts.store(ws).Reset()
		},
	})

	return cmd
}
