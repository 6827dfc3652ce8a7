package skills

import (
	"context"
	"errors"
	"strings"

	"github.com/bartekus/sddgov/internal/gate"
	"github.com/bartekus/sddgov/internal/gitctx"
	"github.com/bartekus/sddgov/internal/runner"
)

// GateCheck adapts one gate to the runner. Outside a repository and on
// branches without an issue number it skips.
type GateCheck struct {
	id  string
	run func(*gate.Checker, context.Context) error
}

func NewWorktreeGate() runner.Check {
	return &GateCheck{id: "gate:worktree", run: (*gate.Checker).Worktree}
}

func NewApprovalGate() runner.Check {
	return &GateCheck{id: "gate:approval", run: (*gate.Checker).Approval}
}

func (s *GateCheck) ID() string { return s.id }

func (s *GateCheck) Run(ctx context.Context, deps *runner.Deps) runner.CheckResult {
	repo, err := gitctx.Open(ctx, deps.RepoRoot)
	if err != nil {
		return runner.CheckResult{Check: s.id, Status: runner.StatusSkip, Note: err.Error()}
	}
	branch := repo.CurrentBranch(ctx)
	if _, ok := gitctx.IssueNumber(branch); !ok {
		return runner.CheckResult{Check: s.id, Status: runner.StatusSkip, Note: "not an issue branch: " + branch}
	}
	c := &gate.Checker{Repo: repo, StateDir: deps.Config.StateDir}
	if err := s.run(c, ctx); err != nil {
		var blocked *gate.Blocked
		if errors.As(err, &blocked) {
			var b strings.Builder
			gate.WriteBlocked(&b, blocked)
			return runner.CheckResult{Check: s.id, Status: runner.StatusFail, ExitCode: 2, Note: b.String()}
		}
		return fatal(s.id, err)
	}
	return runner.CheckResult{Check: s.id, Status: runner.StatusPass}
}
