package skills

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bartekus/sddgov/internal/decisions"
	"github.com/bartekus/sddgov/internal/runner"
	"github.com/bartekus/sddgov/internal/sotlint"
)

// maxNoteLines bounds how many finding lines a note carries.
const maxNoteLines = 20

type Lint struct{ id string }

func NewLint() runner.Check { return &Lint{id: "lint"} }

func (s *Lint) ID() string { return s.id }

func (s *Lint) Run(ctx context.Context, deps *runner.Deps) runner.CheckResult {
	cfg := deps.Config.Lint
	l, err := sotlint.New(deps.RepoRoot, sotlint.Options{Workers: cfg.Workers, Exclude: cfg.Exclude})
	if err != nil {
		return fatal(s.id, err)
	}
	findings, err := l.Lint(ctx, cfg.Roots)
	if err != nil {
		return fatal(s.id, err)
	}
	if len(findings) == 0 {
		return runner.CheckResult{Check: s.id, Status: runner.StatusPass}
	}
	lines := make([]string, len(findings))
	for i, f := range findings {
		lines[i] = f.String()
	}
	return runner.CheckResult{Check: s.id, Status: runner.StatusFail, ExitCode: 1, Note: tail(lines)}
}

type Decisions struct{ id string }

func NewDecisions() runner.Check { return &Decisions{id: "decisions"} }

func (s *Decisions) ID() string { return s.id }

func (s *Decisions) Run(ctx context.Context, deps *runner.Deps) runner.CheckResult {
	problems, err := decisions.Validate(deps.RepoRoot)
	if errors.Is(err, decisions.ErrNoIndex) {
		return runner.CheckResult{Check: s.id, Status: runner.StatusSkip, Note: decisions.IndexPath + " not found"}
	}
	if err != nil {
		return fatal(s.id, err)
	}
	if len(problems) == 0 {
		return runner.CheckResult{Check: s.id, Status: runner.StatusPass}
	}
	lines := make([]string, len(problems))
	for i, p := range problems {
		lines[i] = "- " + p
	}
	return runner.CheckResult{Check: s.id, Status: runner.StatusFail, ExitCode: 1, Note: tail(lines)}
}

func fatal(id string, err error) runner.CheckResult {
	return runner.CheckResult{Check: id, Status: runner.StatusFail, ExitCode: 3, Note: err.Error()}
}

// tail keeps the first maxNoteLines lines and counts the rest.
func tail(lines []string) string {
	if len(lines) <= maxNoteLines {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:maxNoteLines], "\n") + fmt.Sprintf("\n...(%d more)", len(lines)-maxNoteLines)
}
