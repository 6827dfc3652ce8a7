// Package runner executes named governance checks in a fixed order and
// persists the outcome so a failed run can be resumed.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bartekus/sddgov/internal/logger"
)

// Feature: CHECK_RUNNER
// Spec: spec/cli/run.md

// ErrUnknownCheck is returned by RunList for an id not in the registry.
var ErrUnknownCheck = errors.New("unknown check")

// FailedError reports the checks that failed in a run.
type FailedError struct {
	Failed []string
}

func (e *FailedError) Error() string {
	return "run failed: " + strings.Join(e.Failed, ", ")
}

// Runner executes checks and records their results.
type Runner struct {
	checks []Check
	store  *StateStore
	deps   *Deps
	out    io.Writer
	now    func() time.Time
	newID  func() string
}

// NewRunner creates a runner over checks. Progress is written to out.
func NewRunner(checks []Check, store *StateStore, deps *Deps, out io.Writer) *Runner {
	if out == nil {
		out = io.Discard
	}
	return &Runner{
		checks: checks,
		store:  store,
		deps:   deps,
		out:    out,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Checks returns the registered checks in run order.
func (r *Runner) Checks() []Check { return r.checks }

// RunAll executes every check. A failing check does not stop the run.
func (r *Runner) RunAll(ctx context.Context) error {
	return r.execute(ctx, r.checks)
}

// Resume re-runs only the checks that failed last time. With nothing to
// resume it does nothing.
func (r *Runner) Resume(ctx context.Context) error {
	failed, err := r.store.LoadFailed()
	if err != nil {
		return fmt.Errorf("loading failed checks: %w", err)
	}
	if len(failed) == 0 {
		_, _ = fmt.Fprintln(r.out, "No failed checks to resume.")
		return nil
	}
	var toRun []Check
	for _, id := range failed {
		if c := r.find(id); c != nil {
			toRun = append(toRun, c)
		} else {
			logger.Warn("resume: check %s is no longer registered", id)
		}
	}
	return r.execute(ctx, toRun)
}

// RunList executes the named checks in the given order.
func (r *Runner) RunList(ctx context.Context, ids []string) error {
	var toRun []Check
	for _, id := range ids {
		c := r.find(id)
		if c == nil {
			return fmt.Errorf("%w: %s", ErrUnknownCheck, id)
		}
		toRun = append(toRun, c)
	}
	return r.execute(ctx, toRun)
}

func (r *Runner) find(id string) Check {
	for _, c := range r.checks {
		if c.ID() == id {
			return c
		}
	}
	return nil
}

func (r *Runner) execute(ctx context.Context, checks []Check) error {
	last := LastRun{
		RunID:     r.newID(),
		Status:    string(StatusPass),
		Checks:    []string{},
		Failed:    []string{},
		StartedAt: r.now().UTC(),
	}
	logger.Info("run %s: %d checks", last.RunID, len(checks))

	for _, c := range checks {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := c.ID()
		last.Checks = append(last.Checks, id)
		_, _ = fmt.Fprintf(r.out, "== %s ==\n", id)

		res := c.Run(ctx, r.deps)
		res.Check = id
		if err := r.store.WriteCheckResult(res); err != nil {
			return fmt.Errorf("writing result for %s: %w", id, err)
		}

		switch res.Status {
		case StatusSkip:
			_, _ = fmt.Fprintf(r.out, "SKIP: %s\n", id)
		case StatusPass:
			_, _ = fmt.Fprintf(r.out, "PASS: %s\n", id)
		default:
			last.Failed = append(last.Failed, id)
			_, _ = fmt.Fprintf(r.out, "FAIL: %s (exit %d)\n", id, res.ExitCode)
		}
		if res.Note != "" {
			_, _ = fmt.Fprintln(r.out, strings.TrimRight(res.Note, "\n"))
		}
	}

	if len(last.Failed) > 0 {
		last.Status = string(StatusFail)
	}
	last.FinishedAt = r.now().UTC()
	if err := r.store.WriteLastRun(last); err != nil {
		return fmt.Errorf("writing last run: %w", err)
	}
	if len(last.Failed) > 0 {
		return &FailedError{Failed: last.Failed}
	}
	return nil
}

// WriteReport prints the last run summary and per-check results.
func WriteReport(w io.Writer, store *StateStore) error {
	last, err := store.ReadLastRun()
	if err != nil {
		return err
	}
	if last == nil {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %s\n", last.RunID, last.Status)
	fmt.Fprintf(&b, "Started: %s\n", last.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Finished: %s\n", last.FinishedAt.Format(time.RFC3339))
	for _, id := range last.Checks {
		res, err := store.ReadCheck(id)
		if err != nil {
			return err
		}
		if res == nil {
			fmt.Fprintf(&b, "- %s: missing\n", id)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s", id, res.Status)
		if res.Status == StatusFail {
			fmt.Fprintf(&b, " (exit %d)", res.ExitCode)
		}
		b.WriteByte('\n')
	}
	_, err = io.WriteString(w, b.String())
	return err
}
