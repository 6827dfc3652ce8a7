// Package gitctx answers the git questions the gates and sync-docs ask:
// repository root, current branch, issue number, worktree kind and diffs.
package gitctx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ErrNotRepo is returned when git cannot locate a repository root.
var ErrNotRepo = errors.New("not in a git repository; cannot locate repo root")

var issueBranchRe = regexp.MustCompile(`\bissue-(\d+)\b`)

// Repo runs git commands in one working tree.
type Repo struct {
	Root string
}

// Open returns a Repo for the toplevel containing dir.
func Open(ctx context.Context, dir string) (*Repo, error) {
	root, err := TopLevel(ctx, dir)
	if err != nil {
		return nil, err
	}
	return &Repo{Root: root}, nil
}

// TopLevel returns the symlink-resolved toplevel of the repository at dir.
func TopLevel(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	out, err := cmd.Output()
	root := strings.TrimSpace(string(out))
	if err != nil || root == "" {
		return "", ErrNotRepo
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	return root, nil
}

func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Root
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return string(out), nil
}

// CurrentBranch returns the checked out branch, or "" when detached or unknown.
func (r *Repo) CurrentBranch(ctx context.Context) string {
	out, err := r.git(ctx, "branch", "--show-current")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// IssueNumber extracts N from an "issue-N" token in a branch name.
func IssueNumber(branch string) (int, bool) {
	m := issueBranchRe.FindStringSubmatch(branch)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// RefExists reports whether ref resolves to an object.
func (r *Repo) RefExists(ctx context.Context, ref string) bool {
	_, err := r.git(ctx, "rev-parse", "--verify", "--quiet", ref)
	return err == nil
}

// HasDiff reports whether "git diff --quiet args..." sees changes.
func (r *Repo) HasDiff(ctx context.Context, args ...string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"diff", "--quiet"}, args...)...)
	cmd.Dir = r.Root
	err := cmd.Run()
	if err == nil {
		return false, nil
	}
	var exit *exec.ExitError
	if errors.As(err, &exit) && exit.ExitCode() == 1 {
		return true, nil
	}
	return false, fmt.Errorf("git diff --quiet %s: %w", strings.Join(args, " "), err)
}

// Diff returns the uncolored patch for "git diff args...".
func (r *Repo) Diff(ctx context.Context, args ...string) (string, error) {
	return r.git(ctx, append([]string{"diff", "--no-color"}, args...)...)
}

// WorktreeKind classifies the .git entry at a repository root.
type WorktreeKind int

const (
	// WorktreeMissing means there is no .git entry.
	WorktreeMissing WorktreeKind = iota
	// WorktreeMain means .git is a directory, i.e. the main checkout.
	WorktreeMain
	// WorktreeLinked means .git is a gitdir file pointing into .git/worktrees/.
	WorktreeLinked
	// WorktreeOther means .git is a gitdir file pointing elsewhere (e.g. a submodule).
	WorktreeOther
)

func (k WorktreeKind) String() string {
	switch k {
	case WorktreeMain:
		return "main"
	case WorktreeLinked:
		return "linked"
	case WorktreeOther:
		return "other"
	default:
		return "missing"
	}
}

// InspectWorktree classifies root/.git.
func InspectWorktree(root string) (WorktreeKind, error) {
	p := filepath.Join(root, ".git")
	info, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return WorktreeMissing, nil
	}
	if err != nil {
		return WorktreeMissing, err
	}
	if info.IsDir() {
		return WorktreeMain, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return WorktreeMissing, fmt.Errorf("failed to read .git file: %w", err)
	}
	if strings.Contains(filepath.ToSlash(string(data)), ".git/worktrees/") {
		return WorktreeLinked, nil
	}
	return WorktreeOther, nil
}
