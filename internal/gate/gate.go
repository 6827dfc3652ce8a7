// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gate holds the blocking checks that guard implementation work on
// issue branches: a linked worktree is required, and the approval record
// must match the estimate. Hook entry points adapt both checks to the JSON
// payloads editor hooks send on stdin.
package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bartekus/sddgov/internal/approval"
	"github.com/bartekus/sddgov/internal/gitctx"
	"github.com/bartekus/sddgov/internal/logger"
)

// Feature: WORKFLOW_GATES
// Spec: spec/gates/workflow.md

// Blocked is a gate refusal. It is an error so callers can map it to the
// gate-blocked exit code.
type Blocked struct {
	Message     string
	NextActions []string
}

func (b *Blocked) Error() string { return b.Message }

// IsBlocked reports whether err is a gate refusal.
func IsBlocked(err error) bool {
	var b *Blocked
	return errors.As(err, &b)
}

// WriteBlocked prints the refusal banner, message and next actions.
func WriteBlocked(w io.Writer, b *Blocked) {
	var s strings.Builder
	s.WriteString("[agentic-sdd gate] BLOCKED\n\n")
	s.WriteString(strings.TrimRight(b.Message, "\n"))
	s.WriteString("\n\n")
	if len(b.NextActions) > 0 {
		s.WriteString("Next action:\n")
		for i, a := range b.NextActions {
			fmt.Fprintf(&s, "%d) %s\n", i+1, a)
		}
	}
	_, _ = io.WriteString(w, s.String())
}

// Checker runs gates against one repository.
type Checker struct {
	Repo     *gitctx.Repo
	StateDir string
}

// issue returns the issue number of the current branch, if any.
func (c *Checker) issue(ctx context.Context) (string, int, bool) {
	branch := c.Repo.CurrentBranch(ctx)
	n, ok := gitctx.IssueNumber(branch)
	return branch, n, ok
}

// Worktree requires issue branches to be checked out in a linked worktree.
// Other branches pass.
func (c *Checker) Worktree(ctx context.Context) error {
	branch, n, ok := c.issue(ctx)
	if !ok {
		logger.Debug("worktree gate: branch %q is not an issue branch", branch)
		return nil
	}
	kind, err := gitctx.InspectWorktree(c.Repo.Root)
	if err != nil {
		return &Blocked{Message: err.Error()}
	}
	gitPath := filepath.Join(c.Repo.Root, ".git")
	logger.Info("worktree gate: branch %s, .git is %s", branch, kind)
	switch kind {
	case gitctx.WorktreeLinked:
		return nil
	case gitctx.WorktreeOther:
		return &Blocked{Message: fmt.Sprintf(
			"Worktree is required for Issue branches (non-worktree gitdir detected).\n- branch: %s\n- path: %s", branch, gitPath)}
	case gitctx.WorktreeMain:
		return &Blocked{
			Message: fmt.Sprintf(
				"Worktree is required for Issue branches.\n- branch: %s\n- expected: a linked worktree (so .git is a file)", branch),
			NextActions: []string{
				fmt.Sprintf("Run: git worktree add ../issue-%d -b %s (or switch to an existing one)", n, branch),
				"Switch into that worktree directory",
				"Run estimation, then implementation",
			},
		}
	default:
		return &Blocked{Message: fmt.Sprintf(
			"Failed to determine git worktree state (.git path missing).\n- branch: %s\n- path: %s", branch, gitPath)}
	}
}

// Approval requires a valid, drift-free approval record for the issue of
// the current branch. Other branches pass.
func (c *Checker) Approval(ctx context.Context) error {
	branch, n, ok := c.issue(ctx)
	if !ok {
		logger.Debug("approval gate: branch %q is not an issue branch", branch)
		return nil
	}
	err := approval.Check(c.Repo.Root, c.StateDir, n)
	if err == nil {
		logger.Info("approval gate: issue %d approved", n)
		return nil
	}
	return &Blocked{
		Message: err.Error(),
		NextActions: []string{
			"Run estimation and get explicit approval (mode + Yes).",
			fmt.Sprintf("Save the approved estimate to: %s/approvals/issue-%d/%s", c.StateDir, n, approval.EstimateFile),
			fmt.Sprintf("Create/refresh approval.json: sddgov approval create --issue %d --mode <impl|tdd|custom>", n),
			"Validate: sddgov approval validate",
		},
	}
}

// HookInput is the JSON object an editor hook sends on stdin.
type HookInput map[string]any

// ReadHookInput decodes r. Empty or malformed input yields an empty object.
func ReadHookInput(r io.Reader) HookInput {
	data, err := io.ReadAll(r)
	if err != nil || strings.TrimSpace(string(data)) == "" {
		return HookInput{}
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return HookInput{}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return HookInput{}
	}
	return obj
}

// Command returns tool_input.command.
func (h HookInput) Command() string {
	in, _ := h["tool_input"].(map[string]any)
	s, _ := in["command"].(string)
	return s
}

var (
	pathContainers = []string{"tool_input", "input", "args", "parameters"}
	pathKeys       = []string{"path", "file", "file_path", "filePath", "filename", "target"}
)

// Path returns the first non-empty path-like value, looking in the known
// argument containers before the top level.
func (h HookInput) Path() string {
	var scopes []map[string]any
	for _, k := range pathContainers {
		if m, ok := h[k].(map[string]any); ok {
			scopes = append(scopes, m)
		}
	}
	scopes = append(scopes, h)
	for _, m := range scopes {
		for _, k := range pathKeys {
			if s, ok := m[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// IsGitPublish reports whether a shell command commits or pushes.
func IsGitPublish(command string) bool {
	return strings.Contains(command, "git commit") || strings.Contains(command, "git push")
}

// IsLocalStatePath reports whether p points into the local state directory,
// whose artifacts (approvals, reviews) may be written before approval.
func IsLocalStatePath(p, stateDir string) bool {
	p = strings.ReplaceAll(p, `\`, "/")
	dir := strings.Trim(strings.ReplaceAll(stateDir, `\`, "/"), "/")
	return p == dir || strings.HasPrefix(p, dir+"/") || strings.Contains(p, "/"+dir+"/")
}

// CommitHook gates "git commit" and "git push" commands: worktree first,
// then approval. Outside a repository hooks pass.
func CommitHook(ctx context.Context, dir, stateDir string, in HookInput) error {
	if !IsGitPublish(in.Command()) {
		return nil
	}
	repo, err := gitctx.Open(ctx, dir)
	if err != nil {
		return nil
	}
	c := &Checker{Repo: repo, StateDir: stateDir}
	if err := c.Worktree(ctx); err != nil {
		return err
	}
	return c.Approval(ctx)
}

// ImplHook gates file edits. The worktree gate always applies; writes into
// the local state directory skip the approval gate.
func ImplHook(ctx context.Context, dir, stateDir string, in HookInput) error {
	repo, err := gitctx.Open(ctx, dir)
	if err != nil {
		return nil
	}
	c := &Checker{Repo: repo, StateDir: stateDir}
	if err := c.Worktree(ctx); err != nil {
		return err
	}
	if p := in.Path(); p != "" && IsLocalStatePath(p, stateDir) {
		logger.Debug("impl gate: %s is local state, approval not required", p)
		return nil
	}
	return c.Approval(ctx)
}
