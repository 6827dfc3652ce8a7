package syncdocs

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartekus/sddgov/internal/gitctx"
	"github.com/bartekus/sddgov/internal/issues"
	"github.com/bartekus/sddgov/internal/refs"
)

const stateDir = ".agentic-sdd"

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v failed: %v\nOutput: %s", args, err, out)
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

// newRepo commits one PRD, one Epic pointing at it and a source file.
func newRepo(t *testing.T) *gitctx.Repo {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")
	writeFile(t, dir, "docs/prd/cache.md", "# PRD\n")
	writeFile(t, dir, "docs/epics/cache.md", "# Epic\n\n- PRD: `docs/prd/cache.md`\n")
	writeFile(t, dir, "docs/epics/other.md", "# Other\n\n- PRD: <!-- later -->\n")
	writeFile(t, dir, "main.go", "package main\n")
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "init")
	repo, err := gitctx.Open(context.Background(), dir)
	require.NoError(t, err)
	return repo
}

func fixedNow() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

func TestResolve_IssueBranchWorktreeDiff(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	runGit(t, repo.Root, "checkout", "-b", "feature/issue-12-cache")
	writeFile(t, repo.Root, "main.go", "package main\n\nfunc main() {}\n")

	res, err := Resolve(ctx, repo, Options{
		IssueBody: &issues.Issue{
			Body: "- PRD: [prd](docs/prd/cache.md)\n- Epic: `docs/epics/cache.md`\n",
			URL:  "https://github.com/acme/w/issues/12",
		},
		StateDir: stateDir,
		RunID:    "r1",
	})
	require.NoError(t, err)
	assert.Equal(t, "issue-12", res.ScopeID)
	assert.Equal(t, DiffWorktree, res.DiffSource)
	assert.Contains(t, res.Diff(), "+func main() {}")

	require.NoError(t, res.Write())
	data, err := os.ReadFile(filepath.Join(repo.Root, stateDir, "sync-docs", "issue-12", "r1", InputsFile))
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, map[string]any{
		"repo_root":    repo.Root,
		"scope_id":     "issue-12",
		"run_id":       "r1",
		"prd_path":     "docs/prd/cache.md",
		"epic_path":    "docs/epics/cache.md",
		"issue_number": "12",
		"issue_url":    "https://github.com/acme/w/issues/12",
		"pr_number":    nil,
		"diff_source":  "worktree",
		"diff_detail":  nil,
		"diff_path":    ".agentic-sdd/sync-docs/issue-12/r1/diff.patch",
		"inputs_path":  ".agentic-sdd/sync-docs/issue-12/r1/inputs.json",
	}, got)

	patch, err := os.ReadFile(filepath.Join(repo.Root, stateDir, "sync-docs", "issue-12", "r1", DiffFile))
	require.NoError(t, err)
	assert.Equal(t, res.Diff(), string(patch))
}

func TestResolve_InferredDocsStagedDiff(t *testing.T) {
	repo := newRepo(t)
	writeFile(t, repo.Root, "main.go", "package main // staged\n")
	runGit(t, repo.Root, "add", "main.go")

	res, err := Resolve(context.Background(), repo, Options{StateDir: stateDir, Now: fixedNow})
	require.NoError(t, err)
	assert.Equal(t, "docs/prd/cache.md", res.PRDPath)
	assert.Equal(t, "docs/epics/cache.md", res.EpicPath)
	assert.Equal(t, DiffStaged, res.DiffSource)
	assert.Equal(t, "branch-main", res.ScopeID)
	assert.Equal(t, "20260304_050607", res.RunID)
}

func TestResolve_DiffModes(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	_, err := Resolve(ctx, repo, Options{StateDir: stateDir})
	require.EqualError(t, err, "diff is empty (range: main...HEAD)")

	_, err = Resolve(ctx, repo, Options{StateDir: stateDir, Mode: DiffStaged})
	require.EqualError(t, err, "diff is empty (staged)")

	_, err = Resolve(ctx, repo, Options{StateDir: stateDir, Mode: "bogus"})
	require.ErrorContains(t, err, "invalid diff mode")

	_, err = Resolve(ctx, repo, Options{StateDir: stateDir, BaseRef: "release", Mode: DiffRange})
	require.EqualError(t, err, "base ref not found for range diff: release")

	runGit(t, repo.Root, "checkout", "-b", "topic/x+y")
	writeFile(t, repo.Root, "lib.go", "package main\n")
	runGit(t, repo.Root, "add", ".")
	runGit(t, repo.Root, "commit", "-m", "lib")

	res, err := Resolve(ctx, repo, Options{StateDir: stateDir})
	require.NoError(t, err)
	assert.Equal(t, DiffRange, res.DiffSource)
	assert.Equal(t, "main", res.DiffDetail)
	assert.Equal(t, "branch-topic_x_y", res.ScopeID)

	writeFile(t, repo.Root, "lib.go", "package main // staged\n")
	runGit(t, repo.Root, "add", "lib.go")
	writeFile(t, repo.Root, "lib.go", "package main // worktree\n")
	_, err = Resolve(ctx, repo, Options{StateDir: stateDir})
	require.ErrorContains(t, err, "both staged and worktree diffs are non-empty")
}

func TestResolve_PRMode(t *testing.T) {
	repo := newRepo(t)
	res, err := Resolve(context.Background(), repo, Options{
		StateDir: stateDir,
		PR:       9,
		PRDiff: func(_ context.Context, n int) (string, error) {
			assert.Equal(t, 9, n)
			return "diff --git a/x b/x\n", nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, DiffPR, res.DiffSource)
	assert.Equal(t, "9", res.DiffDetail)
	assert.Equal(t, "pr-9", res.ScopeID)

	_, err = Resolve(context.Background(), repo, Options{StateDir: stateDir, PR: 9})
	require.ErrorContains(t, err, "requires github.repo")
}

func TestResolve_DocErrors(t *testing.T) {
	ctx := context.Background()

	repo := newRepo(t)
	runGit(t, repo.Root, "checkout", "-b", "issue-3")
	_, err := Resolve(ctx, repo, Options{StateDir: stateDir})
	require.ErrorContains(t, err, "issue #3 body is required")

	_, err = Resolve(ctx, repo, Options{
		StateDir: stateDir,
		FetchIssue: func(context.Context, int) (*issues.Issue, error) {
			return &issues.Issue{Body: "- PRD: docs/prd/cache.md\n- Epic: <!-- todo -->\n"}, nil
		},
	})
	require.ErrorContains(t, err, "Epic reference is required")

	repo = newRepo(t)
	writeFile(t, repo.Root, "docs/prd/second.md", "# PRD 2\n")
	_, err = Resolve(ctx, repo, Options{StateDir: stateDir})
	require.EqualError(t, err, "multiple PRDs exist; specify --prd or add PRD/Epic references to the Issue: docs/prd/cache.md, docs/prd/second.md")

	_, err = Resolve(ctx, repo, Options{StateDir: stateDir, PRD: "docs/prd/second.md"})
	require.ErrorContains(t, err, "Epic could not be resolved from PRD")

	_, err = Resolve(ctx, repo, Options{StateDir: stateDir, PRD: "docs/prd/gone.md", Epic: "docs/epics/cache.md"})
	require.EqualError(t, err, "PRD file not found: docs/prd/gone.md")
}

func TestEpicForPRD_Multiple(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/epics/a.md", "PRD: docs/prd/p.md\n")
	writeFile(t, root, "docs/epics/nested/b.md", "- PRD: `./docs/prd/p.md`\n")
	_, err := EpicForPRD(refs.NewResolver(root), "docs/prd/p.md")
	require.EqualError(t, err, "multiple Epics reference the same PRD; specify --epic explicitly: docs/epics/a.md, docs/epics/nested/b.md")

	_, err = EpicForPRD(refs.NewResolver(t.TempDir()), "docs/prd/p.md")
	require.ErrorContains(t, err, "docs/epics/ not found")
}
