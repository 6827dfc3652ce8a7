// SPDX-License-Identifier: AGPL-3.0-or-later

// Package syncdocs resolves the inputs of a docs-sync run: which PRD and
// Epic the change belongs to, and which diff describes the change. The
// result is written as diff.patch and inputs.json for later steps.
package syncdocs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bartekus/sddgov/internal/gitctx"
	"github.com/bartekus/sddgov/internal/issues"
	"github.com/bartekus/sddgov/internal/logger"
	"github.com/bartekus/sddgov/internal/projection"
	"github.com/bartekus/sddgov/internal/refs"
)

// Feature: SYNC_DOCS_INPUTS
// Spec: spec/core/sync-docs.md

// DiffMode selects where the change diff comes from.
type DiffMode string

const (
	DiffAuto     DiffMode = "auto"
	DiffStaged   DiffMode = "staged"
	DiffWorktree DiffMode = "worktree"
	DiffRange    DiffMode = "range"
	DiffPR       DiffMode = "pr"
)

const (
	DefaultBaseRef = "origin/main"
	RunIDLayout    = "20060102_150405"
	DiffFile       = "diff.patch"
	InputsFile     = "inputs.json"
)

var (
	safeScopeRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	epicPRDRe   = regexp.MustCompile(`\bPRD\s*:\s*(.+)$`)
)

// Options drive Resolve. Zero values fall back to inference.
type Options struct {
	PRD  string
	Epic string

	// Issue is inferred from the branch when zero.
	Issue int
	// IssueBody, when set, is used instead of FetchIssue.
	IssueBody *issues.Issue
	// FetchIssue loads an issue by number. Nil disables fetching.
	FetchIssue func(ctx context.Context, number int) (*issues.Issue, error)

	PR int
	// PRDiff loads a pull request patch. Nil disables the pr mode.
	PRDiff func(ctx context.Context, number int) (string, error)

	Mode    DiffMode
	BaseRef string

	StateDir   string
	OutputRoot string
	RunID      string
	Now        func() time.Time
}

// Result is the resolved run.
type Result struct {
	RepoRoot    string
	ScopeID     string
	RunID       string
	PRDPath     string
	EpicPath    string
	IssueNumber int
	IssueURL    string
	PRNumber    int
	DiffSource  DiffMode
	DiffDetail  string
	DiffPath    string
	InputsPath  string

	diff   string
	outDir string
}

// JSON returns the inputs.json document. Absent values are null.
func (r *Result) JSON() map[string]any {
	return map[string]any{
		"repo_root":    r.RepoRoot,
		"scope_id":     r.ScopeID,
		"run_id":       r.RunID,
		"prd_path":     r.PRDPath,
		"epic_path":    r.EpicPath,
		"issue_number": optionalInt(r.IssueNumber),
		"issue_url":    optionalString(r.IssueURL),
		"pr_number":    optionalInt(r.PRNumber),
		"diff_source":  string(r.DiffSource),
		"diff_detail":  optionalString(r.DiffDetail),
		"diff_path":    r.DiffPath,
		"inputs_path":  r.InputsPath,
	}
}

// Diff returns the resolved patch text.
func (r *Result) Diff() string { return r.diff }

func optionalInt(n int) any {
	if n <= 0 {
		return nil
	}
	return strconv.Itoa(n)
}

func optionalString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Resolve determines PRD, Epic, diff and output locations.
func Resolve(ctx context.Context, repo *gitctx.Repo, opts Options) (*Result, error) {
	if opts.BaseRef == "" {
		opts.BaseRef = DefaultBaseRef
	}
	if opts.Mode == "" {
		opts.Mode = DiffAuto
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	res := &Result{RepoRoot: repo.Root, IssueNumber: opts.Issue, PRNumber: opts.PR}
	branch := repo.CurrentBranch(ctx)
	if res.IssueNumber == 0 {
		if n, ok := gitctx.IssueNumber(branch); ok {
			res.IssueNumber = n
		}
	}
	mode := opts.Mode
	if res.PRNumber > 0 && mode == DiffAuto {
		mode = DiffPR
	}

	if err := resolveDocs(ctx, refs.NewResolver(repo.Root), res, opts); err != nil {
		return nil, err
	}

	var err error
	res.DiffSource, res.diff, res.DiffDetail, err = resolveDiff(ctx, repo, opts, mode, res.PRNumber)
	if err != nil {
		return nil, err
	}

	switch {
	case res.IssueNumber > 0:
		res.ScopeID = fmt.Sprintf("issue-%d", res.IssueNumber)
	case res.PRNumber > 0:
		res.ScopeID = fmt.Sprintf("pr-%d", res.PRNumber)
	default:
		if branch == "" {
			branch = "unknown"
		}
		safe := strings.Trim(safeScopeRe.ReplaceAllString(branch, "_"), "_")
		if safe == "" {
			safe = "unknown"
		}
		res.ScopeID = "branch-" + safe
	}

	res.RunID = strings.TrimSpace(opts.RunID)
	if res.RunID == "" {
		res.RunID = opts.Now().Format(RunIDLayout)
	}

	outRoot := opts.OutputRoot
	if outRoot == "" {
		outRoot = filepath.Join(repo.Root, filepath.FromSlash(opts.StateDir), "sync-docs")
	} else if abs, err := filepath.Abs(outRoot); err == nil {
		outRoot = abs
	}
	res.outDir = filepath.Join(outRoot, res.ScopeID, res.RunID)
	res.DiffPath = relSlash(repo.Root, filepath.Join(res.outDir, DiffFile))
	res.InputsPath = relSlash(repo.Root, filepath.Join(res.outDir, InputsFile))
	return res, nil
}

func relSlash(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

// Write stores diff.patch and inputs.json in the run directory.
func (r *Result) Write() error {
	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", r.outDir, err)
	}
	diff := r.diff
	if !strings.HasSuffix(diff, "\n") {
		diff += "\n"
	}
	if err := projection.AtomicWrite(filepath.Join(r.outDir, DiffFile), []byte(diff)); err != nil {
		return err
	}
	return projection.WriteJSON(filepath.Join(r.outDir, InputsFile), r.JSON())
}

func resolveDocs(ctx context.Context, rr *refs.Resolver, res *Result, opts Options) error {
	var err error
	if opts.PRD != "" {
		if res.PRDPath, err = rr.Resolve(opts.PRD); err != nil {
			return fmt.Errorf("--prd: %w", err)
		}
	}
	if opts.Epic != "" {
		if res.EpicPath, err = rr.Resolve(opts.Epic); err != nil {
			return fmt.Errorf("--epic: %w", err)
		}
	}

	if (res.PRDPath == "" || res.EpicPath == "") && (res.IssueNumber > 0 || opts.IssueBody != nil) {
		is := opts.IssueBody
		if is == nil {
			if opts.FetchIssue == nil {
				return fmt.Errorf("issue #%d body is required: pass --issue-body-file or configure github.repo", res.IssueNumber)
			}
			if is, err = opts.FetchIssue(ctx, res.IssueNumber); err != nil {
				return err
			}
		}
		prd, epic, err := issueRefs(rr, is.Body)
		if err != nil {
			return err
		}
		res.IssueURL = is.URL
		if res.PRDPath == "" {
			res.PRDPath = prd
		}
		if res.EpicPath == "" {
			res.EpicPath = epic
		}
	}

	if res.PRDPath == "" {
		if res.PRDPath, err = singlePRD(rr.Root()); err != nil {
			return err
		}
	}
	if res.EpicPath == "" {
		if res.EpicPath, err = EpicForPRD(rr, res.PRDPath); err != nil {
			return err
		}
	}
	for _, f := range []struct{ label, rel string }{{"PRD", res.PRDPath}, {"Epic", res.EpicPath}} {
		fi, err := os.Stat(filepath.Join(rr.Root(), filepath.FromSlash(f.rel)))
		if err != nil || !fi.Mode().IsRegular() {
			return fmt.Errorf("%s file not found: %s", f.label, f.rel)
		}
	}
	logger.Info("sync-docs: PRD %s, Epic %s", res.PRDPath, res.EpicPath)
	return nil
}

func isPlaceholder(ref string) bool {
	ref = strings.TrimSpace(ref)
	return ref == "" || strings.Contains(ref, "<!--")
}

func issueRefs(rr *refs.Resolver, body string) (string, string, error) {
	prd, ok := refs.FindField(body, "PRD")
	if !ok || isPlaceholder(prd) {
		return "", "", errors.New("PRD reference is required in the Issue body (line like '- PRD: docs/prd/xxx.md')")
	}
	epic, ok := refs.FindField(body, "Epic")
	if !ok || isPlaceholder(epic) {
		return "", "", errors.New("Epic reference is required in the Issue body (line like '- Epic: docs/epics/xxx.md')")
	}
	prdPath, err := rr.Resolve(prd)
	if err != nil {
		return "", "", fmt.Errorf("issue PRD reference: %w", err)
	}
	epicPath, err := rr.Resolve(epic)
	if err != nil {
		return "", "", fmt.Errorf("issue Epic reference: %w", err)
	}
	return prdPath, epicPath, nil
}

func singlePRD(root string) (string, error) {
	ents, err := os.ReadDir(filepath.Join(root, "docs", "prd"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	var prds []string
	for _, e := range ents {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			prds = append(prds, "docs/prd/"+e.Name())
		}
	}
	sort.Strings(prds)
	switch len(prds) {
	case 1:
		return prds[0], nil
	case 0:
		return "", errors.New("PRD could not be resolved (docs/prd/*.md not found)")
	default:
		return "", fmt.Errorf("multiple PRDs exist; specify --prd or add PRD/Epic references to the Issue: %s", strings.Join(prds, ", "))
	}
}

// EpicForPRD finds the single Epic under docs/epics whose PRD field
// resolves to prdPath.
func EpicForPRD(rr *refs.Resolver, prdPath string) (string, error) {
	epicsRoot := filepath.Join(rr.Root(), "docs", "epics")
	if fi, err := os.Stat(epicsRoot); err != nil || !fi.IsDir() {
		return "", errors.New("docs/epics/ not found; cannot auto-resolve Epic")
	}
	var matches []string
	err := filepath.WalkDir(epicsRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(d.Name()) != ".md" {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		for _, line := range strings.Split(string(data), "\n") {
			m := epicPRDRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
			if m == nil || isPlaceholder(m[1]) {
				continue
			}
			if got, err := rr.Resolve(m[1]); err == nil && got == prdPath {
				matches = append(matches, relSlash(rr.Root(), p))
				break
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", errors.New("Epic could not be resolved from PRD; add '- Epic: ...' to the Issue body or set --epic")
	default:
		return "", fmt.Errorf("multiple Epics reference the same PRD; specify --epic explicitly: %s", strings.Join(matches, ", "))
	}
}

func resolveDiff(ctx context.Context, repo *gitctx.Repo, opts Options, mode DiffMode, pr int) (DiffMode, string, string, error) {
	if mode == DiffPR {
		if pr <= 0 {
			return "", "", "", errors.New("diff mode pr requires a PR number")
		}
		if opts.PRDiff == nil {
			return "", "", "", errors.New("diff mode pr requires github.repo to be configured")
		}
		text, err := opts.PRDiff(ctx, pr)
		if err != nil {
			return "", "", "", err
		}
		if strings.TrimSpace(text) == "" {
			return "", "", "", errors.New("PR diff is empty")
		}
		return DiffPR, text, strconv.Itoa(pr), nil
	}

	staged, err := repo.HasDiff(ctx, "--cached")
	if err != nil {
		return "", "", "", err
	}
	worktree, err := repo.HasDiff(ctx)
	if err != nil {
		return "", "", "", err
	}

	switch mode {
	case DiffStaged:
		if !staged {
			return "", "", "", errors.New("diff is empty (staged)")
		}
		text, err := repo.Diff(ctx, "--cached")
		return DiffStaged, text, "", err
	case DiffWorktree:
		if !worktree {
			return "", "", "", errors.New("diff is empty (worktree)")
		}
		text, err := repo.Diff(ctx)
		return DiffWorktree, text, "", err
	case DiffAuto:
		switch {
		case staged && worktree:
			return "", "", "", errors.New("both staged and worktree diffs are non-empty; set --diff-mode staged or worktree")
		case staged:
			text, err := repo.Diff(ctx, "--cached")
			return DiffStaged, text, "", err
		case worktree:
			text, err := repo.Diff(ctx)
			return DiffWorktree, text, "", err
		}
	case DiffRange:
	default:
		return "", "", "", fmt.Errorf("invalid diff mode %q (use auto|staged|worktree|range|pr)", mode)
	}

	base := opts.BaseRef
	if !repo.RefExists(ctx, base) {
		if base != DefaultBaseRef || !repo.RefExists(ctx, "main") {
			return "", "", "", fmt.Errorf("base ref not found for range diff: %s", base)
		}
		base = "main"
	}
	text, err := repo.Diff(ctx, base+"...HEAD")
	if err != nil {
		return "", "", "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", "", "", fmt.Errorf("diff is empty (range: %s...HEAD)", base)
	}
	return DiffRange, text, base, nil
}
