// SPDX-License-Identifier: AGPL-3.0-or-later

package sotlint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/bartekus/sddgov/internal/logger"
	"github.com/bartekus/sddgov/internal/refs"
	"github.com/bartekus/sddgov/internal/scanner"
)

// ErrInvalidUTF8 marks a document that cannot be decoded. It aborts the run.
var ErrInvalidUTF8 = errors.New("invalid UTF-8")

// DefaultWorkers bounds concurrent per-file checks.
const DefaultWorkers = 4

// Options configures a Linter.
type Options struct {
	// Rules defaults to DefaultRules.
	Rules []Rule
	// Workers bounds concurrent file checks. Values below 1 mean DefaultWorkers.
	Workers int
	// Exclude holds doublestar globs on repo-relative paths.
	Exclude []string
	// Tracked restricts discovery to files tracked by git.
	Tracked bool
}

// Linter walks lint roots and runs every rule on every Markdown document.
type Linter struct {
	env     *Env
	rules   []Rule
	workers int
	filter  scanner.FilterOptions
	tracked *scanner.Scanner
}

// New creates a Linter for the repository at repoRoot.
func New(repoRoot string, opts Options) (*Linter, error) {
	env, err := NewEnv(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving repo root: %w", err)
	}
	if err := scanner.ValidateGlobs(opts.Exclude); err != nil {
		return nil, err
	}
	l := &Linter{
		env:     env,
		rules:   opts.Rules,
		workers: opts.Workers,
		filter:  scanner.MarkdownOptions(opts.Exclude),
	}
	if len(l.rules) == 0 {
		l.rules = DefaultRules()
	}
	if l.workers < 1 {
		l.workers = DefaultWorkers
	}
	if opts.Tracked {
		l.tracked = scanner.New(env.RepoRoot)
	}
	return l, nil
}

// Env returns the environment rules run against.
func (l *Linter) Env() *Env { return l.env }

// LintDocument runs all rules on a single document.
func (l *Linter) LintDocument(doc Document) []Finding {
	return CheckDocument(l.env, l.rules, doc)
}

// Lint checks every root in order. Invalid roots become findings. Files
// are checked concurrently but findings are reported in sorted path order,
// and within a file in rule order. A fatal error discards all findings.
func (l *Linter) Lint(ctx context.Context, roots []string) ([]Finding, error) {
	var out []Finding
	for _, root := range roots {
		files, rootFindings, err := l.collect(ctx, root)
		if err != nil {
			return nil, err
		}
		out = append(out, rootFindings...)
		if len(files) == 0 {
			continue
		}
		findings, err := l.lintFiles(ctx, files)
		if err != nil {
			return nil, err
		}
		out = append(out, findings...)
	}
	return out, nil
}

func (l *Linter) collect(ctx context.Context, root string) ([]string, []Finding, error) {
	clean, ok := CleanRoot(root)
	if !ok {
		return nil, []Finding{{Path: root, Message: "Root path must be repo-relative (no abs path, no '..')"}}, nil
	}
	abs, err := refs.Realpath(filepath.Join(l.env.RepoRoot, filepath.FromSlash(clean)))
	if err != nil || !refs.Within(l.env.RepoRoot, abs) {
		return nil, []Finding{{Path: root, Message: "Root path resolves outside repo"}}, nil
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, []Finding{{Path: root, Message: "Path does not exist"}}, nil
	}

	var files []string
	if l.tracked != nil {
		files, err = l.tracked.TrackedMarkdownFiles(ctx, clean, l.filter.ExcludeGlobs)
	} else {
		files, err = scanner.Walk(l.env.RepoRoot, clean, l.filter)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("listing %s: %w", root, err)
	}
	logger.Debug("lint root %s: %d markdown files", clean, len(files))
	return files, nil, nil
}

func (l *Linter) lintFiles(ctx context.Context, files []string) ([]Finding, error) {
	results := make([][]Finding, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, rel := range files {
		i, rel := i, rel
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := ReadDocument(l.env.RepoRoot, rel)
			if err != nil {
				return err
			}
			results[i] = l.LintDocument(doc)
			logger.Debug("linted %s: %d findings", rel, len(results[i]))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []Finding
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// ReadDocument loads a repo-relative Markdown file as a Document.
func ReadDocument(repoRoot, rel string) (Document, error) {
	data, err := os.ReadFile(filepath.Join(repoRoot, filepath.FromSlash(rel)))
	if err != nil {
		return Document{}, fmt.Errorf("reading %s: %w", rel, err)
	}
	if !utf8.Valid(data) {
		return Document{}, fmt.Errorf("reading %s: %w", rel, ErrInvalidUTF8)
	}
	return Document{Path: rel, Text: string(data)}, nil
}

// CleanRoot normalizes a lint root and reports whether it is a safe
// repo-relative path.
func CleanRoot(root string) (string, bool) {
	if root == "" || filepath.IsAbs(root) {
		return "", false
	}
	p := strings.TrimSpace(strings.ReplaceAll(root, `\`, "/"))
	p = strings.TrimPrefix(p, "./")
	if p == "." || p == ".." || strings.HasPrefix(p, "/") {
		return "", false
	}
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "":
		case "..":
			return "", false
		default:
			parts = append(parts, seg)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "/"), true
}
