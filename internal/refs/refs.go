// SPDX-License-Identifier: AGPL-3.0-or-later

// Package refs normalizes document cross-references and resolves them to
// canonical repo-relative paths. Resolution never returns a path that could
// escape the repository.
package refs

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// Feature: SOT_REFS
// Spec: spec/core/refs.md

var (
	// ErrEmpty is returned for references that normalize to nothing.
	ErrEmpty = errors.New("empty reference")
	// ErrUnsafePath is returned for traversal attempts and out-of-repo paths.
	ErrUnsafePath = errors.New("unsafe repo-relative path")
	// ErrUnsupportedURL is returned for URLs that are not a known hosted-repository shape.
	ErrUnsupportedURL = errors.New("unsupported URL reference")
	// ErrInvalidURL is returned for hosted-repository URLs missing the path part.
	ErrInvalidURL = errors.New("invalid repository URL")
)

var (
	mdLinkRe = regexp.MustCompile(`\[[^\]]*\]\(([^)]+)\)`)
	schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
)

// Normalize trims ref, unwraps one layer of Markdown link syntax, angle
// brackets, and matching quotes or backticks, then drops any fragment or
// query suffix.
func Normalize(ref string) string {
	ref = strings.TrimSpace(ref)
	if m := mdLinkRe.FindStringSubmatch(ref); m != nil {
		ref = strings.TrimSpace(m[1])
	}
	ref = unwrap(ref, "<", ">")
	for _, q := range []string{"`", `"`, "'"} {
		if next := unwrap(ref, q, q); next != ref {
			ref = next
			break
		}
	}
	return stripSuffix(ref)
}

// NormalizeLinkTarget prepares a Markdown link destination: angle brackets
// and quotes are unwrapped, an optional link title is dropped, and the
// fragment and query are cut.
func NormalizeLinkTarget(target string) string {
	t := unwrap(strings.TrimSpace(target), "<", ">")
	if next := unwrap(t, `"`, `"`); next != t {
		t = next
	} else {
		t = unwrap(t, "'", "'")
	}
	if f := strings.Fields(t); len(f) > 1 {
		t = f[0]
	}
	return stripSuffix(t)
}

func unwrap(s, open, closer string) string {
	if len(s) >= len(open)+len(closer) && strings.HasPrefix(s, open) && strings.HasSuffix(s, closer) {
		return strings.TrimSpace(s[len(open) : len(s)-len(closer)])
	}
	return s
}

func stripSuffix(s string) string {
	if i := strings.IndexAny(s, "#?"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// IsExternalOrFragment reports whether a link target is out of scope for
// repository link checks: empty, a bare fragment, a URL with a scheme, or a
// mailto link.
func IsExternalOrFragment(target string) bool {
	t := strings.TrimSpace(target)
	return t == "" ||
		strings.HasPrefix(t, "#") ||
		schemeRe.MatchString(t) ||
		strings.HasPrefix(t, "mailto:")
}

// IsSafeRepoRelative reports whether p is a non-empty relative slash path
// without any ".." segment.
func IsSafeRepoRelative(p string) bool {
	if p == "" || p == "." || p == ".." || strings.HasPrefix(p, "/") {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}

// Resolver resolves references against one repository root.
type Resolver struct {
	root string
}

// NewResolver creates a Resolver rooted at repoRoot.
func NewResolver(repoRoot string) *Resolver {
	return &Resolver{root: repoRoot}
}

// Root returns the repository root the resolver was created with.
func (r *Resolver) Root() string { return r.root }

// Resolve turns ref into a canonical repo-relative slash path.
func (r *Resolver) Resolve(ref string) (string, error) {
	ref = Normalize(ref)
	if ref == "" {
		return "", ErrEmpty
	}

	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return resolveURL(ref, u)
	}

	if filepath.IsAbs(ref) {
		rel, err := r.relFromAbs(ref)
		if err != nil {
			return "", err
		}
		return checked(rel)
	}

	rel := strings.TrimPrefix(ref, "./")
	rel = strings.ReplaceAll(strings.TrimSpace(rel), `\`, "/")
	return checked(path.Clean(rel))
}

func (r *Resolver) relFromAbs(ref string) (string, error) {
	abs, err := Realpath(ref)
	if err != nil {
		return "", err
	}
	root, err := Realpath(r.root)
	if err != nil {
		return "", err
	}
	if !Within(root, abs) || abs == root {
		return "", fmt.Errorf("%w: absolute path outside repo: %s", ErrUnsafePath, ref)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, ref)
	}
	return filepath.ToSlash(rel), nil
}

func resolveURL(ref string, u *url.URL) (string, error) {
	var parts []string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	for _, view := range []string{"blob", "tree"} {
		if i := indexOf(parts, view); i >= 0 {
			if len(parts) <= i+2 {
				return "", fmt.Errorf("%w: %s", ErrInvalidURL, ref)
			}
			return checked(strings.Join(parts[i+2:], "/"))
		}
	}
	if strings.EqualFold(u.Hostname(), "raw.githubusercontent.com") {
		// owner/repo/<ref>/path, where <ref> may be spelled refs/heads/<name>.
		skip := 3
		if len(parts) > 4 && parts[2] == "refs" && (parts[3] == "heads" || parts[3] == "tags") {
			skip = 5
		}
		if len(parts) <= skip {
			return "", fmt.Errorf("%w: %s", ErrInvalidURL, ref)
		}
		return checked(strings.Join(parts[skip:], "/"))
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedURL, ref)
}

func checked(rel string) (string, error) {
	if !IsSafeRepoRelative(rel) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, rel)
	}
	return rel, nil
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// Realpath returns the absolute path of p with symlinks resolved. Missing
// trailing components are kept as written so that non-existent targets can
// still be located relative to their real parent.
func Realpath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	var missing []string
	cur := abs
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			parts := append([]string{resolved}, missing...)
			return filepath.Join(parts...), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		missing = append([]string{filepath.Base(cur)}, missing...)
		cur = parent
	}
}

// Within reports whether target equals root or lies below it. Both must be
// cleaned absolute paths.
func Within(root, target string) bool {
	if target == root {
		return true
	}
	return strings.HasPrefix(target, strings.TrimSuffix(root, string(filepath.Separator))+string(filepath.Separator))
}
