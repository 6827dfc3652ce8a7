package scanner

import (
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FilterOptions defines criteria for including or excluding files.
type FilterOptions struct {
	// ExcludeDirs is a list of directory names to exclude.
	// Matching is segment-aware: ".git" excludes ".git/x" and "a/.git/y",
	// but not ".github/x".
	ExcludeDirs []string

	// ExcludeGlobs are doublestar patterns matched against the repo-relative
	// slash path, e.g. "docs/archive/**" or "**/_draft-*.md".
	ExcludeGlobs []string

	// IncludeExtensions is a list of extensions to include (e.g., ".md").
	// If empty, all extensions are included.
	IncludeExtensions []string
}

// DefaultExcludeDirs returns the version-control and local-state directories
// that are never linted.
func DefaultExcludeDirs() []string {
	return []string{
		".git",
		".agentic-sdd",
	}
}

// MarkdownOptions returns the default filter for source-of-truth documents,
// extended with extra exclude globs.
func MarkdownOptions(excludeGlobs []string) FilterOptions {
	return FilterOptions{
		ExcludeDirs:       DefaultExcludeDirs(),
		ExcludeGlobs:      excludeGlobs,
		IncludeExtensions: []string{".md"},
	}
}

// ValidateGlobs reports the first malformed pattern.
func ValidateGlobs(globs []string) error {
	for _, g := range globs {
		if !doublestar.ValidatePattern(g) {
			return &BadPatternError{Pattern: g}
		}
	}
	return nil
}

// BadPatternError is returned for malformed exclude globs.
type BadPatternError struct {
	Pattern string
}

func (e *BadPatternError) Error() string {
	return "invalid exclude pattern: " + e.Pattern
}

// FilterFiles applies the filter options to a list of file paths.
// It returns a new slice of strings, sorted deterministically.
func FilterFiles(paths []string, opts FilterOptions) []string {
	if len(paths) == 0 {
		return nil
	}

	var filtered []string
	for _, p := range paths {
		if Excluded(p, opts) {
			continue
		}
		if !shouldIncludeExtension(p, opts.IncludeExtensions) {
			continue
		}
		filtered = append(filtered, p)
	}

	sort.Strings(filtered)
	return filtered
}

// Excluded reports whether a repo-relative slash path is excluded by
// directory segment or glob.
func Excluded(p string, opts FilterOptions) bool {
	return shouldExclude(p, opts.ExcludeDirs) || matchesGlob(p, opts.ExcludeGlobs)
}

// shouldExclude returns true if the path contains any of the excluded segments.
func shouldExclude(p string, excludes []string) bool {
	if len(excludes) == 0 {
		return false
	}
	for _, part := range strings.Split(p, "/") {
		for _, exclude := range excludes {
			if part == exclude {
				return true
			}
		}
	}
	return false
}

func matchesGlob(p string, globs []string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(g, p); err == nil && ok {
			return true
		}
		// A directory pattern also excludes everything below it.
		if ok, err := doublestar.Match(path.Join(g, "**"), p); err == nil && ok {
			return true
		}
	}
	return false
}

// shouldIncludeExtension returns true if length is 0 OR path matches one extension.
func shouldIncludeExtension(p string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	for _, ext := range extensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}
