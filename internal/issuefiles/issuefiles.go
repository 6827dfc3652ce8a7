// Package issuefiles extracts the declared change-target paths from an
// issue body.
package issuefiles

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/bartekus/sddgov/internal/refs"
)

// Feature: ISSUE_CHANGE_TARGETS
// Spec: spec/core/issues.md

// Mode selects which lines are scanned.
type Mode string

const (
	// ModeSection scans only the "Change targets" section.
	ModeSection Mode = "section"
	// ModeAnywhere scans the whole body.
	ModeAnywhere Mode = "anywhere"
)

var (
	// ErrNoSection is returned in section mode when the body has no
	// "Change targets" heading.
	ErrNoSection = errors.New("missing required section 'Change targets' (cannot determine change targets deterministically)")
	// ErrEmpty is returned when no path was found and empty results are
	// not allowed.
	ErrEmpty = errors.New("no change-target files found; fill 'Change targets' with repo-relative paths")
)

var (
	headingRe = regexp.MustCompile(`^(#{2,6})\s*(Change\s+targets?.*?)\s*$`)
	anyHeadRe = regexp.MustCompile(`^(#{1,6})\s+`)
	backtick  = regexp.MustCompile("`([^`]+)`")
	// Fallback for lines without backticks: a lone bullet path with at
	// least one directory component.
	bulletPathRe = regexp.MustCompile(`^\s*[-*]\s*(?:\[[ xX]\]\s*)?((?:[A-Za-z0-9._-]+/)+[A-Za-z0-9._-]+)\s*$`)
)

// Options control Extract.
type Options struct {
	Mode       Mode
	AllowEmpty bool
}

func splitLines(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	lines := strings.Split(body, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// SectionLines returns the lines under the first "Change targets" heading,
// up to the next heading of the same or a higher level. Without such a
// heading it returns all lines and false.
func SectionLines(body string) ([]string, bool) {
	lines := splitLines(body)
	for i, line := range lines {
		m := headingRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		level := len(m[1])
		end := len(lines)
		for j := i + 1; j < len(lines); j++ {
			if h := anyHeadRe.FindStringSubmatch(lines[j]); h != nil && len(h[1]) <= level {
				end = j
				break
			}
		}
		return lines[i+1 : end], true
	}
	return lines, false
}

// Paths resolves backticked references and bare bullet paths in lines to
// repo-relative paths, sorted and unique. Unresolvable entries are skipped.
func Paths(r *refs.Resolver, lines []string) []string {
	seen := map[string]bool{}
	add := func(raw string) {
		if p, err := r.Resolve(raw); err == nil {
			seen[p] = true
		}
	}
	for _, line := range lines {
		for _, m := range backtick.FindAllStringSubmatch(line, -1) {
			add(m[1])
		}
		if strings.Contains(line, "`") {
			continue
		}
		if m := bulletPathRe.FindStringSubmatch(line); m != nil {
			add(m[1])
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Extract returns the change targets declared in body.
func Extract(r *refs.Resolver, body string, opts Options) ([]string, error) {
	lines, found := SectionLines(body)
	if opts.Mode != ModeAnywhere && !found {
		return nil, ErrNoSection
	}
	if opts.Mode == ModeAnywhere {
		lines = splitLines(body)
	}
	paths := Paths(r, lines)
	if len(paths) == 0 && !opts.AllowEmpty {
		return nil, ErrEmpty
	}
	return paths, nil
}
