// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sotbundle assembles the source-of-truth context handed to a
// reviewer: the issue, wide excerpts of the PRD and Epic it references,
// extra files and free text, optionally truncated to a character budget.
package sotbundle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bartekus/sddgov/internal/issues"
	"github.com/bartekus/sddgov/internal/mdscan"
	"github.com/bartekus/sddgov/internal/refs"
)

// Feature: SOT_BUNDLE
// Spec: spec/core/sot-bundle.md

const (
	// TruncationMarker separates the kept head from the kept tail.
	TruncationMarker = "\n\n[TRUNCATED]\n\n"
	// TailChars is how much of the end of a bundle survives truncation.
	TailChars = 2048
)

// ErrPlaceholder is returned when an issue names a PRD or Epic but leaves
// the value empty or as a comment placeholder.
var ErrPlaceholder = errors.New("reference present but empty/placeholder")

var numberedRe = regexp.MustCompile(`^##\s+[1-8]\.`)

// Input is everything a bundle is built from. ExtraFiles are references
// resolved against the repository.
type Input struct {
	Issue      *issues.Issue
	ManualSoT  string
	ExtraFiles []string
	MaxChars   int
}

// Build renders the bundle.
func Build(r *refs.Resolver, in Input) (string, error) {
	var b strings.Builder

	if is := in.Issue; is != nil {
		b.WriteString("== Issue ==\n")
		if is.Number > 0 {
			fmt.Fprintf(&b, "Number: %s\n", strconv.Itoa(is.Number))
		}
		if is.URL != "" {
			fmt.Fprintf(&b, "URL: %s\n", is.URL)
		}
		if is.Title != "" {
			fmt.Fprintf(&b, "Title: %s\n", is.Title)
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(is.Body, " \t\r\n") + "\n\n")

		for _, key := range []string{"PRD", "Epic"} {
			ref, ok := refs.FindField(is.Body, key)
			if !ok {
				continue
			}
			rel, text, err := readReferenced(r, key, ref)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "== %s (wide excerpt) ==\n", key)
			fmt.Fprintf(&b, "Path: %s\n\n", rel)
			b.WriteString(WideExcerpt(text) + "\n")
		}
	}

	for _, raw := range in.ExtraFiles {
		rel, err := r.Resolve(raw)
		if err != nil {
			return "", err
		}
		text, err := readFile(r.Root(), rel)
		if err != nil {
			return "", fmt.Errorf("SoT file not found: %s", rel)
		}
		b.WriteString("== Extra SoT File ==\n")
		fmt.Fprintf(&b, "Path: %s\n\n", rel)
		b.WriteString(strings.TrimRight(text, " \t\r\n") + "\n\n")
	}

	if strings.TrimSpace(in.ManualSoT) != "" {
		b.WriteString("== Manual SoT ==\n")
		b.WriteString(strings.TrimRight(in.ManualSoT, " \t\r\n") + "\n")
	}

	out := strings.TrimRight(b.String(), " \t\r\n") + "\n"
	return TruncateKeepTail(out, in.MaxChars, TailChars), nil
}

func readReferenced(r *refs.Resolver, key, ref string) (string, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.Contains(ref, "<!--") {
		return "", "", fmt.Errorf("%s %w: %s", key, ErrPlaceholder, ref)
	}
	rel, err := r.Resolve(ref)
	if err != nil {
		return "", "", fmt.Errorf("%s reference %q: %w", key, ref, err)
	}
	text, err := readFile(r.Root(), rel)
	if err != nil {
		return "", "", fmt.Errorf("%s file not found: %s (from: %s)", key, rel, ref)
	}
	return rel, text, nil
}

func readFile(root, rel string) (string, error) {
	p := filepath.Join(root, filepath.FromSlash(rel))
	if fi, err := os.Stat(p); err != nil || !fi.Mode().IsRegular() {
		return "", os.ErrNotExist
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: invalid UTF-8", rel)
	}
	return string(data), nil
}

type section struct {
	title string
	body  string
}

// splitSections cuts text at "## " lines outside fenced code. The text
// before the first such line is returned separately.
func splitSections(text string) (string, []section) {
	lines := mdscan.ScanLines(text)
	var pre string
	var out []section
	start := -1
	for i, l := range lines {
		if l.Fenced || !strings.HasPrefix(l.Text, "## ") {
			continue
		}
		if start < 0 {
			pre = text[:l.Offset]
		} else {
			out[len(out)-1].body = text[start:l.Offset]
		}
		out = append(out, section{title: lines[i].Text})
		start = l.Offset
	}
	if start < 0 {
		return text, nil
	}
	out[len(out)-1].body = text[start:]
	return pre, out
}

// WideExcerpt keeps the preamble, the first level-2 section and the
// sections numbered 1. to 8.
func WideExcerpt(text string) string {
	pre, sections := splitSections(text)
	var b strings.Builder
	if strings.TrimSpace(pre) != "" {
		b.WriteString(strings.TrimRight(pre, " \t\r\n") + "\n\n")
	}
	for i, s := range sections {
		if i == 0 || numberedRe.MatchString(s.title) {
			b.WriteString(strings.TrimRight(s.body, " \t\r\n") + "\n\n")
		}
	}
	return strings.TrimRight(b.String(), " \t\r\n") + "\n"
}

// TruncateKeepTail shortens text to at most maxChars characters, keeping
// the head and up to tailChars of the tail around TruncationMarker. Cuts
// fall on line boundaries where possible and the result ends in a newline.
// maxChars <= 0 means no limit.
func TruncateKeepTail(text string, maxChars, tailChars int) string {
	rs := []rune(text)
	if maxChars <= 0 || len(rs) <= maxChars {
		return text
	}
	marker := []rune(TruncationMarker)
	if maxChars <= len(marker) {
		out := append([]rune{}, marker[:maxChars]...)
		if out[len(out)-1] != '\n' {
			out[len(out)-1] = '\n'
		}
		return string(out)
	}

	budget := maxChars - len(marker)
	tailLen := min(tailChars, budget)
	headLen := budget - tailLen

	head := rs[:headLen]
	if nl := lastIndex(head, '\n'); nl > 0 {
		head = head[:nl+1]
	}
	var tail []rune
	if tailLen > 0 {
		tailStart := len(rs) - tailLen
		tail = rs[tailStart:]
		if nl := indexFrom(rs, '\n', tailStart); nl >= 0 && nl+1 < len(rs) {
			tail = rs[nl+1:]
		}
	}

	out := make([]rune, 0, maxChars)
	out = append(out, head...)
	out = append(out, marker...)
	out = append(out, tail...)

	if out[len(out)-1] != '\n' {
		if len(out) < maxChars {
			out = append(out, '\n')
		} else {
			out[len(out)-1] = '\n'
		}
	}
	if len(out) > maxChars {
		out = out[:maxChars]
		if out[len(out)-1] != '\n' {
			out[len(out)-1] = '\n'
		}
	}
	return string(out)
}

func lastIndex(rs []rune, r rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == r {
			return i
		}
	}
	return -1
}

func indexFrom(rs []rune, r rune, from int) int {
	for i := from; i < len(rs); i++ {
		if rs[i] == r {
			return i
		}
	}
	return -1
}
