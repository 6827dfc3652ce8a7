// SPDX-License-Identifier: AGPL-3.0-or-later

// Package decisions validates the decision log: the index in
// docs/decisions.md and the records under docs/decisions/ must match one to
// one, every record must carry the required sections and a well-formed
// Decision-ID, and Supersedes may only name known decisions.
package decisions

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bartekus/sddgov/internal/mdscan"
	"github.com/bartekus/sddgov/internal/sotlint"
)

// Feature: DECISION_INDEX
// Spec: spec/core/decisions.md

const (
	IndexPath    = "docs/decisions.md"
	Dir          = "docs/decisions"
	TemplatePath = Dir + "/" + sotlint.TemplateFile
)

// ErrNoIndex is returned when docs/decisions.md does not exist.
var ErrNoIndex = errors.New("index file not found")

var (
	idRe           = regexp.MustCompile(`^D-\d{4}-\d{2}-\d{2}-[A-Z][A-Z0-9_]*$`)
	entryRe        = regexp.MustCompile("^-\\s+(D-\\d{4}-\\d{2}-\\d{2}-[A-Z][A-Z0-9_]*):\\s+\\[`([^`]+)`\\]\\(([^)]+)\\)\\s*$")
	indexHeadingRe = regexp.MustCompile(`^##\s+Decision Index`)
	h2Re           = regexp.MustCompile(`^##\s+`)
	deeperRe       = regexp.MustCompile(`^#{3,}\s+`)
	idHeadingRe    = regexp.MustCompile(`^##\s+Decision-ID`)
	supersedesRe   = regexp.MustCompile(`^##\s+Supersedes`)
)

// Entry is one line of the decision index.
type Entry struct {
	ID   string
	Link string
	Line int
}

// ParseIndex reads the "## Decision Index" section. Sub-headings, blank
// lines and HTML comments are skipped; any other line must be an entry.
func ParseIndex(text string) ([]Entry, []string) {
	var entries []Entry
	var errs []string
	inIndex, found, inComment := false, false, false
	for i, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if indexHeadingRe.MatchString(line) {
			inIndex, found = true, true
			continue
		}
		if !inIndex {
			continue
		}
		if h2Re.MatchString(line) {
			break
		}
		if deeperRe.MatchString(line) {
			continue
		}
		s := strings.TrimSpace(line)
		if inComment {
			inComment = !strings.Contains(s, "-->")
			continue
		}
		if strings.HasPrefix(s, "<!--") {
			inComment = !strings.Contains(s, "-->")
			continue
		}
		if s == "" {
			continue
		}
		if m := entryRe.FindStringSubmatch(s); m != nil {
			entries = append(entries, Entry{ID: m[1], Link: m[3], Line: i + 1})
			continue
		}
		errs = append(errs, fmt.Sprintf("Invalid Decision Index line at %s:%d: %s", IndexPath, i+1, s))
	}
	if !found {
		errs = append(errs, fmt.Sprintf("Missing section '## Decision Index' in %s", IndexPath))
	}
	return entries, errs
}

// DecisionID returns the first line after "## Decision-ID" that is a
// well-formed ID, stopping at the next heading.
func DecisionID(text string) (string, bool) {
	for _, s := range sectionLines(text, idHeadingRe) {
		if idRe.MatchString(s) {
			return s, true
		}
	}
	return "", false
}

// Supersedes returns the IDs listed under "## Supersedes" and the entries
// that are not comma-separated lists of IDs. "N/A" means none.
func Supersedes(text string) (ids, invalid []string) {
	for _, s := range sectionLines(text, supersedesRe) {
		if s == "- N/A" || s == "N/A" {
			continue
		}
		payload := s
		if strings.HasPrefix(payload, "-") {
			payload = strings.TrimSpace(payload[1:])
		}
		var tokens []string
		for _, tok := range strings.Split(payload, ",") {
			if tok = strings.TrimSpace(tok); tok != "" {
				tokens = append(tokens, tok)
			}
		}
		ok := len(tokens) > 0
		for _, tok := range tokens {
			ok = ok && idRe.MatchString(tok)
		}
		if !ok {
			invalid = append(invalid, s)
			continue
		}
		ids = append(ids, tokens...)
	}
	return ids, invalid
}

// sectionLines returns the trimmed, non-blank prose lines after the first
// heading matching re, up to the next heading.
func sectionLines(text string, re *regexp.Regexp) []string {
	var out []string
	in := false
	for _, l := range mdscan.ProseLines(text) {
		line := strings.TrimRight(l.Text, "\r\n")
		if !in {
			in = re.MatchString(line)
			continue
		}
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		if strings.HasPrefix(s, "#") {
			break
		}
		out = append(out, s)
	}
	return out
}

type body struct {
	name string
	text string
	id   string
}

// Validate checks the decision log of the repository at repoRoot and
// returns every problem found. Only a missing index file is an error.
func Validate(repoRoot string) ([]string, error) {
	indexText, err := readText(filepath.Join(repoRoot, filepath.FromSlash(IndexPath)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoIndex, IndexPath)
	}
	if err != nil {
		return nil, err
	}
	entries, errs := ParseIndex(indexText)
	if len(errs) > 0 {
		return errs, nil
	}

	bodies, err := loadBodies(repoRoot)
	if err != nil {
		return nil, err
	}

	tmpl, err := readText(filepath.Join(repoRoot, filepath.FromSlash(TemplatePath)))
	switch {
	case errors.Is(err, os.ErrNotExist):
		errs = append(errs, TemplatePath+": missing template file")
	case err != nil:
		return nil, err
	default:
		for _, s := range sotlint.MissingSections(tmpl, sotlint.DecisionSections) {
			errs = append(errs, fmt.Sprintf("%s: missing required section '## %s'", TemplatePath, s))
		}
	}

	known := map[string]string{}
	byPath := map[string]*body{}
	for _, b := range bodies {
		byPath[Dir+"/"+b.name] = b
		id, ok := DecisionID(b.text)
		if !ok {
			errs = append(errs, fmt.Sprintf("%s/%s: missing or invalid Decision-ID value (expected format: D-YYYY-MM-DD-UPPER_SNAKE)", Dir, b.name))
			continue
		}
		b.id = id
		if prev, dup := known[id]; dup {
			errs = append(errs, fmt.Sprintf("Duplicate Decision-ID in body files: %s (%s/%s and %s/%s)", id, Dir, prev, Dir, b.name))
			continue
		}
		known[id] = b.name
	}

	counts := map[string]int{}
	var order []string
	for _, e := range entries {
		if counts[e.ID] == 0 {
			order = append(order, e.ID)
		}
		counts[e.ID]++
	}
	for _, id := range order {
		if n := counts[id]; n > 1 {
			errs = append(errs, fmt.Sprintf("Duplicate index entry: %s (appears %d times)", id, n))
		}
	}

	indexed := map[string]bool{}
	for _, e := range entries {
		errs = append(errs, checkEntry(repoRoot, e, byPath, indexed)...)
	}

	for _, b := range bodies {
		if !indexed[Dir+"/"+b.name] {
			errs = append(errs, fmt.Sprintf("Body file not in index: %s/%s (add it to %s ## Decision Index)", Dir, b.name, IndexPath))
		}
	}
	for _, b := range bodies {
		for _, s := range sotlint.MissingSections(b.text, sotlint.DecisionSections) {
			errs = append(errs, fmt.Sprintf("%s/%s: missing required section '## %s' (see %s)", Dir, b.name, s, sotlint.TemplateFile))
		}
	}
	for _, b := range bodies {
		ids, invalid := Supersedes(b.text)
		for _, s := range invalid {
			errs = append(errs, fmt.Sprintf("%s/%s: invalid Supersedes entry '%s' (use D-YYYY-MM-DD-UPPER_SNAKE Decision-IDs)", Dir, b.name, s))
		}
		for _, id := range ids {
			if _, ok := known[id]; !ok {
				errs = append(errs, fmt.Sprintf("%s/%s: Supersedes references non-existent Decision-ID '%s'", Dir, b.name, id))
			}
		}
	}
	return errs, nil
}

func checkEntry(repoRoot string, e Entry, byPath map[string]*body, indexed map[string]bool) []string {
	if !strings.HasPrefix(e.Link, "./") {
		return []string{fmt.Sprintf("Invalid index link path: %s (Decision-ID: %s) must start with './decisions/'", e.Link, e.ID)}
	}
	raw := "docs/" + e.Link[2:]
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == '/' })
	for _, p := range parts {
		if p == ".." {
			return []string{fmt.Sprintf("Invalid index link path traversal: %s (Decision-ID: %s)", e.Link, e.ID)}
		}
	}
	if len(parts) < 3 || parts[0] != "docs" || parts[1] != "decisions" {
		return []string{fmt.Sprintf("Index link must point to %s/*.md: %s (Decision-ID: %s)", Dir, e.Link, e.ID)}
	}
	rel := path.Join(parts...)
	indexed[rel] = true

	if _, err := os.Stat(filepath.Join(repoRoot, filepath.FromSlash(rel))); err != nil {
		return []string{fmt.Sprintf("Index references missing file: %s (Decision-ID: %s)", e.Link, e.ID)}
	}
	b, ok := byPath[rel]
	if !ok {
		return []string{fmt.Sprintf("Index references unmanaged file: %s (Decision-ID: %s)", e.Link, e.ID)}
	}
	if b.id != "" && b.id != e.ID {
		return []string{fmt.Sprintf("Index/body Decision-ID mismatch: index has '%s' but %s has '%s'", e.ID, rel, b.id)}
	}
	return nil
}

// loadBodies reads docs/decisions/*.md, excluding the template and README,
// in name order.
func loadBodies(repoRoot string) ([]*body, error) {
	dir := filepath.Join(repoRoot, filepath.FromSlash(Dir))
	ents, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []*body
	for _, e := range ents {
		name := e.Name()
		if !e.Type().IsRegular() || path.Ext(name) != ".md" || name == sotlint.TemplateFile || name == sotlint.ReadmeFile {
			continue
		}
		text, err := readText(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, &body{name: name, text: text})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

func readText(p string) (string, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("reading %s: %w", p, sotlint.ErrInvalidUTF8)
	}
	return string(data), nil
}
