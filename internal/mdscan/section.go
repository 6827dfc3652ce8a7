// SPDX-License-Identifier: AGPL-3.0-or-later

package mdscan

import (
	"regexp"
	"strings"
)

var (
	// H2Re matches any level-2 heading line.
	H2Re = regexp.MustCompile(`^\s*##\s+`)

	headingRe = regexp.MustCompile(`^\s*#{1,6}\s`)
	ruleRe    = regexp.MustCompile(`^\s*---\s*$`)
)

// Section is a level-2 heading and the text that follows it up to the next
// level-2 heading. Start and End are byte offsets of the whole section,
// heading line included.
type Section struct {
	Title string
	Body  string
	Start int
	End   int
}

// Sections partitions text into contiguous level-2 sections. The first
// element is a synthetic pre-heading section with an empty Title, present
// even when it is empty. Heading lines inside fences do not start sections.
func Sections(text string) []Section {
	all := ScanLines(text)
	out := []Section{{Start: 0}}
	cur := &out[0]
	bodyStart := 0
	for i, l := range all {
		if l.Fenced || !H2Re.MatchString(l.Text) {
			continue
		}
		cur.End = l.Offset
		cur.Body = text[bodyStart:l.Offset]
		bodyStart = end(all, i, text)
		out = append(out, Section{
			Title: strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(l.Text), "#")),
			Start: l.Offset,
		})
		cur = &out[len(out)-1]
	}
	cur.End = len(text)
	cur.Body = text[bodyStart:]
	return out
}

// FindSection returns the body following the first line matching heading,
// up to the next level-2 heading or end of text.
func FindSection(text string, heading *regexp.Regexp) (string, bool) {
	all := ScanLines(text)
	for i, l := range all {
		if l.Fenced || !heading.MatchString(l.Text) {
			continue
		}
		start := end(all, i, text)
		for _, next := range all[i+1:] {
			if !next.Fenced && H2Re.MatchString(next.Text) {
				return text[start:next.Offset], true
			}
		}
		return text[start:], true
	}
	return "", false
}

// SectionBody is FindSection without the found flag.
func SectionBody(text string, heading *regexp.Regexp) string {
	body, _ := FindSection(text, heading)
	return body
}

// FieldBlock collects the lines after the first line equal to startLabel
// (after trimming) until a line equal to one of endLabels or the end.
func FieldBlock(section, startLabel string, endLabels ...string) string {
	var out []string
	in := false
	for _, l := range ScanLines(section) {
		s := strings.TrimSpace(l.Text)
		if !in {
			if s == startLabel {
				in = true
			}
			continue
		}
		if contains(endLabels, s) {
			break
		}
		out = append(out, l.Text)
	}
	return strings.Join(out, "\n")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
