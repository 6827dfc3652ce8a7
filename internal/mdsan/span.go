// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mdsan classifies Markdown byte ranges as code or prose and strips
// the code ranges so structural checks only ever see prose.
package mdsan

import (
	"regexp"
	"strings"
)

// Feature: MD_SANITIZE
// Spec: spec/core/sanitize.md

// Kind tags a classified byte range.
type Kind int

const (
	Prose Kind = iota
	FencedCode
	IndentedCode
	InlineCode
	HTMLComment
)

func (k Kind) String() string {
	switch k {
	case FencedCode:
		return "fenced-code"
	case IndentedCode:
		return "indented-code"
	case InlineCode:
		return "inline-code"
	case HTMLComment:
		return "html-comment"
	default:
		return "prose"
	}
}

// Span is a half-open byte range [Start, End) of the text it was computed from.
type Span struct {
	Start int
	End   int
	Kind  Kind
}

// Len returns the byte length of the span.
func (s Span) Len() int { return s.End - s.Start }

var (
	fenceOpenRe  = regexp.MustCompile("^[ \t]{0,3}(`{3,}|~{3,})")
	fenceCloseRe = regexp.MustCompile("^[ \t]{0,3}(`{3,}|~{3,})[ \t]*$")
	indentedRe   = regexp.MustCompile("^(?:\t| {4,})")
	commentRe    = regexp.MustCompile(`(?s)<!--.*?-->`)
)

// Lines splits text into lines that keep their terminating newline, so that
// joining the result reproduces the input exactly.
func Lines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func trimEOL(line string) string {
	return strings.TrimRight(line, "\r\n")
}

// FenceState tracks whether a line scanner is inside a fenced code block.
// A fence opens on a run of at least three backticks or tildes (indented by
// at most three columns) and closes on a line holding only a run of the same
// character that is at least as long as the opener.
type FenceState struct {
	char byte
	n    int
}

// InFence reports whether the scanner is currently inside a fence.
func (f *FenceState) InFence() bool { return f.n > 0 }

// Step consumes one line and reports whether it belongs to a fence,
// including the opener and closer lines themselves.
func (f *FenceState) Step(line string) bool {
	line = trimEOL(line)
	if f.n == 0 {
		m := fenceOpenRe.FindStringSubmatch(line)
		if m == nil {
			return false
		}
		f.char, f.n = m[1][0], len(m[1])
		return true
	}
	if m := fenceCloseRe.FindStringSubmatch(line); m != nil {
		if m[1][0] == f.char && len(m[1]) >= f.n {
			f.char, f.n = 0, 0
		}
	}
	return true
}

// FencedSpans returns one span per fenced block. An unclosed fence runs to the
// end of the text.
func FencedSpans(text string) []Span {
	var (
		spans []Span
		fs    FenceState
		off   int
		start = -1
	)
	for _, line := range Lines(text) {
		if fs.Step(line) {
			if start < 0 {
				start = off
			}
			off += len(line)
			if !fs.InFence() {
				spans = append(spans, Span{Start: start, End: off, Kind: FencedCode})
				start = -1
			}
			continue
		}
		off += len(line)
	}
	if start >= 0 {
		spans = append(spans, Span{Start: start, End: len(text), Kind: FencedCode})
	}
	return spans
}

// IndentedSpans returns one span per line that starts with a tab or four or
// more spaces. Fence state is ignored.
func IndentedSpans(text string) []Span {
	var spans []Span
	off := 0
	for _, line := range Lines(text) {
		if indentedRe.MatchString(line) {
			spans = append(spans, Span{Start: off, End: off + len(line), Kind: IndentedCode})
		}
		off += len(line)
	}
	return spans
}

// InlineCodeSpans returns the inline code spans of text, delimiters included.
//
// Outside a span, a backtick preceded by an odd number of backslashes is
// escaped. Inside a span backslashes are literal. A run of N backticks closes
// at the next run of exactly N; with no such run the opener is plain text and
// scanning resumes right after it.
func InlineCodeSpans(text string) []Span {
	var spans []Span
	n := len(text)
	i := 0
	for i < n {
		switch text[i] {
		case '\\':
			start := i
			for i < n && text[i] == '\\' {
				i++
			}
			if i < n && text[i] == '`' && (i-start)%2 == 1 {
				i++
			}
		case '`':
			open := i
			for i < n && text[i] == '`' {
				i++
			}
			width := i - open
			for k := i; k < n; {
				if text[k] != '`' {
					k++
					continue
				}
				run := k
				for k < n && text[k] == '`' {
					k++
				}
				if k-run == width {
					spans = append(spans, Span{Start: open, End: k, Kind: InlineCode})
					i = k
					break
				}
			}
		default:
			i++
		}
	}
	return spans
}

// HTMLCommentSpans finds comment ranges in text after inline code has been
// blanked, so a "<!--" inside a code span never opens a comment. Matched
// comments are non-greedy and may span lines.
//
// Removing matched comments can change how the remaining backticks pair up,
// so the residue is masked again before looking for an unmatched opener. Such
// an opener yields a final span running to the end of the text.
func HTMLCommentSpans(text string) []Span {
	masked := MaskInlineCode(text)
	var spans []Span
	for _, loc := range commentRe.FindAllStringIndex(masked, -1) {
		spans = append(spans, Span{Start: loc[0], End: loc[1], Kind: HTMLComment})
	}
	rest := Remove(text, spans)
	i := strings.Index(MaskInlineCode(rest), "<!--")
	if i < 0 {
		return spans
	}
	start := originalOffset(i, spans)
	// The swallowed tail absorbs any matched comment it overlaps.
	for len(spans) > 0 && spans[len(spans)-1].Start >= start {
		spans = spans[:len(spans)-1]
	}
	return append(spans, Span{Start: start, End: len(text), Kind: HTMLComment})
}

// originalOffset maps an offset in the residue left by Remove(text, removed)
// back to an offset in text.
func originalOffset(off int, removed []Span) int {
	for _, s := range removed {
		if off < s.Start {
			break
		}
		off += s.Len()
	}
	return off
}

// Remove drops every span from text and concatenates what is left.
// Spans must be sorted and must not overlap.
func Remove(text string, spans []Span) string {
	if len(spans) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, s := range spans {
		b.WriteString(text[last:s.Start])
		last = s.End
	}
	b.WriteString(text[last:])
	return b.String()
}

// Mask replaces every byte of each span with a space, preserving offsets.
func Mask(text string, spans []Span) string {
	if len(spans) == 0 {
		return text
	}
	buf := []byte(text)
	for _, s := range spans {
		for p := s.Start; p < s.End; p++ {
			buf[p] = ' '
		}
	}
	return string(buf)
}
