// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mdscan slices Markdown into level-2 sections, numbered labeled
// blocks, labeled field blocks and pipe tables. Every scanner skips fenced
// regions on its own so example code never yields headings or markers, even
// when the caller passes text that was not fully sanitized.
package mdscan

import (
	"strings"

	"github.com/bartekus/sddgov/internal/mdsan"
)

// Feature: MD_EXTRACT
// Spec: spec/core/extract.md

// Line is one line of a document with its 1-based number and byte offset.
// Text carries no line terminator.
type Line struct {
	No     int
	Offset int
	Text   string
	// Fenced is true for fence opener, body and closer lines.
	Fenced bool
}

// ScanLines splits text into lines and marks the fenced ones.
func ScanLines(text string) []Line {
	raw := mdsan.Lines(text)
	out := make([]Line, 0, len(raw))
	var fs mdsan.FenceState
	off := 0
	for i, l := range raw {
		out = append(out, Line{
			No:     i + 1,
			Offset: off,
			Text:   strings.TrimRight(l, "\r\n"),
			Fenced: fs.Step(l),
		})
		off += len(l)
	}
	return out
}

// ProseLines returns only the lines outside fenced code.
func ProseLines(text string) []Line {
	all := ScanLines(text)
	out := all[:0]
	for _, l := range all {
		if !l.Fenced {
			out = append(out, l)
		}
	}
	return out
}

// end returns the byte offset just past line i of all, or len(text).
func end(all []Line, i int, text string) int {
	if i+1 < len(all) {
		return all[i+1].Offset
	}
	return len(text)
}
