// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sotlint is the source-of-truth contract validator: independent
// rules over sanitized Markdown, and a Linter that walks lint roots, runs
// every rule per document and aggregates findings in a stable order.
package sotlint

import (
	"fmt"
	"io"
	"path"
	"strings"
)

// Feature: SOT_LINT
// Spec: spec/core/lint.md

// Finding is one blocking contract violation.
type Finding struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("- %s: %s", f.Path, f.Message)
}

// Document is a repo-relative slash path and its raw UTF-8 text.
type Document struct {
	Path string
	Text string
}

// Base returns the final path element.
func (d Document) Base() string { return path.Base(d.Path) }

func finding(doc Document, format string, args ...any) Finding {
	return Finding{Path: doc.Path, Message: fmt.Sprintf(format, args...)}
}

// WriteReport prints the lint verdict. Findings go to w one per line after a
// BLOCKED banner, followed by next actions.
func WriteReport(w io.Writer, findings []Finding) {
	if len(findings) == 0 {
		_, _ = fmt.Fprintln(w, "[lint-sot] OK")
		return
	}
	var b strings.Builder
	b.WriteString("[lint-sot] BLOCKED\n")
	for _, f := range findings {
		b.WriteString(f.String())
		b.WriteByte('\n')
	}
	b.WriteString("\nNext actions:\n")
	b.WriteString("- Remove placeholders in Approved PRD/Epic, or change status to Draft/Review\n")
	b.WriteString("- Fix broken relative links (or switch to an https:// URL)\n")
	_, _ = io.WriteString(w, b.String())
}
