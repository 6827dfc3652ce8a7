// SPDX-License-Identifier: AGPL-3.0-or-later

package mdsan

import (
	"fmt"
	"strings"
)

// StripFencedCode removes fenced blocks, opener and closer lines included.
func StripFencedCode(text string) string {
	return Remove(text, FencedSpans(text))
}

// StripIndentedCode removes every line indented by a tab or four spaces.
func StripIndentedCode(text string) string {
	return Remove(text, IndentedSpans(text))
}

// MaskInlineCode blanks inline code spans (delimiters included) with spaces.
func MaskInlineCode(text string) string {
	return Mask(text, InlineCodeSpans(text))
}

// StripHTMLComments removes genuine HTML comments from text. An unmatched
// opener outside inline code swallows the rest of the document.
func StripHTMLComments(text string) string {
	return Remove(text, HTMLCommentSpans(text))
}

// StripInlineCode removes inline code spans without honoring backslash
// escapes. Link and placeholder scans only need code content gone, and this
// matches how authors write paths in backticks.
func StripInlineCode(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	n := len(text)
	i := 0
	for i < n {
		if text[i] != '`' {
			b.WriteByte(text[i])
			i++
			continue
		}
		j := i
		for j < n && text[j] == '`' {
			j++
		}
		delim := text[i:j]
		k := strings.Index(text[j:], delim)
		if k < 0 {
			b.WriteString(delim)
			i = j
			continue
		}
		i = j + k + len(delim)
	}
	return b.String()
}

// Sanitize is the full prose-only pipeline: fenced code, then indented code,
// then HTML comments.
func Sanitize(text string) string {
	return StripHTMLComments(StripIndentedCode(StripFencedCode(text)))
}

// SanitizeKeepIndented strips fenced code and HTML comments but keeps
// indented lines. Comparing it with Sanitize shows what only indentation hid.
func SanitizeKeepIndented(text string) string {
	return StripHTMLComments(StripFencedCode(text))
}

// ContractText is the substrate for block-level contracts: fenced code,
// indented code, inline code and HTML comments all removed.
func ContractText(text string) string {
	return StripHTMLComments(StripInlineCode(StripIndentedCode(StripFencedCode(text))))
}

// Stage names one step of the pipeline.
type Stage string

const (
	StageFenced   Stage = "fenced"
	StageIndented Stage = "indented"
	StageInline   Stage = "inline"
	StageComments Stage = "comments"
	StageAll      Stage = "all"
	StageContract Stage = "contract"
)

// Stages lists the stage names accepted by Apply.
func Stages() []Stage {
	return []Stage{StageFenced, StageIndented, StageInline, StageComments, StageAll, StageContract}
}

// Apply runs a single named stage over text.
func Apply(stage Stage, text string) (string, error) {
	switch stage {
	case StageFenced:
		return StripFencedCode(text), nil
	case StageIndented:
		return StripIndentedCode(text), nil
	case StageInline:
		return MaskInlineCode(text), nil
	case StageComments:
		return StripHTMLComments(text), nil
	case StageAll:
		return Sanitize(text), nil
	case StageContract:
		return ContractText(text), nil
	default:
		return "", fmt.Errorf("unknown sanitize stage %q", stage)
	}
}
