// SPDX-License-Identifier: AGPL-3.0-or-later

package mdscan

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Block is one numbered labeled block, for example the body under a
// "candidate-3" marker line.
type Block struct {
	Family string
	Number int
	Body   string
}

// Marker returns the marker line text, for example "candidate-3".
func (b Block) Marker() string {
	return b.Family + "-" + strconv.Itoa(b.Number)
}

func markerRe(family string) *regexp.Regexp {
	return regexp.MustCompile(`^\s*` + regexp.QuoteMeta(family) + `-(\d+)\s*$`)
}

// LabeledBlocks finds every "<family>-<N>" marker line and returns the
// block bodies. A body runs until the next marker of the same family, any
// heading, a horizontal rule, or the end of text. Numbers are deduplicated
// with the first occurrence winning and come back in ascending order.
func LabeledBlocks(text, family string) []Block {
	re := markerRe(family)
	all := ScanLines(text)

	var blocks []Block
	seen := map[int]bool{}
	for i := 0; i < len(all); i++ {
		l := all[i]
		if l.Fenced {
			continue
		}
		m := re.FindStringSubmatch(l.Text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		start := end(all, i, text)
		stop := len(text)
		j := i + 1
		for ; j < len(all); j++ {
			nl := all[j]
			if nl.Fenced {
				continue
			}
			if re.MatchString(nl.Text) || headingRe.MatchString(nl.Text) || ruleRe.MatchString(nl.Text) {
				stop = nl.Offset
				break
			}
		}
		i = j - 1
		if seen[n] {
			continue
		}
		seen[n] = true
		blocks = append(blocks, Block{Family: family, Number: n, Body: text[start:stop]})
	}
	sort.SliceStable(blocks, func(a, b int) bool { return blocks[a].Number < blocks[b].Number })
	return blocks
}

// MarkerNumbers returns the unique, ascending numbers of all family markers
// in text, regardless of block boundaries.
func MarkerNumbers(text, family string) []int {
	re := markerRe(family)
	seen := map[int]bool{}
	var out []int
	for _, l := range ProseLines(text) {
		m := re.FindStringSubmatch(l.Text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// CountLines counts prose lines matching re.
func CountLines(text string, re *regexp.Regexp) int {
	n := 0
	for _, l := range ProseLines(text) {
		if re.MatchString(l.Text) {
			n++
		}
	}
	return n
}

// HasLine reports whether any prose line matches re.
func HasLine(text string, re *regexp.Regexp) bool {
	for _, l := range ProseLines(text) {
		if re.MatchString(l.Text) {
			return true
		}
	}
	return false
}

// HasLabel reports whether some prose line starts with label after leading
// whitespace.
func HasLabel(text, label string) bool {
	for _, l := range ProseLines(text) {
		if strings.HasPrefix(strings.TrimLeft(l.Text, " \t"), label) {
			return true
		}
	}
	return false
}
