// SPDX-License-Identifier: AGPL-3.0-or-later

package mdscan

import (
	"regexp"
	"strings"
)

var alignRowRe = regexp.MustCompile(`^\|\s*[-:| ]+\|?\s*$`)

// TableCells splits a pipe-delimited row into trimmed cells. The leading pipe
// and an optional trailing pipe are dropped.
func TableCells(row string) []string {
	s := strings.TrimSpace(row)
	s = strings.TrimPrefix(s, "|")
	s = strings.TrimSuffix(s, "|")
	cells := strings.Split(s, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

// CountTableRows finds the first table whose header row contains every
// required column and counts its data rows. Alignment rows and rows whose
// cell count differs from the header are skipped. It returns -1 when no such
// header exists.
func CountTableRows(section string, required []string) int {
	lines := ProseLines(section)
	for i, l := range lines {
		s := strings.TrimSpace(l.Text)
		if !strings.HasPrefix(s, "|") {
			continue
		}
		header := TableCells(s)
		if !containsAll(header, required) {
			continue
		}
		count := 0
		for _, r := range lines[i+1:] {
			t := strings.TrimSpace(r.Text)
			if !strings.HasPrefix(t, "|") {
				break
			}
			if alignRowRe.MatchString(t) {
				continue
			}
			if len(TableCells(t)) != len(header) {
				continue
			}
			count++
		}
		return count
	}
	return -1
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !contains(have, w) {
			return false
		}
	}
	return true
}
