// SPDX-License-Identifier: AGPL-3.0-or-later

package refs

import (
	"bufio"
	"regexp"
	"strings"
)

// FindField returns the value of the first "- Key: value" (or "* Key:")
// line in body, matched case-insensitively. The value is returned trimmed
// but otherwise raw; pass it to Resolver.Resolve to canonicalize it.
func FindField(body, key string) (string, bool) {
	re := regexp.MustCompile(`(?i)^\s*[-*]\s*` + regexp.QuoteMeta(key) + `\s*:\s*(.+?)\s*$`)
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if m := re.FindStringSubmatch(strings.TrimRight(sc.Text(), "\r")); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

// FieldValues returns the values of every "- Label: value" line in text,
// where value is either backtick-quoted or bare. Labels match exactly.
func FieldValues(text, label string) []string {
	re := regexp.MustCompile("(?m)^\\s*-\\s*" + regexp.QuoteMeta(label) + "[ \\t]*:[ \\t]*(?:`([^`\\n]*)`|([^\\n]*?))[ \\t]*\\r?$")
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		v := m[1]
		if v == "" {
			v = m[2]
		}
		out = append(out, strings.TrimSpace(v))
	}
	return out
}
