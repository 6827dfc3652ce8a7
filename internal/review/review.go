// Package review validates review.json, the structured outcome of a code
// review. Validation collects every problem instead of stopping at the first.
package review

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bartekus/sddgov/internal/projection"
	"github.com/bartekus/sddgov/internal/refs"
)

// Feature: REVIEW_RECORD
// Spec: spec/gates/review.md

const (
	SchemaVersion = 3
	MaxTitleLen   = 120

	StatusApproved     = "Approved"
	StatusApprovedNits = "Approved with nits"
	StatusBlocked      = "Blocked"
	StatusQuestion     = "Question"
)

var (
	// Statuses is the closed set of review outcomes, sorted.
	Statuses = []string{StatusApproved, StatusApprovedNits, StatusBlocked, StatusQuestion}
	// Priorities is the closed set of finding priorities.
	Priorities = []string{"P0", "P1", "P2", "P3"}

	// ErrInvalidJSON is returned when the file is not a JSON object.
	ErrInvalidJSON = errors.New("invalid JSON")

	topKeys      = []string{"findings", "overall_explanation", "questions", "schema_version", "scope_id", "status"}
	findingKeys  = []string{"body", "code_location", "priority", "title"}
	locationKeys = []string{"line_range", "repo_relative_path"}
	rangeKeys    = []string{"end", "start"}
)

// ValidationError lists every schema violation found in one document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("review.json validation failed:")
	for _, p := range e.Problems {
		b.WriteString("\n- ")
		b.WriteString(p)
	}
	return b.String()
}

// Validate checks a decoded review object. expectedScope is compared with
// scope_id when non-empty.
func Validate(obj map[string]any, expectedScope string) []string {
	var errs []string
	add := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }

	if missing := missingKeys(obj, topKeys); len(missing) > 0 {
		add("missing keys: %s", strings.Join(missing, ", "))
		return errs
	}
	if extra := extraKeys(obj, topKeys); len(extra) > 0 {
		add("unexpected keys: %s", strings.Join(extra, ", "))
	}

	if v, ok := intOf(obj["schema_version"]); !ok || v != SchemaVersion {
		add("schema_version must be %d", SchemaVersion)
	}

	scope, ok := obj["scope_id"].(string)
	switch {
	case !ok || scope == "":
		add("scope_id must be a non-empty string")
	case expectedScope != "" && scope != expectedScope:
		add("scope_id mismatch: expected %s, got %s", expectedScope, scope)
	}

	status, _ := obj["status"].(string)
	if !contains(Statuses, status) {
		add("status must be one of %s", strings.Join(Statuses, ", "))
	}

	findings, ok := obj["findings"].([]any)
	if !ok {
		add("findings must be an array")
		findings = nil
	}

	questions, ok := obj["questions"].([]any)
	if !ok || !allStrings(questions) {
		add("questions must be an array of strings")
		questions = nil
	}

	if s, ok := obj["overall_explanation"].(string); !ok || s == "" {
		add("overall_explanation must be a non-empty string")
	}

	for i, item := range findings {
		errs = append(errs, validateFinding(i, item)...)
	}

	blocking := 0
	for _, f := range findings {
		if m, ok := f.(map[string]any); ok {
			if p, _ := m["priority"].(string); p == "P0" || p == "P1" {
				blocking++
			}
		}
	}
	switch status {
	case StatusApproved:
		if len(findings) != 0 {
			add("Approved must have findings=[]")
		}
		if len(questions) != 0 {
			add("Approved must have questions=[]")
		}
	case StatusApprovedNits:
		if blocking > 0 {
			add("Approved with nits must not include P0/P1 findings")
		}
		if len(questions) != 0 {
			add("Approved with nits must have questions=[]")
		}
	case StatusBlocked:
		if blocking == 0 {
			add("Blocked must include at least one P0/P1 finding")
		}
	case StatusQuestion:
		if len(questions) == 0 {
			add("Question must include at least one question")
		}
	}
	return errs
}

func validateFinding(idx int, item any) []string {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("findings[%d]", idx)+fmt.Sprintf(format, args...))
	}

	f, ok := item.(map[string]any)
	if !ok {
		add(" is not an object")
		return errs
	}
	for _, k := range missingKeys(f, findingKeys) {
		add(" missing key: %s", k)
	}
	if extra := extraKeys(f, findingKeys); len(extra) > 0 {
		add(" unexpected keys: %s", strings.Join(extra, ", "))
	}

	title, ok := f["title"].(string)
	switch {
	case !ok || title == "":
		add(".title must be a non-empty string")
	case len([]rune(title)) > MaxTitleLen:
		add(".title must be <= %d chars", MaxTitleLen)
	}
	if body, ok := f["body"].(string); !ok || body == "" {
		add(".body must be a non-empty string")
	}
	if p, _ := f["priority"].(string); !contains(Priorities, p) {
		add(".priority must be one of %s", strings.Join(Priorities, ", "))
	}

	loc, ok := f["code_location"].(map[string]any)
	if !ok {
		add(".code_location must be an object")
		return errs
	}
	if missing := missingKeys(loc, locationKeys); len(missing) > 0 {
		add(".code_location missing keys: %s", strings.Join(missing, ", "))
	}
	if extra := extraKeys(loc, locationKeys); len(extra) > 0 {
		add(".code_location unexpected keys: %s", strings.Join(extra, ", "))
	}
	if p, ok := loc["repo_relative_path"].(string); !ok || !refs.IsSafeRepoRelative(p) {
		add(".code_location.repo_relative_path must be repo-relative (no '..', not absolute)")
	}

	lr, ok := loc["line_range"].(map[string]any)
	if !ok {
		add(".code_location.line_range must be an object")
		return errs
	}
	if missing := missingKeys(lr, rangeKeys); len(missing) > 0 {
		add(".code_location.line_range missing keys: %s", strings.Join(missing, ", "))
	}
	if extra := extraKeys(lr, rangeKeys); len(extra) > 0 {
		add(".code_location.line_range unexpected keys: %s", strings.Join(extra, ", "))
	}
	start, startOK := intOf(lr["start"])
	end, endOK := intOf(lr["end"])
	if !startOK || start < 1 {
		add(".code_location.line_range.start must be int >= 1")
	}
	if !endOK || end < 1 {
		add(".code_location.line_range.end must be int >= 1")
	}
	if startOK && endOK && end < start {
		add(".code_location.line_range.end must be >= start")
	}
	return errs
}

// ValidateFile reads and validates path. With format set, a valid file is
// rewritten with two-space indentation, keeping key order.
func ValidateFile(path, expectedScope string, format bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("file not found: %s", path)
	}
	obj, err := decode(data)
	if err != nil {
		return err
	}
	if problems := Validate(obj, strings.TrimSpace(expectedScope)); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	if !format {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(data), "", "  "); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	buf.WriteByte('\n')
	return projection.AtomicWrite(path, buf.Bytes())
}

func decode(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: root must be an object", ErrInvalidJSON)
	}
	return obj, nil
}

func intOf(v any) (int, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return int(i), true
}

func missingKeys(m map[string]any, keys []string) []string {
	var out []string
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

func extraKeys(m map[string]any, keys []string) []string {
	var out []string
	for k := range m {
		if !contains(keys, k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func allStrings(items []any) bool {
	for _, it := range items {
		if _, ok := it.(string); !ok {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
