package review

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finding(priority string) string {
	return `{"title":"Nil deref","body":"x may be nil","priority":"` + priority +
		`","code_location":{"repo_relative_path":"internal/a.go","line_range":{"start":3,"end":5}}}`
}

func doc(status, findings, questions string) string {
	return `{"schema_version":3,"scope_id":"issue-1","status":"` + status + `","findings":[` + findings +
		`],"questions":[` + questions + `],"overall_explanation":"looked at everything"}`
}

func problems(t *testing.T, raw, scope string) []string {
	t.Helper()
	obj, err := decode([]byte(raw))
	require.NoError(t, err)
	return Validate(obj, scope)
}

func TestValidate_Statuses(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"approved clean", doc("Approved", "", ""), nil},
		{"approved with finding", doc("Approved", finding("P3"), ""), []string{"Approved must have findings=[]"}},
		{"approved with question", doc("Approved", "", `"why?"`), []string{"Approved must have questions=[]"}},
		{"nits ok", doc("Approved with nits", finding("P2"), ""), nil},
		{"nits with P1", doc("Approved with nits", finding("P1"), ""), []string{"Approved with nits must not include P0/P1 findings"}},
		{"blocked ok", doc("Blocked", finding("P0")+","+finding("P3"), ""), nil},
		{"blocked without P0/P1", doc("Blocked", finding("P2"), ""), []string{"Blocked must include at least one P0/P1 finding"}},
		{"question ok", doc("Question", "", `"which API?"`), nil},
		{"question without questions", doc("Question", "", ""), []string{"Question must include at least one question"}},
		{"unknown status", doc("LGTM", "", ""), []string{"status must be one of Approved, Approved with nits, Blocked, Question"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, problems(t, tt.raw, ""))
		})
	}
}

func TestValidate_TopLevel(t *testing.T) {
	assert.Equal(t, []string{"missing keys: overall_explanation, questions"},
		problems(t, `{"schema_version":3,"scope_id":"s","status":"Approved","findings":[]}`, ""))

	raw := strings.Replace(doc("Approved", "", ""), `"schema_version":3`, `"schema_version":2,"extra":true`, 1)
	assert.Equal(t, []string{"unexpected keys: extra", "schema_version must be 3"}, problems(t, raw, ""))

	assert.Equal(t, []string{"scope_id mismatch: expected issue-2, got issue-1"}, problems(t, doc("Approved", "", ""), "issue-2"))

	raw = strings.Replace(doc("Question", "", `"a", 1`), `"looked at everything"`, `""`, 1)
	assert.Equal(t, []string{
		"questions must be an array of strings",
		"overall_explanation must be a non-empty string",
		"Question must include at least one question",
	}, problems(t, raw, ""))
}

func TestValidate_Findings(t *testing.T) {
	long := strings.Repeat("t", MaxTitleLen+1)
	bad := `{"title":"` + long + `","body":"","priority":"P9","extra":1,` +
		`"code_location":{"repo_relative_path":"../x.go","line_range":{"start":0,"end":-1,"col":2}}}`
	got := problems(t, doc("Approved with nits", bad+`, 7`, ""), "")
	assert.Equal(t, []string{
		"findings[0] unexpected keys: extra",
		"findings[0].title must be <= 120 chars",
		"findings[0].body must be a non-empty string",
		"findings[0].priority must be one of P0, P1, P2, P3",
		"findings[0].code_location.repo_relative_path must be repo-relative (no '..', not absolute)",
		"findings[0].code_location.line_range unexpected keys: col",
		"findings[0].code_location.line_range.start must be int >= 1",
		"findings[0].code_location.line_range.end must be int >= 1",
		"findings[0].code_location.line_range.end must be >= start",
		"findings[1] is not an object",
	}, got)

	reversed := strings.Replace(finding("P2"), `"start":3,"end":5`, `"start":9,"end":2`, 1)
	assert.Equal(t, []string{"findings[0].code_location.line_range.end must be >= start"},
		problems(t, doc("Approved with nits", reversed, ""), ""))

	noLoc := `{"title":"t","body":"b","priority":"P2"}`
	assert.Equal(t, []string{"findings[0] missing key: code_location", "findings[0].code_location must be an object"},
		problems(t, doc("Approved with nits", noLoc, ""), ""))
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "review.json")

	require.ErrorContains(t, ValidateFile(path, "", false), "file not found")

	require.NoError(t, os.WriteFile(path, []byte(`[1]`), 0o644))
	require.ErrorIs(t, ValidateFile(path, "", false), ErrInvalidJSON)

	require.NoError(t, os.WriteFile(path, []byte(doc("Blocked", "", "")), 0o644))
	err := ValidateFile(path, "", false)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "review.json validation failed:\n- Blocked must include at least one P0/P1 finding", err.Error())

	require.NoError(t, os.WriteFile(path, []byte(`{"status":"Approved","schema_version":3,"scope_id":"issue-1","findings":[],"questions":[],"overall_explanation":"ok"}`), 0o644))
	require.NoError(t, ValidateFile(path, "issue-1", true))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(got), "{\n  \"status\": \"Approved\",\n"), "key order is preserved")
	assert.True(t, strings.HasSuffix(string(got), "}\n"))
}
