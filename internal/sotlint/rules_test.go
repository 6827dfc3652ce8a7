package sotlint

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func newEnv(t *testing.T, root string) *Env {
	t.Helper()
	env, err := NewEnv(root)
	require.NoError(t, err)
	return env
}

func messages(findings []Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Message)
	}
	return out
}

func candidateBlock(n int) string {
	return fmt.Sprintf(`candidate-%d
Summary: option %d
Applicability: Yes
Hypothesis: it fits
Counter-evidence: none known
Adoption rationale: cheap
Evidence links:
- https://example.com/%d
Discard conditions: slow
Risks/Validation: benchmark

`, n, n, n)
}

func candidates(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		b.WriteString(candidateBlock(i))
	}
	return b.String()
}

const lowNovelty = `## Novelty Assessment (Triggers)
- fewer than 2 direct precedents: No
- Unknown factors remain: No
- Q6-5 security requirement: No

## Adjacent Domain Exploration
Adjacent exploration: N/A (well-trodden problem)
`

func researchDoc(nCandidates int) string {
	return "# Research\n\nTimebox: 2h\nStop conditions: five viable options\n\n## Meta\n\n" +
		candidates(nCandidates) + lowNovelty
}

func TestCheckPlaceholders(t *testing.T) {
	tests := []struct {
		name string
		path string
		text string
		want int
	}{
		{"approved with comment", "docs/prd/a.md", "- Status: Approved\n\n<!-- TODO -->\n", 1},
		{"allow marker", "docs/prd/a.md", "- Status: Approved\n<!-- lint-sot: allow-html-comments -->\n<!-- x -->\n", 0},
		{"draft with comment", "docs/prd/a.md", "- Status: Draft\n<!-- TODO -->\n", 0},
		{"comment in fence", "docs/epics/e.md", "- Status: Approved\n```\n<!-- x -->\n```\n", 0},
		{"comment in inline code", "docs/epics/e.md", "- Status: Approved\nuse `<!-- x -->` here\n", 0},
		{"template exempt", "docs/prd/_template.md", "- Status: Approved\n<!-- x -->\n", 0},
		{"outside prd", "docs/notes.md", "- Status: Approved\n<!-- x -->\n", 0},
		{"status only in comment", "docs/prd/a.md", "<!-- - Status: Approved -->\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckPlaceholders(nil, Document{Path: tt.path, Text: tt.text})
			assert.Len(t, got, tt.want)
		})
	}
}

func TestCheckStatusFormat(t *testing.T) {
	doc := Document{Path: "docs/prd/a.md", Text: "# PRD\n\n    - Status: Approved\n"}
	got := CheckStatusFormat(nil, doc)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, "Status line is indented")
	assert.False(t, IsApproved(doc))

	assert.Empty(t, CheckStatusFormat(nil, Document{Path: "docs/prd/a.md", Text: "- Status: Approved\n"}))
	assert.Empty(t, CheckStatusFormat(nil, Document{Path: "docs/prd/a.md", Text: "```\n    - Status: Approved\n```\n"}))
	assert.Empty(t, CheckStatusFormat(nil, Document{Path: "docs/other.md", Text: "# x\n\n    - Status: Approved\n"}))
}

func TestIsApproved(t *testing.T) {
	assert.True(t, IsApproved(Document{Path: "docs/epics/e.md", Text: "# E\n- Status: Approved\n"}))
	assert.True(t, IsApproved(Document{Path: "docs/prd/a.md", Text: "  -  Status :  Approved  \n"}))
	assert.False(t, IsApproved(Document{Path: "docs/prd/a.md", Text: "- Status: Approved soon\n"}))
	assert.False(t, IsApproved(Document{Path: "docs/prd/a.md", Text: "```\n- Status: Approved\n```\n"}))
	assert.False(t, IsApproved(Document{Path: "docs/prd/_template.md", Text: "- Status: Approved\n"}))
}

func TestCheckResearchPath(t *testing.T) {
	tests := []struct {
		path string
		want int
	}{
		{"docs/research/prd/2026-01-02.md", 0},
		{"docs/research/prd/_template.md", 0},
		{"docs/research/README.md", 0},
		{"docs/research/prd/notes.md", 1},
		{"docs/research/custom/_template.md", 1},
		{"docs/research/prd/image.png", 0},
		{"docs/prd/notes.md", 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Len(t, CheckResearchPath(nil, Document{Path: tt.path}), tt.want)
		})
	}
}

func TestCheckResearchCandidates(t *testing.T) {
	path := "docs/research/prd/2026-01-02.md"

	t.Run("five well-formed blocks", func(t *testing.T) {
		assert.Empty(t, CheckResearchCandidates(nil, Document{Path: path, Text: researchDoc(5)}))
	})

	t.Run("four blocks", func(t *testing.T) {
		got := CheckResearchCandidates(nil, Document{Path: path, Text: researchDoc(4)})
		require.Len(t, got, 1)
		assert.Contains(t, got[0].Message, "Found: 4")
	})

	t.Run("duplicate markers count once", func(t *testing.T) {
		text := researchDoc(4) + "\n" + candidateBlock(4)
		got := CheckResearchCandidates(nil, Document{Path: path, Text: text})
		require.Len(t, got, 1)
		assert.Contains(t, got[0].Message, "Found: 4")
	})

	t.Run("markers in fences do not count", func(t *testing.T) {
		text := researchDoc(4) + "```\n" + candidateBlock(9) + "```\n"
		got := CheckResearchCandidates(nil, Document{Path: path, Text: text})
		require.Len(t, got, 1)
		assert.Contains(t, got[0].Message, "Found: 4")
	})

	t.Run("missing label and evidence url", func(t *testing.T) {
		text := strings.Replace(researchDoc(5), "Hypothesis: it fits\n", "", 1)
		text = strings.Replace(text, "- https://example.com/2\n", "- see notes\n", 1)
		got := messages(CheckResearchCandidates(nil, Document{Path: path, Text: text}))
		assert.Equal(t, []string{
			"Research candidate format is incomplete: candidate-1 is missing 'Hypothesis:'",
			"Research evidence is incomplete: candidate-2 has no URL (- https://...) under 'Evidence links:'",
		}, got)
	})

	t.Run("applicability must be single and valid", func(t *testing.T) {
		text := strings.Replace(researchDoc(5), "Applicability: Yes\n", "Applicability: Maybe\n", 1)
		text = strings.Replace(text, "Applicability: Yes\n", "Applicability: Yes\nApplicability: No\n", 1)
		got := messages(CheckResearchCandidates(nil, Document{Path: path, Text: text}))
		require.Len(t, got, 2)
		assert.Contains(t, got[0], "candidate-1 'Applicability:' must be one of")
		assert.Contains(t, got[1], "candidate-2 must have exactly one")
	})

	t.Run("template skips applicability value", func(t *testing.T) {
		text := strings.ReplaceAll(researchDoc(5), "Applicability: Yes", "Applicability: Yes / Partial / No")
		got := CheckResearchCandidates(nil, Document{Path: "docs/research/prd/_template.md", Text: text})
		assert.Empty(t, got)
	})

	t.Run("timebox and stop conditions", func(t *testing.T) {
		text := strings.Replace(researchDoc(5), "Timebox: 2h\nStop conditions: five viable options\n", "", 1)
		got := messages(CheckResearchCandidates(nil, Document{Path: path, Text: text}))
		assert.Equal(t, []string{
			"Research docs must include 'Timebox:'",
			"Research docs must include 'Stop conditions:'",
		}, got)
	})

	t.Run("not research", func(t *testing.T) {
		assert.Empty(t, CheckResearchCandidates(nil, Document{Path: "docs/prd/a.md", Text: "x"}))
	})
}

func TestHasEvidenceURL(t *testing.T) {
	assert.True(t, HasEvidenceURL("Evidence links:\n- https://a.example\n"))
	assert.True(t, HasEvidenceURL("Evidence links:\n- doc\n- http://b.example/x\n"))
	assert.False(t, HasEvidenceURL("Evidence links:\nDiscard conditions: x\n- https://late.example\n"))
	assert.False(t, HasEvidenceURL("- https://before.example\nEvidence links:\n"))
}

func TestCheckResearchNovelty(t *testing.T) {
	path := "docs/research/prd/2026-01-02.md"
	base := "Timebox: 1h\nStop conditions: x\n\n"

	t.Run("low novelty with N/A", func(t *testing.T) {
		assert.Empty(t, CheckResearchNovelty(nil, Document{Path: path, Text: base + lowNovelty}))
	})

	t.Run("low novelty without N/A", func(t *testing.T) {
		text := strings.Replace(lowNovelty, "Adjacent exploration: N/A (well-trodden problem)\n", "adjacent-1\n", 1)
		got := messages(CheckResearchNovelty(nil, Document{Path: path, Text: base + text}))
		require.Len(t, got, 1)
		assert.Contains(t, got[0], "When novelty is low")
	})

	t.Run("missing heading", func(t *testing.T) {
		got := messages(CheckResearchNovelty(nil, Document{Path: path, Text: base}))
		assert.Contains(t, got, "Research docs must include the heading '## Novelty Assessment (Triggers)' (numbering optional)")
	})

	t.Run("numbered heading and unfilled answer", func(t *testing.T) {
		text := strings.Replace(lowNovelty, "## Novelty", "## 3. Novelty", 1)
		text = strings.Replace(text, "- Unknown factors remain: No", "- Unknown factors remain: Yes / No", 1)
		got := messages(CheckResearchNovelty(nil, Document{Path: path, Text: base + text}))
		assert.Equal(t, []string{
			"Fill in the novelty assessment with 'Yes' or 'No' (do not leave 'Yes / No')",
			"Novelty assessment is missing a required trigger (answer 'Yes' or 'No'): Unknown",
		}, got)
	})

	t.Run("required exploration", func(t *testing.T) {
		text := base + `## Novelty Assessment (Triggers)
- fewer than 2 direct precedents: No
- Unknown factors remain: No
- Q6-5 security requirement: Yes

## Adjacent Domain Exploration
adjacent-1
Payments.
adjacent-2
Logistics.
abstraction-1
Queueing.

Applicability mapping: both map to retries.
`
		assert.Empty(t, CheckResearchNovelty(nil, Document{Path: path, Text: text}))
	})

	t.Run("required exploration incomplete", func(t *testing.T) {
		text := base + `## Novelty Assessment (Triggers)
- fewer than 2 direct precedents: No
- Unknown factors remain: No
- Q6-5 security requirement: No
- PII handling: Yes

## Adjacent Domain Exploration
Adjacent exploration: N/A (none)
adjacent-1
abstraction-1
abstraction-2
abstraction-3
abstraction-4
`
		got := messages(CheckResearchNovelty(nil, Document{Path: path, Text: text}))
		assert.Equal(t, []string{
			"Novelty assessment requires adjacent domain exploration, but the section says 'Adjacent exploration: N/A (reason)'",
			"Research docs must include at least 2 adjacent domains (adjacent-1..) or 'Adjacent exploration: N/A (reason)'. Found: 1",
			"Research docs must include at most 3 abstractions (abstraction-1..). Found: 4",
			"Research docs must include 'Applicability mapping' or mark adjacent domain exploration N/A",
		}, got)
	})
}

func comparisonDoc(rows int) string {
	var table strings.Builder
	table.WriteString("| Service | Vendor | Initial cost | Monthly cost | Latency | Availability SLO | Operational load | Verdict |\n")
	table.WriteString("| --- | --- | --- | --- | --- | --- | --- | --- |\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&table, "| S%d | V%d | 0 | 10 | 20ms | 99.9 | low | hold |\n", i, i)
	}
	return researchDoc(5) + `
## External Service Comparison Gate
External service comparison gate: Required
Services compared:
- Alpha (A Corp)
- Beta (B Corp)
- Gamma (C Corp)
Alternative family coverage:
- managed
- self-hosted
- build
Evaluation criteria (weights):
- Cost (40%)
- Latency (30%)
- Ops (30%)
Quantitative comparison table:
` + table.String() + `Decision rationale:
- cheapest that meets the SLO
`
}

func TestCheckEpicComparison(t *testing.T) {
	path := "docs/research/epic/2026-01-02.md"

	t.Run("complete", func(t *testing.T) {
		assert.Empty(t, CheckEpicComparison(nil, Document{Path: path, Text: comparisonDoc(3)}))
	})

	t.Run("two data rows", func(t *testing.T) {
		got := messages(CheckEpicComparison(nil, Document{Path: path, Text: comparisonDoc(2)}))
		require.Len(t, got, 1)
		assert.Contains(t, got[0], "needs at least 3 data rows. Found: 2")
	})

	t.Run("missing column", func(t *testing.T) {
		text := strings.Replace(comparisonDoc(3), "| Verdict |\n", "| Notes |\n", 1)
		got := messages(CheckEpicComparison(nil, Document{Path: path, Text: text}))
		require.Len(t, got, 1)
		assert.Contains(t, got[0], "missing required columns")
	})

	t.Run("skip with reason", func(t *testing.T) {
		text := researchDoc(5) + "\n## External Service Comparison Gate\nExternal service comparison gate: Skip (internal only)\n"
		assert.Empty(t, CheckEpicComparison(nil, Document{Path: path, Text: text}))
	})

	t.Run("skip without reason", func(t *testing.T) {
		text := researchDoc(5) + "\n## External Service Comparison Gate\nExternal service comparison gate: Skip\n"
		got := CheckEpicComparison(nil, Document{Path: path, Text: text})
		require.Len(t, got, 1)
		assert.Contains(t, got[0].Message, "must state")
	})

	t.Run("both stated", func(t *testing.T) {
		text := strings.Replace(comparisonDoc(3), "Required\n", "Required\nExternal service comparison gate: Skip (x)\n", 1)
		got := CheckEpicComparison(nil, Document{Path: path, Text: text})
		require.Len(t, got, 1)
		assert.Contains(t, got[0].Message, "only one of")
	})

	t.Run("missing heading", func(t *testing.T) {
		got := CheckEpicComparison(nil, Document{Path: path, Text: researchDoc(5)})
		require.Len(t, got, 1)
	})

	t.Run("prd research not checked", func(t *testing.T) {
		assert.Empty(t, CheckEpicComparison(nil, Document{Path: "docs/research/prd/2026-01-02.md", Text: researchDoc(5)}))
	})
}

func TestCheckSoTReference(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/prd/a.md", "# A\n")
	writeFile(t, root, "docs/epics/other.md", "# O\n")
	writeFile(t, root, "docs/prd/sub/b.md", "# B\n")
	outside := t.TempDir()
	writeFile(t, outside, "secret.md", "x")
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.md"), filepath.Join(root, "docs/prd/link.md")))
	env := newEnv(t, root)

	epic := func(field string) Document {
		return Document{Path: "docs/epics/e.md", Text: "# E\n- Status: Approved\n" + field}
	}

	tests := []struct {
		name  string
		field string
		want  string
	}{
		{"valid backtick", "- PRD: `docs/prd/a.md`\n", ""},
		{"valid bare", "- PRD: docs/prd/a.md\n", ""},
		{"valid blob url", "- PRD: https://github.com/o/r/blob/main/docs/prd/a.md\n", ""},
		{"missing field", "", "has no 'PRD:' field"},
		{"duplicate field", "- PRD: docs/prd/a.md\n- PRD: docs/prd/a.md\n", "more than one"},
		{"empty", "- PRD: ``\n", "is empty"},
		{"escapes prd dir", "- PRD: docs/prd/../epics/other.md\n", "must point under docs/prd/"},
		{"traversal", "- PRD: ../../etc/passwd\n", "must point under docs/prd/"},
		{"missing file", "- PRD: docs/prd/nope.md\n", "target not found"},
		{"symlink escape", "- PRD: docs/prd/link.md\n", "target not found"},
		{"directory", "- PRD: docs/prd/sub\n", "target not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckSoTReference(env, epic(tt.field))
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Contains(t, got[0].Message, tt.want)
		})
	}

	t.Run("draft epic ignored", func(t *testing.T) {
		assert.Empty(t, CheckSoTReference(env, Document{Path: "docs/epics/e.md", Text: "- Status: Draft\n"}))
	})
}

func TestLinkTargets(t *testing.T) {
	text := "see [a](a.md) and `[b](b.md)`\n```\n[c](c.md)\n```\n[ref]: ./d.md\n"
	assert.Equal(t, []string{"a.md", "./d.md"}, LinkTargets(text))
}

func TestCheckRelativeLinks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/prd/a.md", "# A\n")
	writeFile(t, root, "docs/epics/e.md", "# E\n")
	env := newEnv(t, root)

	doc := Document{Path: "docs/epics/e.md", Text: `[prd](../prd/a.md)
[frag](../prd/a.md#goals)
[abs](/docs/prd/a.md)
[web](https://example.com/x.md)
[mail](mailto:a@example.com)
[anchor](#top)
[broken](missing.md)
[escape](../../../outside.md)
[angle](<../prd/a.md>)
`}
	got := messages(CheckRelativeLinks(env, doc))
	assert.Equal(t, []string{
		"Broken relative link target (not found): missing.md -> docs/epics/missing.md",
		"Unsafe or out-of-repo relative link target: ../../../outside.md",
	}, got)
}

func TestCheckDecisionSections(t *testing.T) {
	full := ""
	for _, s := range DecisionSections {
		full += "## " + s + "\n\nx\n\n"
	}
	assert.Empty(t, CheckDecisionSections(nil, Document{Path: "docs/decisions/d-1.md", Text: full}))

	partial := strings.Replace(full, "## Impact\n", "```\n## Impact\n```\n", 1)
	got := messages(CheckDecisionSections(nil, Document{Path: "docs/decisions/d-1.md", Text: partial}))
	assert.Equal(t, []string{"missing required section '## Impact'"}, got)

	assert.Empty(t, CheckDecisionSections(nil, Document{Path: "docs/decisions/_template.md", Text: ""}))
	assert.Empty(t, CheckDecisionSections(nil, Document{Path: "docs/decisions/README.md", Text: ""}))
	assert.Empty(t, CheckDecisionSections(nil, Document{Path: "docs/decisions/sub/x.md", Text: ""}))
}

func TestDefaultRulesOrder(t *testing.T) {
	assert.Equal(t, []string{
		"placeholders", "status-format", "research-path", "research-candidates",
		"research-novelty", "research-comparison", "sot-reference", "relative-links",
		"decision-sections",
	}, RuleIDs(DefaultRules()))
}
