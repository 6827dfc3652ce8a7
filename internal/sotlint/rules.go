// SPDX-License-Identifier: AGPL-3.0-or-later

package sotlint

import (
	"github.com/bartekus/sddgov/internal/mdsan"
	"github.com/bartekus/sddgov/internal/refs"
)

// Env is the read-only environment rules may consult.
type Env struct {
	// RepoRoot is the real (symlink-resolved) repository root.
	RepoRoot string
	Resolver *refs.Resolver
}

// NewEnv builds an Env for repoRoot.
func NewEnv(repoRoot string) (*Env, error) {
	root, err := refs.Realpath(repoRoot)
	if err != nil {
		return nil, err
	}
	return &Env{RepoRoot: root, Resolver: refs.NewResolver(root)}, nil
}

// Rule is one independent contract check. Rules are pure over their inputs
// and never short-circuit each other.
type Rule interface {
	ID() string
	Check(env *Env, doc Document) []Finding
}

// RuleFunc adapts a function to Rule.
type RuleFunc struct {
	Name string
	Fn   func(env *Env, doc Document) []Finding
}

func (r RuleFunc) ID() string { return r.Name }

func (r RuleFunc) Check(env *Env, doc Document) []Finding { return r.Fn(env, doc) }

// DefaultRules returns the rule set in the order findings are reported for
// a single document.
func DefaultRules() []Rule {
	return []Rule{
		RuleFunc{"placeholders", CheckPlaceholders},
		RuleFunc{"status-format", CheckStatusFormat},
		RuleFunc{"research-path", CheckResearchPath},
		RuleFunc{"research-candidates", CheckResearchCandidates},
		RuleFunc{"research-novelty", CheckResearchNovelty},
		RuleFunc{"research-comparison", CheckEpicComparison},
		RuleFunc{"sot-reference", CheckSoTReference},
		RuleFunc{"relative-links", CheckRelativeLinks},
		RuleFunc{"decision-sections", CheckDecisionSections},
	}
}

// RuleIDs lists the IDs of rules.
func RuleIDs(rules []Rule) []string {
	ids := make([]string, 0, len(rules))
	for _, r := range rules {
		ids = append(ids, r.ID())
	}
	return ids
}

// IsApproved reports whether a status-governed document declares the
// approved status as a top-level list item in its prose-only text.
func IsApproved(doc Document) bool {
	return isStatusGoverned(doc.Path) && statusApprovedRe.MatchString(mdsan.Sanitize(doc.Text))
}

// CheckDocument runs rules against doc and concatenates their findings.
func CheckDocument(env *Env, rules []Rule, doc Document) []Finding {
	var out []Finding
	for _, r := range rules {
		out = append(out, r.Check(env, doc)...)
	}
	return out
}
