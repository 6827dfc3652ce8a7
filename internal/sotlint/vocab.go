// SPDX-License-Identifier: AGPL-3.0-or-later

package sotlint

import (
	"regexp"
	"strings"
)

// Lexical markers the rules key off. They must match documents byte for
// byte, trailing colons included.
const (
	StatusLabel    = "Status"
	StatusApproved = "Approved"

	// AllowCommentsMarker opts an Approved document out of the placeholder rule.
	AllowCommentsMarker = "<!-- lint-sot: allow-html-comments -->"

	PRDRefLabel = "PRD"

	PRDDir       = "docs/prd/"
	EpicsDir     = "docs/epics/"
	ResearchDir  = "docs/research/"
	EpicResearch = "docs/research/epic/"
	DecisionsDir = "docs/decisions/"
	TemplateFile = "_template.md"
	ReadmeFile   = "README.md"

	CandidateFamily   = "candidate"
	AdjacentFamily    = "adjacent"
	AbstractionFamily = "abstraction"

	MinCandidates   = 5
	MinAdjacent     = 2
	MaxAbstractions = 3

	TimeboxLabel        = "Timebox:"
	StopConditionsLabel = "Stop conditions:"
	ApplicabilityLabel  = "Applicability:"
	EvidenceLabel       = "Evidence links:"
	MappingKeyword      = "Applicability mapping"
	AdjacentNALabel     = "Adjacent exploration"

	GateLabel         = "External service comparison gate"
	ServicesLabel     = "Services compared:"
	FamiliesLabel     = "Alternative family coverage:"
	WeightsLabel      = "Evaluation criteria (weights):"
	TableLabel        = "Quantitative comparison table:"
	RationaleLabel    = "Decision rationale:"
	MinComparisonRows = 3
)

// StatusValues is the closed set of document status values.
var StatusValues = []string{"Draft", "Review", StatusApproved}

// ResearchTemplates are the only non-dated files allowed under docs/research.
var ResearchTemplates = []string{
	"docs/research/prd/_template.md",
	"docs/research/epic/_template.md",
	"docs/research/estimation/_template.md",
}

// CandidateLabels must each appear in every candidate block.
var CandidateLabels = []string{
	"Summary:",
	ApplicabilityLabel,
	"Hypothesis:",
	"Counter-evidence:",
	"Adoption rationale:",
	EvidenceLabel,
	"Discard conditions:",
	"Risks/Validation:",
}

// NoveltyTriggers must each be answered Yes or No in the novelty section.
var NoveltyTriggers = []string{
	"fewer than 2 direct precedents",
	"Unknown",
	"Q6-5",
}

// AdjacentTriggers are novelty items that, answered Yes, make adjacent
// domain exploration mandatory.
var AdjacentTriggers = append(append([]string{}, NoveltyTriggers...),
	"PII",
	"Audit",
	"Performance",
	"Availability",
)

// ComparisonLabels are the labeled sub-blocks of a Required comparison gate.
var ComparisonLabels = []string{ServicesLabel, FamiliesLabel, WeightsLabel, TableLabel, RationaleLabel}

// ComparisonColumns must all be present in the comparison table header.
var ComparisonColumns = []string{
	"Service",
	"Vendor",
	"Initial cost",
	"Monthly cost",
	"Latency",
	"Availability SLO",
	"Operational load",
	"Verdict",
}

// DecisionSections are the level-2 sections every decision record carries.
var DecisionSections = []string{
	"Decision-ID",
	"Context",
	"Rationale",
	"Alternatives",
	"Impact",
	"Verification",
	"Supersedes",
	"Inputs Fingerprint",
}

var (
	statusApprovedRe = regexp.MustCompile(`(?m)^\s*-\s*` + StatusLabel + `\s*:\s*` + StatusApproved + `\s*$`)
	statusAnyRe      = regexp.MustCompile(`(?m)^\s*-\s*` + StatusLabel + `\s*:\s*\S`)
	allowCommentsRe  = regexp.MustCompile(`<!--\s*lint-sot:\s*allow-html-comments\s*-->`)

	dateFileRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\.md$`)

	applicabilityLineRe  = regexp.MustCompile(`^\s*` + regexp.QuoteMeta(ApplicabilityLabel) + `[ \t]*.*$`)
	applicabilityValueRe = regexp.MustCompile(`^\s*` + regexp.QuoteMeta(ApplicabilityLabel) + `[ \t]*(Yes|Partial|No)[ \t]*$`)
	evidenceURLRe        = regexp.MustCompile(`^\s*-\s*https?://\S+`)

	noveltyHeadingRe  = regexp.MustCompile(`^\s*##\s*(?:\d+\.\s*)?Novelty Assessment \(Triggers\)\s*$`)
	adjacentHeadingRe = regexp.MustCompile(`^\s*##\s*(?:\d+\.\s*)?Adjacent Domain Exploration.*$`)
	noveltyYesRe      = regexp.MustCompile(`^\s*-\s*(.+?)\s*:\s*Yes\s*$`)
	noveltyUnfilledRe = regexp.MustCompile(`:\s*Yes\s*/\s*No\s*$`)
	adjacentNARe      = regexp.MustCompile(`^\s*` + AdjacentNALabel + `\s*:\s*N/A`)

	comparisonHeadingRe = regexp.MustCompile(`^\s*##\s*(?:\d+\.\s*)?External Service Comparison Gate.*$`)
	gateRequiredRe      = regexp.MustCompile(`^\s*` + GateLabel + `:\s*Required\s*$`)
	gateSkipRe          = regexp.MustCompile(`^\s*` + GateLabel + `:\s*Skip\s*\([^)\n]+\)\s*$`)
	serviceBulletRe     = regexp.MustCompile(`^\s*-\s*[^(\n]+\([^)\n]+\)\s*$`)
	weightBulletRe      = regexp.MustCompile(`^\s*-\s*.+\(\d{1,3}%\)\s*$`)
	bulletRe            = regexp.MustCompile(`^\s*-\s+.+$`)

	mdLinkRe   = regexp.MustCompile(`\[[^\]]*\]\(([^)]+)\)`)
	mdRefDefRe = regexp.MustCompile(`(?m)^[ \t]{0,3}\[[^\]]+\]:\s*(\S+)`)
)

func triggerAnsweredRe(trigger string) *regexp.Regexp {
	return regexp.MustCompile(`^\s*-\s*.*` + regexp.QuoteMeta(trigger) + `.*:\s*(Yes|No)\s*$`)
}

func labelLineRe(label string) *regexp.Regexp {
	return regexp.MustCompile(`^\s*` + regexp.QuoteMeta(label) + `\s*$`)
}

// isStatusGoverned reports whether path is a PRD or Epic subject to status
// rules. Templates are exempt.
func isStatusGoverned(p string) bool {
	if !strings.HasPrefix(p, PRDDir) && !strings.HasPrefix(p, EpicsDir) {
		return false
	}
	return !strings.HasSuffix(p, "/"+TemplateFile)
}

func isResearchTemplate(p string) bool {
	for _, t := range ResearchTemplates {
		if p == t {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
