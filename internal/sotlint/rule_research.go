// SPDX-License-Identifier: AGPL-3.0-or-later

package sotlint

import (
	"strings"

	"github.com/bartekus/sddgov/internal/mdsan"
	"github.com/bartekus/sddgov/internal/mdscan"
)

type researchKind int

const (
	researchNone researchKind = iota
	researchMisnamed
	researchTemplate
	researchDated
)

func classifyResearch(p string) researchKind {
	if !strings.HasPrefix(p, ResearchDir) || !strings.HasSuffix(p, ".md") {
		return researchNone
	}
	base := p[strings.LastIndex(p, "/")+1:]
	switch {
	case base == ReadmeFile:
		return researchNone
	case isResearchTemplate(p):
		return researchTemplate
	case dateFileRe.MatchString(base):
		return researchDated
	default:
		return researchMisnamed
	}
}

// CheckResearchPath requires research artifacts to be dated files, README.md
// or one of the fixed templates.
func CheckResearchPath(_ *Env, doc Document) []Finding {
	if classifyResearch(doc.Path) != researchMisnamed {
		return nil
	}
	return []Finding{finding(doc,
		"Research artifacts under docs/research must be dated files (YYYY-MM-DD.md). Use README.md for supporting notes. Only these templates are allowed: %s",
		strings.Join(ResearchTemplates, ", "))}
}

// CheckResearchCandidates enforces the candidate block contract: at least
// MinCandidates blocks, every label present, a single valid Applicability
// value and an evidence URL under the evidence label. Timebox and stop
// conditions must also be declared.
func CheckResearchCandidates(_ *Env, doc Document) []Finding {
	kind := classifyResearch(doc.Path)
	if kind != researchTemplate && kind != researchDated {
		return nil
	}
	text := mdsan.ContractText(doc.Text)
	var out []Finding

	blocks := mdscan.LabeledBlocks(text, CandidateFamily)
	if len(blocks) < MinCandidates {
		out = append(out, finding(doc,
			"Research docs must include at least %d candidates (%s-1..). Found: %d",
			MinCandidates, CandidateFamily, len(blocks)))
	}

	for _, b := range blocks {
		cand := b.Marker()
		for _, label := range CandidateLabels {
			if !mdscan.HasLabel(b.Body, label) {
				out = append(out, finding(doc,
					"Research candidate format is incomplete: %s is missing '%s'", cand, label))
			}
		}

		if kind != researchTemplate {
			switch n := mdscan.CountLines(b.Body, applicabilityLineRe); {
			case n != 1:
				out = append(out, finding(doc,
					"Research candidate format is incomplete: %s must have exactly one '%s' line", cand, ApplicabilityLabel))
			case !mdscan.HasLine(b.Body, applicabilityValueRe):
				out = append(out, finding(doc,
					"Research candidate format is incomplete: %s '%s' must be one of Yes / Partial / No", cand, ApplicabilityLabel))
			}
		}

		if mdscan.HasLabel(b.Body, EvidenceLabel) && !HasEvidenceURL(b.Body) {
			out = append(out, finding(doc,
				"Research evidence is incomplete: %s has no URL (- https://...) under '%s'", cand, EvidenceLabel))
		}
	}

	if !strings.Contains(text, TimeboxLabel) {
		out = append(out, finding(doc, "Research docs must include '%s'", TimeboxLabel))
	}
	if !strings.Contains(text, StopConditionsLabel) {
		out = append(out, finding(doc, "Research docs must include '%s'", StopConditionsLabel))
	}
	return out
}

// HasEvidenceURL reports whether a "- http(s)://" bullet follows the evidence
// label before the next candidate label.
func HasEvidenceURL(block string) bool {
	in := false
	for _, l := range mdscan.ProseLines(block) {
		s := strings.TrimSpace(l.Text)
		if !in {
			in = strings.HasPrefix(s, EvidenceLabel)
			continue
		}
		if hasCandidateLabelPrefix(s) && !strings.HasPrefix(s, EvidenceLabel) {
			return false
		}
		if evidenceURLRe.MatchString(l.Text) {
			return true
		}
	}
	return false
}

func hasCandidateLabelPrefix(s string) bool {
	for _, l := range CandidateLabels {
		if strings.HasPrefix(s, l) {
			return true
		}
	}
	return false
}

// AdjacentExplorationRequired reports whether any novelty item answered Yes
// names an adjacent-exploration trigger.
func AdjacentExplorationRequired(contractText string) bool {
	novelty := mdscan.SectionBody(contractText, noveltyHeadingRe)
	for _, l := range mdscan.ProseLines(novelty) {
		if m := noveltyYesRe.FindStringSubmatch(l.Text); m != nil && containsAny(m[1], AdjacentTriggers) {
			return true
		}
	}
	return false
}

// CheckResearchNovelty is the two-section dependency: the novelty section
// decides whether the adjacent domain exploration section must be filled in
// or must carry an explicit N/A opt-out.
func CheckResearchNovelty(_ *Env, doc Document) []Finding {
	kind := classifyResearch(doc.Path)
	if kind != researchTemplate && kind != researchDated {
		return nil
	}
	template := kind == researchTemplate
	text := mdsan.ContractText(doc.Text)
	var out []Finding

	novelty := mdscan.SectionBody(text, noveltyHeadingRe)
	hasNovelty := strings.TrimSpace(novelty) != ""
	if !hasNovelty && !template {
		out = append(out, finding(doc,
			"Research docs must include the heading '## Novelty Assessment (Triggers)' (numbering optional)"))
	}
	if !template && mdscan.HasLine(novelty, noveltyUnfilledRe) {
		out = append(out, finding(doc,
			"Fill in the novelty assessment with 'Yes' or 'No' (do not leave 'Yes / No')"))
	}
	if !template && hasNovelty {
		for _, trig := range NoveltyTriggers {
			if !mdscan.HasLine(novelty, triggerAnsweredRe(trig)) {
				out = append(out, finding(doc,
					"Novelty assessment is missing a required trigger (answer 'Yes' or 'No'): %s", trig))
			}
		}
	}

	adjacent := mdscan.SectionBody(text, adjacentHeadingRe)
	hasNA := mdscan.HasLine(adjacent, adjacentNARe)
	required := !template && AdjacentExplorationRequired(text)

	if !required {
		if !hasNA {
			out = append(out, finding(doc,
				"When novelty is low, write '%s: N/A (reason)' in the adjacent domain exploration section", AdjacentNALabel))
		}
		return out
	}

	if hasNA {
		out = append(out, finding(doc,
			"Novelty assessment requires adjacent domain exploration, but the section says '%s: N/A (reason)'", AdjacentNALabel))
	}
	if n := len(mdscan.MarkerNumbers(adjacent, AdjacentFamily)); n < MinAdjacent {
		out = append(out, finding(doc,
			"Research docs must include at least %d adjacent domains (%s-1..) or '%s: N/A (reason)'. Found: %d",
			MinAdjacent, AdjacentFamily, AdjacentNALabel, n))
	}
	if n := len(mdscan.MarkerNumbers(adjacent, AbstractionFamily)); n > MaxAbstractions {
		out = append(out, finding(doc,
			"Research docs must include at most %d abstractions (%s-1..). Found: %d",
			MaxAbstractions, AbstractionFamily, n))
	}
	if !strings.Contains(adjacent, MappingKeyword) {
		out = append(out, finding(doc,
			"Research docs must include '%s' or mark adjacent domain exploration N/A", MappingKeyword))
	}
	return out
}

// CheckEpicComparison enforces the external service comparison gate of dated
// epic research. A Skip with a reason passes. Required demands the labeled
// sub-blocks, their minimum bullet counts and a comparison table with every
// required column and at least MinComparisonRows data rows.
func CheckEpicComparison(_ *Env, doc Document) []Finding {
	if classifyResearch(doc.Path) != researchDated || !strings.HasPrefix(doc.Path, EpicResearch) {
		return nil
	}
	section := mdscan.SectionBody(mdsan.ContractText(doc.Text), comparisonHeadingRe)
	if strings.TrimSpace(section) == "" {
		return []Finding{finding(doc,
			"Epic research docs must include the heading '## External Service Comparison Gate' (numbering optional)")}
	}

	required := mdscan.HasLine(section, gateRequiredRe)
	skip := mdscan.HasLine(section, gateSkipRe)
	switch {
	case required && skip:
		return []Finding{finding(doc,
			"External service comparison gate must state only one of 'Required' or 'Skip (reason)'")}
	case !required && !skip:
		return []Finding{finding(doc,
			"External service comparison gate must state '%s: Required' or '%s: Skip (reason)'", GateLabel, GateLabel)}
	case skip:
		return nil
	}

	var out []Finding
	for _, label := range ComparisonLabels {
		if !mdscan.HasLine(section, labelLineRe(label)) {
			out = append(out, finding(doc, "External service comparison gate is missing '%s'", label))
		}
	}

	services := mdscan.FieldBlock(section, ServicesLabel, FamiliesLabel, WeightsLabel, TableLabel, RationaleLabel)
	if mdscan.CountLines(services, serviceBulletRe) < MinComparisonRows {
		out = append(out, finding(doc,
			"External service comparison gate '%s' needs at least %d entries. Write each as '- Service name (Vendor)'",
			ServicesLabel, MinComparisonRows))
	}

	families := mdscan.FieldBlock(section, FamiliesLabel, WeightsLabel, TableLabel, RationaleLabel)
	if mdscan.CountLines(families, bulletRe) < MinComparisonRows {
		out = append(out, finding(doc,
			"External service comparison gate '%s' needs at least %d entries", FamiliesLabel, MinComparisonRows))
	}

	weights := mdscan.FieldBlock(section, WeightsLabel, TableLabel, RationaleLabel)
	if mdscan.CountLines(weights, weightBulletRe) < MinComparisonRows {
		out = append(out, finding(doc,
			"External service comparison gate '%s' needs at least %d entries. Write each as '- Criterion (NN%%)'",
			WeightsLabel, MinComparisonRows))
	}

	table := mdscan.FieldBlock(section, TableLabel, RationaleLabel)
	switch rows := mdscan.CountTableRows(table, ComparisonColumns); {
	case rows < 0:
		out = append(out, finding(doc,
			"External service comparison gate '%s' is missing required columns. Required: %s",
			TableLabel, strings.Join(ComparisonColumns, " / ")))
	case rows < MinComparisonRows:
		out = append(out, finding(doc,
			"External service comparison gate '%s' needs at least %d data rows. Found: %d",
			TableLabel, MinComparisonRows, rows))
	}

	reasons := mdscan.FieldBlock(section, RationaleLabel)
	if !mdscan.HasLine(reasons, bulletRe) {
		out = append(out, finding(doc,
			"External service comparison gate '%s' needs at least one entry. Write each as '- reason'", RationaleLabel))
	}
	return out
}
