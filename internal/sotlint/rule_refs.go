// SPDX-License-Identifier: AGPL-3.0-or-later

package sotlint

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bartekus/sddgov/internal/mdsan"
	"github.com/bartekus/sddgov/internal/mdscan"
	"github.com/bartekus/sddgov/internal/refs"
)

// CheckSoTReference requires an Approved Epic to name exactly one PRD that
// resolves to an existing file under docs/prd, with symlinks resolved.
func CheckSoTReference(env *Env, doc Document) []Finding {
	if !strings.HasPrefix(doc.Path, EpicsDir) || !IsApproved(doc) {
		return nil
	}
	values := refs.FieldValues(mdsan.Sanitize(doc.Text), PRDRefLabel)
	switch {
	case len(values) == 0:
		return []Finding{finding(doc,
			"Approved Epic has no '%s:' field (e.g. - %s: `docs/prd/xxx.md`)", PRDRefLabel, PRDRefLabel)}
	case len(values) > 1:
		return []Finding{finding(doc,
			"Approved Epic has more than one '%s:' field (make it unique)", PRDRefLabel)}
	case values[0] == "":
		return []Finding{finding(doc,
			"Approved Epic '%s:' is empty (point it at docs/prd/xxx.md)", PRDRefLabel)}
	}

	raw := values[0]
	rel, err := env.Resolver.Resolve(raw)
	if err != nil || !strings.HasPrefix(rel, PRDDir) {
		return []Finding{finding(doc,
			"Approved Epic '%s:' must point under %s", PRDRefLabel, PRDDir)}
	}

	prdRoot, err := refs.Realpath(filepath.Join(env.RepoRoot, filepath.FromSlash(strings.TrimSuffix(PRDDir, "/"))))
	if err != nil {
		return []Finding{finding(doc, "Approved Epic '%s:' target not found: %s", PRDRefLabel, raw)}
	}
	target, err := refs.Realpath(filepath.Join(env.RepoRoot, filepath.FromSlash(rel)))
	if err != nil || !refs.Within(prdRoot, target) || !isRegularFile(target) {
		return []Finding{finding(doc, "Approved Epic '%s:' target not found: %s", PRDRefLabel, raw)}
	}
	return nil
}

func isRegularFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// LinkTargets extracts inline link and reference definition targets from
// text with fenced and inline code removed.
func LinkTargets(text string) []string {
	scrubbed := mdsan.StripInlineCode(mdsan.StripFencedCode(text))
	matches := append(mdLinkRe.FindAllStringSubmatch(scrubbed, -1), mdRefDefRe.FindAllStringSubmatch(scrubbed, -1)...)
	var out []string
	for _, m := range matches {
		if t := strings.TrimSpace(m[1]); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// CheckRelativeLinks requires every repository-local link target to stay in
// the repository and to exist. Targets resolve against the document's
// directory, or the repository root when they start with "/".
func CheckRelativeLinks(env *Env, doc Document) []Finding {
	var out []Finding
	dir := path.Dir(doc.Path)
	for _, raw := range LinkTargets(doc.Text) {
		if refs.IsExternalOrFragment(raw) {
			continue
		}
		t := refs.NormalizeLinkTarget(raw)
		if t == "" {
			continue
		}
		var candidate string
		if strings.HasPrefix(t, "/") {
			candidate = filepath.Join(env.RepoRoot, filepath.FromSlash(t[1:]))
		} else {
			candidate = filepath.Join(env.RepoRoot, filepath.FromSlash(dir), filepath.FromSlash(t))
		}
		abs, err := refs.Realpath(candidate)
		if err != nil || !refs.Within(env.RepoRoot, abs) {
			out = append(out, finding(doc, "Unsafe or out-of-repo relative link target: %s", raw))
			continue
		}
		rel, err := filepath.Rel(env.RepoRoot, abs)
		if err != nil {
			out = append(out, finding(doc, "Unsafe or out-of-repo relative link target: %s", raw))
			continue
		}
		rel = filepath.ToSlash(rel)
		if _, err := os.Stat(abs); err != nil {
			out = append(out, finding(doc, "Broken relative link target (not found): %s -> %s", raw, rel))
		}
	}
	return out
}

// MissingSections returns the required level-2 section titles absent from
// text, in required order. Headings inside fences do not count.
func MissingSections(text string, required []string) []string {
	have := map[string]bool{}
	for _, s := range mdscan.Sections(text)[1:] {
		have[s.Title] = true
	}
	var missing []string
	for _, r := range required {
		if !have[r] {
			missing = append(missing, r)
		}
	}
	return missing
}

// CheckDecisionSections requires every decision record to carry all
// DecisionSections.
func CheckDecisionSections(_ *Env, doc Document) []Finding {
	if !strings.HasPrefix(doc.Path, DecisionsDir) || !strings.HasSuffix(doc.Path, ".md") {
		return nil
	}
	rest := strings.TrimPrefix(doc.Path, DecisionsDir)
	if strings.Contains(rest, "/") || rest == TemplateFile || rest == ReadmeFile {
		return nil
	}
	var out []Finding
	for _, s := range MissingSections(doc.Text, DecisionSections) {
		out = append(out, finding(doc, "missing required section '## %s'", s))
	}
	return out
}
