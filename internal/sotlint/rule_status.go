// SPDX-License-Identifier: AGPL-3.0-or-later

package sotlint

import (
	"strings"

	"github.com/bartekus/sddgov/internal/mdsan"
)

// CheckPlaceholders blocks Approved PRDs and Epics that still carry HTML
// comments outside code, unless the allow marker is present.
func CheckPlaceholders(_ *Env, doc Document) []Finding {
	if !IsApproved(doc) {
		return nil
	}
	scrubbed := mdsan.StripInlineCode(mdsan.StripFencedCode(doc.Text))
	if !strings.Contains(scrubbed, "<!--") || allowCommentsRe.MatchString(scrubbed) {
		return nil
	}
	return []Finding{finding(doc,
		"Approved doc contains HTML comments ('<!--'). Remove placeholders, set status Draft/Review, or add allow marker: %s",
		AllowCommentsMarker)}
}

// CheckStatusFormat reports a status line that is visible once fences and
// comments are gone but disappears when indented code is stripped too. Such
// a line is nested four or more columns deep, and treating it as absent would
// silently skip every Approved-only rule.
func CheckStatusFormat(_ *Env, doc Document) []Finding {
	if !isStatusGoverned(doc.Path) {
		return nil
	}
	partial := mdsan.SanitizeKeepIndented(doc.Text)
	full := mdsan.Sanitize(doc.Text)
	if statusAnyRe.MatchString(partial) && !statusAnyRe.MatchString(full) {
		return []Finding{finding(doc,
			"Status line is indented (4+ spaces). Write the metadata status as a top-level list item, e.g. - %s: %s",
			StatusLabel, StatusApproved)}
	}
	return nil
}
