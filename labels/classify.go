package labels

import (
	"sort"
	"strings"

	"github.com/orian/labeltree/models"
)

// Matches reports whether an item satisfies a label's auto-apply queries.
//
// Each query line is split on whitespace and all its terms must occur as
// case-sensitive substrings of the target. Any matching line is enough.
// The target is the item name when AutoMatchName is set, otherwise each
// tracker URL when AutoMatchTracker is set. AutoSettings is not checked
// here; callers skip labels that have it off.
func Matches(opts models.LabelOptions, attrs models.ItemAttributes) bool {
	for _, line := range opts.AutoQueries {
		terms := strings.Fields(line)
		if len(terms) == 0 {
			continue
		}

		if opts.AutoMatchName {
			if containsAll(attrs.Name, terms) {
				return true
			}
		} else if opts.AutoMatchTracker {
			for _, tracker := range attrs.Trackers {
				if containsAll(tracker, terms) {
					return true
				}
			}
		}
	}
	return false
}

func containsAll(s string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(s, t) {
			return false
		}
	}
	return true
}

// autoMatch evaluates labelID's rules against an item known to the host.
func (e *Engine) autoMatch(labelID, itemID string) bool {
	l := e.labels[labelID]
	if l == nil || !l.Options.AutoSettings {
		return false
	}
	attrs, ok := e.host.GetItemAttributes(itemID)
	if !ok {
		return false
	}
	return Matches(l.Options, attrs)
}

// firstAutoMatch returns the first label, in ascending id order, whose
// rules claim the item.
func (e *Engine) firstAutoMatch(itemID string) (string, bool) {
	for _, id := range e.sortedLabelIDs() {
		if models.IsReserved(id) {
			continue
		}
		if e.autoMatch(id, itemID) {
			return id, true
		}
	}
	return "", false
}

// retroactiveMatches returns the known items, in ascending order, that
// labelID's rules claim. With unlabeledOnly, assigned items are skipped.
func (e *Engine) retroactiveMatches(labelID string, unlabeledOnly bool) []string {
	items := append([]string(nil), e.host.ListKnownItems()...)
	sort.Strings(items)

	var matches []string
	for _, itemID := range items {
		if _, mapped := e.mappings[itemID]; unlabeledOnly && mapped {
			continue
		}
		if e.autoMatch(labelID, itemID) {
			matches = append(matches, itemID)
		}
	}
	return matches
}
