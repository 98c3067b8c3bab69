package labels

import (
	"sort"
	"time"

	"github.com/orian/labeltree/models"
)

// Snapshot is the aggregated view returned by the change feed.
type Snapshot struct {
	// Token is the change token the counts were taken at. Clients send it
	// back on the next poll.
	Token time.Time `json:"token"`

	// Counts is keyed by label id and includes models.IDAll and
	// models.IDNone.
	Counts map[string]models.LabelCount `json:"counts"`
}

// GetSnapshot returns fresh counts if anything changed after token, and
// nil otherwise. A zero token always gets a snapshot.
func (e *Engine) GetSnapshot(token time.Time) (*Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.requireInitialized(); err != nil {
		return nil, err
	}

	if !token.Before(e.lastModified) {
		snapshotRequests.WithLabelValues("unchanged").Inc()
		return nil, nil
	}

	snapshotRequests.WithLabelValues("fresh").Inc()
	return &Snapshot{
		Token:  e.lastModified,
		Counts: e.labelCounts(),
	}, nil
}

// ChangeToken returns the current change token.
func (e *Engine) ChangeToken() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastModified
}

// labelCounts computes per-label item counts in one pass. Reverse
// lexicographic order visits every label after all of its descendants,
// since a child id extends its parent id.
func (e *Engine) labelCounts() map[string]models.LabelCount {
	ids := e.sortedLabelIDs()
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	counts := make(map[string]models.LabelCount, len(ids)+2)
	labeled := 0
	for _, id := range ids {
		n := e.index[id]
		count := len(n.items)
		labeled += count

		if e.prefs.Options.IncludeChildren {
			for childID := range n.children {
				count += counts[childID].Count
			}
		}

		counts[id] = models.LabelCount{Name: e.labels[id].Name, Count: count}
	}

	total := len(e.host.ListKnownItems())
	counts[models.IDAll] = models.LabelCount{Name: models.IDAll, Count: total}
	counts[models.IDNone] = models.LabelCount{Name: models.IDNone, Count: total - labeled}
	return counts
}

// ListLabels returns every label in ascending id order.
func (e *Engine) ListLabels() ([]models.LabelInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.requireInitialized(); err != nil {
		return nil, err
	}

	infos := make([]models.LabelInfo, 0, len(e.labels))
	for _, id := range e.sortedLabelIDs() {
		infos = append(infos, models.LabelInfo{
			ID:       id,
			ParentID: models.ParentOf(id),
			Name:     e.labels[id].Name,
			FullName: e.ancestry(id),
			Items:    len(e.index[id].items),
		})
	}
	return infos, nil
}
