package labels

import (
	"sort"
	"strings"

	"github.com/orian/labeltree/models"
	log "github.com/sirupsen/logrus"
)

// node is the derived index entry of one label.
type node struct {
	children map[string]struct{}
	items    map[string]struct{}

	// ancestry caches the "/"-joined display path, see Engine.ancestry.
	ancestry    string
	hasAncestry bool
}

func newNode() *node {
	return &node{
		children: make(map[string]struct{}),
		items:    make(map[string]struct{}),
	}
}

// buildIndex derives children and item sets from the store and mapping.
// Labels whose parent is missing are left unattached for removeOrphans.
func (e *Engine) buildIndex() {
	e.index = make(map[string]*node, len(e.labels)+1)
	e.index[models.NullParent] = newNode()
	for id := range e.labels {
		e.index[id] = newNode()
	}

	for id := range e.labels {
		if parent, ok := e.index[models.ParentOf(id)]; ok {
			parent.children[id] = struct{}{}
		}
	}

	for itemID, labelID := range e.mappings {
		e.index[labelID].items[itemID] = struct{}{}
	}
}

// removeOrphans drops every label whose derived parent no longer exists,
// together with its subtree. This repairs partial writes of a prior run.
func (e *Engine) removeOrphans() {
	var orphans []string
	for id := range e.labels {
		if _, ok := e.index[models.ParentOf(id)]; !ok {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)

	for _, id := range orphans {
		if e.labels[id] == nil {
			continue
		}
		removed := e.removeSubtree(id)
		e.log.WithFields(log.Fields{"label": id, "removed": removed}).Warn("Removed orphaned label")
	}
}

// removeSubtree deletes id and all its descendants bottom-up, unassigning
// their items. It does not detach id from its parent. Returns the number
// of labels removed.
func (e *Engine) removeSubtree(id string) int {
	var order []string
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, cur)
		for childID := range e.index[cur].children {
			stack = append(stack, childID)
		}
	}

	// order lists every label before its descendants
	for i := len(order) - 1; i >= 0; i-- {
		cur := order[i]
		for _, itemID := range sortedKeys(e.index[cur].items) {
			e.host.ResetItemSettings(itemID)
			delete(e.mappings, itemID)
		}
		delete(e.index, cur)
		delete(e.labels, cur)
	}
	return len(order)
}

// ancestry returns the display path of id, computing and caching it on
// first use. The walk stops at the root or at the first cached ancestor.
func (e *Engine) ancestry(id string) string {
	e.ancestryMu.Lock()
	defer e.ancestryMu.Unlock()

	if n := e.index[id]; n != nil && n.hasAncestry {
		return n.ancestry
	}

	var members []string
	for cur := id; cur != "" && cur != models.NullParent; cur = models.ParentOf(cur) {
		n := e.index[cur]
		if n == nil {
			break
		}
		if n.hasAncestry {
			members = append(members, n.ancestry)
			break
		}
		members = append(members, e.labels[cur].Name)
	}

	for i, j := 0, len(members)-1; i < j; i, j = i+1, j-1 {
		members[i], members[j] = members[j], members[i]
	}
	s := strings.Join(members, "/")

	if n := e.index[id]; n != nil {
		n.ancestry = s
		n.hasAncestry = true
	}
	return s
}

// clearSubtreeAncestry invalidates the cached ancestry of id and every
// descendant. Values are recomputed lazily.
func (e *Engine) clearSubtreeAncestry(id string) {
	e.ancestryMu.Lock()
	defer e.ancestryMu.Unlock()

	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := e.index[cur]
		n.ancestry = ""
		n.hasAncestry = false
		for childID := range n.children {
			stack = append(stack, childID)
		}
	}
}

// sortedChildren returns the children of id in ascending order.
func (e *Engine) sortedChildren(id string) []string {
	return sortedKeys(e.index[id].children)
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
