package labels

import (
	"github.com/orian/labeltree/models"
	log "github.com/sirupsen/logrus"
)

// SetItemLabels assigns items to labelID, or unassigns them when labelID
// is empty. Items the host does not know are skipped. Previously applied
// label settings are reset before the new label's settings are applied.
func (e *Engine) SetItemLabels(labelID string, itemIDs []string) (err error) {
	defer func() { observe("set_item_labels", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireInitialized(); err != nil {
		return err
	}
	if labelID != "" {
		if err := e.requireLabel(labelID); err != nil {
			return err
		}
	}

	known := e.knownItems()
	seen := make(map[string]bool, len(itemIDs))
	var items []string
	for _, id := range itemIDs {
		if known[id] && !seen[id] {
			seen[id] = true
			items = append(items, id)
		}
	}

	e.setItemLabels(labelID, items)
	return nil
}

func (e *Engine) setItemLabels(labelID string, itemIDs []string) {
	for _, id := range itemIDs {
		e.setItemLabel(id, labelID)
	}

	e.touch()
	e.save()
	e.updateGauges()

	e.doMoveCompleted(labelID, itemIDs)
}

// setItemLabel moves one item between labels, keeping the mapping, the
// index and the host's applied settings in step.
func (e *Engine) setItemLabel(itemID, labelID string) {
	if current, ok := e.mappings[itemID]; ok {
		e.host.ResetItemSettings(itemID)
		if n := e.index[current]; n != nil {
			delete(n.items, itemID)
		}
		delete(e.mappings, itemID)
	}

	if labelID != "" {
		e.mappings[itemID] = labelID
		e.index[labelID].items[itemID] = struct{}{}
		e.applyItemSettings(itemID)
	}

	e.log.WithFields(log.Fields{"item": itemID, "label": labelID}).Debug("Item label set")
}

// applyItemSettings pushes the settings of the item's label to the host.
func (e *Engine) applyItemSettings(itemID string) {
	labelID, ok := e.mappings[itemID]
	if !ok {
		return
	}
	e.host.ApplyItemSettings(itemID, e.labels[labelID].Options.ItemSettings())
}

// GetItemLabel returns the item's label id, or "" if it has none.
func (e *Engine) GetItemLabel(itemID string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.requireInitialized(); err != nil {
		return "", err
	}
	return e.mappings[itemID], nil
}

// GetItemLabelName returns the display name of the item's label: its own
// name, or its full ancestry when show_full_name is on. Unassigned items
// yield "".
func (e *Engine) GetItemLabelName(itemID string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.requireInitialized(); err != nil {
		return "", err
	}
	labelID, ok := e.mappings[itemID]
	if !ok {
		return "", nil
	}
	if e.prefs.Options.ShowFullName {
		return e.ancestry(labelID), nil
	}
	return e.labels[labelID].Name, nil
}

// FilterItems keeps the items that belong to any of labelIDs. models.IDNone
// selects unassigned items; with include_children, an item also matches
// when its label descends from a requested label.
func (e *Engine) FilterItems(itemIDs, labelIDs []string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.requireInitialized(); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(labelIDs))
	for _, id := range labelIDs {
		wanted[id] = true
	}

	filtered := []string{}
	for _, itemID := range itemIDs {
		labelID, ok := e.mappings[itemID]
		switch {
		case !ok:
			if wanted[models.IDNone] {
				filtered = append(filtered, itemID)
			}
		case wanted[labelID]:
			filtered = append(filtered, itemID)
		case e.prefs.Options.IncludeChildren:
			for _, id := range labelIDs {
				if models.IsAncestor(id, labelID) {
					filtered = append(filtered, itemID)
					break
				}
			}
		}
	}
	return filtered, nil
}

// OnItemAdded runs auto-apply rules for a new item and assigns it to the
// first matching label, in ascending label id order.
func (e *Engine) OnItemAdded(itemID string) (err error) {
	defer func() { observe("item_added", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireInitialized(); err != nil {
		return err
	}

	if labelID, ok := e.firstAutoMatch(itemID); ok {
		e.setItemLabel(itemID, labelID)
		e.save()
		e.updateGauges()
		autoAssignments.WithLabelValues("added").Inc()
		e.log.WithFields(log.Fields{"item": itemID, "label": labelID}).Info("Item auto-labeled")
	}

	e.touch()
	return nil
}

// OnItemRemoved forgets the item's assignment. Host settings are not
// reset since the item is going away.
func (e *Engine) OnItemRemoved(itemID string) (err error) {
	defer func() { observe("item_removed", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireInitialized(); err != nil {
		return err
	}

	if labelID, ok := e.mappings[itemID]; ok {
		if n := e.index[labelID]; n != nil {
			delete(n.items, itemID)
		}
		delete(e.mappings, itemID)
		e.save()
		e.updateGauges()
		e.log.WithFields(log.Fields{"item": itemID, "label": labelID}).Debug("Removed item from index and mappings")
	}

	e.touch()
	return nil
}

// OnItemFinished requests a move for a finished item whose save path does
// not match its label's resolved path.
func (e *Engine) OnItemFinished(itemID string) (err error) {
	defer func() { observe("item_finished", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireInitialized(); err != nil {
		return err
	}

	labelID, ok := e.mappings[itemID]
	if !ok {
		return nil
	}
	attrs, ok := e.host.GetItemAttributes(itemID)
	if !ok {
		return nil
	}
	if attrs.SavePath != e.labels[labelID].Options.MoveCompletedPath {
		e.doMoveCompleted(labelID, []string{itemID})
	}
	return nil
}
