package labels

import (
	"encoding/json"

	"github.com/orian/labeltree/models"
	log "github.com/sirupsen/logrus"
)

// Retroactive asks SetOptions to re-run a label's auto-apply rules against
// items the host already knows. UnlabeledOnly defaults to true when decoded
// from JSON, so labeled items are only taken when a client asks for it.
type Retroactive struct {
	Apply         bool `json:"apply"`
	UnlabeledOnly bool `json:"unlabeled_only"`
}

func (r *Retroactive) UnmarshalJSON(data []byte) error {
	type plain Retroactive
	p := plain{UnlabeledOnly: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Retroactive(p)
	return nil
}

// SetOptions merges a JSON patch into a label's options.
//
// The merged options are validated before anything changes. Afterwards
// the label's items get the new settings, descendants are re-resolved if
// the label's path moved, and a move is requested when move-on-complete
// was just switched on. With retro.Apply and auto_settings on, matching
// items are assigned to the label in one batch.
func (e *Engine) SetOptions(labelID string, patch json.RawMessage, retro Retroactive) (err error) {
	defer func() { observe("set_options", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := e.requireLabel(labelID); err != nil {
		return err
	}

	l := e.labels[labelID]
	old := l.Options

	merged, err := old.Merge(patch)
	if err != nil {
		return err
	}
	if err := merged.Validate(); err != nil {
		return err
	}
	merged.Normalize(e.host.DefaultSavePath())

	l.Options = merged
	e.resolveOwnPath(labelID)
	e.save()

	for _, itemID := range sortedKeys(e.index[labelID].items) {
		e.applyItemSettings(itemID)
	}

	opts := l.Options
	moveOnChanges := e.prefs.Options.MoveOnChanges
	if old.MoveCompletedPath != opts.MoveCompletedPath {
		e.propagatePath(labelID)
		e.save()
		if moveOnChanges {
			e.subtreeMoveCompleted(labelID)
		}
	} else if opts.MovesOnComplete() && !old.MovesOnComplete() && moveOnChanges {
		e.doMoveCompleted(labelID, sortedKeys(e.index[labelID].items))
	}

	if opts.AutoSettings && retro.Apply {
		matches := e.retroactiveMatches(labelID, retro.UnlabeledOnly)
		if len(matches) > 0 {
			e.setItemLabels(labelID, matches)
			autoAssignments.WithLabelValues("retroactive").Add(float64(len(matches)))
			e.log.WithFields(log.Fields{"label": labelID, "items": len(matches)}).Info("Applied label retroactively")
		}
	}

	e.touch()
	e.save()
	return nil
}

// GetOptions returns a copy of a label's options.
func (e *Engine) GetOptions(labelID string) (models.LabelOptions, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.requireInitialized(); err != nil {
		return models.LabelOptions{}, err
	}
	if err := e.requireLabel(labelID); err != nil {
		return models.LabelOptions{}, err
	}
	return e.labels[labelID].Options.Clone(), nil
}

// SetPreferences merges a JSON patch of the form
// {"options": {...}, "defaults": {...}} into the preferences. Existing
// labels keep their options; defaults only seed new labels.
func (e *Engine) SetPreferences(patch json.RawMessage) (err error) {
	defer func() { observe("set_preferences", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireInitialized(); err != nil {
		return err
	}

	merged, err := e.prefs.Merge(patch)
	if err != nil {
		return err
	}
	merged.Defaults.Normalize(e.host.DefaultSavePath())
	e.prefs = merged

	e.touch()
	e.save()
	return nil
}

// GetPreferences returns a copy of the preferences.
func (e *Engine) GetPreferences() (models.Preferences, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.requireInitialized(); err != nil {
		return models.Preferences{}, err
	}
	return e.prefs.Clone(), nil
}
