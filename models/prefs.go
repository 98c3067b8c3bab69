package models

import (
	"encoding/json"
	"fmt"
)

// GlobalOptions are engine-wide switches.
type GlobalOptions struct {
	// IncludeChildren folds descendant items into a label's count and
	// makes label filters match descendants.
	IncludeChildren bool `json:"include_children"`

	// ShowFullName reports an item's label as its full ancestry.
	ShowFullName bool `json:"show_full_name"`

	// MoveOnChanges moves already finished items whenever their label's
	// resolved path changes.
	MoveOnChanges bool `json:"move_on_changes"`
}

// Preferences bundles global options with the defaults new labels start from.
type Preferences struct {
	Options  GlobalOptions `json:"options"`
	Defaults LabelOptions  `json:"defaults"`
}

// DefaultPreferences returns the built-in preferences.
func DefaultPreferences() Preferences {
	return Preferences{
		Defaults: DefaultLabelOptions(),
	}
}

// Clone returns a deep copy.
func (p Preferences) Clone() Preferences {
	c := p
	c.Defaults = p.Defaults.Clone()
	return c
}

// Merge decodes a JSON patch of the form {"options": {...}, "defaults": {...}}
// on top of a copy of p. Either key may be omitted.
func (p Preferences) Merge(patch json.RawMessage) (Preferences, error) {
	merged := p.Clone()
	if len(patch) == 0 {
		return merged, nil
	}
	if err := json.Unmarshal(patch, &merged); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if err := merged.Defaults.Validate(); err != nil {
		return p, err
	}
	return merged, nil
}
