// Package models defines the core data types for labeltree,
// a hierarchical label service for torrent clients.
package models

// State is the persisted form of the engine: the label tree, the item
// assignments and the preferences. It is loaded once at startup and
// written back after every mutating operation.
type State struct {
	// Prefs holds global options and the defaults for new labels.
	Prefs Preferences `json:"prefs"`

	// Labels maps a label identifier to its record. Parentage is encoded
	// in the identifier, see ParentOf.
	Labels map[string]Label `json:"labels"`

	// Mappings maps an item identifier to the label it is assigned to.
	Mappings map[string]string `json:"mappings"`
}

// NewState returns an empty state with default preferences.
func NewState() *State {
	return &State{
		Prefs:    DefaultPreferences(),
		Labels:   make(map[string]Label),
		Mappings: make(map[string]string),
	}
}

// LabelInfo is the read-only view of one label returned by listings.
type LabelInfo struct {
	// ID is the label identifier.
	ID string `json:"id"`

	// ParentID is the derived parent, NullParent for root labels.
	ParentID string `json:"parentId"`

	// Name is the label's own display name.
	Name string `json:"name"`

	// FullName is the "/"-joined ancestry from the root to this label.
	FullName string `json:"fullName"`

	// Items is the number of items assigned directly to the label.
	Items int `json:"items"`
}

// LabelCount is one entry of a change feed snapshot.
type LabelCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
