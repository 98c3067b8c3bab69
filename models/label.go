package models

import (
	"strconv"
	"strings"
)

// Reserved label identifiers. None of them is ever stored as a real label.
const (
	// NullParent is the parent of every root-level label.
	NullParent = "-"

	// IDAll addresses every item known to the host, labeled or not.
	IDAll = "All"

	// IDNone addresses items without a label.
	IDNone = "None"

	// Separator joins a parent identifier and a child suffix.
	Separator = ":"
)

// Label is a named node in the label hierarchy.
//
// A label's position in the tree is encoded entirely in its identifier:
// "-:0" is a root label, "-:0:2" its third child slot. The identifier is
// the map key of the store, so Label itself carries no ID or parent field.
type Label struct {
	// Name is the display name, unique among siblings.
	Name string `json:"name"`

	// Options is the label's own configuration.
	Options LabelOptions `json:"options"`
}

// IsReserved reports whether id is one of the query-only pseudo labels.
func IsReserved(id string) bool {
	return id == NullParent || id == IDAll || id == IDNone
}

// ParentOf derives the parent identifier by stripping the last segment.
// Root labels return NullParent; NullParent itself has no parent and
// yields the empty string.
func ParentOf(id string) string {
	i := strings.LastIndex(id, Separator)
	if i < 0 {
		return ""
	}
	return id[:i]
}

// ChildID builds the identifier for the child of parent with the given suffix.
func ChildID(parent string, suffix int) string {
	return parent + Separator + strconv.Itoa(suffix)
}

// IsAncestor reports whether ancestor is a strict ancestor of id.
func IsAncestor(ancestor, id string) bool {
	return strings.HasPrefix(id, ancestor+Separator)
}
