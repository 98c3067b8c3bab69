package labels

import "github.com/orian/labeltree/models"

// Host is the torrent engine that owns the items.
//
// All calls are made while the engine holds its lock, so implementations
// must not call back into the Engine.
type Host interface {
	// ApplyItemSettings applies a label's settings to one item.
	ApplyItemSettings(itemID string, settings models.ItemSettings)

	// ResetItemSettings restores the host defaults on one item.
	ResetItemSettings(itemID string)

	// SetMovePath changes only the move-on-complete destination of an item.
	SetMovePath(itemID, path string)

	// GetItemAttributes returns the item's name, trackers and save path.
	// ok is false when the host does not know the item.
	GetItemAttributes(itemID string) (attrs models.ItemAttributes, ok bool)

	// ListKnownItems returns every item the host currently manages.
	ListKnownItems() []string

	// DefaultSavePath is the host's download location, the base path of
	// root-level labels.
	DefaultSavePath() string
}

// Mover relocates already finished items to their move-on-complete path.
// It is optional: an Engine without a Mover skips move requests.
type Mover interface {
	RequestMove(itemIDs []string)
}
