package main

import (
	"sort"
	"sync"

	"github.com/orian/labeltree/models"
	log "github.com/sirupsen/logrus"
)

// Item is a torrent as tracked by the in-process registry.
type Item struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Trackers []string `json:"trackers"`
	SavePath string   `json:"savePath"`
	Finished bool     `json:"finished"`

	// Settings are the label settings last applied by the engine.
	Settings models.ItemSettings `json:"settings"`

	// MovePath is where the item goes once finished, empty for the
	// default location.
	MovePath string `json:"movePath,omitempty"`
}

// ItemRegistry stands in for the torrent engine: it keeps the items
// reported by clients and records what the label engine applies to them.
// It implements labels.Host and labels.Mover.
type ItemRegistry struct {
	mu          sync.Mutex
	items       map[string]*Item
	defaultPath string
}

func NewItemRegistry(defaultPath string) *ItemRegistry {
	return &ItemRegistry{
		items:       make(map[string]*Item),
		defaultPath: defaultPath,
	}
}

// Add registers or replaces an item and reports whether it was new.
// Engine-applied state is kept for an item that is already known.
func (r *ItemRegistry) Add(item Item) (Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item.SavePath == "" {
		item.SavePath = r.defaultPath
	}
	prev, known := r.items[item.ID]
	if known {
		item.Settings = prev.Settings
		item.MovePath = prev.MovePath
	}
	r.items[item.ID] = &item
	return item, !known
}

// Remove forgets an item. Reports whether it was known.
func (r *ItemRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.items[id]
	delete(r.items, id)
	return ok
}

// MarkFinished flags an item as complete. Reports whether it was known.
func (r *ItemRegistry) MarkFinished(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if ok {
		item.Finished = true
	}
	return ok
}

// Get returns a copy of the item.
func (r *ItemRegistry) Get(id string) (Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return Item{}, false
	}
	c := *item
	c.Trackers = append([]string(nil), item.Trackers...)
	return c, true
}

func (r *ItemRegistry) ApplyItemSettings(itemID string, s models.ItemSettings) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[itemID]
	if !ok {
		return
	}
	item.Settings = s
	item.MovePath = ""
	if s.Move != nil && s.Move.Enabled {
		item.MovePath = s.Move.Path
	}
}

func (r *ItemRegistry) ResetItemSettings(itemID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item, ok := r.items[itemID]; ok {
		item.Settings = models.ItemSettings{}
		item.MovePath = ""
	}
}

func (r *ItemRegistry) SetMovePath(itemID, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item, ok := r.items[itemID]; ok {
		item.MovePath = path
		if item.Settings.Move != nil {
			item.Settings.Move.Path = path
		}
	}
}

func (r *ItemRegistry) GetItemAttributes(itemID string) (models.ItemAttributes, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[itemID]
	if !ok {
		return models.ItemAttributes{}, false
	}
	return models.ItemAttributes{
		Name:     item.Name,
		Trackers: append([]string(nil), item.Trackers...),
		SavePath: item.SavePath,
	}, true
}

func (r *ItemRegistry) ListKnownItems() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *ItemRegistry) DefaultSavePath() string {
	return r.defaultPath
}

// RequestMove relocates finished items to their move path, or to the
// default location when they have none. Unfinished items are left alone;
// they move when they complete.
func (r *ItemRegistry) RequestMove(itemIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range itemIDs {
		item, ok := r.items[id]
		if !ok || !item.Finished {
			continue
		}
		dest := item.MovePath
		if dest == "" {
			dest = r.defaultPath
		}
		if dest == item.SavePath {
			continue
		}
		log.WithFields(log.Fields{"item": id, "from": item.SavePath, "to": dest}).Info("Moving item")
		item.SavePath = dest
	}
}
