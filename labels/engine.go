// Package labels implements the label tree engine: the label store and its
// derived index, item assignment, path propagation, auto-apply rules and
// the change feed polled by clients.
package labels

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/orian/labeltree/models"
	log "github.com/sirupsen/logrus"
)

// Engine owns the label store, the tree index and the item mapping.
//
// Every mutation, including host notifications, runs under the write lock
// from validation to the final change token bump. Queries share the read
// lock.
type Engine struct {
	mu sync.RWMutex

	host    Host
	mover   Mover
	storage models.Storage
	log     *log.Entry
	now     func() time.Time

	initialized  bool
	prefs        models.Preferences
	labels       map[string]*models.Label
	mappings     map[string]string
	index        map[string]*node
	lastModified time.Time

	// ancestryMu guards node.ancestry, which is filled lazily by readers.
	ancestryMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithMover sets the collaborator used for move requests.
func WithMover(m Mover) Option {
	return func(e *Engine) { e.mover = m }
}

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.log = l.WithField("component", "labels") }
}

// WithClock replaces time.Now for change tokens.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine that is not yet initialized. storage may be nil,
// in which case state lives in memory only.
func New(host Host, storage models.Storage, opts ...Option) *Engine {
	e := &Engine{
		host:     host,
		storage:  storage,
		log:      log.WithField("component", "labels"),
		now:      time.Now,
		prefs:    models.DefaultPreferences(),
		labels:   make(map[string]*models.Label),
		mappings: make(map[string]string),
		index:    make(map[string]*node),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start loads the persisted state and reconciles it with the host: stale
// mappings and reserved ids are dropped, options are normalized, the index
// is rebuilt, orphaned labels are removed and every mapped item gets its
// label's settings again. Only a storage error fails.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}

	state := models.NewState()
	if e.storage != nil {
		loaded, err := e.storage.LoadState()
		if err != nil {
			return fmt.Errorf("failed to load label state: %w", err)
		}
		if loaded != nil {
			state = loaded
		}
	}

	e.initializeData(state)
	e.buildIndex()
	e.removeOrphans()
	e.save()

	// the host may have restarted without the settings it was given
	itemIDs := make([]string, 0, len(e.mappings))
	for itemID := range e.mappings {
		itemIDs = append(itemIDs, itemID)
	}
	sort.Strings(itemIDs)
	for _, itemID := range itemIDs {
		e.applyItemSettings(itemID)
	}

	e.touch()
	e.initialized = true
	e.updateGauges()

	e.log.WithFields(log.Fields{
		"labels":   len(e.labels),
		"mappings": len(e.mappings),
	}).Info("Label engine initialized")
	return nil
}

// IsInitialized reports whether Start has completed.
func (e *Engine) IsInitialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initialized
}

func (e *Engine) initializeData(state *models.State) {
	defaultPath := e.host.DefaultSavePath()

	e.labels = make(map[string]*models.Label, len(state.Labels))
	for id, l := range state.Labels {
		if models.IsReserved(id) || models.ParentOf(id) == "" {
			e.log.WithField("label", id).Warn("Dropping label with reserved or malformed id")
			continue
		}
		opts := l.Options.Clone()
		repairOptions(&opts)
		opts.Normalize(defaultPath)
		e.labels[id] = &models.Label{Name: l.Name, Options: opts}
	}

	known := e.knownItems()
	e.mappings = make(map[string]string, len(state.Mappings))
	for itemID, labelID := range state.Mappings {
		if !known[itemID] || e.labels[labelID] == nil {
			continue
		}
		e.mappings[itemID] = labelID
	}

	e.prefs = state.Prefs.Clone()
	repairOptions(&e.prefs.Defaults)
	e.prefs.Defaults.Normalize(defaultPath)
}

// repairOptions fixes values Validate would reject, since startup repairs
// rather than fails.
func repairOptions(o *models.LabelOptions) {
	if o.MoveCompletedMode != "" && !o.MoveCompletedMode.Valid() {
		o.MoveCompletedMode = models.MoveFixed
	}
	if o.StopRatio < 0 {
		o.StopRatio = 0
	}
}

// AddLabel creates a label named name under parentID and returns its id.
// parentID may be models.NullParent for a root-level label.
func (e *Engine) AddLabel(parentID, name string) (id string, err error) {
	defer func() { observe("add_label", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireInitialized(); err != nil {
		return "", err
	}
	if parentID != models.NullParent {
		if err := e.requireLabel(parentID); err != nil {
			return "", err
		}
	}
	name, err = e.validateName(parentID, name, "")
	if err != nil {
		return "", err
	}

	id = e.unusedID(parentID)

	opts := e.prefs.Defaults.Clone()
	if opts.MoveCompletedMode != models.MoveFixed {
		path := e.parentPath(id)
		if opts.MoveCompletedMode == models.MoveSubfolder {
			path = filepath.Join(path, name)
		}
		opts.MoveCompletedPath = path
	}

	e.labels[id] = &models.Label{Name: name, Options: opts}
	e.index[id] = newNode()
	e.index[parentID].children[id] = struct{}{}
	e.ancestry(id)

	e.touch()
	e.save()
	e.updateGauges()

	e.log.WithFields(log.Fields{"label": id, "name": name}).Debug("Label added")
	return id, nil
}

// RemoveLabel deletes a label and its whole subtree. Items assigned
// anywhere in the subtree are unassigned and reset to host defaults.
func (e *Engine) RemoveLabel(id string) (err error) {
	defer func() { observe("remove_label", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := e.requireLabel(id); err != nil {
		return err
	}

	removed := e.removeSubtree(id)
	delete(e.index[models.ParentOf(id)].children, id)

	e.touch()
	e.save()
	e.updateGauges()

	e.log.WithFields(log.Fields{"label": id, "removed": removed}).Debug("Label removed")
	return nil
}

// RenameLabel changes a label's display name. Identifiers never change;
// subfolder labels get their path and their descendants' paths recomputed.
func (e *Engine) RenameLabel(id, name string) (err error) {
	defer func() { observe("rename_label", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := e.requireLabel(id); err != nil {
		return err
	}
	name, err = e.validateName(models.ParentOf(id), name, id)
	if err != nil {
		return err
	}

	l := e.labels[id]
	l.Name = name
	e.clearSubtreeAncestry(id)

	subfolder := l.Options.MoveCompletedMode == models.MoveSubfolder
	if subfolder {
		l.Options.MoveCompletedPath = filepath.Join(e.parentPath(id), name)
		e.applyMovePath(id)
		e.propagatePath(id)
	}

	e.touch()
	e.save()

	if subfolder && e.prefs.Options.MoveOnChanges {
		e.subtreeMoveCompleted(id)
	}

	e.log.WithFields(log.Fields{"label": id, "name": name}).Debug("Label renamed")
	return nil
}

// GetParentPath returns the resolved path a label inherits from: the
// parent's move path, or the host's default save path for root labels.
func (e *Engine) GetParentPath(id string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.requireInitialized(); err != nil {
		return "", err
	}
	if err := e.requireLabel(id); err != nil {
		return "", err
	}
	return e.parentPath(id), nil
}

func (e *Engine) parentPath(id string) string {
	parentID := models.ParentOf(id)
	if parentID == models.NullParent {
		return e.host.DefaultSavePath()
	}
	return e.labels[parentID].Options.MoveCompletedPath
}

func (e *Engine) requireInitialized() error {
	if !e.initialized {
		return models.ErrNotInitialized
	}
	return nil
}

// requireLabel fails for pseudo labels and ids missing from the store.
func (e *Engine) requireLabel(id string) error {
	if models.IsReserved(id) || e.labels[id] == nil {
		return fmt.Errorf("%w: %q", models.ErrUnknownLabel, id)
	}
	return nil
}

// validateName trims name and checks it against the children of parentID,
// ignoring self so a label can be renamed to its current name.
func (e *Engine) validateName(parentID, name, self string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is empty", models.ErrInvalidName)
	}
	for childID := range e.index[parentID].children {
		if childID == self {
			continue
		}
		if e.labels[childID].Name == name {
			return "", fmt.Errorf("%w: %q", models.ErrDuplicateName, name)
		}
	}
	return name, nil
}

// unusedID returns the first free child slot of parentID.
func (e *Engine) unusedID(parentID string) string {
	for i := 0; ; i++ {
		id := models.ChildID(parentID, i)
		if _, ok := e.labels[id]; !ok {
			return id
		}
	}
}

// touch advances the change token. Tokens are strictly increasing even if
// the clock does not move between two mutations.
func (e *Engine) touch() {
	now := e.now().UTC().Round(0)
	if !now.After(e.lastModified) {
		now = e.lastModified.Add(time.Nanosecond)
	}
	e.lastModified = now
}

// save writes the state to storage. Failures are logged: the in-memory
// state stays authoritative and the next mutation retries the write.
func (e *Engine) save() {
	if e.storage == nil {
		return
	}
	if err := e.storage.SaveState(e.state()); err != nil {
		e.log.WithError(err).Error("Failed to save label state")
	}
}

// state copies the in-memory data into its persisted form.
func (e *Engine) state() *models.State {
	s := &models.State{
		Prefs:    e.prefs.Clone(),
		Labels:   make(map[string]models.Label, len(e.labels)),
		Mappings: make(map[string]string, len(e.mappings)),
	}
	for id, l := range e.labels {
		s.Labels[id] = models.Label{Name: l.Name, Options: l.Options.Clone()}
	}
	for itemID, labelID := range e.mappings {
		s.Mappings[itemID] = labelID
	}
	return s
}

func (e *Engine) knownItems() map[string]bool {
	items := e.host.ListKnownItems()
	known := make(map[string]bool, len(items))
	for _, id := range items {
		known[id] = true
	}
	return known
}

// sortedLabelIDs returns every stored label id in ascending order.
func (e *Engine) sortedLabelIDs() []string {
	ids := make([]string, 0, len(e.labels))
	for id := range e.labels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
