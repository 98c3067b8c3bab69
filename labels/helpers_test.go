package labels

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/orian/labeltree/models"
	"github.com/stretchr/testify/require"
)

// fakeHost records what the engine asks of it.
type fakeHost struct {
	defaultPath string
	items       map[string]models.ItemAttributes
	applied     map[string]models.ItemSettings
	movePaths   map[string]string
	resets      map[string]int
}

func newFakeHost(defaultPath string) *fakeHost {
	return &fakeHost{
		defaultPath: defaultPath,
		items:       map[string]models.ItemAttributes{},
		applied:     map[string]models.ItemSettings{},
		movePaths:   map[string]string{},
		resets:      map[string]int{},
	}
}

func (h *fakeHost) addItem(id, name string, trackers ...string) {
	h.items[id] = models.ItemAttributes{Name: name, Trackers: trackers, SavePath: h.defaultPath}
}

func (h *fakeHost) ApplyItemSettings(itemID string, s models.ItemSettings) {
	h.applied[itemID] = s
	if s.Move != nil {
		h.movePaths[itemID] = s.Move.Path
	} else {
		delete(h.movePaths, itemID)
	}
}

func (h *fakeHost) ResetItemSettings(itemID string) {
	h.resets[itemID]++
	delete(h.applied, itemID)
	delete(h.movePaths, itemID)
}

func (h *fakeHost) SetMovePath(itemID, path string) {
	h.movePaths[itemID] = path
}

func (h *fakeHost) GetItemAttributes(itemID string) (models.ItemAttributes, bool) {
	attrs, ok := h.items[itemID]
	return attrs, ok
}

func (h *fakeHost) ListKnownItems() []string {
	ids := make([]string, 0, len(h.items))
	for id := range h.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *fakeHost) DefaultSavePath() string {
	return h.defaultPath
}

type fakeMover struct {
	batches [][]string
}

func (m *fakeMover) RequestMove(itemIDs []string) {
	m.batches = append(m.batches, append([]string(nil), itemIDs...))
}

// memStorage keeps a deep copy of the last saved state.
type memStorage struct {
	state *models.State
	saves int
}

func (s *memStorage) LoadState() (*models.State, error) {
	if s.state == nil {
		return nil, nil
	}
	return copyState(s.state), nil
}

func (s *memStorage) SaveState(st *models.State) error {
	s.state = copyState(st)
	s.saves++
	return nil
}

func (s *memStorage) Close() error { return nil }

func copyState(st *models.State) *models.State {
	c := &models.State{
		Prefs:    st.Prefs.Clone(),
		Labels:   make(map[string]models.Label, len(st.Labels)),
		Mappings: make(map[string]string, len(st.Mappings)),
	}
	for id, l := range st.Labels {
		c.Labels[id] = models.Label{Name: l.Name, Options: l.Options.Clone()}
	}
	for k, v := range st.Mappings {
		c.Mappings[k] = v
	}
	return c
}

func startEngine(t *testing.T, host *fakeHost, opts ...Option) *Engine {
	t.Helper()
	e := New(host, nil, opts...)
	require.NoError(t, e.Start())
	return e
}

func addLabel(t *testing.T, e *Engine, parent, name string) string {
	t.Helper()
	id, err := e.AddLabel(parent, name)
	require.NoError(t, err)
	return id
}

func setOptions(t *testing.T, e *Engine, id, patch string) {
	t.Helper()
	require.NoError(t, e.SetOptions(id, json.RawMessage(patch), Retroactive{}))
}

func setPrefs(t *testing.T, e *Engine, patch string) {
	t.Helper()
	require.NoError(t, e.SetPreferences(json.RawMessage(patch)))
}

func optionsOf(t *testing.T, e *Engine, id string) models.LabelOptions {
	t.Helper()
	opts, err := e.GetOptions(id)
	require.NoError(t, err)
	return opts
}

func pathOf(t *testing.T, e *Engine, id string) string {
	t.Helper()
	return optionsOf(t, e, id).MoveCompletedPath
}

// frozenClock returns the same instant on every call, so tokens only
// advance through Engine.touch.
func frozenClock() func() time.Time {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time { return fixed }
}
