package main

import (
	"testing"

	"github.com/orian/labeltree/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemRegistryHost(t *testing.T) {
	r := NewItemRegistry("/dl")

	item, added := r.Add(Item{ID: "t1", Name: "one", Trackers: []string{"udp://a"}})
	assert.True(t, added)
	assert.Equal(t, "/dl", item.SavePath)
	r.Add(Item{ID: "t0", Name: "zero", SavePath: "/elsewhere"})

	assert.Equal(t, []string{"t0", "t1"}, r.ListKnownItems())
	assert.Equal(t, "/dl", r.DefaultSavePath())

	attrs, ok := r.GetItemAttributes("t1")
	require.True(t, ok)
	assert.Equal(t, models.ItemAttributes{Name: "one", Trackers: []string{"udp://a"}, SavePath: "/dl"}, attrs)
	_, ok = r.GetItemAttributes("nope")
	assert.False(t, ok)

	r.ApplyItemSettings("t1", models.ItemSettings{Move: &models.MoveSettings{Enabled: true, Path: "/done"}})
	got, _ := r.Get("t1")
	assert.Equal(t, "/done", got.MovePath)

	r.SetMovePath("t1", "/done2")
	got, _ = r.Get("t1")
	assert.Equal(t, "/done2", got.MovePath)
	assert.Equal(t, "/done2", got.Settings.Move.Path)

	// re-adding keeps what the engine applied
	_, added = r.Add(Item{ID: "t1", Name: "one v2"})
	assert.False(t, added)
	got, _ = r.Get("t1")
	assert.Equal(t, "one v2", got.Name)
	assert.Equal(t, "/done2", got.MovePath)

	r.ResetItemSettings("t1")
	got, _ = r.Get("t1")
	assert.Empty(t, got.MovePath)
	assert.Equal(t, models.ItemSettings{}, got.Settings)

	assert.True(t, r.Remove("t1"))
	assert.False(t, r.Remove("t1"))

	// calls for unknown items are ignored
	r.ApplyItemSettings("t1", models.ItemSettings{})
	r.SetMovePath("t1", "/x")
	r.ResetItemSettings("t1")
	_, ok = r.Get("t1")
	assert.False(t, ok)
}

func TestItemRegistryRequestMove(t *testing.T) {
	r := NewItemRegistry("/dl")
	r.Add(Item{ID: "done", Name: "a"})
	r.Add(Item{ID: "running", Name: "b"})
	r.Add(Item{ID: "unlabeled", Name: "c", SavePath: "/tmp"})

	for _, id := range []string{"done", "running"} {
		r.ApplyItemSettings(id, models.ItemSettings{Move: &models.MoveSettings{Enabled: true, Path: "/target"}})
	}
	require.True(t, r.MarkFinished("done"))
	require.True(t, r.MarkFinished("unlabeled"))
	assert.False(t, r.MarkFinished("ghost"))

	r.RequestMove([]string{"done", "running", "unlabeled", "ghost"})

	tests := []struct {
		id   string
		want string
	}{
		{id: "done", want: "/target"},
		{id: "running", want: "/dl"},
		{id: "unlabeled", want: "/dl"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			item, ok := r.Get(tt.id)
			require.True(t, ok)
			assert.Equal(t, tt.want, item.SavePath)
		})
	}
}
