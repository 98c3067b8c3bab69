package labels

import (
	"testing"
	"time"

	"github.com/orian/labeltree/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSnapshotCounts(t *testing.T) {
	host := newFakeHost("/dl")
	for _, id := range []string{"t1", "t2", "t3", "t4", "t5"} {
		host.addItem(id, id)
	}
	e := startEngine(t, host)

	movies := addLabel(t, e, models.NullParent, "Movies")
	hd := addLabel(t, e, movies, "HD")
	uhd := addLabel(t, e, hd, "UHD")
	tv := addLabel(t, e, models.NullParent, "TV")

	require.NoError(t, e.SetItemLabels(movies, []string{"t1"}))
	require.NoError(t, e.SetItemLabels(hd, []string{"t2", "t3"}))
	require.NoError(t, e.SetItemLabels(uhd, []string{"t4"}))

	tests := []struct {
		name            string
		includeChildren bool
		want            map[string]int
	}{
		{
			name: "direct counts",
			want: map[string]int{movies: 1, hd: 2, uhd: 1, tv: 0, models.IDAll: 5, models.IDNone: 1},
		},
		{
			name:            "include children",
			includeChildren: true,
			want:            map[string]int{movies: 4, hd: 3, uhd: 1, tv: 0, models.IDAll: 5, models.IDNone: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.includeChildren {
				setPrefs(t, e, `{"options": {"include_children": true}}`)
			} else {
				setPrefs(t, e, `{"options": {"include_children": false}}`)
			}

			snap, err := e.GetSnapshot(time.Time{})
			require.NoError(t, err)
			require.NotNil(t, snap)
			assert.Equal(t, e.ChangeToken(), snap.Token)

			got := make(map[string]int, len(snap.Counts))
			for id, c := range snap.Counts {
				got[id] = c.Count
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "HD", snap.Counts[hd].Name)
		})
	}
}

func TestGetSnapshotToken(t *testing.T) {
	host := newFakeHost("/dl")
	host.addItem("t1", "one")
	e := startEngine(t, host, WithClock(frozenClock()))

	snap, err := e.GetSnapshot(time.Time{})
	require.NoError(t, err)
	require.NotNil(t, snap)

	unchanged, err := e.GetSnapshot(snap.Token)
	require.NoError(t, err)
	assert.Nil(t, unchanged)

	// a token from the future is not older than the current one
	unchanged, err = e.GetSnapshot(snap.Token.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, unchanged)

	a := addLabel(t, e, models.NullParent, "a")
	next, err := e.GetSnapshot(snap.Token)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.True(t, next.Token.After(snap.Token))
	assert.Contains(t, next.Counts, a)

	// failed mutations leave the token alone
	_, err = e.AddLabel(models.NullParent, "a")
	require.Error(t, err)
	unchanged, err = e.GetSnapshot(next.Token)
	require.NoError(t, err)
	assert.Nil(t, unchanged)
}

func TestListLabelsItems(t *testing.T) {
	host := newFakeHost("/dl")
	host.addItem("t1", "one")
	host.addItem("t2", "two")
	e := startEngine(t, host)

	a := addLabel(t, e, models.NullParent, "a")
	b := addLabel(t, e, a, "b")
	require.NoError(t, e.SetItemLabels(b, []string{"t1", "t2"}))

	infos, err := e.ListLabels()
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, models.LabelInfo{ID: a, ParentID: models.NullParent, Name: "a", FullName: "a", Items: 0}, infos[0])
	assert.Equal(t, models.LabelInfo{ID: b, ParentID: a, Name: "b", FullName: "a/b", Items: 2}, infos[1])
}
