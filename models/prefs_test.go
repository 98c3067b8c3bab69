package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferencesMerge(t *testing.T) {
	base := DefaultPreferences()
	base.Options.IncludeChildren = true

	t.Run("options only", func(t *testing.T) {
		got, err := base.Merge([]byte(`{"options": {"show_full_name": true}}`))
		require.NoError(t, err)
		assert.True(t, got.Options.ShowFullName)
		assert.True(t, got.Options.IncludeChildren)
		assert.Equal(t, base.Defaults, got.Defaults)
	})

	t.Run("defaults only", func(t *testing.T) {
		got, err := base.Merge([]byte(`{"defaults": {"move_completed_mode": "subfolder"}}`))
		require.NoError(t, err)
		assert.Equal(t, MoveSubfolder, got.Defaults.MoveCompletedMode)
		assert.Equal(t, -1, got.Defaults.MaxConnections)
		assert.Equal(t, base.Options, got.Options)
	})

	t.Run("invalid defaults", func(t *testing.T) {
		got, err := base.Merge([]byte(`{"defaults": {"stop_ratio": -2}}`))
		assert.ErrorIs(t, err, ErrInvalidOptions)
		assert.Equal(t, base, got)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := base.Merge([]byte(`[]`))
		assert.ErrorIs(t, err, ErrInvalidOptions)
	})
}
