package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// boolPtr is a helper for optional settings
func boolPtr(b bool) *bool { return &b }

func TestLabelOptionsMerge(t *testing.T) {
	base := DefaultLabelOptions()
	base.AutoQueries = []string{"keep"}

	tests := []struct {
		name    string
		patch   string
		check   func(t *testing.T, o LabelOptions)
		wantErr bool
	}{
		{
			name:  "empty patch",
			patch: "",
			check: func(t *testing.T, o LabelOptions) {
				assert.Equal(t, base, o)
			},
		},
		{
			name:  "absent fields keep their value",
			patch: `{"max_connections": 5}`,
			check: func(t *testing.T, o LabelOptions) {
				assert.Equal(t, 5, o.MaxConnections)
				assert.Equal(t, -1.0, o.MaxDownloadSpeed)
				assert.Equal(t, []string{"keep"}, o.AutoQueries)
			},
		},
		{
			name:  "unknown fields ignored",
			patch: `{"colour": "red", "auto_settings": true}`,
			check: func(t *testing.T, o LabelOptions) {
				assert.True(t, o.AutoSettings)
			},
		},
		{
			name:  "queries replaced",
			patch: `{"auto_queries": ["a b", "c"]}`,
			check: func(t *testing.T, o LabelOptions) {
				assert.Equal(t, []string{"a b", "c"}, o.AutoQueries)
			},
		},
		{name: "malformed", patch: `{"stop_ratio": "high"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := base.Merge(json.RawMessage(tt.patch))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidOptions)
				assert.Equal(t, base, got)
				return
			}
			require.NoError(t, err)
			tt.check(t, got)
		})
	}

	// the receiver is never modified
	assert.Equal(t, []string{"keep"}, base.AutoQueries)
	assert.Equal(t, -1, base.MaxConnections)
}

func TestLabelOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *LabelOptions)
		wantErr bool
	}{
		{name: "defaults", mutate: func(o *LabelOptions) {}},
		{name: "subfolder", mutate: func(o *LabelOptions) { o.MoveCompletedMode = MoveSubfolder }},
		{name: "inherit", mutate: func(o *LabelOptions) { o.MoveCompletedMode = MoveInherit }},
		{name: "empty mode", mutate: func(o *LabelOptions) { o.MoveCompletedMode = "" }, wantErr: true},
		{name: "unknown mode", mutate: func(o *LabelOptions) { o.MoveCompletedMode = "nested" }, wantErr: true},
		{name: "negative ratio", mutate: func(o *LabelOptions) { o.StopRatio = -0.5 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultLabelOptions()
			tt.mutate(&o)
			err := o.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidOptions)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLabelOptionsNormalize(t *testing.T) {
	o := LabelOptions{
		MoveCompletedPath: "  ",
		AutoQueries:       []string{" foo bar ", "", "\t", "baz"},
	}
	o.Normalize("/dl")

	assert.Equal(t, "/dl", o.MoveCompletedPath)
	assert.Equal(t, MoveFixed, o.MoveCompletedMode)
	assert.Equal(t, []string{"foo bar", "baz"}, o.AutoQueries)

	o.MoveCompletedPath = " /data "
	o.Normalize("/dl")
	assert.Equal(t, "/data", o.MoveCompletedPath)
}

func TestLabelOptionsItemSettings(t *testing.T) {
	tests := []struct {
		name string
		opts LabelOptions
		want ItemSettings
	}{
		{
			name: "all sections off",
			opts: DefaultLabelOptions(),
			want: ItemSettings{},
		},
		{
			name: "download without move",
			opts: LabelOptions{DownloadSettings: true, PrioritizeFirstLast: true, MoveCompletedPath: "/x"},
			want: ItemSettings{PrioritizeFirstLast: boolPtr(true)},
		},
		{
			name: "download with move",
			opts: LabelOptions{DownloadSettings: true, MoveCompleted: true, MoveCompletedPath: "/x"},
			want: ItemSettings{
				PrioritizeFirstLast: boolPtr(false),
				Move:                &MoveSettings{Enabled: true, Path: "/x"},
			},
		},
		{
			name: "move without download section",
			opts: LabelOptions{MoveCompleted: true, MoveCompletedPath: "/x"},
			want: ItemSettings{},
		},
		{
			name: "bandwidth and queue",
			opts: LabelOptions{
				BandwidthSettings: true, MaxDownloadSpeed: 10, MaxUploadSpeed: -1, MaxConnections: 50, MaxUploadSlots: 4,
				QueueSettings: true, AutoManaged: true, StopAtRatio: true, StopRatio: 1.5,
			},
			want: ItemSettings{
				Bandwidth: &BandwidthSettings{MaxDownloadSpeed: 10, MaxUploadSpeed: -1, MaxConnections: 50, MaxUploadSlots: 4},
				Queue:     &QueueSettings{AutoManaged: true, StopAtRatio: true, StopRatio: 1.5},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.ItemSettings())
		})
	}
}

func TestMovesOnComplete(t *testing.T) {
	assert.False(t, LabelOptions{MoveCompleted: true}.MovesOnComplete())
	assert.False(t, LabelOptions{DownloadSettings: true}.MovesOnComplete())
	assert.True(t, LabelOptions{DownloadSettings: true, MoveCompleted: true}.MovesOnComplete())
}

func TestCloneIsDeep(t *testing.T) {
	o := DefaultLabelOptions()
	o.AutoQueries = []string{"a"}
	c := o.Clone()
	c.AutoQueries[0] = "b"
	assert.Equal(t, "a", o.AutoQueries[0])

	p := DefaultPreferences()
	p.Defaults.AutoQueries = []string{"a"}
	pc := p.Clone()
	pc.Defaults.AutoQueries[0] = "b"
	assert.Equal(t, "a", p.Defaults.AutoQueries[0])
}
