package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MoveMode controls how a label's move-on-complete path is resolved.
type MoveMode string

const (
	// MoveFixed keeps the user-entered path; it is never recomputed.
	MoveFixed MoveMode = "fixed"

	// MoveSubfolder resolves to the parent's path joined with the label name.
	MoveSubfolder MoveMode = "subfolder"

	// MoveInherit resolves to the parent's path verbatim.
	MoveInherit MoveMode = "inherit"
)

// Valid reports whether m is one of the known modes.
func (m MoveMode) Valid() bool {
	switch m {
	case MoveFixed, MoveSubfolder, MoveInherit:
		return true
	}
	return false
}

// LabelOptions is the closed set of per-label configuration fields.
//
// The struct is grouped into four sections, each gated by its own
// *_settings flag: download, bandwidth, queue and auto-apply. A section
// that is switched off leaves the host's defaults in place for the
// label's items.
type LabelOptions struct {
	// DownloadSettings enables the download section.
	DownloadSettings bool `json:"download_settings"`

	// MoveCompleted moves finished items to MoveCompletedPath.
	MoveCompleted bool `json:"move_completed"`

	// MoveCompletedMode decides how MoveCompletedPath is resolved.
	MoveCompletedMode MoveMode `json:"move_completed_mode"`

	// MoveCompletedPath is the resolved destination. For fixed mode it is
	// the user's literal; otherwise it is derived from the parent label.
	MoveCompletedPath string `json:"move_completed_path"`

	// PrioritizeFirstLast downloads the first and last pieces first.
	PrioritizeFirstLast bool `json:"prioritize_first_last"`

	// BandwidthSettings enables the bandwidth section.
	BandwidthSettings bool `json:"bandwidth_settings"`

	// MaxDownloadSpeed in KiB/s, -1 for unlimited.
	MaxDownloadSpeed float64 `json:"max_download_speed"`

	// MaxUploadSpeed in KiB/s, -1 for unlimited.
	MaxUploadSpeed float64 `json:"max_upload_speed"`

	// MaxConnections per item, -1 for unlimited.
	MaxConnections int `json:"max_connections"`

	// MaxUploadSlots per item, -1 for unlimited.
	MaxUploadSlots int `json:"max_upload_slots"`

	// QueueSettings enables the queue section.
	QueueSettings bool `json:"queue_settings"`

	AutoManaged   bool    `json:"auto_managed"`
	StopAtRatio   bool    `json:"stop_at_ratio"`
	StopRatio     float64 `json:"stop_ratio"`
	RemoveAtRatio bool    `json:"remove_at_ratio"`

	// AutoSettings lets the label claim new items automatically.
	AutoSettings bool `json:"auto_settings"`

	// AutoMatchName matches query terms against the item name.
	AutoMatchName bool `json:"auto_match_name"`

	// AutoMatchTracker matches query terms against tracker URLs.
	// Ignored when AutoMatchName is set.
	AutoMatchTracker bool `json:"auto_match_tracker"`

	// AutoQueries holds one query per line. Terms within a line are
	// AND-ed, lines are OR-ed.
	AutoQueries []string `json:"auto_queries"`
}

// DefaultLabelOptions returns the built-in label defaults.
func DefaultLabelOptions() LabelOptions {
	return LabelOptions{
		MoveCompletedMode: MoveFixed,
		MaxDownloadSpeed:  -1,
		MaxUploadSpeed:    -1,
		MaxConnections:    -1,
		MaxUploadSlots:    -1,
		AutoManaged:       true,
		StopRatio:         1.0,
		AutoMatchName:     true,
		AutoQueries:       []string{},
	}
}

// Clone returns a deep copy.
func (o LabelOptions) Clone() LabelOptions {
	c := o
	c.AutoQueries = append([]string{}, o.AutoQueries...)
	return c
}

// Merge decodes a JSON patch on top of a copy of o. Fields absent from the
// patch keep their current values and unknown fields are ignored.
func (o LabelOptions) Merge(patch json.RawMessage) (LabelOptions, error) {
	merged := o.Clone()
	if len(patch) == 0 {
		return merged, nil
	}
	if err := json.Unmarshal(patch, &merged); err != nil {
		return o, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return merged, nil
}

// Validate checks the fields that cannot be repaired by Normalize.
func (o LabelOptions) Validate() error {
	if !o.MoveCompletedMode.Valid() {
		return fmt.Errorf("%w: unknown move mode %q", ErrInvalidOptions, o.MoveCompletedMode)
	}
	if o.StopRatio < 0 {
		return fmt.Errorf("%w: stop ratio must not be negative", ErrInvalidOptions)
	}
	return nil
}

// Normalize trims the path, falls back to defaultPath when it is empty and
// drops blank query lines.
func (o *LabelOptions) Normalize(defaultPath string) {
	o.MoveCompletedPath = strings.TrimSpace(o.MoveCompletedPath)
	if o.MoveCompletedPath == "" {
		o.MoveCompletedPath = defaultPath
	}
	if o.MoveCompletedMode == "" {
		o.MoveCompletedMode = MoveFixed
	}

	queries := make([]string, 0, len(o.AutoQueries))
	for _, line := range o.AutoQueries {
		if line = strings.TrimSpace(line); line != "" {
			queries = append(queries, line)
		}
	}
	o.AutoQueries = queries
}

// MovesOnComplete reports whether items under the label should be moved
// to MoveCompletedPath when they finish.
func (o LabelOptions) MovesOnComplete() bool {
	return o.DownloadSettings && o.MoveCompleted
}

// ItemSettings projects the options onto the per-item settings the host
// applies. Disabled sections are left nil so the host uses its defaults.
func (o LabelOptions) ItemSettings() ItemSettings {
	var s ItemSettings

	if o.DownloadSettings {
		prio := o.PrioritizeFirstLast
		s.PrioritizeFirstLast = &prio
		if o.MoveCompleted {
			s.Move = &MoveSettings{Enabled: true, Path: o.MoveCompletedPath}
		}
	}

	if o.BandwidthSettings {
		s.Bandwidth = &BandwidthSettings{
			MaxDownloadSpeed: o.MaxDownloadSpeed,
			MaxUploadSpeed:   o.MaxUploadSpeed,
			MaxConnections:   o.MaxConnections,
			MaxUploadSlots:   o.MaxUploadSlots,
		}
	}

	if o.QueueSettings {
		s.Queue = &QueueSettings{
			AutoManaged:   o.AutoManaged,
			StopAtRatio:   o.StopAtRatio,
			StopRatio:     o.StopRatio,
			RemoveAtRatio: o.RemoveAtRatio,
		}
	}

	return s
}

// ItemSettings is what the engine asks the host to apply to one item.
// A nil section means "use the host default".
type ItemSettings struct {
	Move                *MoveSettings      `json:"move,omitempty"`
	PrioritizeFirstLast *bool              `json:"prioritize_first_last,omitempty"`
	Bandwidth           *BandwidthSettings `json:"bandwidth,omitempty"`
	Queue               *QueueSettings     `json:"queue,omitempty"`
}

type MoveSettings struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type BandwidthSettings struct {
	MaxDownloadSpeed float64 `json:"max_download_speed"`
	MaxUploadSpeed   float64 `json:"max_upload_speed"`
	MaxConnections   int     `json:"max_connections"`
	MaxUploadSlots   int     `json:"max_upload_slots"`
}

type QueueSettings struct {
	AutoManaged   bool    `json:"auto_managed"`
	StopAtRatio   bool    `json:"stop_at_ratio"`
	StopRatio     float64 `json:"stop_ratio"`
	RemoveAtRatio bool    `json:"remove_at_ratio"`
}

// ItemAttributes are the item properties auto-apply rules look at.
type ItemAttributes struct {
	Name     string   `json:"name"`
	Trackers []string `json:"trackers"`
	SavePath string   `json:"save_path"`
}
