package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/orian/labeltree/labels"
	"github.com/orian/labeltree/models"
)

// AddLabelRequest creates a label under ParentID, models.NullParent for a
// root label.
type AddLabelRequest struct {
	ParentID string `json:"parent_id"`
	Name     string `json:"name"`
}

type RenameLabelRequest struct {
	Name string `json:"name"`
}

// SetOptionsRequest carries a partial options object. Fields left out of
// Options keep their current values.
type SetOptionsRequest struct {
	Options     json.RawMessage    `json:"options"`
	Retroactive labels.Retroactive `json:"retroactive"`
}

// ItemLabelsRequest assigns ItemIDs to LabelID, or unassigns them when
// LabelID is empty.
type ItemLabelsRequest struct {
	LabelID string   `json:"label_id"`
	ItemIDs []string `json:"item_ids"`
}

type FilterItemsRequest struct {
	ItemIDs  []string `json:"item_ids"`
	LabelIDs []string `json:"label_ids"`
}

type AddItemRequest struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Trackers []string `json:"trackers"`
	SavePath string   `json:"save_path"`
}

type ItemLabelResponse struct {
	LabelID   string `json:"label_id"`
	LabelName string `json:"label_name"`
}

// StatusResponse reports engine and activity sink health.
type StatusResponse struct {
	Initialized bool      `json:"initialized"`
	Token       time.Time `json:"token"`
	Activity    struct {
		Connected bool   `json:"connected"`
		Error     string `json:"error,omitempty"`
	} `json:"activity"`
}

const (
	defaultActivityLimit = 100
	maxActivityLimit     = 1000
)

// parseToken reads a change token sent back by a client. An empty value
// is the zero token, which always yields a snapshot.
func parseToken(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	token, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid token %q: %w", raw, err)
	}
	return token, nil
}

// parseLimit reads a positive limit, capped at maxActivityLimit.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultActivityLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if n > maxActivityLimit {
		n = maxActivityLimit
	}
	return n, nil
}

// statusCode maps engine errors to HTTP statuses.
func statusCode(err error) int {
	switch {
	case errors.Is(err, models.ErrUnknownLabel):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidName), errors.Is(err, models.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newActivityEvent(op, labelID string, itemIDs []string, detail string) ActivityEvent {
	return ActivityEvent{
		ID:      uuid.New(),
		Time:    time.Now().UTC(),
		Op:      op,
		LabelID: labelID,
		ItemIDs: itemIDs,
		Detail:  detail,
	}
}

// compactJSON returns raw without insignificant whitespace, or raw itself
// if it does not parse.
func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
