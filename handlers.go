package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/orian/labeltree/labels"
	log "github.com/sirupsen/logrus"
)

// Server exposes the label engine and the item registry over HTTP.
type Server struct {
	engine   *labels.Engine
	registry *ItemRegistry
	activity ActivitySink
}

func NewServer(engine *labels.Engine, registry *ItemRegistry, activity ActivitySink) *Server {
	return &Server{
		engine:   engine,
		registry: registry,
		activity: activity,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusCode(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("Request failed")
	}
	http.Error(w, err.Error(), status)
}

// record stores an activity event. Failures are logged and never fail the
// request, which has already been applied.
func (s *Server) record(r *http.Request, ev ActivityEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	defer cancel()
	if err := s.activity.Record(ctx, ev); err != nil {
		log.WithError(err).WithField("op", ev.Op).Warn("Failed to record activity")
	}
}

func (s *Server) handleListLabels(w http.ResponseWriter, r *http.Request) {
	infos, err := s.engine.ListLabels()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleAddLabel(w http.ResponseWriter, r *http.Request) {
	var req AddLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := s.engine.AddLabel(req.ParentID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	s.record(r, newActivityEvent("add_label", id, nil, req.Name))
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleRemoveLabel(w http.ResponseWriter, r *http.Request) {
	labelID := chi.URLParam(r, "labelId")

	if err := s.engine.RemoveLabel(labelID); err != nil {
		writeError(w, err)
		return
	}

	s.record(r, newActivityEvent("remove_label", labelID, nil, ""))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRenameLabel(w http.ResponseWriter, r *http.Request) {
	labelID := chi.URLParam(r, "labelId")

	var req RenameLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.engine.RenameLabel(labelID, req.Name); err != nil {
		writeError(w, err)
		return
	}

	s.record(r, newActivityEvent("rename_label", labelID, nil, req.Name))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.engine.GetOptions(chi.URLParam(r, "labelId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) handleSetOptions(w http.ResponseWriter, r *http.Request) {
	labelID := chi.URLParam(r, "labelId")

	var req SetOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.engine.SetOptions(labelID, req.Options, req.Retroactive); err != nil {
		writeError(w, err)
		return
	}
	s.record(r, newActivityEvent("set_options", labelID, nil, compactJSON(req.Options)))

	opts, err := s.engine.GetOptions(labelID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) handleGetParentPath(w http.ResponseWriter, r *http.Request) {
	path, err := s.engine.GetParentPath(chi.URLParam(r, "labelId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.engine.GetPreferences()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleSetPreferences(w http.ResponseWriter, r *http.Request) {
	var patch json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.engine.SetPreferences(patch); err != nil {
		writeError(w, err)
		return
	}
	s.record(r, newActivityEvent("set_preferences", "", nil, compactJSON(patch)))

	prefs, err := s.engine.GetPreferences()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleSetItemLabels(w http.ResponseWriter, r *http.Request) {
	var req ItemLabelsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.engine.SetItemLabels(req.LabelID, req.ItemIDs); err != nil {
		writeError(w, err)
		return
	}

	s.record(r, newActivityEvent("set_item_labels", req.LabelID, req.ItemIDs, ""))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetItemLabel(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	labelID, err := s.engine.GetItemLabel(itemID)
	if err != nil {
		writeError(w, err)
		return
	}
	name, err := s.engine.GetItemLabelName(itemID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ItemLabelResponse{LabelID: labelID, LabelName: name})
}

func (s *Server) handleFilterItems(w http.ResponseWriter, r *http.Request) {
	var req FilterItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	items, err := s.engine.FilterItems(req.ItemIDs, req.LabelIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// handleSnapshot answers change feed polls. Clients send back the token of
// their last snapshot and get 304 while nothing changed.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	token, err := parseToken(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap, err := s.engine.GetSnapshot(token)
	if err != nil {
		writeError(w, err)
		return
	}
	if snap == nil {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var resp StatusResponse
	resp.Initialized = s.engine.IsInitialized()
	resp.Token = s.engine.ChangeToken()
	if err := s.activity.Ping(ctx); err != nil {
		resp.Activity.Error = err.Error()
	} else {
		resp.Activity.Connected = true
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Start(); err != nil {
		writeError(w, err)
		return
	}
	s.record(r, newActivityEvent("session_start", "", nil, ""))
	s.handleStatus(w, r)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	_, added := s.registry.Add(Item{
		ID:       req.ID,
		Name:     req.Name,
		Trackers: req.Trackers,
		SavePath: req.SavePath,
	})
	if !added {
		item, _ := s.registry.Get(req.ID)
		writeJSON(w, http.StatusOK, item)
		return
	}

	// auto-apply rules only run for new items added after session start
	if s.engine.IsInitialized() {
		if err := s.engine.OnItemAdded(req.ID); err != nil {
			writeError(w, err)
			return
		}
		if labelID, err := s.engine.GetItemLabel(req.ID); err == nil && labelID != "" {
			s.record(r, newActivityEvent("auto_label", labelID, []string{req.ID}, req.Name))
		}
	}

	item, _ := s.registry.Get(req.ID)
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, ok := s.registry.Get(chi.URLParam(r, "itemId"))
	if !ok {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	if _, ok := s.registry.Get(itemID); !ok {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}

	if s.engine.IsInitialized() {
		if err := s.engine.OnItemRemoved(itemID); err != nil {
			writeError(w, err)
			return
		}
	}
	s.registry.Remove(itemID)

	s.record(r, newActivityEvent("remove_item", "", []string{itemID}, ""))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleItemFinished(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	if !s.registry.MarkFinished(itemID) {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}

	if s.engine.IsInitialized() {
		if err := s.engine.OnItemFinished(itemID); err != nil {
			writeError(w, err)
			return
		}
	}

	item, _ := s.registry.Get(itemID)
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := s.activity.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
