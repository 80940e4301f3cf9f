package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/itellico/mono/internal/tracking"
)

type TrackHandler struct {
	tracker *tracking.Tracker
}

func NewTrackHandler(tracker *tracking.Tracker) *TrackHandler {
	return &TrackHandler{tracker: tracker}
}

type trackRequest struct {
	Path string `json:"path"`
}

// Track is fire and forget: the event goes onto the Redis list and the
// response never waits on (or reports) downstream persistence.
func (h *TrackHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	h.tracker.Track(r.Context(), req.Path)
	writeData(w, http.StatusAccepted, map[string]any{"accepted": true})
}
