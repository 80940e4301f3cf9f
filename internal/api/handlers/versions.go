package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/itellico/mono/internal/queue"
	"github.com/itellico/mono/internal/version"
)

type VersionHandler struct {
	svc   *version.Service
	queue *queue.Client
}

func NewVersionHandler(svc *version.Service, q *queue.Client) *VersionHandler {
	return &VersionHandler{svc: svc, queue: q}
}

type recordVersionRequest struct {
	EntityType string          `json:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id"`
	Snapshot   json.RawMessage `json:"snapshot"`
}

func (h *VersionHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req recordVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EntityType == "" || req.EntityID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "entity_type and entity_id are required")
		return
	}
	if len(req.Snapshot) == 0 || !json.Valid(req.Snapshot) {
		writeError(w, http.StatusBadRequest, "snapshot must be valid JSON")
		return
	}

	v, err := h.svc.Record(r.Context(), req.EntityType, req.EntityID, req.Snapshot)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, v)
}

func (h *VersionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entityID, err := uuid.Parse(q.Get("entity_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entity_id")
		return
	}
	entityType := q.Get("entity_type")
	if entityType == "" {
		writeError(w, http.StatusBadRequest, "entity_type is required")
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	versions, err := h.svc.List(r.Context(), version.ListFilter{
		EntityType: entityType,
		EntityID:   entityID,
		Limit:      limit,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"versions": versions, "count": len(versions)})
}

func (h *VersionHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entityID, err := uuid.Parse(q.Get("entity_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entity_id")
		return
	}
	entityType := q.Get("entity_type")
	if entityType == "" {
		writeError(w, http.StatusBadRequest, "entity_type is required")
		return
	}
	ver, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || ver < 1 {
		writeError(w, http.StatusBadRequest, "invalid version number")
		return
	}

	v, err := h.svc.Get(r.Context(), entityType, entityID, ver)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, v)
}

type pruneRequest struct {
	Keep int `json:"keep,omitempty"`
}

// Prune enqueues a history prune run; the worker does the deleting. The
// scheduler runs the same task periodically, this endpoint covers on-demand
// cleanup.
func (h *VersionHandler) Prune(w http.ResponseWriter, r *http.Request) {
	var req pruneRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Keep < 0 {
		writeError(w, http.StatusBadRequest, "keep must not be negative")
		return
	}

	if err := h.queue.EnqueueVersionPrune(queue.VersionPrunePayload{Keep: req.Keep}); err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusAccepted, map[string]any{"accepted": true})
}
