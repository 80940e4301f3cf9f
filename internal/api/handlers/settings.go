package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/itellico/mono/internal/settings"
	"github.com/itellico/mono/internal/tenant"
)

type SettingsHandler struct {
	svc *settings.Service
}

func NewSettingsHandler(svc *settings.Service) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

func (h *SettingsHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req settings.SetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	if len(req.Value) == 0 {
		writeError(w, http.StatusBadRequest, "value is required")
		return
	}

	st, err := h.svc.Set(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, st)
}

func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"settings": out, "count": len(out)})
}

// Resolve returns the effective value for a key, honoring user > tenant >
// global specificity. With ?self=true the requesting user's overrides apply.
func (h *SettingsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var userID *uuid.UUID
	if r.URL.Query().Get("self") == "true" {
		if u := tenant.UserFromContext(r.Context()); u != nil {
			userID = &u.ID
		}
	}

	st, err := h.svc.Resolve(r.Context(), key, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, st)
}

func (h *SettingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid setting ID")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"deleted": id})
}
