package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/itellico/mono/internal/audit"
	"github.com/itellico/mono/internal/category"
)

type CategoryHandler struct {
	svc      *category.Service
	auditSvc *audit.Service
}

func NewCategoryHandler(svc *category.Service, auditSvc *audit.Service) *CategoryHandler {
	return &CategoryHandler{svc: svc, auditSvc: auditSvc}
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req category.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	c, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.auditSvc.Log(r.Context(), audit.LogEntry{
		Action: "category.create", ResourceType: "category", ResourceID: &c.ID, IPAddress: clientIP(r),
	})
	writeData(w, http.StatusCreated, c)
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter category.ListFilter
	if p := r.URL.Query().Get("parent_id"); p != "" {
		id, err := uuid.Parse(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid parent_id")
			return
		}
		filter.ParentID = &id
	}
	if r.URL.Query().Get("roots") == "true" {
		filter.Roots = true
	}

	cats, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{"categories": cats, "count": len(cats)})
}

func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category ID")
		return
	}

	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, c)
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category ID")
		return
	}

	var req category.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name != nil && *req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	c, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.auditSvc.Log(r.Context(), audit.LogEntry{
		Action: "category.update", ResourceType: "category", ResourceID: &c.ID, IPAddress: clientIP(r),
	})
	writeData(w, http.StatusOK, c)
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category ID")
		return
	}

	policy, err := category.ParseDeletePolicy(r.URL.Query().Get("policy"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "policy must be restrict, cascade or move")
		return
	}

	if err := h.svc.Delete(r.Context(), id, policy); err != nil {
		writeServiceError(w, err)
		return
	}

	h.auditSvc.Log(r.Context(), audit.LogEntry{
		Action: "category.delete", ResourceType: "category", ResourceID: &id,
		Details: map[string]interface{}{"policy": string(policy)}, IPAddress: clientIP(r),
	})
	writeData(w, http.StatusOK, map[string]any{"deleted": id})
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
