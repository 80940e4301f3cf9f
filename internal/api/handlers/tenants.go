package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/itellico/mono/internal/audit"
	"github.com/itellico/mono/internal/tenant"
)

type TenantHandler struct {
	svc      *tenant.Service
	auditSvc *audit.Service
}

func NewTenantHandler(svc *tenant.Service, auditSvc *audit.Service) *TenantHandler {
	return &TenantHandler{svc: svc, auditSvc: auditSvc}
}

type createTenantRequest struct {
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Domain string `json:"domain,omitempty"`
}

func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Slug == "" {
		writeError(w, http.StatusBadRequest, "name and slug are required")
		return
	}

	t, err := h.svc.Create(r.Context(), req.Name, req.Slug, req.Domain)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.auditSvc.Log(r.Context(), audit.LogEntry{
		Action: "tenant.create", ResourceType: "tenant", ResourceID: &t.ID, IPAddress: clientIP(r),
	})
	writeData(w, http.StatusCreated, t)
}

func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"tenants": tenants, "count": len(tenants)})
}

func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant ID")
		return
	}

	t, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, t)
}

type updateTenantRequest struct {
	Name     *string         `json:"name,omitempty"`
	Domain   *string         `json:"domain,omitempty"`
	Settings json.RawMessage `json:"settings,omitempty"`
	IsActive *bool           `json:"is_active,omitempty"`
}

func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant ID")
		return
	}

	var req updateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name != nil && *req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.Settings) > 0 && !json.Valid(req.Settings) {
		writeError(w, http.StatusBadRequest, "settings must be valid JSON")
		return
	}

	t, err := h.svc.Update(r.Context(), id, tenant.Update{
		Name:     req.Name,
		Domain:   req.Domain,
		Settings: req.Settings,
		IsActive: req.IsActive,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.auditSvc.Log(r.Context(), audit.LogEntry{
		Action: "tenant.update", ResourceType: "tenant", ResourceID: &t.ID, IPAddress: clientIP(r),
	})
	writeData(w, http.StatusOK, t)
}
