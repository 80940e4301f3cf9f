package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/itellico/mono/internal/audit"
	"github.com/itellico/mono/internal/auth"
)

type RBACHandler struct {
	store    *auth.Store
	auditSvc *audit.Service
}

func NewRBACHandler(store *auth.Store, auditSvc *audit.Service) *RBACHandler {
	return &RBACHandler{store: store, auditSvc: auditSvc}
}

func (h *RBACHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req auth.RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	role, err := h.store.CreateRole(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.auditSvc.Log(r.Context(), audit.LogEntry{
		Action: "role.create", ResourceType: "role", ResourceID: &role.ID, IPAddress: clientIP(r),
	})
	writeData(w, http.StatusCreated, role)
}

func (h *RBACHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.ListRoles(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"roles": roles, "count": len(roles)})
}

func (h *RBACHandler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid role ID")
		return
	}

	if err := h.store.DeleteRole(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	h.auditSvc.Log(r.Context(), audit.LogEntry{
		Action: "role.delete", ResourceType: "role", ResourceID: &id, IPAddress: clientIP(r),
	})
	writeData(w, http.StatusOK, map[string]any{"deleted": id})
}

func (h *RBACHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.store.ListPermissions(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"permissions": perms, "count": len(perms)})
}

type setPermissionsRequest struct {
	PermissionIDs []uuid.UUID `json:"permission_ids"`
}

func (h *RBACHandler) SetRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid role ID")
		return
	}

	var req setPermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.SetRolePermissions(r.Context(), roleID, req.PermissionIDs); err != nil {
		writeServiceError(w, err)
		return
	}

	h.auditSvc.Log(r.Context(), audit.LogEntry{
		Action: "role.set_permissions", ResourceType: "role", ResourceID: &roleID,
		Details: map[string]interface{}{"permission_count": len(req.PermissionIDs)}, IPAddress: clientIP(r),
	})
	writeData(w, http.StatusOK, map[string]any{"role_id": roleID, "permission_ids": req.PermissionIDs})
}

type assignRoleRequest struct {
	UserID     uuid.UUID  `json:"user_id"`
	RoleID     uuid.UUID  `json:"role_id"`
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

func (h *RBACHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == uuid.Nil || req.RoleID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "user_id and role_id are required")
		return
	}

	ur, err := h.store.AssignRole(r.Context(), req.UserID, req.RoleID, req.ValidFrom, req.ValidUntil)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.auditSvc.Log(r.Context(), audit.LogEntry{
		Action: "role.assign", ResourceType: "user", ResourceID: &req.UserID,
		Details: map[string]interface{}{"role_id": req.RoleID.String()}, IPAddress: clientIP(r),
	})
	writeData(w, http.StatusCreated, ur)
}

func (h *RBACHandler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}
	roleID, err := uuid.Parse(chi.URLParam(r, "roleID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid role ID")
		return
	}

	if err := h.store.RevokeRole(r.Context(), userID, roleID); err != nil {
		writeServiceError(w, err)
		return
	}

	h.auditSvc.Log(r.Context(), audit.LogEntry{
		Action: "role.revoke", ResourceType: "user", ResourceID: &userID,
		Details: map[string]interface{}{"role_id": roleID.String()}, IPAddress: clientIP(r),
	})
	writeData(w, http.StatusOK, map[string]any{"user_id": userID, "role_id": roleID})
}
