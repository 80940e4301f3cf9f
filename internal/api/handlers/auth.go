package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/itellico/mono/internal/auth"
	"github.com/itellico/mono/internal/tenant"
)

type AuthHandler struct {
	tenantSvc *tenant.Service
	resolver  *auth.Resolver
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthHandler(ts *tenant.Service, resolver *auth.Resolver, jwtSecret string, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{tenantSvc: ts, resolver: resolver, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

type loginRequest struct {
	TenantSlug string `json:"tenant"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantSlug == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "tenant, email and password are required")
		return
	}

	t, err := h.tenantSvc.GetBySlug(r.Context(), req.TenantSlug)
	if err != nil || !t.IsActive {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	user, err := h.tenantSvc.GetUserByEmail(r.Context(), t.ID, req.Email)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeServiceError(w, err)
		return
	}
	if !user.IsActive {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.IssueToken(h.jwtSecret, user, h.tokenTTL)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_in": int(h.tokenTTL.Seconds()),
		"user":       user,
	})
}

// Me returns the authenticated user plus the resolved permission set the
// admin UI uses for feature gating.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := tenant.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	perms, err := h.resolver.AdminPermissions(r.Context(), user.ID, user.TenantID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"user":        user,
		"tenant":      tenant.FromContext(r.Context()),
		"permissions": perms,
	})
}
