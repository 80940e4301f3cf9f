package auth

import (
	"strings"

	"github.com/itellico/mono/internal/models"
)

// AdminPermissions is the resolved effective permission set for one user in
// one tenant, plus the highest-ranked role that granted it.
type AdminPermissions struct {
	UserID      string              `json:"user_id"`
	TenantID    string              `json:"tenant_id"`
	HighestRole models.Role         `json:"highest_role"`
	Roles       []models.Role       `json:"roles"`
	Permissions []models.Permission `json:"permissions"`

	index      map[string]struct{}
	superAdmin bool
}

// NewAdminPermissions builds the lookup index. The highest role is the one
// with the greatest level; ties keep the first seen.
func NewAdminPermissions(userID, tenantID string, roles []models.Role, perms []models.Permission) *AdminPermissions {
	ap := &AdminPermissions{
		UserID:      userID,
		TenantID:    tenantID,
		Roles:       roles,
		Permissions: perms,
		index:       make(map[string]struct{}, len(perms)),
	}
	for _, r := range roles {
		if r.Level > ap.HighestRole.Level || ap.HighestRole.Name == "" {
			ap.HighestRole = r
		}
	}
	for _, p := range perms {
		ap.index[p.Name] = struct{}{}
		if isSuperAdminGrant(p) {
			ap.superAdmin = true
		}
	}
	return ap
}

// Has reports whether the permission set contains name. A super-admin grant
// matches every name; otherwise the check is exact string equality, and an
// empty set always denies.
func (ap *AdminPermissions) Has(name string) bool {
	if ap == nil {
		return false
	}
	if ap.superAdmin {
		return true
	}
	_, ok := ap.index[name]
	return ok
}

// IsSuperAdmin reports whether any held grant is a manage action at global
// scope.
func (ap *AdminPermissions) IsSuperAdmin() bool {
	return ap != nil && ap.superAdmin
}

// rebuild restores the unexported lookup state after a round trip through the
// cache, which only carries the exported fields.
func (ap *AdminPermissions) rebuild() {
	if ap.index != nil {
		return
	}
	ap.index = make(map[string]struct{}, len(ap.Permissions))
	for _, p := range ap.Permissions {
		ap.index[p.Name] = struct{}{}
		if isSuperAdminGrant(p) {
			ap.superAdmin = true
		}
	}
}

func isSuperAdminGrant(p models.Permission) bool {
	if p.Scope != models.ScopeGlobal {
		return false
	}
	_, action, ok := strings.Cut(p.Name, ".")
	return ok && action == "manage"
}
