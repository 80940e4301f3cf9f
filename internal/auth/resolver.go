package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/itellico/mono/internal/cache"
	"github.com/itellico/mono/internal/database"
	"github.com/itellico/mono/internal/models"
)

// Resolver computes effective permissions for a user within a tenant. Results
// go through the shared cache (domain "permissions"); any role or assignment
// mutation must invalidate that domain.
type Resolver struct {
	db    database.DB
	cache *cache.Cache
	ttl   time.Duration
}

func NewResolver(db database.DB, c *cache.Cache, ttl time.Duration) *Resolver {
	return &Resolver{db: db, cache: c, ttl: ttl}
}

const permissionsDomain = "permissions"

// AdminPermissions returns the user's effective permission set for the
// tenant, or (nil, nil) when the user holds no active role. Errors propagate
// so callers deny; there is no fail-open path.
func (r *Resolver) AdminPermissions(ctx context.Context, userID, tenantID uuid.UUID) (*AdminPermissions, error) {
	key := cache.Key(&tenantID, permissionsDomain, "resolve", map[string]string{"user": userID.String()})

	var ap AdminPermissions
	err := r.cache.GetOrLoad(ctx, key, &ap, r.ttl, func(ctx context.Context) (any, error) {
		return r.resolve(ctx, userID, tenantID)
	})
	if err != nil {
		return nil, err
	}
	if len(ap.Roles) == 0 {
		return nil, nil
	}
	ap.rebuild()
	return &ap, nil
}

// Invalidate drops cached resolutions for the tenant. Called after any
// role, permission, or user-role mutation.
func (r *Resolver) Invalidate(ctx context.Context, tenantID uuid.UUID) {
	_ = r.cache.Invalidate(ctx, &tenantID, permissionsDomain)
}

// InvalidateAll drops cached resolutions in every tenant scope. Needed when a
// platform role changes, since its grants reach users across tenants.
func (r *Resolver) InvalidateAll(ctx context.Context) {
	_ = r.cache.InvalidateAllScopes(ctx, permissionsDomain)
}

func (r *Resolver) resolve(ctx context.Context, userID, tenantID uuid.UUID) (*AdminPermissions, error) {
	rows, err := r.db.Query(ctx,
		`SELECT r.id, r.tenant_id, r.name, r.level, r.created_at
		 FROM user_roles ur
		 JOIN roles r ON r.id = ur.role_id
		 WHERE ur.user_id = $1
		   AND (r.tenant_id = $2 OR r.tenant_id IS NULL)
		   AND (ur.valid_from IS NULL OR ur.valid_from <= now())
		   AND (ur.valid_until IS NULL OR ur.valid_until > now())`,
		userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query user roles: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.TenantID, &role.Name, &role.Level, &role.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}

	if len(roles) == 0 {
		return NewAdminPermissions(userID.String(), tenantID.String(), nil, nil), nil
	}

	roleIDs := make([]uuid.UUID, len(roles))
	for i, role := range roles {
		roleIDs[i] = role.ID
	}

	permRows, err := r.db.Query(ctx,
		`SELECT DISTINCT p.id, p.name, p.scope, p.description
		 FROM role_permissions rp
		 JOIN permissions p ON p.id = rp.permission_id
		 WHERE rp.role_id = ANY($1)`,
		roleIDs)
	if err != nil {
		return nil, fmt.Errorf("query permissions: %w", err)
	}
	defer permRows.Close()

	var perms []models.Permission
	for permRows.Next() {
		var p models.Permission
		if err := permRows.Scan(&p.ID, &p.Name, &p.Scope, &p.Description); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	if err := permRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}

	return NewAdminPermissions(userID.String(), tenantID.String(), roles, perms), nil
}
