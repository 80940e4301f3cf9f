package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/itellico/mono/internal/database"
	"github.com/itellico/mono/internal/models"
	"github.com/itellico/mono/internal/tenant"
)

var ErrNotFound = errors.New("role not found")

// Store is the admin CRUD surface over roles, permissions and assignments.
// Every mutation invalidates the resolver cache for the affected tenant.
type Store struct {
	db       database.DB
	resolver *Resolver
}

func NewStore(db database.DB, resolver *Resolver) *Store {
	return &Store{db: db, resolver: resolver}
}

type RoleRequest struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

func (s *Store) CreateRole(ctx context.Context, req RoleRequest) (*models.Role, error) {
	tenantID := tenant.IDFromContext(ctx)

	var r models.Role
	err := s.db.QueryRow(ctx,
		`INSERT INTO roles (tenant_id, name, level) VALUES ($1, $2, $3)
		 RETURNING id, tenant_id, name, level, created_at`,
		tenantID, req.Name, req.Level,
	).Scan(&r.ID, &r.TenantID, &r.Name, &r.Level, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert role: %w", err)
	}

	s.resolver.Invalidate(ctx, tenantID)
	return &r, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]models.Role, error) {
	tenantID := tenant.IDFromContext(ctx)

	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, name, level, created_at FROM roles
		 WHERE tenant_id = $1 OR tenant_id IS NULL ORDER BY level DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	roles := []models.Role{}
	for rows.Next() {
		var r models.Role
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Name, &r.Level, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s *Store) DeleteRole(ctx context.Context, id uuid.UUID) error {
	tenantID := tenant.IDFromContext(ctx)

	tag, err := s.db.Exec(ctx, "DELETE FROM roles WHERE id = $1 AND tenant_id = $2", id, tenantID)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.resolver.Invalidate(ctx, tenantID)
	return nil
}

func (s *Store) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id, name, scope, description FROM permissions ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()

	perms := []models.Permission{}
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Scope, &p.Description); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// SetRolePermissions replaces a role's grants atomically.
func (s *Store) SetRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	tenantID := tenant.IDFromContext(ctx)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var roleTenant *uuid.UUID
	err = tx.QueryRow(ctx,
		"SELECT tenant_id FROM roles WHERE id = $1 AND (tenant_id = $2 OR tenant_id IS NULL)",
		roleID, tenantID,
	).Scan(&roleTenant)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check role: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM role_permissions WHERE role_id = $1", roleID); err != nil {
		return fmt.Errorf("clear permissions: %w", err)
	}
	for _, pid := range permissionIDs {
		if _, err := tx.Exec(ctx,
			"INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)", roleID, pid); err != nil {
			return fmt.Errorf("grant permission: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	// A platform role's grants reach users in every tenant, so its cached
	// resolutions cannot be dropped for the caller's tenant alone.
	if roleTenant == nil {
		s.resolver.InvalidateAll(ctx)
	} else {
		s.resolver.Invalidate(ctx, tenantID)
	}
	return nil
}

// AssignRole links a user to a role with an optional validity window.
func (s *Store) AssignRole(ctx context.Context, userID, roleID uuid.UUID, validFrom, validUntil *time.Time) (*models.UserRole, error) {
	tenantID := tenant.IDFromContext(ctx)

	var ur models.UserRole
	err := s.db.QueryRow(ctx,
		`INSERT INTO user_roles (user_id, role_id, valid_from, valid_until)
		 SELECT $1, $2, $3, $4
		 WHERE EXISTS(SELECT 1 FROM users WHERE id = $1 AND tenant_id = $5)
		   AND EXISTS(SELECT 1 FROM roles WHERE id = $2 AND (tenant_id = $5 OR tenant_id IS NULL))
		 RETURNING user_id, role_id, valid_from, valid_until, created_at`,
		userID, roleID, validFrom, validUntil, tenantID,
	).Scan(&ur.UserID, &ur.RoleID, &ur.ValidFrom, &ur.ValidUntil, &ur.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("assign role: %w", err)
	}

	s.resolver.Invalidate(ctx, tenantID)
	return &ur, nil
}

func (s *Store) RevokeRole(ctx context.Context, userID, roleID uuid.UUID) error {
	tenantID := tenant.IDFromContext(ctx)

	tag, err := s.db.Exec(ctx,
		`DELETE FROM user_roles ur USING users u
		 WHERE ur.user_id = $1 AND ur.role_id = $2 AND u.id = ur.user_id AND u.tenant_id = $3`,
		userID, roleID, tenantID)
	if err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.resolver.Invalidate(ctx, tenantID)
	return nil
}
