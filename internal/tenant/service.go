package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/itellico/mono/internal/database"
	"github.com/itellico/mono/internal/models"
)

var ErrNotFound = errors.New("tenant not found")

type Service struct {
	db database.DB
}

func NewService(db database.DB) *Service {
	return &Service{db: db}
}

const tenantCols = "id, name, slug, domain, settings, is_active, created_at, updated_at"

func (s *Service) scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Domain, &t.Settings, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	return &t, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return s.scanTenant(s.db.QueryRow(ctx,
		"SELECT "+tenantCols+" FROM tenants WHERE id = $1", id))
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	return s.scanTenant(s.db.QueryRow(ctx,
		"SELECT "+tenantCols+" FROM tenants WHERE slug = $1", slug))
}

func (s *Service) GetByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	return s.scanTenant(s.db.QueryRow(ctx,
		"SELECT "+tenantCols+" FROM tenants WHERE domain = $1", domain))
}

func (s *Service) List(ctx context.Context) ([]models.Tenant, error) {
	rows, err := s.db.Query(ctx, "SELECT "+tenantCols+" FROM tenants ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.Domain, &t.Settings, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (s *Service) Create(ctx context.Context, name, slug, domain string) (*models.Tenant, error) {
	// domain carries a UNIQUE constraint, so absent domains must store NULL
	// rather than colliding on the empty string.
	var dom *string
	if domain != "" {
		dom = &domain
	}
	return s.scanTenant(s.db.QueryRow(ctx,
		`INSERT INTO tenants (name, slug, domain) VALUES ($1, $2, $3)
		 RETURNING `+tenantCols, name, slug, dom))
}

type Update struct {
	Name     *string
	Domain   *string
	Settings []byte
	IsActive *bool
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, upd Update) (*models.Tenant, error) {
	return s.scanTenant(s.db.QueryRow(ctx,
		`UPDATE tenants SET
			name = COALESCE($2, name),
			domain = CASE WHEN $3::text IS NULL THEN domain ELSE NULLIF($3, '') END,
			settings = COALESCE($4, settings),
			is_active = COALESCE($5, is_active),
			updated_at = now()
		 WHERE id = $1
		 RETURNING `+tenantCols,
		id, upd.Name, upd.Domain, upd.Settings, upd.IsActive))
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, email, password_hash, full_name, is_active, created_at, updated_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.FullName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, email, password_hash, full_name, is_active, created_at, updated_at
		 FROM users WHERE tenant_id = $1 AND email = $2`, tenantID, email,
	).Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.FullName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}
