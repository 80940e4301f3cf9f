package tag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/itellico/mono/internal/cache"
	"github.com/itellico/mono/internal/category"
	"github.com/itellico/mono/internal/database"
	"github.com/itellico/mono/internal/models"
	"github.com/itellico/mono/internal/tenant"
)

var (
	ErrNotFound  = errors.New("tag not found")
	ErrSlugTaken = errors.New("tag slug already in use")
)

const cacheDomain = "tags"

type Service struct {
	db    database.DB
	cache *cache.Cache
	ttl   time.Duration
}

func NewService(db database.DB, c *cache.Cache, ttl time.Duration) *Service {
	return &Service{db: db, cache: c, ttl: ttl}
}

func (s *Service) Create(ctx context.Context, name, slug string) (*models.Tag, error) {
	tenantID := tenant.IDFromContext(ctx)
	if slug == "" {
		slug = category.Slugify(name)
	}

	var exists bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM tags WHERE tenant_id = $1 AND slug = $2)", tenantID, slug,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check slug: %w", err)
	}
	if exists {
		return nil, ErrSlugTaken
	}

	var t models.Tag
	err = s.db.QueryRow(ctx,
		`INSERT INTO tags (tenant_id, name, slug) VALUES ($1, $2, $3)
		 RETURNING id, tenant_id, name, slug, created_at`,
		tenantID, name, slug,
	).Scan(&t.ID, &t.TenantID, &t.Name, &t.Slug, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert tag: %w", err)
	}

	_ = s.cache.Invalidate(ctx, &tenantID, cacheDomain)
	return &t, nil
}

func (s *Service) List(ctx context.Context) ([]models.Tag, error) {
	tenantID := tenant.IDFromContext(ctx)
	key := cache.Key(&tenantID, cacheDomain, "list", nil)

	var tags []models.Tag
	err := s.cache.GetOrLoad(ctx, key, &tags, s.ttl, func(ctx context.Context) (any, error) {
		return s.list(ctx, tenantID)
	})
	return tags, err
}

func (s *Service) list(ctx context.Context, tenantID uuid.UUID) ([]models.Tag, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id, tenant_id, name, slug, created_at FROM tags WHERE tenant_id = $1 ORDER BY name", tenantID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	tags := []models.Tag{}
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Name, &t.Slug, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Tag, error) {
	tenantID := tenant.IDFromContext(ctx)

	var t models.Tag
	err := s.db.QueryRow(ctx,
		"SELECT id, tenant_id, name, slug, created_at FROM tags WHERE id = $1 AND tenant_id = $2", id, tenantID,
	).Scan(&t.ID, &t.TenantID, &t.Name, &t.Slug, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return &t, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID := tenant.IDFromContext(ctx)

	tag, err := s.db.Exec(ctx, "DELETE FROM tags WHERE id = $1 AND tenant_id = $2", id, tenantID)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	_ = s.cache.Invalidate(ctx, &tenantID, cacheDomain)
	return nil
}
