package category

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/itellico/mono/internal/cache"
	"github.com/itellico/mono/internal/database"
	"github.com/itellico/mono/internal/models"
	"github.com/itellico/mono/internal/tenant"
)

var (
	ErrNotFound    = errors.New("category not found")
	ErrHasChildren = errors.New("category has children")
	ErrSlugTaken   = errors.New("slug already in use under this parent")
	ErrInvalidSlug = errors.New("slug has no usable characters")
)

const cacheDomain = "categories"

// Service manages the per-tenant materialized-path category tree. Every
// multi-row mutation runs inside one transaction with the parent row locked,
// so path, level and sort_order stay consistent under concurrent writes.
type Service struct {
	db    database.DB
	cache *cache.Cache
	ttl   time.Duration
}

func NewService(db database.DB, c *cache.Cache, ttl time.Duration) *Service {
	return &Service{db: db, cache: c, ttl: ttl}
}

const categoryCols = "id, tenant_id, parent_id, name, slug, path, level, sort_order, is_active, created_at, updated_at"

type CreateRequest struct {
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
	Name     string     `json:"name"`
	Slug     string     `json:"slug,omitempty"`
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Category, error) {
	tenantID := tenant.IDFromContext(ctx)

	// Client-supplied slugs are normalized too: paths are built from slugs,
	// so a raw slug containing '/' (or multibyte runes) would corrupt the
	// subtree prefix arithmetic.
	slug := req.Slug
	if slug == "" {
		slug = req.Name
	}
	slug = Slugify(slug)
	if slug == "" {
		return nil, ErrInvalidSlug
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	parentPath := ""
	level := 0
	if req.ParentID != nil {
		// Lock the parent so concurrent sibling creates serialize here and
		// cannot race on sort_order.
		var parent models.Category
		err := tx.QueryRow(ctx,
			"SELECT path, level FROM categories WHERE id = $1 AND tenant_id = $2 FOR UPDATE",
			*req.ParentID, tenantID,
		).Scan(&parent.Path, &parent.Level)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("lock parent: %w", err)
		}
		parentPath = parent.Path
		level = parent.Level + 1
	} else {
		// Root creates serialize on the tenant row instead.
		if _, err := tx.Exec(ctx, "SELECT 1 FROM tenants WHERE id = $1 FOR UPDATE", tenantID); err != nil {
			return nil, fmt.Errorf("lock tenant: %w", err)
		}
	}

	var exists bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM categories WHERE tenant_id = $1 AND parent_id IS NOT DISTINCT FROM $2 AND slug = $3)",
		tenantID, req.ParentID, slug,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check slug: %w", err)
	}
	if exists {
		return nil, ErrSlugTaken
	}

	var c models.Category
	err = tx.QueryRow(ctx,
		`INSERT INTO categories (tenant_id, parent_id, name, slug, path, level, sort_order)
		 VALUES ($1, $2, $3, $4, $5, $6,
			(SELECT COALESCE(MAX(sort_order), 0) + 1 FROM categories
			 WHERE tenant_id = $1 AND parent_id IS NOT DISTINCT FROM $2))
		 RETURNING `+categoryCols,
		tenantID, req.ParentID, req.Name, slug, ChildPath(parentPath, slug), level,
	).Scan(&c.ID, &c.TenantID, &c.ParentID, &c.Name, &c.Slug, &c.Path, &c.Level, &c.SortOrder, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.invalidate(ctx, tenantID)
	return &c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	tenantID := tenant.IDFromContext(ctx)
	key := cache.Key(&tenantID, cacheDomain, "get", map[string]string{"id": id.String()})

	var c models.Category
	err := s.cache.GetOrLoad(ctx, key, &c, s.ttl, func(ctx context.Context) (any, error) {
		return s.get(ctx, tenantID, id)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) get(ctx context.Context, tenantID, id uuid.UUID) (*models.Category, error) {
	var c models.Category
	err := s.db.QueryRow(ctx,
		"SELECT "+categoryCols+" FROM categories WHERE id = $1 AND tenant_id = $2", id, tenantID,
	).Scan(&c.ID, &c.TenantID, &c.ParentID, &c.Name, &c.Slug, &c.Path, &c.Level, &c.SortOrder, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &c, nil
}

type ListFilter struct {
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
	Roots    bool       `json:"roots,omitempty"`
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]models.Category, error) {
	tenantID := tenant.IDFromContext(ctx)
	key := cache.Key(&tenantID, cacheDomain, "list", filter)

	var cats []models.Category
	err := s.cache.GetOrLoad(ctx, key, &cats, s.ttl, func(ctx context.Context) (any, error) {
		return s.list(ctx, tenantID, filter)
	})
	return cats, err
}

func (s *Service) list(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]models.Category, error) {
	query := "SELECT " + categoryCols + " FROM categories WHERE tenant_id = $1"
	args := []any{tenantID}
	switch {
	case filter.ParentID != nil:
		query += " AND parent_id = $2"
		args = append(args, *filter.ParentID)
	case filter.Roots:
		query += " AND parent_id IS NULL"
	}
	query += " ORDER BY path, sort_order"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	cats := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.TenantID, &c.ParentID, &c.Name, &c.Slug, &c.Path, &c.Level, &c.SortOrder, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

type UpdateRequest struct {
	Name      *string `json:"name,omitempty"`
	Slug      *string `json:"slug,omitempty"`
	SortOrder *int    `json:"sort_order,omitempty"`
	IsActive  *bool   `json:"is_active,omitempty"`
}

// Update renames or re-slugs a node. A slug change rewrites the node's path
// and every descendant path in the same transaction.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*models.Category, error) {
	tenantID := tenant.IDFromContext(ctx)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var cur models.Category
	err = tx.QueryRow(ctx,
		"SELECT "+categoryCols+" FROM categories WHERE id = $1 AND tenant_id = $2 FOR UPDATE", id, tenantID,
	).Scan(&cur.ID, &cur.TenantID, &cur.ParentID, &cur.Name, &cur.Slug, &cur.Path, &cur.Level, &cur.SortOrder, &cur.IsActive, &cur.CreatedAt, &cur.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock category: %w", err)
	}

	newSlug := cur.Slug
	if req.Slug != nil && *req.Slug != "" {
		newSlug = Slugify(*req.Slug)
		if newSlug == "" {
			return nil, ErrInvalidSlug
		}
	}

	if newSlug != cur.Slug {
		var exists bool
		err = tx.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM categories WHERE tenant_id = $1 AND parent_id IS NOT DISTINCT FROM $2 AND slug = $3 AND id <> $4)",
			tenantID, cur.ParentID, newSlug, id,
		).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check slug: %w", err)
		}
		if exists {
			return nil, ErrSlugTaken
		}

		parentPath := ""
		if i := len(cur.Path) - len(cur.Slug) - 1; i > 0 {
			parentPath = cur.Path[:i]
		}
		newPath := ChildPath(parentPath, newSlug)

		// Rewrite the whole subtree's paths by prefix swap.
		_, err = tx.Exec(ctx,
			`UPDATE categories SET path = $3 || substr(path, $4)
			 WHERE tenant_id = $1 AND path LIKE $2 || '/%'`,
			tenantID, cur.Path, newPath, len(cur.Path)+1)
		if err != nil {
			return nil, fmt.Errorf("rewrite descendant paths: %w", err)
		}
		cur.Path = newPath
	}

	var c models.Category
	err = tx.QueryRow(ctx,
		`UPDATE categories SET
			name = COALESCE($3, name),
			slug = $4,
			path = $5,
			sort_order = COALESCE($6, sort_order),
			is_active = COALESCE($7, is_active),
			updated_at = now()
		 WHERE id = $1 AND tenant_id = $2
		 RETURNING `+categoryCols,
		id, tenantID, req.Name, newSlug, cur.Path, req.SortOrder, req.IsActive,
	).Scan(&c.ID, &c.TenantID, &c.ParentID, &c.Name, &c.Slug, &c.Path, &c.Level, &c.SortOrder, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.invalidate(ctx, tenantID)
	return &c, nil
}

// Delete removes a node according to policy. Restrict errors when children
// exist, cascade deletes the subtree, move re-parents children (and their
// subtrees) to the deleted node's parent, recomputing path and level.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, policy DeletePolicy) error {
	tenantID := tenant.IDFromContext(ctx)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var cur models.Category
	err = tx.QueryRow(ctx,
		"SELECT id, parent_id, path, level FROM categories WHERE id = $1 AND tenant_id = $2 FOR UPDATE",
		id, tenantID,
	).Scan(&cur.ID, &cur.ParentID, &cur.Path, &cur.Level)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock category: %w", err)
	}

	var hasChildren bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM categories WHERE tenant_id = $1 AND parent_id = $2)",
		tenantID, id,
	).Scan(&hasChildren)
	if err != nil {
		return fmt.Errorf("check children: %w", err)
	}

	switch policy {
	case DeleteRestrict:
		if hasChildren {
			return ErrHasChildren
		}

	case DeleteCascade:
		_, err = tx.Exec(ctx,
			"DELETE FROM categories WHERE tenant_id = $1 AND path LIKE $2 || '/%'",
			tenantID, cur.Path)
		if err != nil {
			return fmt.Errorf("delete subtree: %w", err)
		}

	case DeleteMove:
		if hasChildren {
			newParentPath := ""
			if cur.ParentID != nil {
				if i := lastSlash(cur.Path); i > 0 {
					newParentPath = cur.Path[:i]
				}
			}
			// Children move up one level: swap the deleted node's path prefix
			// for its parent's and decrement every descendant's level.
			_, err = tx.Exec(ctx,
				`UPDATE categories SET
					path = $3 || substr(path, $4),
					level = level - 1
				 WHERE tenant_id = $1 AND path LIKE $2 || '/%'`,
				tenantID, cur.Path, newParentPath, len(cur.Path)+1)
			if err != nil {
				return fmt.Errorf("re-parent descendants: %w", err)
			}
			_, err = tx.Exec(ctx,
				"UPDATE categories SET parent_id = $3 WHERE tenant_id = $1 AND parent_id = $2",
				tenantID, id, cur.ParentID)
			if err != nil {
				return fmt.Errorf("re-parent children: %w", err)
			}
		}

	default:
		return fmt.Errorf("unknown delete policy %q", policy)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM categories WHERE id = $1 AND tenant_id = $2", id, tenantID); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.invalidate(ctx, tenantID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, tenantID uuid.UUID) {
	_ = s.cache.Invalidate(ctx, &tenantID, cacheDomain)
}

func lastSlash(p string) int {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return i
		}
	}
	return -1
}
