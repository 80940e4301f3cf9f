package version

import (
	"context"
	"encoding/json"
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

var ErrNotFound = errors.New("version not found")

const cacheDomain = "versions"

// Service keeps append-only entity snapshots with a per-entity monotonic
// version counter.
type Service struct {
	db    database.DB
	cache *cache.Cache
	ttl   time.Duration
}

func NewService(db database.DB, c *cache.Cache, ttl time.Duration) *Service {
	return &Service{db: db, cache: c, ttl: ttl}
}

const versionCols = "id, tenant_id, entity_type, entity_id, version, snapshot, created_by, created_at"

// Record appends a snapshot. The next version number is computed inside the
// insert so concurrent records cannot collide on a read-modify-write.
func (s *Service) Record(ctx context.Context, entityType string, entityID uuid.UUID, snapshot json.RawMessage) (*models.VersionHistory, error) {
	tenantID := tenant.IDFromContext(ctx)
	var createdBy *uuid.UUID
	if u := tenant.UserFromContext(ctx); u != nil {
		createdBy = &u.ID
	}

	var v models.VersionHistory
	err := s.db.QueryRow(ctx,
		`INSERT INTO version_history (tenant_id, entity_type, entity_id, version, snapshot, created_by)
		 VALUES ($1, $2, $3,
			(SELECT COALESCE(MAX(version), 0) + 1 FROM version_history
			 WHERE tenant_id = $1 AND entity_type = $2 AND entity_id = $3),
			$4, $5)
		 RETURNING `+versionCols,
		tenantID, entityType, entityID, snapshot, createdBy,
	).Scan(&v.ID, &v.TenantID, &v.EntityType, &v.EntityID, &v.Version, &v.Snapshot, &v.CreatedBy, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}

	_ = s.cache.Invalidate(ctx, &tenantID, cacheDomain)
	return &v, nil
}

type ListFilter struct {
	EntityType string    `json:"entity_type"`
	EntityID   uuid.UUID `json:"entity_id"`
	Limit      int       `json:"limit,omitempty"`
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]models.VersionHistory, error) {
	tenantID := tenant.IDFromContext(ctx)
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	key := cache.Key(&tenantID, cacheDomain, "list", filter)

	var versions []models.VersionHistory
	err := s.cache.GetOrLoad(ctx, key, &versions, s.ttl, func(ctx context.Context) (any, error) {
		return s.list(ctx, tenantID, filter)
	})
	return versions, err
}

func (s *Service) list(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]models.VersionHistory, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+versionCols+` FROM version_history
		 WHERE tenant_id = $1 AND entity_type = $2 AND entity_id = $3
		 ORDER BY version DESC LIMIT $4`,
		tenantID, filter.EntityType, filter.EntityID, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	versions := []models.VersionHistory{}
	for rows.Next() {
		var v models.VersionHistory
		if err := rows.Scan(&v.ID, &v.TenantID, &v.EntityType, &v.EntityID, &v.Version, &v.Snapshot, &v.CreatedBy, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *Service) Get(ctx context.Context, entityType string, entityID uuid.UUID, version int) (*models.VersionHistory, error) {
	tenantID := tenant.IDFromContext(ctx)

	var v models.VersionHistory
	err := s.db.QueryRow(ctx,
		`SELECT `+versionCols+` FROM version_history
		 WHERE tenant_id = $1 AND entity_type = $2 AND entity_id = $3 AND version = $4`,
		tenantID, entityType, entityID, version,
	).Scan(&v.ID, &v.TenantID, &v.EntityType, &v.EntityID, &v.Version, &v.Snapshot, &v.CreatedBy, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return &v, nil
}

// Prune removes everything but the newest keep versions per entity across all
// tenants. Run by the background worker.
func (s *Service) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	tag, err := s.db.Exec(ctx,
		`DELETE FROM version_history vh
		 WHERE vh.version <= (
			SELECT MAX(version) - $1 FROM version_history
			WHERE tenant_id = vh.tenant_id
			  AND entity_type = vh.entity_type
			  AND entity_id = vh.entity_id)`,
		keep)
	if err != nil {
		return 0, fmt.Errorf("prune versions: %w", err)
	}
	return tag.RowsAffected(), nil
}
