package media

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/itellico/mono/internal/cache"
	"github.com/itellico/mono/internal/database"
	"github.com/itellico/mono/internal/models"
	"github.com/itellico/mono/internal/queue"
	"github.com/itellico/mono/internal/tenant"
)

var (
	ErrNotFound = errors.New("media asset not found")
	ErrTooLarge = errors.New("file exceeds the upload size limit")
)

const cacheDomain = "media"

// Service records upload metadata and hands processing off to the worker
// queue. Files themselves live under BasePath keyed by asset ID.
type Service struct {
	db      database.DB
	cache   *cache.Cache
	queue   *queue.Client
	ttl     time.Duration
	maxSize int64
	base    string
}

func NewService(db database.DB, c *cache.Cache, q *queue.Client, ttl time.Duration, maxSize int64, basePath string) *Service {
	return &Service{db: db, cache: c, queue: q, ttl: ttl, maxSize: maxSize, base: basePath}
}

const assetCols = "id, tenant_id, uploaded_by, file_name, file_path, mime_type, size_bytes, side, status, metadata, created_at"

type UploadRequest struct {
	FileName  string                 `json:"file_name"`
	MimeType  string                 `json:"mime_type"`
	SizeBytes int64                  `json:"size_bytes"`
	Side      models.MarketplaceSide `json:"side"`
}

// Upload records the asset in pending state and enqueues processing. The
// worker flips the status to ready (or failed).
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*models.MediaAsset, error) {
	tenantID := tenant.IDFromContext(ctx)
	user := tenant.UserFromContext(ctx)
	if user == nil {
		return nil, errors.New("no user in context")
	}
	if req.SizeBytes > s.maxSize {
		return nil, ErrTooLarge
	}
	if req.Side != models.SideProfessional && req.Side != models.SideModel {
		return nil, fmt.Errorf("invalid marketplace side %q", req.Side)
	}

	id := uuid.New()
	path := filepath.Join(s.base, tenantID.String(), id.String()+filepath.Ext(req.FileName))

	var a models.MediaAsset
	err := s.db.QueryRow(ctx,
		`INSERT INTO media_assets (id, tenant_id, uploaded_by, file_name, file_path, mime_type, size_bytes, side, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+assetCols,
		id, tenantID, user.ID, req.FileName, path, req.MimeType, req.SizeBytes, req.Side, models.MediaStatusPending,
	).Scan(&a.ID, &a.TenantID, &a.UploadedBy, &a.FileName, &a.FilePath, &a.MimeType, &a.SizeBytes, &a.Side, &a.Status, &a.Metadata, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert media asset: %w", err)
	}

	if err := s.queue.EnqueueMediaProcess(queue.MediaProcessPayload{
		AssetID:  a.ID.String(),
		TenantID: tenantID.String(),
	}); err != nil {
		return nil, fmt.Errorf("enqueue processing: %w", err)
	}

	_ = s.cache.Invalidate(ctx, &tenantID, cacheDomain)
	return &a, nil
}

type ListFilter struct {
	Side   string `json:"side,omitempty"`
	Status string `json:"status,omitempty"`
	TagID  string `json:"tag_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]models.MediaAsset, error) {
	tenantID := tenant.IDFromContext(ctx)
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	key := cache.Key(&tenantID, cacheDomain, "list", filter)

	var assets []models.MediaAsset
	err := s.cache.GetOrLoad(ctx, key, &assets, s.ttl, func(ctx context.Context) (any, error) {
		return s.list(ctx, tenantID, filter)
	})
	return assets, err
}

func (s *Service) list(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]models.MediaAsset, error) {
	query := "SELECT " + assetCols + " FROM media_assets WHERE tenant_id = $1"
	args := []any{tenantID}
	argIdx := 2

	if filter.Side != "" {
		query += fmt.Sprintf(" AND side = $%d", argIdx)
		args = append(args, filter.Side)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.TagID != "" {
		query += fmt.Sprintf(" AND id IN (SELECT media_asset_id FROM media_asset_tags WHERE tag_id = $%d)", argIdx)
		args = append(args, filter.TagID)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list media assets: %w", err)
	}
	defer rows.Close()

	assets := []models.MediaAsset{}
	for rows.Next() {
		var a models.MediaAsset
		if err := rows.Scan(&a.ID, &a.TenantID, &a.UploadedBy, &a.FileName, &a.FilePath, &a.MimeType, &a.SizeBytes, &a.Side, &a.Status, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan media asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.MediaAsset, error) {
	return s.GetForTenant(ctx, tenant.IDFromContext(ctx), id)
}

// GetForTenant is the worker-side lookup; queue tasks carry the tenant in the
// payload rather than on the context.
func (s *Service) GetForTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.MediaAsset, error) {
	var a models.MediaAsset
	err := s.db.QueryRow(ctx,
		"SELECT "+assetCols+" FROM media_assets WHERE id = $1 AND tenant_id = $2", id, tenantID,
	).Scan(&a.ID, &a.TenantID, &a.UploadedBy, &a.FileName, &a.FilePath, &a.MimeType, &a.SizeBytes, &a.Side, &a.Status, &a.Metadata, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get media asset: %w", err)
	}
	return &a, nil
}

// SetTags replaces the asset's tag set. Clearing and re-inserting happen in
// one transaction so readers never see a partial set.
func (s *Service) SetTags(ctx context.Context, id uuid.UUID, tagIDs []uuid.UUID) error {
	tenantID := tenant.IDFromContext(ctx)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM media_assets WHERE id = $1 AND tenant_id = $2)", id, tenantID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check asset: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, "DELETE FROM media_asset_tags WHERE media_asset_id = $1", id); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	for _, tagID := range tagIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO media_asset_tags (media_asset_id, tag_id)
			 SELECT $1, $2 WHERE EXISTS(SELECT 1 FROM tags WHERE id = $2 AND tenant_id = $3)`,
			id, tagID, tenantID)
		if err != nil {
			return fmt.Errorf("insert tag link: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	_ = s.cache.Invalidate(ctx, &tenantID, cacheDomain)
	return nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID := tenant.IDFromContext(ctx)

	tag, err := s.db.Exec(ctx, "DELETE FROM media_assets WHERE id = $1 AND tenant_id = $2", id, tenantID)
	if err != nil {
		return fmt.Errorf("delete media asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	_ = s.cache.Invalidate(ctx, &tenantID, cacheDomain)
	return nil
}

// SetStatus is used by the processing worker.
func (s *Service) SetStatus(ctx context.Context, tenantID, id uuid.UUID, status string) error {
	_, err := s.db.Exec(ctx,
		"UPDATE media_assets SET status = $3 WHERE id = $1 AND tenant_id = $2", id, tenantID, status)
	if err != nil {
		return fmt.Errorf("set media status: %w", err)
	}
	return nil
}
