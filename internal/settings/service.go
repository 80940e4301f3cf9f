package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/itellico/mono/internal/auth"
	"github.com/itellico/mono/internal/cache"
	"github.com/itellico/mono/internal/database"
	"github.com/itellico/mono/internal/models"
	"github.com/itellico/mono/internal/tenant"
)

var (
	ErrNotFound     = errors.New("setting not found")
	ErrInvalidValue = errors.New("value does not match the declared type")
	ErrForbidden    = errors.New("global settings require super admin")
)

const cacheDomain = "settings"

// permissionChecker reports the caller's effective permissions. Satisfied by
// *auth.Resolver; faked in tests.
type permissionChecker interface {
	AdminPermissions(ctx context.Context, userID, tenantID uuid.UUID) (*auth.AdminPermissions, error)
}

type Service struct {
	db    database.DB
	cache *cache.Cache
	ttl   time.Duration
	perms permissionChecker
}

func NewService(db database.DB, c *cache.Cache, ttl time.Duration, perms permissionChecker) *Service {
	return &Service{db: db, cache: c, ttl: ttl, perms: perms}
}

// requireSuperAdmin gates global-scope writes, which reach every tenant.
// Fail closed: a missing user or a resolver error denies.
func (s *Service) requireSuperAdmin(ctx context.Context) error {
	u := tenant.UserFromContext(ctx)
	if u == nil {
		return ErrForbidden
	}
	perms, err := s.perms.AdminPermissions(ctx, u.ID, tenant.IDFromContext(ctx))
	if err != nil || perms == nil || !perms.IsSuperAdmin() {
		return ErrForbidden
	}
	return nil
}

const settingCols = "id, tenant_id, user_id, key, value_type, value, updated_at"

// ValidateValue checks raw JSON against the declared setting type.
func ValidateValue(t models.SettingType, raw json.RawMessage) error {
	switch t {
	case models.SettingBoolean:
		var v bool
		if json.Unmarshal(raw, &v) != nil {
			return ErrInvalidValue
		}
	case models.SettingString:
		var v string
		if json.Unmarshal(raw, &v) != nil {
			return ErrInvalidValue
		}
	case models.SettingInteger:
		var v int64
		if json.Unmarshal(raw, &v) != nil {
			return ErrInvalidValue
		}
	case models.SettingJSON:
		if !json.Valid(raw) {
			return ErrInvalidValue
		}
	default:
		return fmt.Errorf("unknown setting type %q", t)
	}
	return nil
}

type SetRequest struct {
	Key       string             `json:"key"`
	ValueType models.SettingType `json:"value_type"`
	Value     json.RawMessage    `json:"value"`
	UserID    *uuid.UUID         `json:"user_id,omitempty"`
	Global    bool               `json:"global,omitempty"`
}

// Set upserts a setting row at the requested scope. Global writes carry no
// tenant; user writes pin both tenant and user.
func (s *Service) Set(ctx context.Context, req SetRequest) (*models.Setting, error) {
	if err := ValidateValue(req.ValueType, req.Value); err != nil {
		return nil, err
	}

	var tenantID *uuid.UUID
	if req.Global {
		if err := s.requireSuperAdmin(ctx); err != nil {
			return nil, err
		}
	} else {
		tid := tenant.IDFromContext(ctx)
		tenantID = &tid
	}

	var st models.Setting
	err := s.db.QueryRow(ctx,
		`INSERT INTO settings (tenant_id, user_id, key, value_type, value)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key, COALESCE(tenant_id, '00000000-0000-0000-0000-000000000000'::uuid),
		              COALESCE(user_id, '00000000-0000-0000-0000-000000000000'::uuid))
		 DO UPDATE SET value_type = EXCLUDED.value_type, value = EXCLUDED.value, updated_at = now()
		 RETURNING `+settingCols,
		tenantID, req.UserID, req.Key, req.ValueType, req.Value,
	).Scan(&st.ID, &st.TenantID, &st.UserID, &st.Key, &st.ValueType, &st.Value, &st.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert setting: %w", err)
	}

	// Global rows feed every tenant's resolution cache, so a global write
	// must sweep all scopes.
	if req.Global {
		_ = s.cache.InvalidateAllScopes(ctx, cacheDomain)
	} else {
		_ = s.cache.Invalidate(ctx, tenantID, cacheDomain)
	}
	return &st, nil
}

// Resolve returns the most specific row for key: user beats tenant beats
// global.
func (s *Service) Resolve(ctx context.Context, key string, userID *uuid.UUID) (*models.Setting, error) {
	tenantID := tenant.IDFromContext(ctx)

	filters := map[string]string{"key": key}
	if userID != nil {
		filters["user"] = userID.String()
	}
	cacheKey := cache.Key(&tenantID, cacheDomain, "resolve", filters)

	var st models.Setting
	err := s.cache.GetOrLoad(ctx, cacheKey, &st, s.ttl, func(ctx context.Context) (any, error) {
		return s.resolve(ctx, tenantID, key, userID)
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Service) resolve(ctx context.Context, tenantID uuid.UUID, key string, userID *uuid.UUID) (*models.Setting, error) {
	var st models.Setting
	err := s.db.QueryRow(ctx,
		`SELECT `+settingCols+` FROM settings
		 WHERE key = $1
		   AND (tenant_id = $2 OR tenant_id IS NULL)
		   AND (user_id = $3 OR user_id IS NULL)
		 ORDER BY (user_id IS NOT NULL) DESC, (tenant_id IS NOT NULL) DESC
		 LIMIT 1`,
		key, tenantID, userID,
	).Scan(&st.ID, &st.TenantID, &st.UserID, &st.Key, &st.ValueType, &st.Value, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve setting: %w", err)
	}
	return &st, nil
}

func (s *Service) List(ctx context.Context) ([]models.Setting, error) {
	tenantID := tenant.IDFromContext(ctx)
	key := cache.Key(&tenantID, cacheDomain, "list", nil)

	var out []models.Setting
	err := s.cache.GetOrLoad(ctx, key, &out, s.ttl, func(ctx context.Context) (any, error) {
		return s.list(ctx, tenantID)
	})
	return out, err
}

func (s *Service) list(ctx context.Context, tenantID uuid.UUID) ([]models.Setting, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+settingCols+` FROM settings
		 WHERE tenant_id = $1 OR tenant_id IS NULL
		 ORDER BY key`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	out := []models.Setting{}
	for rows.Next() {
		var st models.Setting
		if err := rows.Scan(&st.ID, &st.TenantID, &st.UserID, &st.Key, &st.ValueType, &st.Value, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID := tenant.IDFromContext(ctx)

	var rowTenant *uuid.UUID
	err := s.db.QueryRow(ctx,
		"SELECT tenant_id FROM settings WHERE id = $1 AND (tenant_id = $2 OR tenant_id IS NULL)",
		id, tenantID,
	).Scan(&rowTenant)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get setting: %w", err)
	}

	// Deleting a global default affects every tenant, not just the caller's.
	if rowTenant == nil {
		if err := s.requireSuperAdmin(ctx); err != nil {
			return err
		}
	}

	tag, err := s.db.Exec(ctx, "DELETE FROM settings WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if rowTenant == nil {
		_ = s.cache.InvalidateAllScopes(ctx, cacheDomain)
	} else {
		_ = s.cache.Invalidate(ctx, &tenantID, cacheDomain)
	}
	return nil
}
