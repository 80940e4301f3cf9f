package subscription

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

var ErrNotFound = errors.New("subscription plan not found")

const cacheDomain = "subscriptions"

type Service struct {
	db    database.DB
	cache *cache.Cache
	ttl   time.Duration
}

func NewService(db database.DB, c *cache.Cache, ttl time.Duration) *Service {
	return &Service{db: db, cache: c, ttl: ttl}
}

const planCols = "id, tenant_id, name, description, is_active, created_at, updated_at"

type PlanRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (s *Service) CreatePlan(ctx context.Context, req PlanRequest) (*models.SubscriptionPlan, error) {
	tenantID := tenant.IDFromContext(ctx)

	var p models.SubscriptionPlan
	err := s.db.QueryRow(ctx,
		`INSERT INTO subscription_plans (tenant_id, name, description)
		 VALUES ($1, $2, $3) RETURNING `+planCols,
		tenantID, req.Name, req.Description,
	).Scan(&p.ID, &p.TenantID, &p.Name, &p.Description, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert plan: %w", err)
	}

	_ = s.cache.Invalidate(ctx, &tenantID, cacheDomain)
	return &p, nil
}

func (s *Service) ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	tenantID := tenant.IDFromContext(ctx)
	key := cache.Key(&tenantID, cacheDomain, "plans", nil)

	var plans []models.SubscriptionPlan
	err := s.cache.GetOrLoad(ctx, key, &plans, s.ttl, func(ctx context.Context) (any, error) {
		return s.listPlans(ctx, tenantID)
	})
	return plans, err
}

func (s *Service) listPlans(ctx context.Context, tenantID uuid.UUID) ([]models.SubscriptionPlan, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+planCols+` FROM subscription_plans
		 WHERE tenant_id = $1 OR tenant_id IS NULL ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	plans := []models.SubscriptionPlan{}
	for rows.Next() {
		var p models.SubscriptionPlan
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.Description, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (s *Service) GetPlan(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error) {
	tenantID := tenant.IDFromContext(ctx)

	var p models.SubscriptionPlan
	err := s.db.QueryRow(ctx,
		`SELECT `+planCols+` FROM subscription_plans
		 WHERE id = $1 AND (tenant_id = $2 OR tenant_id IS NULL)`, id, tenantID,
	).Scan(&p.ID, &p.TenantID, &p.Name, &p.Description, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return &p, nil
}

func (s *Service) DeletePlan(ctx context.Context, id uuid.UUID) error {
	tenantID := tenant.IDFromContext(ctx)

	tag, err := s.db.Exec(ctx,
		"DELETE FROM subscription_plans WHERE id = $1 AND tenant_id = $2", id, tenantID)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	_ = s.cache.Invalidate(ctx, &tenantID, cacheDomain)
	return nil
}

func (s *Service) ListFeatures(ctx context.Context) ([]models.Feature, error) {
	key := cache.Key(nil, cacheDomain, "features", nil)

	var features []models.Feature
	err := s.cache.GetOrLoad(ctx, key, &features, s.ttl, func(ctx context.Context) (any, error) {
		rows, err := s.db.Query(ctx, "SELECT id, key, name FROM features ORDER BY key")
		if err != nil {
			return nil, fmt.Errorf("list features: %w", err)
		}
		defer rows.Close()

		out := []models.Feature{}
		for rows.Next() {
			var f models.Feature
			if err := rows.Scan(&f.ID, &f.Key, &f.Name); err != nil {
				return nil, fmt.Errorf("scan feature: %w", err)
			}
			out = append(out, f)
		}
		return out, rows.Err()
	})
	return features, err
}

// SetPlanFeature toggles a feature on a plan; enabling may carry a limit.
func (s *Service) SetPlanFeature(ctx context.Context, planID uuid.UUID, featureKey string, enabled bool, maxValue *int64) error {
	tenantID := tenant.IDFromContext(ctx)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// The plan must belong to the caller's tenant. Platform plans
	// (tenant_id IS NULL) are read-only through this path.
	var owned bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM subscription_plans WHERE id = $1 AND tenant_id = $2)",
		planID, tenantID,
	).Scan(&owned)
	if err != nil {
		return fmt.Errorf("check plan: %w", err)
	}
	if !owned {
		return ErrNotFound
	}

	if enabled {
		if _, err := tx.Exec(ctx,
			`INSERT INTO plan_features (plan_id, feature_key) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, planID, featureKey); err != nil {
			return fmt.Errorf("enable feature: %w", err)
		}
		if maxValue != nil {
			if _, err := tx.Exec(ctx,
				`INSERT INTO plan_limits (plan_id, feature_key, max_value) VALUES ($1, $2, $3)
				 ON CONFLICT (plan_id, feature_key) DO UPDATE SET max_value = EXCLUDED.max_value`,
				planID, featureKey, *maxValue); err != nil {
				return fmt.Errorf("set limit: %w", err)
			}
		}
	} else {
		if _, err := tx.Exec(ctx,
			"DELETE FROM plan_features WHERE plan_id = $1 AND feature_key = $2", planID, featureKey); err != nil {
			return fmt.Errorf("disable feature: %w", err)
		}
		if _, err := tx.Exec(ctx,
			"DELETE FROM plan_limits WHERE plan_id = $1 AND feature_key = $2", planID, featureKey); err != nil {
			return fmt.Errorf("clear limit: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	_ = s.cache.Invalidate(ctx, &tenantID, cacheDomain)
	return nil
}

func (s *Service) HasFeature(ctx context.Context, planID uuid.UUID, featureKey string) (bool, error) {
	tenantID := tenant.IDFromContext(ctx)

	var has bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM plan_features pf
			JOIN subscription_plans p ON p.id = pf.plan_id
			WHERE pf.plan_id = $1 AND pf.feature_key = $2
			  AND (p.tenant_id = $3 OR p.tenant_id IS NULL))`,
		planID, featureKey, tenantID,
	).Scan(&has)
	if err != nil {
		return false, fmt.Errorf("check feature: %w", err)
	}
	return has, nil
}

// LimitFor returns the cap for a feature on a plan; (nil, nil) means
// unlimited.
func (s *Service) LimitFor(ctx context.Context, planID uuid.UUID, featureKey string) (*int64, error) {
	tenantID := tenant.IDFromContext(ctx)

	var max int64
	err := s.db.QueryRow(ctx,
		`SELECT pl.max_value FROM plan_limits pl
		 JOIN subscription_plans p ON p.id = pl.plan_id
		 WHERE pl.plan_id = $1 AND pl.feature_key = $2
		   AND (p.tenant_id = $3 OR p.tenant_id IS NULL)`,
		planID, featureKey, tenantID,
	).Scan(&max)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get limit: %w", err)
	}
	return &max, nil
}
