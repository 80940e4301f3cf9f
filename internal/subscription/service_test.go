package subscription

import (
	"context"
	"errors"
	"path"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"

	"github.com/itellico/mono/internal/cache"
	"github.com/itellico/mono/internal/models"
	"github.com/itellico/mono/internal/tenant"
)

type fakeCacheClient struct {
	store map[string]string
}

func newFakeCacheClient() *fakeCacheClient {
	return &fakeCacheClient{store: make(map[string]string)}
}

func (f *fakeCacheClient) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := f.store[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCacheClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.store[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCacheClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.store[k]; ok {
			delete(f.store, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeCacheClient) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	var keys []string
	for k := range f.store {
		if ok, _ := path.Match(match, k); ok {
			keys = append(keys, k)
		}
	}
	return redis.NewScanCmdResult(keys, 0, nil)
}

func serviceForTest(t *testing.T) (pgxmock.PgxPoolIface, *Service) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, NewService(mock, cache.New(newFakeCacheClient()), time.Minute)
}

func tenantCtx(tenantID uuid.UUID) context.Context {
	return tenant.WithTenant(context.Background(), &models.Tenant{ID: tenantID})
}

func TestSetPlanFeatureRejectsForeignPlan(t *testing.T) {
	mock, svc := serviceForTest(t)

	tenantID := uuid.New()
	planID := uuid.New()

	// Ownership is checked before any write, so a plan from another tenant
	// (or a platform plan) never reaches the feature tables.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM subscription_plans WHERE id = $1 AND tenant_id = $2")).
		WithArgs(planID, tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := svc.SetPlanFeature(tenantCtx(tenantID), planID, "media.upload", true, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetPlanFeatureEnablesOwnedPlan(t *testing.T) {
	mock, svc := serviceForTest(t)

	tenantID := uuid.New()
	planID := uuid.New()
	maxValue := int64(100)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM subscription_plans WHERE id = $1 AND tenant_id = $2")).
		WithArgs(planID, tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO plan_features")).
		WithArgs(planID, "media.upload").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO plan_limits")).
		WithArgs(planID, "media.upload", maxValue).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := svc.SetPlanFeature(tenantCtx(tenantID), planID, "media.upload", true, &maxValue); err != nil {
		t.Fatalf("SetPlanFeature: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
