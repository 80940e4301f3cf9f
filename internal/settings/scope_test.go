package settings

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"

	"github.com/itellico/mono/internal/auth"
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

// fakeChecker stands in for the permission resolver.
type fakeChecker struct {
	perms *auth.AdminPermissions
	err   error
}

func (f *fakeChecker) AdminPermissions(ctx context.Context, userID, tenantID uuid.UUID) (*auth.AdminPermissions, error) {
	return f.perms, f.err
}

func superAdminPerms(userID, tenantID uuid.UUID) *auth.AdminPermissions {
	return auth.NewAdminPermissions(userID.String(), tenantID.String(),
		[]models.Role{{ID: uuid.New(), Name: "super_admin", Level: 100}},
		[]models.Permission{{ID: uuid.New(), Name: "platform.manage", Scope: models.ScopeGlobal}})
}

func tenantAdminPerms(userID, tenantID uuid.UUID) *auth.AdminPermissions {
	return auth.NewAdminPermissions(userID.String(), tenantID.String(),
		[]models.Role{{ID: uuid.New(), Name: "account_admin", Level: 40}},
		[]models.Permission{{ID: uuid.New(), Name: "settings.manage", Scope: models.ScopeTenant}})
}

func userCtx(tenantID, userID uuid.UUID) context.Context {
	ctx := tenant.WithTenant(context.Background(), &models.Tenant{ID: tenantID})
	return tenant.WithUser(ctx, &models.User{ID: userID, TenantID: tenantID})
}

func newTestService(t *testing.T, checker permissionChecker) (pgxmock.PgxPoolIface, *Service, *fakeCacheClient) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	t.Cleanup(mock.Close)

	fc := newFakeCacheClient()
	return mock, NewService(mock, cache.New(fc), time.Minute, checker), fc
}

func TestSetGlobalDeniedWithoutSuperAdmin(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()
	mock, svc, _ := newTestService(t, &fakeChecker{perms: tenantAdminPerms(userID, tenantID)})

	_, err := svc.Set(userCtx(tenantID, userID), SetRequest{
		Key:       "platform.name",
		ValueType: models.SettingString,
		Value:     json.RawMessage(`"itellico"`),
		Global:    true,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	// The write must be refused before touching the database.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetGlobalDeniedWithoutUser(t *testing.T) {
	tenantID := uuid.New()
	_, svc, _ := newTestService(t, &fakeChecker{perms: superAdminPerms(uuid.New(), tenantID)})

	ctx := tenant.WithTenant(context.Background(), &models.Tenant{ID: tenantID})
	_, err := svc.Set(ctx, SetRequest{
		Key:       "platform.name",
		ValueType: models.SettingString,
		Value:     json.RawMessage(`"itellico"`),
		Global:    true,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestSetGlobalDeniedOnResolverError(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()
	_, svc, _ := newTestService(t, &fakeChecker{err: errors.New("redis down")})

	_, err := svc.Set(userCtx(tenantID, userID), SetRequest{
		Key:       "platform.name",
		ValueType: models.SettingString,
		Value:     json.RawMessage(`"itellico"`),
		Global:    true,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestSetGlobalAsSuperAdminSweepsEveryScope(t *testing.T) {
	tenantID := uuid.New()
	otherTenant := uuid.New()
	userID := uuid.New()
	mock, svc, fc := newTestService(t, &fakeChecker{perms: superAdminPerms(userID, tenantID)})

	keyMine := cache.Key(&tenantID, "settings", "resolve", map[string]string{"key": "platform.name"})
	keyOther := cache.Key(&otherTenant, "settings", "resolve", map[string]string{"key": "platform.name"})
	fc.store[keyMine] = "{}"
	fc.store[keyOther] = "{}"

	settingID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO settings")).
		WithArgs((*uuid.UUID)(nil), (*uuid.UUID)(nil), "platform.name", models.SettingString, json.RawMessage(`"itellico"`)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "user_id", "key", "value_type", "value", "updated_at"}).
			AddRow(settingID, (*uuid.UUID)(nil), (*uuid.UUID)(nil), "platform.name", models.SettingString, json.RawMessage(`"itellico"`), time.Now()))

	st, err := svc.Set(userCtx(tenantID, userID), SetRequest{
		Key:       "platform.name",
		ValueType: models.SettingString,
		Value:     json.RawMessage(`"itellico"`),
		Global:    true,
	})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if st.TenantID != nil {
		t.Fatalf("tenant_id = %v, want nil for a global row", st.TenantID)
	}

	// Global defaults feed every tenant's resolution, so all scopes are swept.
	if _, ok := fc.store[keyMine]; ok {
		t.Fatal("caller tenant's cached setting survived the global write")
	}
	if _, ok := fc.store[keyOther]; ok {
		t.Fatal("other tenant's cached setting survived the global write")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteGlobalDeniedWithoutSuperAdmin(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()
	mock, svc, _ := newTestService(t, &fakeChecker{perms: tenantAdminPerms(userID, tenantID)})

	settingID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT tenant_id FROM settings")).
		WithArgs(settingID, tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"tenant_id"}).AddRow((*uuid.UUID)(nil)))

	if err := svc.Delete(userCtx(tenantID, userID), settingID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteTenantRowNeedsNoSuperAdmin(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()
	mock, svc, _ := newTestService(t, &fakeChecker{perms: tenantAdminPerms(userID, tenantID)})

	settingID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT tenant_id FROM settings")).
		WithArgs(settingID, tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"tenant_id"}).AddRow(&tenantID))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM settings")).
		WithArgs(settingID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := svc.Delete(userCtx(tenantID, userID), settingID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
