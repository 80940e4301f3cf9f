package auth

import (
	"context"
	"path"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"

	"github.com/itellico/mono/internal/cache"
)

// fakeCacheClient backs the cache with a plain map so resolver and store
// tests run without a Redis server.
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

var roleCols = []string{"id", "tenant_id", "name", "level", "created_at"}

func TestAdminPermissionsNoRolesReturnsNil(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer mock.Close()

	userID := uuid.New()
	tenantID := uuid.New()

	// Zero assignments must short-circuit before the permissions query.
	mock.ExpectQuery("FROM user_roles").
		WithArgs(userID, tenantID).
		WillReturnRows(pgxmock.NewRows(roleCols))

	r := NewResolver(mock, cache.New(newFakeCacheClient()), time.Minute)
	perms, err := r.AdminPermissions(context.Background(), userID, tenantID)
	if err != nil {
		t.Fatalf("AdminPermissions: %v", err)
	}
	if perms != nil {
		t.Fatalf("perms = %+v, want nil for a user with no roles", perms)
	}
	if perms.Has("categories.read") {
		t.Fatal("nil permission set granted access")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdminPermissionsResolvesGrants(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer mock.Close()

	userID := uuid.New()
	tenantID := uuid.New()
	roleID := uuid.New()
	permID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM user_roles").
		WithArgs(userID, tenantID).
		WillReturnRows(pgxmock.NewRows(roleCols).
			AddRow(roleID, &tenantID, "content_moderator", 20, now))
	mock.ExpectQuery("FROM role_permissions").
		WithArgs([]uuid.UUID{roleID}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "scope", "description"}).
			AddRow(permID, "categories.read", "tenant", "Read categories"))

	r := NewResolver(mock, cache.New(newFakeCacheClient()), time.Minute)
	perms, err := r.AdminPermissions(context.Background(), userID, tenantID)
	if err != nil {
		t.Fatalf("AdminPermissions: %v", err)
	}
	if perms == nil {
		t.Fatal("perms = nil, want resolved set")
	}
	if !perms.Has("categories.read") {
		t.Fatal("granted permission not resolved")
	}
	if perms.Has("categories.delete") {
		t.Fatal("ungranted permission resolved")
	}
	if perms.HighestRole.Name != "content_moderator" {
		t.Fatalf("highest role = %q, want content_moderator", perms.HighestRole.Name)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdminPermissionsCachedAfterFirstResolve(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer mock.Close()

	userID := uuid.New()
	tenantID := uuid.New()
	roleID := uuid.New()
	now := time.Now()

	// One pair of queries only; the second call must be served from cache.
	mock.ExpectQuery("FROM user_roles").
		WithArgs(userID, tenantID).
		WillReturnRows(pgxmock.NewRows(roleCols).
			AddRow(roleID, &tenantID, "account_admin", 40, now))
	mock.ExpectQuery(regexp.QuoteMeta("rp.role_id = ANY($1)")).
		WithArgs([]uuid.UUID{roleID}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "scope", "description"}).
			AddRow(uuid.New(), "tags.manage", "tenant", "Manage tags"))

	r := NewResolver(mock, cache.New(newFakeCacheClient()), time.Minute)
	ctx := context.Background()

	first, err := r.AdminPermissions(ctx, userID, tenantID)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := r.AdminPermissions(ctx, userID, tenantID)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if !second.Has("tags.manage") {
		t.Fatal("cached resolution lost the grant")
	}
	if first.HighestRole.ID != second.HighestRole.ID {
		t.Fatal("cached resolution differs from the fresh one")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
