package category

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

var catCols = []string{"id", "tenant_id", "parent_id", "name", "slug", "path", "level", "sort_order", "is_active", "created_at", "updated_at"}

func TestCreateChildExtendsParentPath(t *testing.T) {
	mock, svc := serviceForTest(t)

	tenantID := uuid.New()
	parentID := uuid.New()
	childID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT path, level FROM categories")).
		WithArgs(parentID, tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"path", "level"}).AddRow("/electronics", 1))
	mock.ExpectQuery(regexp.QuoteMeta("AND slug = $3)")).
		WithArgs(tenantID, &parentID, "phones").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO categories")).
		WithArgs(tenantID, &parentID, "Phones", "phones", "/electronics/phones", 2).
		WillReturnRows(pgxmock.NewRows(catCols).
			AddRow(childID, tenantID, &parentID, "Phones", "phones", "/electronics/phones", 2, 1, true, now, now))
	mock.ExpectCommit()

	c, err := svc.Create(tenantCtx(tenantID), CreateRequest{ParentID: &parentID, Name: "Phones"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Path != "/electronics/phones" {
		t.Fatalf("path = %q, want /electronics/phones", c.Path)
	}
	if c.Level != 2 {
		t.Fatalf("level = %d, want 2", c.Level)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateNormalizesClientSlug(t *testing.T) {
	mock, svc := serviceForTest(t)

	tenantID := uuid.New()
	parentID := uuid.New()
	now := time.Now()

	// "Phones & Tablets/2024" must never reach the path column raw: the '/'
	// would corrupt subtree prefix matching.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT path, level FROM categories")).
		WithArgs(parentID, tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"path", "level"}).AddRow("/electronics", 1))
	mock.ExpectQuery(regexp.QuoteMeta("AND slug = $3)")).
		WithArgs(tenantID, &parentID, "phones-tablets-2024").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO categories")).
		WithArgs(tenantID, &parentID, "Phones", "phones-tablets-2024", "/electronics/phones-tablets-2024", 2).
		WillReturnRows(pgxmock.NewRows(catCols).
			AddRow(uuid.New(), tenantID, &parentID, "Phones", "phones-tablets-2024", "/electronics/phones-tablets-2024", 2, 1, true, now, now))
	mock.ExpectCommit()

	c, err := svc.Create(tenantCtx(tenantID), CreateRequest{
		ParentID: &parentID,
		Name:     "Phones",
		Slug:     "Phones & Tablets/2024",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Slug != "phones-tablets-2024" {
		t.Fatalf("slug = %q, want phones-tablets-2024", c.Slug)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateRejectsUnusableSlug(t *testing.T) {
	_, svc := serviceForTest(t)

	_, err := svc.Create(tenantCtx(uuid.New()), CreateRequest{Name: "商品", Slug: "///"})
	if !errors.Is(err, ErrInvalidSlug) {
		t.Fatalf("err = %v, want ErrInvalidSlug", err)
	}
}

func TestDeleteCascadeRemovesSubtree(t *testing.T) {
	mock, svc := serviceForTest(t)

	tenantID := uuid.New()
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, parent_id, path, level FROM categories")).
		WithArgs(id, tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "parent_id", "path", "level"}).
			AddRow(id, (*uuid.UUID)(nil), "/electronics", 0))
	mock.ExpectQuery(regexp.QuoteMeta("AND parent_id = $2)")).
		WithArgs(tenantID, id).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta("path LIKE $2 || '/%'")).
		WithArgs(tenantID, "/electronics").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM categories WHERE id = $1")).
		WithArgs(id, tenantID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	if err := svc.Delete(tenantCtx(tenantID), id, DeleteCascade); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteMoveReparentsChildren(t *testing.T) {
	mock, svc := serviceForTest(t)

	tenantID := uuid.New()
	parentID := uuid.New()
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, parent_id, path, level FROM categories")).
		WithArgs(id, tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "parent_id", "path", "level"}).
			AddRow(id, &parentID, "/electronics/phones", 1))
	mock.ExpectQuery(regexp.QuoteMeta("AND parent_id = $2)")).
		WithArgs(tenantID, id).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	// Descendants swap "/electronics/phones" for "/electronics" and drop a
	// level; direct children then re-attach to the deleted node's parent.
	mock.ExpectExec(regexp.QuoteMeta("level = level - 1")).
		WithArgs(tenantID, "/electronics/phones", "/electronics", len("/electronics/phones")+1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec(regexp.QuoteMeta("SET parent_id = $3")).
		WithArgs(tenantID, id, &parentID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM categories WHERE id = $1")).
		WithArgs(id, tenantID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	if err := svc.Delete(tenantCtx(tenantID), id, DeleteMove); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteRestrictKeepsParentWithChildren(t *testing.T) {
	mock, svc := serviceForTest(t)

	tenantID := uuid.New()
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, parent_id, path, level FROM categories")).
		WithArgs(id, tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "parent_id", "path", "level"}).
			AddRow(id, (*uuid.UUID)(nil), "/electronics", 0))
	mock.ExpectQuery(regexp.QuoteMeta("AND parent_id = $2)")).
		WithArgs(tenantID, id).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	if err := svc.Delete(tenantCtx(tenantID), id, DeleteRestrict); !errors.Is(err, ErrHasChildren) {
		t.Fatalf("err = %v, want ErrHasChildren", err)
	}
}
