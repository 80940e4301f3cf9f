package auth

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/itellico/mono/internal/cache"
	"github.com/itellico/mono/internal/models"
	"github.com/itellico/mono/internal/tenant"
)

func storeForTest(t *testing.T) (pgxmock.PgxPoolIface, *Store, *fakeCacheClient) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	t.Cleanup(mock.Close)

	fc := newFakeCacheClient()
	resolver := NewResolver(mock, cache.New(fc), time.Minute)
	return mock, NewStore(mock, resolver), fc
}

func tenantCtx(tenantID uuid.UUID) context.Context {
	return tenant.WithTenant(context.Background(), &models.Tenant{ID: tenantID})
}

func TestAssignRoleReturnsAssignment(t *testing.T) {
	mock, store, _ := storeForTest(t)

	tenantID := uuid.New()
	userID := uuid.New()
	roleID := uuid.New()
	created := time.Now()

	mock.ExpectQuery("INSERT INTO user_roles").
		WithArgs(userID, roleID, (*time.Time)(nil), (*time.Time)(nil), tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "role_id", "valid_from", "valid_until", "created_at"}).
			AddRow(userID, roleID, (*time.Time)(nil), (*time.Time)(nil), created))

	ur, err := store.AssignRole(tenantCtx(tenantID), userID, roleID, nil, nil)
	if err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if ur.UserID != userID || ur.RoleID != roleID {
		t.Fatalf("assignment = %+v, want user %s role %s", ur, userID, roleID)
	}
	if !ur.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %v, want %v", ur.CreatedAt, created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssignRoleUnknownRoleNotFound(t *testing.T) {
	mock, store, _ := storeForTest(t)

	tenantID := uuid.New()
	userID := uuid.New()
	roleID := uuid.New()

	// The guarded INSERT returns no row when the role is outside the tenant.
	mock.ExpectQuery("INSERT INTO user_roles").
		WithArgs(userID, roleID, (*time.Time)(nil), (*time.Time)(nil), tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "role_id", "valid_from", "valid_until", "created_at"}))

	if _, err := store.AssignRole(tenantCtx(tenantID), userID, roleID, nil, nil); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSetRolePermissionsPlatformRoleSweepsEveryTenant(t *testing.T) {
	mock, store, fc := storeForTest(t)

	tenantA := uuid.New()
	tenantB := uuid.New()
	roleID := uuid.New()
	permID := uuid.New()

	keyA := cache.Key(&tenantA, "permissions", "resolve", map[string]string{"user": uuid.NewString()})
	keyB := cache.Key(&tenantB, "permissions", "resolve", map[string]string{"user": uuid.NewString()})
	fc.store[keyA] = "{}"
	fc.store[keyB] = "{}"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT tenant_id FROM roles")).
		WithArgs(roleID, tenantA).
		WillReturnRows(pgxmock.NewRows([]string{"tenant_id"}).AddRow((*uuid.UUID)(nil)))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM role_permissions")).
		WithArgs(roleID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO role_permissions")).
		WithArgs(roleID, permID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := store.SetRolePermissions(tenantCtx(tenantA), roleID, []uuid.UUID{permID}); err != nil {
		t.Fatalf("SetRolePermissions: %v", err)
	}

	if _, ok := fc.store[keyA]; ok {
		t.Fatal("caller tenant's cached resolution survived a platform role change")
	}
	if _, ok := fc.store[keyB]; ok {
		t.Fatal("other tenant's cached resolution survived a platform role change")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetRolePermissionsTenantRoleSweepsOwnScopeOnly(t *testing.T) {
	mock, store, fc := storeForTest(t)

	tenantA := uuid.New()
	tenantB := uuid.New()
	roleID := uuid.New()
	permID := uuid.New()

	keyA := cache.Key(&tenantA, "permissions", "resolve", map[string]string{"user": uuid.NewString()})
	keyB := cache.Key(&tenantB, "permissions", "resolve", map[string]string{"user": uuid.NewString()})
	fc.store[keyA] = "{}"
	fc.store[keyB] = "{}"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT tenant_id FROM roles")).
		WithArgs(roleID, tenantA).
		WillReturnRows(pgxmock.NewRows([]string{"tenant_id"}).AddRow(&tenantA))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM role_permissions")).
		WithArgs(roleID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO role_permissions")).
		WithArgs(roleID, permID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := store.SetRolePermissions(tenantCtx(tenantA), roleID, []uuid.UUID{permID}); err != nil {
		t.Fatalf("SetRolePermissions: %v", err)
	}

	if _, ok := fc.store[keyA]; ok {
		t.Fatal("caller tenant's cached resolution survived the role change")
	}
	if _, ok := fc.store[keyB]; !ok {
		t.Fatal("unrelated tenant's cached resolution was swept by a tenant role change")
	}
}
