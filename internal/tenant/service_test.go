package tenant

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
)

var tenantTestCols = []string{"id", "name", "slug", "domain", "settings", "is_active", "created_at", "updated_at"}

func TestCreateStoresNullForAbsentDomain(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	now := time.Now()

	// The domain column is UNIQUE; two domainless tenants must both insert
	// NULL instead of colliding on ''.
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tenants")).
		WithArgs("Acme", "acme", (*string)(nil)).
		WillReturnRows(pgxmock.NewRows(tenantTestCols).
			AddRow(id, "Acme", "acme", (*string)(nil), json.RawMessage(`{}`), true, now, now))

	svc := NewService(mock)
	tn, err := svc.Create(context.Background(), "Acme", "acme", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tn.Domain != nil {
		t.Fatalf("domain = %q, want nil", *tn.Domain)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateKeepsProvidedDomain(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	now := time.Now()
	domain := "acme.example.com"

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tenants")).
		WithArgs("Acme", "acme", &domain).
		WillReturnRows(pgxmock.NewRows(tenantTestCols).
			AddRow(id, "Acme", "acme", &domain, json.RawMessage(`{}`), true, now, now))

	svc := NewService(mock)
	tn, err := svc.Create(context.Background(), "Acme", "acme", domain)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tn.Domain == nil || *tn.Domain != domain {
		t.Fatalf("domain = %v, want %q", tn.Domain, domain)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
