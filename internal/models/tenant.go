package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Tenant struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Slug      string          `json:"slug" db:"slug"`
	Domain    *string         `json:"domain,omitempty" db:"domain"`
	Settings  json.RawMessage `json:"settings" db:"settings"`
	IsActive  bool            `json:"is_active" db:"is_active"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Role is a named permission bundle. TenantID is nil for platform roles
// available to every tenant.
type Role struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	TenantID  *uuid.UUID `json:"tenant_id,omitempty" db:"tenant_id"`
	Name      string     `json:"name" db:"name"`
	Level     int        `json:"level" db:"level"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

type PermissionScope string

const (
	ScopeOwn    PermissionScope = "own"
	ScopeTenant PermissionScope = "tenant"
	ScopeGlobal PermissionScope = "global"
)

type Permission struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"` // resource.action
	Scope       PermissionScope `json:"scope" db:"scope"`
	Description string          `json:"description,omitempty" db:"description"`
}

// UserRole links a user to a role, optionally bounded by a validity window.
type UserRole struct {
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	RoleID     uuid.UUID  `json:"role_id" db:"role_id"`
	ValidFrom  *time.Time `json:"valid_from,omitempty" db:"valid_from"`
	ValidUntil *time.Time `json:"valid_until,omitempty" db:"valid_until"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
