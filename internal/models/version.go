package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// VersionHistory is an append-only snapshot keyed by
// (tenant, entity_type, entity_id, version) with version monotonic per entity.
type VersionHistory struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	TenantID   uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id" db:"entity_id"`
	Version    int             `json:"version" db:"version"`
	Snapshot   json.RawMessage `json:"snapshot" db:"snapshot"`
	CreatedBy  *uuid.UUID      `json:"created_by,omitempty" db:"created_by"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
