package models

import (
	"time"

	"github.com/google/uuid"
)

// PageView is a single tracking event. ID is a ULID so batches stay
// time-ordered without a DB sequence.
type PageView struct {
	ID         string     `json:"id" db:"id"`
	TenantID   uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	UserID     *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	Path       string     `json:"path" db:"path"`
	OccurredAt time.Time  `json:"occurred_at" db:"occurred_at"`
}
