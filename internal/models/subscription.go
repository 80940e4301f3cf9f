package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionPlan bundles features and limits. TenantID is nil for
// platform-wide plans.
type SubscriptionPlan struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	TenantID    *uuid.UUID `json:"tenant_id,omitempty" db:"tenant_id"`
	Name        string     `json:"name" db:"name"`
	Description string     `json:"description,omitempty" db:"description"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

type Feature struct {
	ID   uuid.UUID `json:"id" db:"id"`
	Key  string    `json:"key" db:"key"`
	Name string    `json:"name" db:"name"`
}

// PlanLimit caps a feature for a plan. A missing row means unlimited.
type PlanLimit struct {
	PlanID     uuid.UUID `json:"plan_id" db:"plan_id"`
	FeatureKey string    `json:"feature_key" db:"feature_key"`
	MaxValue   int64     `json:"max_value" db:"max_value"`
}
