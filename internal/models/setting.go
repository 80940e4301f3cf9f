package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type SettingType string

const (
	SettingBoolean SettingType = "boolean"
	SettingString  SettingType = "string"
	SettingInteger SettingType = "integer"
	SettingJSON    SettingType = "json"
)

// Setting is a typed key/value row. Scope is determined by which of TenantID
// and UserID are set: both nil means global, tenant-only means tenant scope,
// user set means user scope.
type Setting struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	TenantID  *uuid.UUID      `json:"tenant_id,omitempty" db:"tenant_id"`
	UserID    *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	Key       string          `json:"key" db:"key"`
	ValueType SettingType     `json:"value_type" db:"value_type"`
	Value     json.RawMessage `json:"value" db:"value"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
