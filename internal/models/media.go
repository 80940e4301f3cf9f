package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MarketplaceSide distinguishes the two faces of the marketplace an asset
// belongs to.
type MarketplaceSide string

const (
	SideProfessional MarketplaceSide = "professional"
	SideModel        MarketplaceSide = "model"
)

type MediaAsset struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	TenantID   uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	UploadedBy uuid.UUID       `json:"uploaded_by" db:"uploaded_by"`
	FileName   string          `json:"file_name" db:"file_name"`
	FilePath   string          `json:"file_path" db:"file_path"`
	MimeType   string          `json:"mime_type" db:"mime_type"`
	SizeBytes  int64           `json:"size_bytes" db:"size_bytes"`
	Side       MarketplaceSide `json:"side" db:"side"`
	Status     string          `json:"status" db:"status"`
	Metadata   json.RawMessage `json:"metadata" db:"metadata"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

const (
	MediaStatusPending    = "pending"
	MediaStatusProcessing = "processing"
	MediaStatusReady      = "ready"
	MediaStatusFailed     = "failed"
)
