package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/itellico/mono/internal/media"
	"github.com/itellico/mono/internal/models"
	"github.com/itellico/mono/internal/queue"
)

// MediaWorker moves uploaded assets from pending to ready. Processing here is
// metadata validation; actual thumbnailing happens out of band and only flips
// metadata later.
type MediaWorker struct {
	mediaSvc *media.Service
}

func NewMediaWorker(mediaSvc *media.Service) *MediaWorker {
	return &MediaWorker{mediaSvc: mediaSvc}
}

func (w *MediaWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.MediaProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	assetID, err := uuid.Parse(payload.AssetID)
	if err != nil {
		return fmt.Errorf("parse asset ID: %w", err)
	}
	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return fmt.Errorf("parse tenant ID: %w", err)
	}

	slog.Info("processing media asset", "asset_id", assetID, "tenant_id", tenantID)

	if err := w.mediaSvc.SetStatus(ctx, tenantID, assetID, models.MediaStatusProcessing); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	asset, err := w.mediaSvc.GetForTenant(ctx, tenantID, assetID)
	if err != nil {
		w.mediaSvc.SetStatus(ctx, tenantID, assetID, models.MediaStatusFailed)
		return fmt.Errorf("get asset: %w", err)
	}

	if !mimeMatchesExtension(asset.MimeType, asset.FileName) {
		w.mediaSvc.SetStatus(ctx, tenantID, assetID, models.MediaStatusFailed)
		slog.Warn("media asset rejected", "asset_id", assetID, "mime", asset.MimeType, "file", asset.FileName)
		return nil
	}

	if err := w.mediaSvc.SetStatus(ctx, tenantID, assetID, models.MediaStatusReady); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}

	slog.Info("media asset ready", "asset_id", assetID)
	return nil
}

func mimeMatchesExtension(mimeType, fileName string) bool {
	ext := filepath.Ext(fileName)
	if ext == "" || mimeType == "" {
		return false
	}
	declared := mime.TypeByExtension(ext)
	if declared == "" {
		// Unknown extension: accept whatever the client declared.
		return true
	}
	parsed, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return true
	}
	got, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	return parsed == got
}
