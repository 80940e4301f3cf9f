package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/itellico/mono/internal/queue"
	"github.com/itellico/mono/internal/version"
)

const defaultKeepVersions = 20

type VersionWorker struct {
	versionSvc *version.Service
}

func NewVersionWorker(versionSvc *version.Service) *VersionWorker {
	return &VersionWorker{versionSvc: versionSvc}
}

func (w *VersionWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.VersionPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	keep := payload.Keep
	if keep <= 0 {
		keep = defaultKeepVersions
	}

	removed, err := w.versionSvc.Prune(ctx, keep)
	if err != nil {
		return fmt.Errorf("prune versions: %w", err)
	}

	slog.Info("pruned version history", "keep", keep, "removed", removed)
	return nil
}
