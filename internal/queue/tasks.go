package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	TypeMediaProcess = "media:process"
	TypeVersionPrune = "version:prune"
)

type MediaProcessPayload struct {
	AssetID  string `json:"asset_id"`
	TenantID string `json:"tenant_id"`
}

type VersionPrunePayload struct {
	Keep int `json:"keep"`
}

// NewVersionPruneTask builds the prune task used by both the scheduler and
// the on-demand admin trigger.
func NewVersionPruneTask(keep int) (*asynq.Task, error) {
	data, err := json.Marshal(VersionPrunePayload{Keep: keep})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeVersionPrune, data), nil
}
