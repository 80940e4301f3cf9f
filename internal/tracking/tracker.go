package tracking

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/itellico/mono/internal/models"
	"github.com/itellico/mono/internal/tenant"
)

// Tracker pushes page-view events onto a Redis list for the worker to drain.
// Tracking is best effort: every failure is logged and swallowed so a Redis
// outage never fails a page request.
type Tracker struct {
	rdb     *redis.Client
	listKey string
}

func NewTracker(rdb *redis.Client, listKey string) *Tracker {
	return &Tracker{rdb: rdb, listKey: listKey}
}

func (t *Tracker) Track(ctx context.Context, path string) {
	tenantID := tenant.IDFromContext(ctx)
	if tenantID == uuid.Nil {
		return
	}

	var userID *uuid.UUID
	if u := tenant.UserFromContext(ctx); u != nil {
		userID = &u.ID
	}

	ev := models.PageView{
		ID:         ulid.Make().String(),
		TenantID:   tenantID,
		UserID:     userID,
		Path:       path,
		OccurredAt: time.Now().UTC(),
	}

	data, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("tracking marshal failed", "error", err)
		return
	}
	if err := t.rdb.LPush(ctx, t.listKey, data).Err(); err != nil {
		slog.Warn("tracking push failed", "error", err)
	}
}
