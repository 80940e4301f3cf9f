package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/itellico/mono/internal/database"
	"github.com/itellico/mono/internal/models"
	"github.com/itellico/mono/internal/obs"
)

// Flusher drains the tracking list into page_views on a fixed interval. Each
// drain writes one batch inside a single transaction; on failure the batch is
// pushed back onto the list so events are not lost.
type Flusher struct {
	db        database.DB
	rdb       *redis.Client
	listKey   string
	interval  time.Duration
	batchSize int
}

func NewFlusher(db database.DB, rdb *redis.Client, listKey string, interval time.Duration, batchSize int) *Flusher {
	return &Flusher{
		db:        db,
		rdb:       rdb,
		listKey:   listKey,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until ctx is canceled, with a final drain on shutdown.
func (f *Flusher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if n, err := f.Flush(drainCtx); err != nil {
				slog.Warn("final tracking drain failed", "error", err)
			} else if n > 0 {
				slog.Info("final tracking drain", "events", n)
			}
			cancel()
			return
		case <-ticker.C:
			n, err := f.Flush(ctx)
			if err != nil {
				slog.Warn("tracking flush failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("flushed page views", "events", n)
			}
		}
	}
}

// Flush pops up to batchSize events and writes them in one transaction.
func (f *Flusher) Flush(ctx context.Context) (int, error) {
	raw, err := f.rdb.LPopCount(ctx, f.listKey, f.batchSize).Result()
	if errors.Is(err, redis.Nil) || (err == nil && len(raw) == 0) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("pop events: %w", err)
	}

	events := make([]models.PageView, 0, len(raw))
	for _, r := range raw {
		var ev models.PageView
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			slog.Warn("dropping malformed tracking event", "error", err)
			continue
		}
		events = append(events, ev)
	}
	if len(events) == 0 {
		return 0, nil
	}

	if err := f.insert(ctx, events); err != nil {
		f.pushBack(ctx, raw)
		return 0, err
	}

	obs.RecordTrackingFlush(len(events))
	return len(events), nil
}

func (f *Flusher) insert(ctx context.Context, events []models.PageView) error {
	tx, err := f.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(
			`INSERT INTO page_views (id, tenant_id, user_id, path, occurred_at)
			 VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
			ev.ID, ev.TenantID, ev.UserID, ev.Path, ev.OccurredAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	return tx.Commit(ctx)
}

func (f *Flusher) pushBack(ctx context.Context, raw []string) {
	vals := make([]interface{}, len(raw))
	for i, r := range raw {
		vals[i] = r
	}
	if err := f.rdb.RPush(ctx, f.listKey, vals...).Err(); err != nil {
		slog.Error("failed to requeue tracking events", "count", len(raw), "error", err)
	}
}
