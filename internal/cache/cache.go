package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/itellico/mono/internal/obs"
)

// Client is the subset of redis.Client the cache uses; narrowed so tests can
// substitute command results.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// Cache is the shared tenant-scoped read-through cache. Every service goes
// through the same Key/GetOrLoad/Invalidate contract instead of carrying its
// own Redis wrapper. Redis failures are logged and treated as misses; they
// never fail a request.
type Cache struct {
	rdb   Client
	group singleflight.Group
}

func New(rdb Client) *Cache {
	return &Cache{rdb: rdb}
}

// GetOrLoad returns the cached value for key, or runs loader on a miss and
// stores the result with ttl. Concurrent misses on the same key share one
// loader call. dest must be a pointer; loader errors propagate to every
// waiter.
func (c *Cache) GetOrLoad(ctx context.Context, key string, dest any, ttl time.Duration, loader func(ctx context.Context) (any, error)) error {
	domain := domainOf(key)

	val, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		if err := json.Unmarshal([]byte(val), dest); err == nil {
			obs.RecordCacheOp(domain, "hit")
			return nil
		}
		// Unreadable entry: drop it and fall through to the loader.
		c.rdb.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		obs.RecordCacheOp(domain, "error")
		slog.Warn("cache read failed", "key", key, "error", err)
	}
	obs.RecordCacheOp(domain, "miss")

	loaded, err, _ := c.group.Do(key, func() (any, error) {
		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal cache value: %w", err)
		}
		if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
			slog.Warn("cache write failed", "key", key, "error", err)
		}
		return data, nil
	})
	if err != nil {
		return err
	}

	return json.Unmarshal(loaded.([]byte), dest)
}

// Invalidate removes every key for the domain within the tenant's scope (or
// the global scope for a nil tenant). Uses cursor SCAN rather than KEYS so
// large keyspaces do not block Redis.
func (c *Cache) Invalidate(ctx context.Context, tenantID *uuid.UUID, domain string) error {
	pattern := ScopePattern(tenantID, domain)

	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			slog.Warn("cache invalidation scan failed", "pattern", pattern, "error", err)
			return fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("cache invalidation delete failed", "pattern", pattern, "error", err)
				return fmt.Errorf("delete keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// InvalidateAllScopes removes the domain's keys across every tenant scope and
// the global scope. Needed when a platform-wide mutation (a platform role's
// permission set, for example) affects cached state in all tenants.
func (c *Cache) InvalidateAllScopes(ctx context.Context, domain string) error {
	pattern := DomainPattern(domain)

	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			slog.Warn("cache invalidation scan failed", "pattern", pattern, "error", err)
			return fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("cache invalidation delete failed", "pattern", pattern, "error", err)
				return fmt.Errorf("delete keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// domainOf extracts the domain segment for metrics. Keys are
// cache:<scope>:<domain>:<op>:<hash> with scope either "global" or
// "tenant:<uuid>".
func domainOf(key string) string {
	parts := strings.Split(key, ":")
	if len(parts) < 3 {
		return "unknown"
	}
	if parts[1] == "tenant" {
		if len(parts) < 4 {
			return "unknown"
		}
		return parts[3]
	}
	return parts[2]
}
