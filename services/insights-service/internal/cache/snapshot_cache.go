package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/appointly/insights/services/insights-service/internal/analytics"
	"github.com/appointly/insights/services/insights-service/internal/model"
)

// SnapshotCache memoizes computed snapshots per business and range pair.
// Invalidation bumps a per-business version key instead of scanning for
// snapshot keys, so stale entries just age out through their TTL.
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSnapshotCache(rdb *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SnapshotCache{rdb: rdb, ttl: ttl}
}

func (c *SnapshotCache) Get(ctx context.Context, businessID string, current, previous model.DateRange) (analytics.Snapshot, bool, error) {
	key, err := c.key(ctx, businessID, current, previous)
	if err != nil {
		return analytics.Snapshot{}, false, err
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return analytics.Snapshot{}, false, nil
	}
	if err != nil {
		return analytics.Snapshot{}, false, err
	}
	var snap analytics.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// A corrupt entry is a miss, not a failure.
		return analytics.Snapshot{}, false, nil
	}
	return snap, true, nil
}

func (c *SnapshotCache) Put(ctx context.Context, businessID string, current, previous model.DateRange, snap analytics.Snapshot) error {
	key, err := c.key(ctx, businessID, current, previous)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, c.ttl).Err()
}

// Invalidate drops every cached snapshot for a business by bumping its version.
func (c *SnapshotCache) Invalidate(ctx context.Context, businessID string) error {
	return c.rdb.Incr(ctx, versionKey(businessID)).Err()
}

func (c *SnapshotCache) key(ctx context.Context, businessID string, current, previous model.DateRange) (string, error) {
	ver, err := c.rdb.Get(ctx, versionKey(businessID)).Int64()
	if errors.Is(err, redis.Nil) {
		ver = 0
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("snapshot:%s:%d:%s_%s:%s_%s",
		businessID, ver, current.Start, current.End, previous.Start, previous.End), nil
}

func versionKey(businessID string) string {
	return "snapshot:ver:" + businessID
}
