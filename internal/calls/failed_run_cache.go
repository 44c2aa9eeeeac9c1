package calls

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// FailedRunMatch is one entry of the failed-run lookup: the platform run
// that failed for a given (normalized) phone number.
type FailedRunMatch struct {
	RunID    string    `json:"runId"`
	FailedAt time.Time `json:"failedAt"`
}

// FailedRunSnapshot is one fetch of the platform's failed-runs feed,
// indexed by whitespace-normalized phone number (first run wins per phone).
type FailedRunSnapshot struct {
	FetchedAt time.Time                 `json:"fetchedAt"`
	Index     map[string]FailedRunMatch `json:"index"`
}

// FailedRunCache shares one failed-runs snapshot between concurrent
// reconciliation passes. The cache is advisory: staleness up to the
// reconciler's TTL is acceptable, and a stale snapshot doubles as the
// "last good" fallback when a refresh fails.
type FailedRunCache interface {
	Load(ctx context.Context) (FailedRunSnapshot, bool, error)
	Store(ctx context.Context, snap FailedRunSnapshot) error
}

// MemoryFailedRunCache is a process-local cache for tests and deployments
// without Redis.
type MemoryFailedRunCache struct {
	mu   sync.Mutex
	snap FailedRunSnapshot
	ok   bool
}

func NewMemoryFailedRunCache() *MemoryFailedRunCache { return &MemoryFailedRunCache{} }

func (c *MemoryFailedRunCache) Load(ctx context.Context) (FailedRunSnapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap, c.ok, nil
}

func (c *MemoryFailedRunCache) Store(ctx context.Context, snap FailedRunSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = snap
	c.ok = true
	return nil
}

// Reset clears the cache. Test hook.
func (c *MemoryFailedRunCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = FailedRunSnapshot{}
	c.ok = false
}

// RedisFailedRunCache shares the snapshot across processes. The key TTL is
// deliberately longer than the freshness window so a stale value survives
// as the last-good fallback; freshness is judged by the reconciler from
// FetchedAt.
type RedisFailedRunCache struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

const failedRunCacheKey = "reconcile:failed_runs"

func NewRedisFailedRunCache(rdb *redis.Client, retention time.Duration) *RedisFailedRunCache {
	if retention <= 0 {
		retention = 5 * time.Minute
	}
	return &RedisFailedRunCache{rdb: rdb, key: failedRunCacheKey, ttl: retention}
}

func (c *RedisFailedRunCache) Load(ctx context.Context) (FailedRunSnapshot, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return FailedRunSnapshot{}, false, nil
		}
		return FailedRunSnapshot{}, false, err
	}
	var snap FailedRunSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return FailedRunSnapshot{}, false, err
	}
	return snap, true, nil
}

func (c *RedisFailedRunCache) Store(ctx context.Context, snap FailedRunSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key, raw, c.ttl).Err()
}
