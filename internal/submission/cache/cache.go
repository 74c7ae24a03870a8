package cache

import (
	"context"
	"sync"
	"time"

	"claimintake/internal/submission"
)

// MemoryCache holds the two memoized query results in process memory.
// The list and stats entries expire independently; a write to either
// resets only that entry's timestamp.
//
// Staleness is bounded by the TTLs and every store write invalidates both
// entries first, so readers never need locking beyond the mutex here.
type MemoryCache struct {
	mu sync.RWMutex

	listTTL  time.Duration
	statsTTL time.Duration

	list    *submission.PagedResult
	listAt  time.Time
	stats   *submission.StatsSnapshot
	statsAt time.Time

	now func() time.Time
}

func NewMemoryCache(listTTL, statsTTL time.Duration) *MemoryCache {
	return &MemoryCache{
		listTTL:  listTTL,
		statsTTL: statsTTL,
		now:      time.Now,
	}
}

func (c *MemoryCache) GetList(_ context.Context) (submission.PagedResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.list == nil || c.now().Sub(c.listAt) >= c.listTTL {
		return submission.PagedResult{}, false
	}
	return *c.list, true
}

func (c *MemoryCache) SetList(_ context.Context, result submission.PagedResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = &result
	c.listAt = c.now()
}

func (c *MemoryCache) GetStats(_ context.Context) (submission.StatsSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stats == nil || c.now().Sub(c.statsAt) >= c.statsTTL {
		return submission.StatsSnapshot{}, false
	}
	return *c.stats, true
}

func (c *MemoryCache) SetStats(_ context.Context, snapshot submission.StatsSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = &snapshot
	c.statsAt = c.now()
}

func (c *MemoryCache) InvalidateAll(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = nil
	c.stats = nil
}
