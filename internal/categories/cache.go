package categories

import (
	"sync"
	"time"
)

// listCache holds the sorted category list for a bounded time. gen counts
// invalidations; a load only lands if none happened since it started.
type listCache struct {
	mu       sync.Mutex
	gen      uint64
	ttl      time.Duration
	now      func() time.Time
	items    []Category
	loadedAt time.Time
	valid    bool
}

func newListCache(ttl time.Duration, now func() time.Time) *listCache {
	return &listCache{ttl: ttl, now: now}
}

func (c *listCache) get() ([]Category, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || c.ttl <= 0 {
		return nil, false
	}
	if c.now().Sub(c.loadedAt) >= c.ttl {
		c.valid = false
		c.items = nil
		return nil, false
	}
	return cloneCategories(c.items), true
}

func (c *listCache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *listCache) set(items []Category, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ttl <= 0 || gen != c.gen {
		return
	}
	c.items = cloneCategories(items)
	c.loadedAt = c.now()
	c.valid = true
}

func (c *listCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.valid = false
	c.items = nil
}

func cloneCategories(in []Category) []Category {
	out := make([]Category, len(in))
	copy(out, in)
	return out
}
