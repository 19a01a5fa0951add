package store

import (
	"sync"
	"time"
)

// DefaultCacheTTL is how long a scan of the workflow directories is reused.
const DefaultCacheTTL = 60 * time.Second

// cache holds the result of the last directory scan. It is refreshed at
// most once per TTL unless invalidated.
type cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	entries  []entry
	loadedAt time.Time
	valid    bool
	// gen counts invalidations. A scan is stored only if no invalidation
	// happened while it ran.
	gen uint64
}

func newCache(ttl time.Duration, now func() time.Time) *cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &cache{ttl: ttl, now: now}
}

// get returns the cached entries if they are still fresh.
func (c *cache) get() ([]entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || c.now().Sub(c.loadedAt) >= c.ttl {
		return nil, false
	}
	return c.entries, true
}

// generation returns the token a scan must pass to set.
func (c *cache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// set stores entries scanned since generation gen. It reports false and
// drops the scan if the cache was invalidated in the meantime.
func (c *cache) set(entries []entry, gen uint64) bool {
	loadedAt := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.entries = entries
	c.loadedAt = loadedAt
	c.valid = true
	return true
}

// invalidate forces the next get to miss.
func (c *cache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
	c.entries = nil
	c.gen++
}
