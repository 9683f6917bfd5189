package menu

import (
	"sync"
	"time"
)

// RenderCache keeps recent renders in memory so presses on fresh keyboards
// resolve without touching storage.
//
// Entries expire after a TTL; an O(n) sweep runs at most once per cleanup
// interval. When the cache is full, arbitrary entries are evicted. Evicted
// renders still resolve through the cold path if a resolver is configured.
type RenderCache struct {
	mu sync.RWMutex

	max int
	ttl time.Duration

	cleanupInterval time.Duration
	nextCleanup     time.Time

	now func() time.Time
	m   map[string]cacheEntry
}

type cacheEntry struct {
	menu *RenderedMenu
	exp  time.Time
}

// NewRenderCache creates a RenderCache.
// Defaults: ttl=15m, max=5000, cleanupInterval=1m.
func NewRenderCache() *RenderCache {
	return &RenderCache{
		ttl:             15 * time.Minute,
		max:             5000,
		cleanupInterval: time.Minute,
		now:             time.Now,
		m:               map[string]cacheEntry{},
	}
}

func (c *RenderCache) WithTTL(ttl time.Duration) *RenderCache {
	if c == nil {
		return c
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
	return c
}

func (c *RenderCache) WithMax(max int) *RenderCache {
	if c == nil {
		return c
	}
	if max <= 0 {
		max = 5000
	}
	c.mu.Lock()
	c.max = max
	c.mu.Unlock()
	return c
}

func (c *RenderCache) WithCleanupInterval(d time.Duration) *RenderCache {
	if c == nil {
		return c
	}
	if d <= 0 {
		d = time.Minute
	}
	c.mu.Lock()
	c.cleanupInterval = d
	c.mu.Unlock()
	return c
}

// Put remembers m under its render id.
func (c *RenderCache) Put(m *RenderedMenu) {
	if c == nil || m == nil || m.RenderID == "" {
		return
	}
	now := c.now()
	c.maybeCleanup(now)

	c.mu.Lock()
	c.m[m.RenderID] = cacheEntry{menu: m, exp: now.Add(c.ttl)}
	c.enforceMaxLocked(m.RenderID)
	c.mu.Unlock()
}

// Get returns the render for id if it is still live.
func (c *RenderCache) Get(id string) (*RenderedMenu, bool) {
	if c == nil || id == "" {
		return nil, false
	}
	now := c.now()
	c.maybeCleanup(now)

	c.mu.RLock()
	e, ok := c.m[id]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if now.After(e.exp) {
		c.mu.Lock()
		if e2, ok2 := c.m[id]; ok2 && now.After(e2.exp) {
			delete(c.m, id)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.menu, true
}

// Len reports the number of entries, expired ones included.
func (c *RenderCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

func (c *RenderCache) maybeCleanup(now time.Time) {
	c.mu.RLock()
	next := c.nextCleanup
	c.mu.RUnlock()

	if next.IsZero() {
		c.mu.Lock()
		if c.nextCleanup.IsZero() {
			c.nextCleanup = now.Add(c.cleanupInterval)
		}
		c.mu.Unlock()
		return
	}
	if now.Before(next) {
		return
	}

	c.mu.Lock()
	if !now.Before(c.nextCleanup) {
		for k, e := range c.m {
			if now.After(e.exp) {
				delete(c.m, k)
			}
		}
		c.nextCleanup = now.Add(c.cleanupInterval)
	}
	c.mu.Unlock()
}

// enforceMaxLocked evicts arbitrary entries other than keep.
func (c *RenderCache) enforceMaxLocked(keep string) {
	over := len(c.m) - c.max
	if c.max <= 0 || over <= 0 {
		return
	}
	for k := range c.m {
		if k == keep {
			continue
		}
		delete(c.m, k)
		over--
		if over <= 0 {
			break
		}
	}
}
