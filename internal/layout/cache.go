package layout

import "sync"

type cacheEntry struct {
	Layout TypeLayout
	Err    error
}

// cache is append-only: the first value stored for a key wins.
type cache struct {
	mu     sync.RWMutex
	byType map[string]*cacheEntry
	tags   map[string]Tag
}

func newCache() *cache {
	return &cache{
		byType: make(map[string]*cacheEntry, 256),
		tags:   make(map[string]Tag, 32),
	}
}

func (c *cache) get(key string) (*cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byType[key]
	return e, ok
}

func (c *cache) put(key string, e *cacheEntry) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.byType[key]; ok {
		return prev
	}
	c.byType[key] = e
	return e
}

func (c *cache) tag(key string) (Tag, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tags[key]
	return t, ok
}

func (c *cache) putTag(key string, t Tag) Tag {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.tags[key]; ok {
		return prev
	}
	c.tags[key] = t
	return t
}

func (c *cache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byType)
}
