package repository

import "sync"

// lookupCache maps natural keys to row ids. The lock is never held across I/O.
type lookupCache struct {
	mu  sync.RWMutex
	ids map[string]int64
}

func newLookupCache() *lookupCache {
	return &lookupCache{ids: make(map[string]int64)}
}

func (c *lookupCache) get(key string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.ids[key]
	return id, ok
}

func (c *lookupCache) put(key string, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[key] = id
}

func (c *lookupCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}
