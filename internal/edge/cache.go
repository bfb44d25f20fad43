// Package edge holds the shared content-response cache and the purge logic
// that keeps it consistent across every URL alias of a project.
package edge

import (
	"sync"
	"time"
)

// Entry is one cached response body with its headers.
type Entry struct {
	Body        []byte
	ContentType string
	CachedAt    time.Time
}

// Cache is the shared response cache consulted only for requests whose
// access decision was identity-independent.
type Cache interface {
	Get(key string) (*Entry, bool)
	Set(key string, e *Entry)
	// Purge removes the key. Purging an absent key is a no-op.
	Purge(key string)
}

// MemoryCache is an in-process TTL cache keyed by canonical URL.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryCache creates a cache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*Entry),
	}
}

func (c *MemoryCache) Get(key string) (*Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.CachedAt) > c.ttl {
		c.Purge(key)
		return nil, false
	}
	return e, true
}

func (c *MemoryCache) Set(key string, e *Entry) {
	if e.CachedAt.IsZero() {
		e.CachedAt = c.now()
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

func (c *MemoryCache) Purge(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len reports the number of live entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
