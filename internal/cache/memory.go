package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     int
	expiresAt time.Time
}

// MemoryCache is a process-local IntCache for single-instance runs and tests.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) GetInt(_ context.Context, key string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return 0, ErrMiss
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return 0, ErrMiss
	}
	return e.value, nil
}

func (c *MemoryCache) SetInt(_ context.Context, key string, value int, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[key] = memoryEntry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}
