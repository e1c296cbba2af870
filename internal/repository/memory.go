package repository

import (
	"context"
	"sync"
	"time"
)

type slotEntry struct {
	times     []string
	expiresAt time.Time
}

// MemorySlotCache is the in-process fallback for RedisSlotCache.
type MemorySlotCache struct {
	mu      sync.Mutex
	entries map[string]slotEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemorySlotCache(ttl time.Duration) *MemorySlotCache {
	return &MemorySlotCache{
		entries: make(map[string]slotEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemorySlotCache) Get(_ context.Context, date time.Time) ([]string, bool, error) {
	key := slotKey(date)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if c.ttl > 0 && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return append([]string{}, entry.times...), true, nil
}

func (c *MemorySlotCache) Set(_ context.Context, date time.Time, times []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[slotKey(date)] = slotEntry{
		times:     append([]string{}, times...),
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

func (c *MemorySlotCache) Invalidate(_ context.Context, date time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, slotKey(date))
	return nil
}
