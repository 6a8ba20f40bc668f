// Package cache implements mnemo's bounded in-process memory cache
// (spec §4.6): a map from memory id to record with wall-clock TTL
// eviction. The eviction and locking discipline follows the same
// pattern as the teacher's events.ConnectionManager — a short-held
// sync.RWMutex guarding plain maps, reads never blocking each other.
package cache

import (
	"sync"
	"time"

	"github.com/mnemo-db/mnemo/pkg/model"
)

type entry struct {
	record    *model.MemoryRecord
	insertedAt time.Time
}

// Cache is a bounded, TTL-evicting map from memory id to record.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	ttl      time.Duration
	entries  map[string]entry
	now      func() time.Time
}

// New creates a Cache with the given capacity and TTL.
func New(capacity int, ttl time.Duration) *Cache {
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]entry, capacity),
		now:      time.Now,
	}
}

// Get returns the cached record for id, or (nil, false) if absent or
// expired. An expired entry is evicted as a side effect of Get.
func (c *Cache) Get(id string) (*model.MemoryRecord, bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.insertedAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, id)
		c.mu.Unlock()
		return nil, false
	}
	return e.record.Clone(), true
}

// Put inserts or replaces the cached record for id. When the cache is
// full, Put first evicts every expired entry; if still full, it evicts
// the single oldest entry by insertion time; if still full and id is
// not already present, the insert is skipped (spec §4.6).
func (c *Cache) Put(id string, record *model.MemoryRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[id]; !exists && len(c.entries) >= c.capacity {
		c.evictExpiredLocked()
	}
	if _, exists := c.entries[id]; !exists && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}
	if _, exists := c.entries[id]; !exists && len(c.entries) >= c.capacity {
		return
	}

	c.entries[id] = entry{record: record.Clone(), insertedAt: c.now()}
}

// Invalidate removes id unconditionally, regardless of TTL.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Len reports the number of entries currently held, including expired
// ones not yet evicted.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) evictExpiredLocked() {
	now := c.now()
	for id, e := range c.entries {
		if now.Sub(e.insertedAt) > c.ttl {
			delete(c.entries, id)
		}
	}
}

func (c *Cache) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	first := true
	for id, e := range c.entries {
		if first || e.insertedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = e.insertedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestID)
	}
}
