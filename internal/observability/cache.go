package observability

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	expiresAt time.Time
	snapshot  *Snapshot
}

// SnapshotCache deduplicates concurrent snapshot builds for the same query
// and serves recent results for a short TTL. Every build re-scans the
// transcript, so the cache only bounds repeated work from dashboard polling.
type SnapshotCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry

	sf singleflight.Group
}

// NewSnapshotCache returns nil for a non-positive TTL; a nil cache passes
// every call straight through.
func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		return nil
	}
	return &SnapshotCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *SnapshotCache) Get(key string, fn func() (*Snapshot, error)) (*Snapshot, error) {
	if c == nil || c.ttl <= 0 {
		return fn()
	}

	now := time.Now()

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && now.Before(entry.expiresAt) {
		snapshot := entry.snapshot
		c.mu.Unlock()
		return snapshot, nil
	}
	c.mu.Unlock()

	value, err, _ := c.sf.Do(key, func() (any, error) {
		now := time.Now()
		c.mu.Lock()
		if entry, ok := c.entries[key]; ok && now.Before(entry.expiresAt) {
			snapshot := entry.snapshot
			c.mu.Unlock()
			return snapshot, nil
		}
		c.mu.Unlock()

		snapshot, err := fn()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = cacheEntry{
			expiresAt: time.Now().Add(c.ttl),
			snapshot:  snapshot,
		}
		c.mu.Unlock()
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*Snapshot), nil
}

func (c *SnapshotCache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
