package cache

import (
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 16

// ShardedCache is a general-purpose in-process cache with sharding and
// optional per-entry TTL. It backs bar caches, task locks and memoized
// query results.
type ShardedCache struct {
	shards [numShards]*shard
}

type shard struct {
	mu    sync.RWMutex
	items map[string]entry
}

type entry struct {
	value     any
	updatedAt time.Time
	expiresAt time.Time // zero means no expiry
}

// NewShardedCache creates a new sharded cache.
func NewShardedCache() *ShardedCache {
	c := &ShardedCache{}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &shard{
			items: make(map[string]entry),
		}
	}
	return c
}

// getShard returns the shard for the given key.
func (c *ShardedCache) getShard(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%numShards]
}

// Set stores a value with a TTL. A ttl of zero means the entry never expires.
func (c *ShardedCache) Set(key string, value any, ttl time.Duration) {
	now := time.Now()
	e := entry{value: value, updatedAt: now}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	s := c.getShard(key)
	s.mu.Lock()
	s.items[key] = e
	s.mu.Unlock()
}

// Get retrieves a value. Expired entries are treated as missing and
// removed lazily.
func (c *ShardedCache) Get(key string) (any, bool) {
	s := c.getShard(key)
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		s.mu.Lock()
		if cur, still := s.items[key]; still && cur.updatedAt.Equal(e.updatedAt) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// GetWithAge retrieves a value and how long ago it was written.
func (c *ShardedCache) GetWithAge(key string) (any, time.Duration, bool) {
	v, ok := c.Get(key)
	if !ok {
		return nil, 0, false
	}
	s := c.getShard(key)
	s.mu.RLock()
	e := s.items[key]
	s.mu.RUnlock()
	return v, time.Since(e.updatedAt), true
}

// Delete removes a key from the cache.
func (c *ShardedCache) Delete(key string) {
	s := c.getShard(key)
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Clear drops every entry from every shard.
func (c *ShardedCache) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.items = make(map[string]entry)
		s.mu.Unlock()
	}
}

// Len returns total live items across all shards. Expired but not yet
// collected entries are counted.
func (c *ShardedCache) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.items)
		s.mu.RUnlock()
	}
	return total
}

// Cleanup removes expired entries plus entries older than maxAge.
// A maxAge of zero only collects expired entries.
func (c *ShardedCache) Cleanup(maxAge time.Duration) int {
	removed := 0
	now := time.Now()
	var cutoff time.Time
	if maxAge > 0 {
		cutoff = now.Add(-maxAge)
	}

	for _, s := range c.shards {
		s.mu.Lock()
		for key, e := range s.items {
			expired := !e.expiresAt.IsZero() && now.After(e.expiresAt)
			stale := !cutoff.IsZero() && e.updatedAt.Before(cutoff)
			if expired || stale {
				delete(s.items, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// CacheStats provides cache statistics.
type CacheStats struct {
	TotalItems  int            `json:"total_items"`
	ShardCounts [numShards]int `json:"shard_counts"`
	OldestAge   time.Duration  `json:"oldest_age"`
}

// Stats returns cache statistics.
func (c *ShardedCache) Stats() CacheStats {
	stats := CacheStats{}
	var oldest time.Time

	for i, s := range c.shards {
		s.mu.RLock()
		stats.ShardCounts[i] = len(s.items)
		stats.TotalItems += len(s.items)
		for _, e := range s.items {
			if oldest.IsZero() || e.updatedAt.Before(oldest) {
				oldest = e.updatedAt
			}
		}
		s.mu.RUnlock()
	}

	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	return stats
}
