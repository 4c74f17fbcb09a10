package database

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// ResultCache is a short-TTL map from (statement, params) to the rows the
// statement last returned. It is best-effort: readers may see an entry up
// to TTL old, and writers never consult it.
type ResultCache struct {
	ttl     time.Duration
	softCap int

	mu      sync.Mutex
	entries map[uint64]*cacheEntry
}

type cacheEntry struct {
	set      *RowSet
	storedAt time.Time
}

// NewResultCache creates a cache with the given TTL and soft entry cap.
func NewResultCache(ttl time.Duration, softCap int) *ResultCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	if softCap <= 0 {
		softCap = 1000
	}
	return &ResultCache{
		ttl:     ttl,
		softCap: softCap,
		entries: make(map[uint64]*cacheEntry),
	}
}

func cacheKey(query string, args []any) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(query))
	for _, arg := range args {
		_, _ = fmt.Fprintf(h, "\x00%v", arg)
	}
	return h.Sum64()
}

// Get returns the cached rows for the statement if present and fresh. The
// returned set is detached from the stored one, so a caller reshaping it
// cannot poison later readers within the TTL.
func (c *ResultCache) Get(query string, args []any) (*RowSet, bool) {
	key := cacheKey(query, args)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.set.clone(), true
}

// Put stores the rows for the statement, evicting the oldest entry when
// the soft cap is exceeded.
func (c *ResultCache) Put(query string, args []any, set *RowSet) {
	key := cacheKey(query, args)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{set: set.clone(), storedAt: time.Now()}

	for len(c.entries) > c.softCap {
		var oldestKey uint64
		var oldestAt time.Time
		first := true
		for k, e := range c.entries {
			if first || e.storedAt.Before(oldestAt) {
				oldestKey, oldestAt = k, e.storedAt
				first = false
			}
		}
		delete(c.entries, oldestKey)
	}
}

// Purge drops every entry.
func (c *ResultCache) Purge() {
	c.mu.Lock()
	c.entries = make(map[uint64]*cacheEntry)
	c.mu.Unlock()
}

// Len returns the current number of entries, expired or not.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
