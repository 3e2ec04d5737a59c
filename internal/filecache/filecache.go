// Package filecache holds whole small files in memory, keyed by request path.
//
// Entries are never invalidated: a file changed on disk keeps serving its old
// bytes until capacity pressure evicts it or the process restarts.
package filecache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"dirshare/internal/metrics"
)

// DefaultEntries is the capacity used when none is configured.
const DefaultEntries = 100

// DefaultMaxFileBytes is the largest file offered to the cache.
const DefaultMaxFileBytes = 1 << 20

// Cache is a fixed-capacity LRU of immutable byte buffers. Safe for
// concurrent use; the last Put for a key wins.
type Cache struct {
	name string
	lru  *lru.Cache[string, []byte]
}

// New creates a cache holding at most capacity entries. name labels its metrics.
func New(name string, capacity int) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache %s: capacity must be positive, got %d", name, capacity)
	}
	c := &Cache{name: name}
	l, err := lru.NewWithEvict[string, []byte](capacity, func(string, []byte) {
		metrics.RecordCacheEviction(name)
	})
	if err != nil {
		return nil, fmt.Errorf("cache %s: %w", name, err)
	}
	c.lru = l
	return c, nil
}

// Get returns the cached bytes for key. Callers must not modify them.
func (c *Cache) Get(key string) ([]byte, bool) {
	b, ok := c.lru.Get(key)
	metrics.RecordCacheLookup(c.name, ok)
	return b, ok
}

// Put stores b under key, evicting the least recently used entry when full.
// The cache keeps b; callers must not modify it afterwards.
func (c *Cache) Put(key string, b []byte) {
	c.lru.Add(key, b)
	metrics.SetCacheEntries(c.name, c.lru.Len())
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}
