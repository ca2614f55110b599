package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is the time-to-live applied when none is configured.
const DefaultTTL = time.Hour

// Cache is a time-bounded key-value store.
// Get returns the stored value only while it is younger than the cache's TTL;
// afterwards the key behaves as absent until overwritten by Set.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, value V) error
}

// entry is a cached value with the time it was stored.
type entry[V any] struct {
	InsertedAt time.Time `json:"insertedAt"`
	Value      V         `json:"value"`
}

// fresh reports whether the entry is younger than ttl at now.
func (e entry[V]) fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.InsertedAt) < ttl
}

// InMemoryCache implements Cache with a map. Expired entries are masked on read
// and are never purged; they are replaced by the next Set for the same key.
type InMemoryCache[V any] struct {
	mu   sync.RWMutex
	data map[string]entry[V]
	ttl  time.Duration
	now  func() time.Time
}

// NewInMemoryCache creates an in-memory cache. ttl <= 0 uses DefaultTTL.
func NewInMemoryCache[V any](ttl time.Duration) *InMemoryCache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryCache[V]{
		data: make(map[string]entry[V]),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Get returns (value, true, nil) on a fresh hit and (zero, false, nil) on a miss or expired entry.
func (c *InMemoryCache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()
	if !ok || !e.fresh(c.now(), c.ttl) {
		return zero, false, nil
	}
	return e.Value, true, nil
}

// Set stores value under key, stamped with the current time.
func (c *InMemoryCache[V]) Set(ctx context.Context, key string, value V) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry[V]{InsertedAt: c.now(), Value: value}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *InMemoryCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// TTL returns the configured time-to-live.
func (c *InMemoryCache[V]) TTL() time.Duration {
	return c.ttl
}
