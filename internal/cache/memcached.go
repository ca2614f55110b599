package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const keyPrefix = "travel:"

// maxMemcachedKeyLen is the server's key length limit in bytes.
const maxMemcachedKeyLen = 250

// MemcachedCache implements Cache using memcached. Values are stored as a JSON
// envelope carrying the insertion time, so freshness is decided exactly as in
// InMemoryCache; the server-side expiration only reclaims memory.
type MemcachedCache[V any] struct {
	client *memcache.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedCache[V any](addrs string, timeout time.Duration, maxIdleConns int, ttl time.Duration) *MemcachedCache[V] {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemcachedCache[V]{client: client, ttl: ttl, now: time.Now}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// key escapes k so that locations with spaces remain legal memcached keys.
// Escaping can triple non-ASCII names, so keys past the server limit are
// replaced by a digest of the unescaped key.
func (c *MemcachedCache[V]) key(k string) string {
	escaped := keyPrefix + url.PathEscape(k)
	if len(escaped) <= maxMemcachedKeyLen {
		return escaped
	}
	sum := sha256.Sum256([]byte(k))
	return keyPrefix + "sha256:" + hex.EncodeToString(sum[:])
}

// Get implements Cache.Get. Returns false, nil on cache miss; false, err on error.
func (c *MemcachedCache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if ctx.Err() != nil {
		return zero, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return zero, false, nil
		}
		return zero, false, err
	}
	var e entry[V]
	if err := json.Unmarshal(item.Value, &e); err != nil {
		return zero, false, err
	}
	if !e.fresh(c.now(), c.ttl) {
		return zero, false, nil
	}
	return e.Value, true, nil
}

// Set implements Cache.Set.
func (c *MemcachedCache[V]) Set(ctx context.Context, key string, value V) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	now := c.now()
	raw, err := json.Marshal(entry[V]{InsertedAt: now, Value: value})
	if err != nil {
		return err
	}
	return c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      raw,
		Expiration: expiration(c.ttl, now),
	})
}

// expiration converts ttl to a memcached expiry, rounded up to whole seconds.
// The server reads values up to 30 days as relative seconds and anything larger
// as a Unix timestamp, so longer TTLs are sent as now+ttl.
func expiration(ttl time.Duration, now time.Time) int32 {
	const maxRelativeExp = 30 * 24 * 60 * 60
	sec := int64((ttl + time.Second - 1) / time.Second)
	switch {
	case sec <= 0:
		return 3600
	case sec <= maxRelativeExp:
		return int32(sec)
	default:
		return int32(now.Unix() + sec)
	}
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache[V]) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache[V]) Close() error {
	return c.client.Close()
}
