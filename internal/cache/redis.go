package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache implements Cache on a redis client using the same JSON envelope as MemcachedCache.
type RedisCache[V any] struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// RedisOptions configures NewRedisClient.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// NewRedisClient builds a redis client from options.
func NewRedisClient(opts RedisOptions) *redis.Client {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	o := &redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
	if opts.Timeout > 0 {
		o.DialTimeout = opts.Timeout
		o.ReadTimeout = opts.Timeout
		o.WriteTimeout = opts.Timeout
	}
	return redis.NewClient(o)
}

// NewRedisCache wraps client. ttl <= 0 uses DefaultTTL.
func NewRedisCache[V any](client *redis.Client, ttl time.Duration) *RedisCache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache[V]{client: client, ttl: ttl, now: time.Now}
}

// Get implements Cache.Get. redis.Nil is reported as a miss.
func (c *RedisCache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, false, nil
		}
		return zero, false, err
	}
	var e entry[V]
	if err := json.Unmarshal(raw, &e); err != nil {
		return zero, false, err
	}
	if !e.fresh(c.now(), c.ttl) {
		return zero, false, nil
	}
	return e.Value, true, nil
}

// Set implements Cache.Set. The redis key expires one TTL after insertion.
func (c *RedisCache[V]) Set(ctx context.Context, key string, value V) error {
	raw, err := json.Marshal(entry[V]{InsertedAt: c.now(), Value: value})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+key, raw, c.ttl).Err()
}

// Ping checks if redis is reachable. Used for health checks.
func (c *RedisCache[V]) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// Close closes the redis client. Call during shutdown.
func (c *RedisCache[V]) Close() error {
	return c.client.Close()
}
