package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// responseCache stores encoded API responses. Data never changes while the
// server runs, so entries only expire by TTL.
type responseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, b []byte)
	Health(ctx context.Context) error
}

type cacheEntry struct {
	b       []byte
	expires time.Time
}

type memoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	entries map[string]cacheEntry
	now     func() time.Time
}

// newMemoryCache keeps at most size entries; when full, expired entries are
// dropped first and then the whole map is reset.
func newMemoryCache(ttl time.Duration, size int) *memoryCache {
	return &memoryCache{ttl: ttl, max: size, entries: make(map[string]cacheEntry), now: time.Now}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.b, true
}

func (c *memoryCache) Set(_ context.Context, key string, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if c.max > 0 && len(c.entries) >= c.max {
		for k, e := range c.entries {
			if now.After(e.expires) {
				delete(c.entries, k)
			}
		}
		if len(c.entries) >= c.max {
			c.entries = make(map[string]cacheEntry)
		}
	}
	c.entries[key] = cacheEntry{b: b, expires: now.Add(c.ttl)}
}

func (c *memoryCache) Health(context.Context) error { return nil }

func (c *memoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// redisCache shares responses between instances.
type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// newRedisCache connects and pings before returning.
func newRedisCache(ctx context.Context, url string, ttl time.Duration) (*redisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &redisCache{client: client, ttl: ttl, prefix: "statbord:"}, nil
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

// Set is best effort; a failed write only costs a recomputation.
func (c *redisCache) Set(ctx context.Context, key string, b []byte) {
	_ = c.client.Set(ctx, c.prefix+key, b, c.ttl).Err()
}

func (c *redisCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *redisCache) Close() error { return c.client.Close() }

// openCache picks Redis when a URL is configured, memory otherwise.
func openCache(ctx context.Context, cfg config) (responseCache, func() error, error) {
	if cfg.CacheTTL <= 0 {
		return noCache{}, func() error { return nil }, nil
	}
	if cfg.RedisURL == "" {
		return newMemoryCache(cfg.CacheTTL, 1024), func() error { return nil }, nil
	}
	rc, err := newRedisCache(ctx, cfg.RedisURL, cfg.CacheTTL)
	if err != nil {
		return nil, nil, err
	}
	return rc, rc.Close, nil
}

// noCache is used when the TTL is not positive.
type noCache struct{}

func (noCache) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (noCache) Set(context.Context, string, []byte)         {}
func (noCache) Health(context.Context) error                { return nil }
