// Package cache is a read-through cache for price data, indicators and
// service state. It rides on Redis when reachable and degrades once, at
// connect time, to a bounded in-memory TTL map — the same degrade-once
// contract the broker follows.
package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/logs"

	"main/internal/obs"
)

const (
	defaultMaxEntries    = 1000
	defaultSweepInterval = 5 * time.Minute
	defaultTTL           = 5 * time.Minute
)

// Config tunes the in-memory fallback.
type Config struct {
	// MaxEntries caps the fallback map. Defaults to 1000.
	MaxEntries int
	// SweepInterval is how often expired entries are lazily collected.
	// Defaults to 5m.
	SweepInterval time.Duration
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

type entry struct {
	value  any
	expiry time.Time
}

// Cache is a Redis-or-memory key/value cache with TTL.
type Cache struct {
	cfg     Config
	rdb     *redis.Client
	metrics *obs.Metrics
	now     func() time.Time

	backed bool

	mu        sync.Mutex
	entries   map[string]entry
	lastSweep time.Time

	hits      uint64
	misses    uint64
	evictions uint64
}

// New creates a cache over the given Redis client. A nil client forces
// fallback mode. Metrics may be nil.
func New(rdb *redis.Client, cfg Config, metrics *obs.Metrics) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	return &Cache{
		cfg:     cfg,
		rdb:     rdb,
		metrics: metrics,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Connect probes Redis and fixes the cache mode, mirroring the broker's
// connect semantics. Never returns an error.
func (c *Cache) Connect(ctx context.Context) {
	if c.rdb == nil {
		logs.Warn("cache: no redis configured, using in-memory fallback")
		return
	}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		logs.Warnf("cache: redis unreachable, using in-memory fallback, err: %+v", err)
		return
	}
	c.backed = true
	logs.Info("cache: connected to redis")
}

// Fallback reports whether the cache runs on the in-memory map.
func (c *Cache) Fallback() bool {
	return !c.backed
}

// Get returns the cached value for key, or false when absent or expired.
func (c *Cache) Get(ctx context.Context, key string) (any, bool) {
	if c.backed {
		return c.getRedis(ctx, key)
	}
	return c.getMemory(key)
}

// Set stores value under key for ttl. A non-positive ttl uses the 5m
// default. Failures are logged and reported as false.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if c.backed {
		return c.setRedis(ctx, key, value, ttl)
	}
	return c.setMemory(key, value, ttl)
}

// Delete removes key from the cache.
func (c *Cache) Delete(ctx context.Context, key string) {
	if c.backed {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			logs.Errorf("cache: delete %s, err: %+v", key, err)
		}
		return
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Stats reports hit/miss/eviction counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      atomic.LoadUint64(&c.hits),
		Misses:    atomic.LoadUint64(&c.misses),
		Evictions: atomic.LoadUint64(&c.evictions),
	}
}

func (c *Cache) getRedis(ctx context.Context, key string) (any, bool) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logs.Errorf("cache: get %s, err: %+v", key, err)
		}
		c.miss()
		return nil, false
	}
	var value any
	if err := sonic.ConfigFastest.Unmarshal(raw, &value); err != nil {
		logs.Errorf("cache: decode %s, err: %+v", key, err)
		c.miss()
		return nil, false
	}
	c.hit()
	return value, true
}

func (c *Cache) setRedis(ctx context.Context, key string, value any, ttl time.Duration) bool {
	raw, err := sonic.ConfigFastest.Marshal(value)
	if err != nil {
		logs.Errorf("cache: encode %s, err: %+v", key, err)
		return false
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		logs.Errorf("cache: set %s, err: %+v", key, err)
		return false
	}
	return true
}

func (c *Cache) getMemory(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()
	e, ok := c.entries[key]
	if !ok {
		c.miss()
		return nil, false
	}
	if c.now().After(e.expiry) {
		delete(c.entries, key)
		c.miss()
		return nil, false
	}
	c.hit()
	return e.value, true
}

func (c *Cache) setMemory(key string, value any, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.cfg.MaxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = entry{value: value, expiry: c.now().Add(ttl)}
	return true
}

// sweepLocked drops expired entries at most once per SweepInterval.
func (c *Cache) sweepLocked() {
	now := c.now()
	if now.Sub(c.lastSweep) < c.cfg.SweepInterval {
		return
	}
	c.lastSweep = now
	for key, e := range c.entries {
		if now.After(e.expiry) {
			delete(c.entries, key)
		}
	}
}

// evictOldestLocked removes the entry closest to expiry to make room.
func (c *Cache) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for key, e := range c.entries {
		if !found || e.expiry.Before(oldest) {
			oldestKey, oldest, found = key, e.expiry, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
		atomic.AddUint64(&c.evictions, 1)
		c.metrics.ObserveCacheEviction()
	}
}

func (c *Cache) hit() {
	atomic.AddUint64(&c.hits, 1)
	c.metrics.ObserveCacheHit()
}

func (c *Cache) miss() {
	atomic.AddUint64(&c.misses, 1)
	c.metrics.ObserveCacheMiss()
}
