package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	at time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{at: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.at = c.at.Add(d)
	c.mu.Unlock()
}

func newMemoryCache(t *testing.T, cfg Config) (*Cache, *fakeClock) {
	t.Helper()
	c := New(nil, cfg, nil)
	c.Connect(t.Context())
	require.True(t, c.Fallback())
	clock := newFakeClock()
	c.now = clock.Now
	return c, clock
}

func TestMemorySetGet(t *testing.T) {
	c, _ := newMemoryCache(t, Config{})

	require.True(t, c.Set(t.Context(), "price:BTCUSDC", "50000.25", time.Minute))
	got, ok := c.Get(t.Context(), "price:BTCUSDC")
	require.True(t, ok)
	assert.Equal(t, "50000.25", got)

	_, ok = c.Get(t.Context(), "price:ETHUSDC")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestMemoryTTLExpiry(t *testing.T) {
	c, clock := newMemoryCache(t, Config{})

	require.True(t, c.Set(t.Context(), "k", "v", time.Minute))
	clock.Advance(59 * time.Second)
	_, ok := c.Get(t.Context(), "k")
	require.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = c.Get(t.Context(), "k")
	assert.False(t, ok, "value must expire after its ttl")
}

func TestMemoryDefaultTTL(t *testing.T) {
	c, clock := newMemoryCache(t, Config{})

	require.True(t, c.Set(t.Context(), "k", "v", 0))
	clock.Advance(4 * time.Minute)
	_, ok := c.Get(t.Context(), "k")
	require.True(t, ok)

	clock.Advance(2 * time.Minute)
	_, ok = c.Get(t.Context(), "k")
	assert.False(t, ok)
}

func TestMemoryEvictsWhenFull(t *testing.T) {
	c, clock := newMemoryCache(t, Config{MaxEntries: 2, SweepInterval: time.Hour})

	require.True(t, c.Set(t.Context(), "a", 1, time.Minute))
	clock.Advance(time.Second)
	require.True(t, c.Set(t.Context(), "b", 2, time.Minute))
	clock.Advance(time.Second)
	require.True(t, c.Set(t.Context(), "c", 3, time.Minute))

	// "a" expires first, so it is the one evicted to make room
	_, ok := c.Get(t.Context(), "a")
	assert.False(t, ok)
	_, ok = c.Get(t.Context(), "b")
	assert.True(t, ok)
	_, ok = c.Get(t.Context(), "c")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestMemoryOverwriteDoesNotEvict(t *testing.T) {
	c, _ := newMemoryCache(t, Config{MaxEntries: 2, SweepInterval: time.Hour})

	require.True(t, c.Set(t.Context(), "a", 1, time.Minute))
	require.True(t, c.Set(t.Context(), "b", 2, time.Minute))
	require.True(t, c.Set(t.Context(), "a", 3, time.Minute))

	got, ok := c.Get(t.Context(), "a")
	require.True(t, ok)
	assert.Equal(t, 3, got)
	assert.Equal(t, uint64(0), c.Stats().Evictions)
}

func TestMemoryDelete(t *testing.T) {
	c, _ := newMemoryCache(t, Config{})

	require.True(t, c.Set(t.Context(), "k", "v", time.Minute))
	c.Delete(t.Context(), "k")
	_, ok := c.Get(t.Context(), "k")
	assert.False(t, ok)
}

func TestSweepCollectsExpiredEntries(t *testing.T) {
	c, clock := newMemoryCache(t, Config{SweepInterval: time.Minute})

	for _, key := range []string{"a", "b", "c"} {
		require.True(t, c.Set(t.Context(), key, key, time.Second))
	}
	clock.Advance(2 * time.Minute)

	// any access past the sweep interval collects the expired entries
	_, _ = c.Get(t.Context(), "other")
	c.mu.Lock()
	remaining := len(c.entries)
	c.mu.Unlock()
	assert.Equal(t, 0, remaining)
}
