package secrets

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

type countingFetcher struct {
	calls map[string]int
}

func (f *countingFetcher) fetch(_ context.Context, name string) (string, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
	return "value-of-" + name, nil
}

func newTestCache(maxEntries int, ttl time.Duration) (*secretCache, *fakeClock) {
	clock := &fakeClock{current: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	cache := newSecretCache(&CloudSecretsCacheOptions{MaxEntries: maxEntries, TTL: ttl})
	cache.now = clock.now
	return cache, clock
}

func TestCacheAdd(t *testing.T) {
	cache, clock := newTestCache(2, 10*time.Minute)
	fetcher := &countingFetcher{}
	ctx := context.Background()

	for _, name := range []string{"secret-1", "secret-2", "secret-3"} {
		value, err := cache.get(ctx, name, fetcher.fetch)
		require.NoError(t, err)
		assert.Equal(t, "value-of-"+name, value)
		clock.advance(time.Second)
	}

	assert.Equal(t, 2, cache.len())
	_, ok := cache.secrets["secret-1"]
	assert.False(t, ok)
	_, ok = cache.secrets["secret-2"]
	assert.True(t, ok)
	_, ok = cache.secrets["secret-3"]
	assert.True(t, ok)
}

func TestCacheTTL(t *testing.T) {
	cache, clock := newTestCache(3, 10*time.Second)
	fetcher := &countingFetcher{}
	ctx := context.Background()

	_, _ = cache.get(ctx, "secret-1", fetcher.fetch)
	clock.advance(5 * time.Second)
	_, _ = cache.get(ctx, "secret-2", fetcher.fetch)
	clock.advance(5 * time.Second)
	_, _ = cache.get(ctx, "secret-3", fetcher.fetch)
	clock.advance(5 * time.Second)

	// first one is refreshed
	_, _ = cache.get(ctx, "secret-1", fetcher.fetch)
	assert.Equal(t, 2, fetcher.calls["secret-1"])
	assert.Equal(t, clock.now(), cache.secrets["secret-1"].timeAdded)

	// third one is still cached
	_, _ = cache.get(ctx, "secret-3", fetcher.fetch)
	assert.Equal(t, 1, fetcher.calls["secret-3"])
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	cache, _ := newTestCache(3, time.Minute)
	boom := errors.New("vault unavailable")

	_, err := cache.get(context.Background(), "secret-1", func(context.Context, string) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, cache.len())
}

func TestCacheDefaults(t *testing.T) {
	cache := newSecretCache(nil)
	assert.Equal(t, defaultMaxEntries, cache.maxEntries)
	assert.Equal(t, defaultTTL, cache.ttl)
}
