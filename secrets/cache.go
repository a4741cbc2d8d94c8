package secrets

import (
	"sync"
	"time"

	"golang.org/x/net/context"
)

type fetchFunc func(ctx context.Context, name string) (string, error)

type secret struct {
	value     string
	timeAdded time.Time
}

// secretCache keeps at most maxEntries secrets for ttl each. When full, the
// entry added longest ago is evicted.
type secretCache struct {
	mu         sync.Mutex
	secrets    map[string]secret
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

func newSecretCache(options *CloudSecretsCacheOptions) *secretCache {
	return &secretCache{
		secrets:    make(map[string]secret),
		maxEntries: options.maxEntries(),
		ttl:        options.ttl(),
		now:        time.Now,
	}
}

// get returns the cached value for name or fetches it. The lock is not held
// during fetch, so concurrent misses for the same name may both fetch.
func (c *secretCache) get(ctx context.Context, name string, fetch fetchFunc) (string, error) {
	c.mu.Lock()
	s, ok := c.secrets[name]
	if ok && c.now().Sub(s.timeAdded) < c.ttl {
		c.mu.Unlock()
		return s.value, nil
	}
	c.mu.Unlock()

	value, err := fetch(ctx, name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.secrets[name] = secret{value: value, timeAdded: c.now()}
	for len(c.secrets) > c.maxEntries {
		c.evict()
	}
	return value, nil
}

func (c *secretCache) evict() {
	var oldestName string
	var oldest time.Time
	first := true
	for name, s := range c.secrets {
		if first || s.timeAdded.Before(oldest) {
			oldestName, oldest, first = name, s.timeAdded, false
		}
	}
	delete(c.secrets, oldestName)
}

func (c *secretCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.secrets)
}
