package wizard

import (
	"strings"
	"sync"
	"time"
)

const DefaultCacheTTL = 10 * time.Minute

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache holds fetched metadata until a fixed expiry. A read past
// expiry reports absent, never a stale value; the caller refetches.
type TTLCache[V any] struct {
	mu      sync.Mutex
	entries map[string]cacheEntry[V]
	ttl     time.Duration
	now     func() time.Time
}

type CacheOption[V any] func(*TTLCache[V])

func WithCacheClock[V any](now func() time.Time) CacheOption[V] {
	return func(c *TTLCache[V]) {
		if now != nil {
			c.now = now
		}
	}
}

func NewTTLCache[V any](ttl time.Duration, opts ...CacheOption[V]) *TTLCache[V] {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cache := &TTLCache[V]{
		entries: map[string]cacheEntry[V]{},
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(cache)
	}
	return cache
}

func (c *TTLCache[V]) Put(key string, value V) {
	if c == nil {
		return
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	}
}

func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	return entry.value, true
}

func (c *TTLCache[V]) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]cacheEntry[V]{}
}
