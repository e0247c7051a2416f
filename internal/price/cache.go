package price

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	price     decimal.Decimal
	expiresAt time.Time // zero: never expires
}

func (e cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache memoizes historical prices per (symbol, UTC day). It is safe for concurrent use:
// readers never block each other and each key has a single writer.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
	flight  singleflight.Group
}

// NewCache creates a cache whose entries live for ttl. A zero ttl keeps entries for the
// lifetime of the cache, which suits caches scoped to a single replay.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// bucketKey formats: "{symbol}:{YYYY-MM-DD}" e.g. "SUI:2025-03-15"
func bucketKey(symbol string, ts time.Time) string {
	return fmt.Sprintf("%s:%s", symbol, ts.UTC().Format(time.DateOnly))
}

// Get returns the cached price for the day bucket containing ts.
func (c *Cache) Get(symbol string, ts time.Time) (decimal.Decimal, bool) {
	return c.get(bucketKey(symbol, ts))
}

// Set stores price for the day bucket containing ts.
func (c *Cache) Set(symbol string, ts time.Time, price decimal.Decimal) {
	c.set(bucketKey(symbol, ts), price)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	n := 0
	for _, e := range c.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Prune drops expired entries and returns how many were removed.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Resolve returns the cached price for the bucket or calls fetch exactly once across all
// concurrent callers asking for the same bucket. Only successful results are stored.
// No lock is held while fetch runs.
//
// fetch runs detached from the cancellation of the caller that started it, so one caller
// giving up never fails the others waiting on the same bucket. A cancelled caller returns
// ctx.Err() immediately while the shared fetch completes and populates the cache.
func (c *Cache) Resolve(ctx context.Context, symbol string, ts time.Time, fetch func(context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	key := bucketKey(symbol, ts)
	if p, ok := c.get(key); ok {
		return p, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (any, error) {
		if p, ok := c.get(key); ok {
			return p, nil
		}
		p, err := fetch(shared)
		if err != nil {
			return nil, err
		}
		c.set(key, p)
		return p, nil
	})

	select {
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return decimal.Zero, res.Err
		}
		return res.Val.(decimal.Decimal), nil
	}
}

func (c *Cache) get(key string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return decimal.Zero, false
	}
	if entry.expired(c.now()) {
		return decimal.Zero, false
	}
	return entry.price, true
}

func (c *Cache) set(key string, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}
	c.entries[key] = cacheEntry{price: price, expiresAt: expiresAt}
}
