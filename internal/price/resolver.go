// Package price resolves historical asset prices for a replay with day-bucket caching and a
// fallback chain that never fails.
package price

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ErrNoPrice indicates that the oracle returned no usable price.
var ErrNoPrice = errors.New("no price available")

const prefetchConcurrency = 4

// Oracle is the upstream price source.
type Oracle interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	PriceNear(ctx context.Context, symbol string, ts time.Time) (decimal.Decimal, error)
}

// Resolver serves prices for one replay. On oracle failure it falls back to the last price it
// resolved successfully, then to the spot price, so PriceNear never fails.
type Resolver struct {
	oracle  Oracle
	cache   *Cache
	symbol  string
	spot    decimal.Decimal
	timeout time.Duration

	mu      sync.Mutex
	last    decimal.Decimal
	hasLast bool
	failed  map[string]bool
}

// NewResolver creates a Resolver. cache may be shared between resolvers; a nil cache gets a
// private one. timeout bounds every oracle call (zero disables it).
func NewResolver(oracle Oracle, cache *Cache, symbol string, spot decimal.Decimal, timeout time.Duration) *Resolver {
	if cache == nil {
		cache = NewCache(0)
	}
	return &Resolver{
		oracle:  oracle,
		cache:   cache,
		symbol:  symbol,
		spot:    spot,
		timeout: timeout,
		failed:  make(map[string]bool),
	}
}

// PriceNear returns the price for the day containing ts.
func (r *Resolver) PriceNear(ctx context.Context, ts time.Time) decimal.Decimal {
	key := bucketKey(r.symbol, ts)

	if r.hasFailed(key) {
		return r.fallback()
	}

	p, err := r.fetch(ctx, ts)
	if err != nil && ctx.Err() != nil {
		// The caller gave up; the bucket itself did not fail.
		return r.fallback()
	}
	if err != nil {
		slog.Warn("historical price unavailable, using fallback",
			"symbol", r.symbol, "day", ts.UTC().Format(time.DateOnly), "error", err)
		r.markFailed(key)
		return r.fallback()
	}

	r.mu.Lock()
	r.last = p
	r.hasLast = true
	r.mu.Unlock()
	return p
}

// Prefetch resolves the distinct cold day buckets of timestamps concurrently. It only warms the
// cache; buckets that fail are remembered so PriceNear falls back without asking again.
func (r *Resolver) Prefetch(ctx context.Context, timestamps []time.Time) {
	seen := make(map[string]bool, len(timestamps))
	var g errgroup.Group
	g.SetLimit(prefetchConcurrency)

	for _, ts := range timestamps {
		key := bucketKey(r.symbol, ts)
		if seen[key] || r.hasFailed(key) {
			continue
		}
		seen[key] = true
		if _, ok := r.cache.get(key); ok {
			continue
		}

		g.Go(func() error {
			if _, err := r.fetch(ctx, ts); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Debug("prefetch failed", "symbol", r.symbol, "day", ts.UTC().Format(time.DateOnly), "error", err)
				r.markFailed(key)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Resolver) fetch(ctx context.Context, ts time.Time) (decimal.Decimal, error) {
	return r.cache.Resolve(ctx, r.symbol, ts, func(ctx context.Context) (decimal.Decimal, error) {
		callCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		p, err := r.oracle.PriceNear(callCtx, r.symbol, ts)
		if err != nil {
			return decimal.Zero, err
		}
		if p.IsNegative() {
			return decimal.Zero, ErrNoPrice
		}
		return p, nil
	})
}

func (r *Resolver) fallback() decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hasLast {
		return r.last
	}
	return r.spot
}

func (r *Resolver) hasFailed(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed[key]
}

func (r *Resolver) markFailed(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[key] = true
}
