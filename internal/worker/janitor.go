package worker

import (
	"context"
	"log/slog"
	"time"
)

// Pruner drops expired cache entries.
type Pruner interface {
	Prune() int
}

// CacheJanitor periodically evicts expired entries from the shared price cache.
type CacheJanitor struct {
	cache    Pruner
	interval time.Duration
}

// NewCacheJanitor creates a new CacheJanitor.
func NewCacheJanitor(cache Pruner, interval time.Duration) *CacheJanitor {
	return &CacheJanitor{cache: cache, interval: interval}
}

// Run starts the janitor loop. It blocks until the context is cancelled.
func (j *CacheJanitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := j.cache.Prune(); n > 0 {
				slog.Debug("CacheJanitor: pruned price cache", "removed", n)
			}
		}
	}
}
