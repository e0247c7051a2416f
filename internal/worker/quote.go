package worker

import (
	"context"
	"log/slog"
	"time"
)

// QuoteFetcher defines the interface for fetching and storing spot quotes.
type QuoteFetcher interface {
	FetchAndStoreQuotes(ctx context.Context) error
}

// QuoteWorker periodically refreshes stored spot quotes so that current prices are
// served from the store instead of the rate-limited feed.
type QuoteWorker struct {
	fetcher  QuoteFetcher
	interval time.Duration
	timeout  time.Duration
}

// NewQuoteWorker creates a new QuoteWorker. Each refresh is bounded by timeout; zero means
// no bound beyond the worker's context.
func NewQuoteWorker(fetcher QuoteFetcher, interval, timeout time.Duration) *QuoteWorker {
	return &QuoteWorker{
		fetcher:  fetcher,
		interval: interval,
		timeout:  timeout,
	}
}

// Run starts the quote worker loop. It blocks until the context is cancelled.
func (w *QuoteWorker) Run(ctx context.Context) {
	slog.Info("QuoteWorker: starting", "interval", w.interval)

	w.refresh(ctx, "initial")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("QuoteWorker: shutting down")
			return
		case <-ticker.C:
			w.refresh(ctx, "scheduled")
		}
	}
}

func (w *QuoteWorker) refresh(ctx context.Context, kind string) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := w.fetcher.FetchAndStoreQuotes(ctx); err != nil {
		slog.Error("QuoteWorker: refresh failed", "kind", kind, "error", err)
		return
	}
	slog.Info("QuoteWorker: refresh completed", "kind", kind, "duration", time.Since(start))
}
