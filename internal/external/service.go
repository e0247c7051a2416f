package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/suihistory/internal/domain"
)

// ErrNoSamples is returned when the price feed has no sample around the requested time.
var ErrNoSamples = errors.New("no price samples")

// PriceFeed is the live price source.
type PriceFeed interface {
	FetchSpotPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
	FetchRange(ctx context.Context, symbol string, from, to time.Time) ([]domain.PricePoint, error)
}

// Store combines spot quote storage and the daily price archive.
type Store interface {
	QuoteRepository
	PriceArchive
}

// Service serves current and historical prices, backed by stored quotes and the daily archive.
type Service struct {
	feed       PriceFeed
	store      Store
	staleAfter time.Duration
	now        func() time.Time
}

// NewService creates a new external price service. Stored quotes younger than staleAfter are
// served without asking the feed.
func NewService(feed PriceFeed, store Store, staleAfter time.Duration) *Service {
	return &Service{
		feed:       feed,
		store:      store,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// FetchAndStoreQuotes fetches spot prices of all tracked symbols and stores them.
func (s *Service) FetchAndStoreQuotes(ctx context.Context) error {
	prices, err := s.feed.FetchSpotPrices(ctx, TrackedSymbols())
	if err != nil {
		return fmt.Errorf("fetching spot prices: %w", err)
	}

	for symbol, price := range prices {
		if err := s.store.SaveQuote(ctx, symbol, price); err != nil {
			return fmt.Errorf("storing quote for %s: %w", symbol, err)
		}
	}

	return nil
}

// CurrentPrice returns the spot price of a symbol. A fresh stored quote is served as is;
// otherwise the feed is asked and the stored quote is refreshed. A stale stored quote is
// served only when the feed fails.
func (s *Service) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	stored, storedErr := s.store.GetQuote(ctx, symbol)
	if storedErr == nil && s.now().Sub(stored.UpdatedAt) <= s.staleAfter {
		return stored.Price, nil
	}

	prices, err := s.feed.FetchSpotPrices(ctx, []string{symbol})
	if err == nil {
		if p, ok := prices[symbol]; ok {
			if err := s.store.SaveQuote(ctx, symbol, p); err != nil {
				slog.Warn("failed to store quote", "symbol", symbol, "error", err)
			}
			return p, nil
		}
		err = fmt.Errorf("%w for %s", ErrNoSamples, symbol)
	}

	if storedErr == nil {
		slog.Warn("serving stale quote",
			"symbol", symbol,
			"updated_at", stored.UpdatedAt,
			"error", err)
		return stored.Price, nil
	}
	return decimal.Zero, fmt.Errorf("%w: current price of %s: %w", domain.ErrUpstreamUnavailable, symbol, err)
}

// PriceNear returns the price sample closest to ts. Prices of closed UTC days are archived
// and served from the archive afterwards.
func (s *Service) PriceNear(ctx context.Context, symbol string, ts time.Time) (decimal.Decimal, error) {
	now := s.now()
	day := utcDay(ts)
	closed := !day.Add(24 * time.Hour).After(now)

	if closed {
		p, err := s.store.GetDailyPrice(ctx, symbol, day)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("price archive read failed", "symbol", symbol, "day", day.Format(time.DateOnly), "error", err)
		}
	}

	from := ts.Add(-24 * time.Hour)
	to := ts.Add(24 * time.Hour)
	if to.After(now) {
		to = now
	}
	if !from.Before(to) {
		from = to.Add(-24 * time.Hour)
	}

	samples, err := s.feed.FetchRange(ctx, symbol, from, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetching %s price range: %w", symbol, err)
	}
	closest, ok := closestSample(samples, ts)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w for %s near %s", ErrNoSamples, symbol, ts.Format(time.RFC3339))
	}

	if closed {
		if err := s.store.SaveDailyPrice(ctx, symbol, day, closest.Price); err != nil {
			slog.Warn("failed to archive price", "symbol", symbol, "day", day.Format(time.DateOnly), "error", err)
		}
	}
	return closest.Price, nil
}

func closestSample(samples []domain.PricePoint, ts time.Time) (domain.PricePoint, bool) {
	if len(samples) == 0 {
		return domain.PricePoint{}, false
	}
	best := samples[0]
	bestDiff := absDuration(best.Timestamp.Sub(ts))
	for _, p := range samples[1:] {
		if d := absDuration(p.Timestamp.Sub(ts)); d < bestDiff {
			best, bestDiff = p, d
		}
	}
	return best, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
