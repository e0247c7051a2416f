package external

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// MemoryQuoteRepository implements QuoteRepository and PriceArchive in process memory.
// It backs the service when no database is configured.
type MemoryQuoteRepository struct {
	mu       sync.RWMutex
	currency string
	quotes   map[string]Quote
	daily    map[string]decimal.Decimal
	now      func() time.Time
}

// NewMemoryQuoteRepository creates an empty in-memory repository.
func NewMemoryQuoteRepository(currency string) *MemoryQuoteRepository {
	return &MemoryQuoteRepository{
		currency: currency,
		quotes:   make(map[string]Quote),
		daily:    make(map[string]decimal.Decimal),
		now:      time.Now,
	}
}

func (r *MemoryQuoteRepository) SaveQuote(_ context.Context, symbol string, price decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quotes[symbol] = Quote{Symbol: symbol, Currency: r.currency, Price: price, UpdatedAt: r.now()}
	return nil
}

func (r *MemoryQuoteRepository) GetQuote(_ context.Context, symbol string) (Quote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.quotes[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("quote for %s: %w", symbol, ErrNotFound)
	}
	return q, nil
}

func (r *MemoryQuoteRepository) GetAllQuotes(_ context.Context) ([]Quote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	quotes := lo.Values(r.quotes)
	slices.SortFunc(quotes, func(a, b Quote) int { return strings.Compare(a.Symbol, b.Symbol) })
	return quotes, nil
}

func (r *MemoryQuoteRepository) SaveDailyPrice(_ context.Context, symbol string, day time.Time, price decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := dailyKey(symbol, day)
	if _, ok := r.daily[key]; !ok {
		r.daily[key] = price
	}
	return nil
}

func (r *MemoryQuoteRepository) GetDailyPrice(_ context.Context, symbol string, day time.Time) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.daily[dailyKey(symbol, day)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s price for %s: %w", symbol, utcDay(day).Format(time.DateOnly), ErrNotFound)
	}
	return p, nil
}

func dailyKey(symbol string, day time.Time) string {
	return symbol + ":" + utcDay(day).Format(time.DateOnly)
}
