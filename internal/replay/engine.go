// Package replay reconstructs a valuation curve by walking a balance event log backward from the
// present state.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/suihistory/internal/domain"
	"github.com/mtlprog/suihistory/internal/timeframe"
)

// PriceSource returns the best available price near ts. It must not fail.
type PriceSource interface {
	PriceNear(ctx context.Context, ts time.Time) decimal.Decimal
}

// Prefetcher is implemented by price sources that can warm several timestamps concurrently.
type Prefetcher interface {
	Prefetch(ctx context.Context, timestamps []time.Time)
}

// Input is everything a replay needs. Events must belong to a single account and asset.
type Input struct {
	CurrentBalance decimal.Decimal
	CurrentPrice   decimal.Decimal
	Events         []domain.BalanceEvent
	Window         timeframe.Window
	Prices         PriceSource
}

func (in Input) validate() error {
	if in.CurrentBalance.IsNegative() {
		return fmt.Errorf("%w: negative current balance %s", domain.ErrInvalidInput, in.CurrentBalance)
	}
	if in.CurrentPrice.IsNegative() {
		return fmt.Errorf("%w: negative current price %s", domain.ErrInvalidInput, in.CurrentPrice)
	}
	if in.Window.Now.IsZero() || in.Window.Cutoff.IsZero() {
		return fmt.Errorf("%w: unresolved window", domain.ErrInvalidInput)
	}
	if in.Window.Cutoff.After(in.Window.Now) {
		return fmt.Errorf("%w: cutoff %s is after now %s", domain.ErrInvalidInput, in.Window.Cutoff, in.Window.Now)
	}
	if in.Prices == nil {
		return fmt.Errorf("%w: no price source", domain.ErrInvalidInput)
	}
	return nil
}

// Engine replays balance events into portfolio points. It keeps no state between calls.
type Engine struct {
	prefetch bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithPrefetch makes the engine warm event-day prices concurrently before the sequential walk
// when the price source supports it.
func WithPrefetch(enabled bool) Option {
	return func(e *Engine) { e.prefetch = enabled }
}

// NewEngine creates a replay Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Replay returns the valuation curve sorted by ascending timestamp. Its last point is always
// (now, CurrentBalance*CurrentPrice). Every replayed point carries the value immediately after
// its event; points whose balance was extrapolated are marked Estimated.
// Replay fails only on invalid input or cancellation.
func (e *Engine) Replay(ctx context.Context, in Input) ([]domain.PortfolioPoint, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	w := in.Window
	events := sortedEvents(in.Events)
	inWindow := WindowEvents(events, w.Cutoff, w.Now)

	if pf, ok := in.Prices.(Prefetcher); ok && e.prefetch {
		ts := make([]time.Time, 0, len(inWindow)+1)
		ts = append(ts, w.Cutoff)
		for _, ev := range inWindow {
			ts = append(ts, ev.Timestamp)
		}
		pf.Prefetch(ctx, ts)
	}

	anchor := domain.PortfolioPoint{
		Timestamp: w.Now,
		Value:     in.CurrentBalance.Mul(in.CurrentPrice),
	}

	baseline, hasHistory := BalanceBeforeCutoff(events, w.Cutoff)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	boundary := domain.PortfolioPoint{
		Timestamp: w.Cutoff,
		Value:     baseline.Mul(in.Prices.PriceNear(ctx, w.Cutoff)),
		Estimated: !hasHistory,
	}

	running := in.CurrentBalance
	replayed := make([]domain.PortfolioPoint, 0, len(inWindow))
	for i := len(inWindow) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ev := inWindow[i]
		before := running.Sub(ev.Delta)
		if before.IsNegative() {
			slog.Warn("skipping event that would make balance negative",
				"event", ev.ID, "timestamp", ev.Timestamp, "delta", ev.Delta, "balance", running)
			continue
		}

		replayed = append(replayed, domain.PortfolioPoint{
			Timestamp: ev.Timestamp,
			Value:     running.Mul(in.Prices.PriceNear(ctx, ev.Timestamp)),
		})
		running = before
	}
	slices.Reverse(replayed)

	earliest := w.Now
	if len(replayed) > 0 {
		earliest = replayed[0].Timestamp
	}

	var synthetic []domain.PortfolioPoint
	if len(replayed)+1 < 3 || earliest.After(w.Cutoff) {
		var err error
		synthetic, err = fillGap(ctx, in.Prices, w, earliest, running, baseline)
		if err != nil {
			return nil, err
		}
	}

	points := make([]domain.PortfolioPoint, 0, len(synthetic)+len(replayed)+2)
	points = append(points, boundary)
	points = append(points, synthetic...)
	points = append(points, replayed...)
	points = append(points, anchor)

	slices.SortStableFunc(points, func(a, b domain.PortfolioPoint) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return points, nil
}

// BalanceBeforeCutoff sums the deltas of events strictly before cutoff, starting from zero.
// The result is clamped at zero; hasHistory reports whether any such event exists.
func BalanceBeforeCutoff(events []domain.BalanceEvent, cutoff time.Time) (balance decimal.Decimal, hasHistory bool) {
	balance = decimal.Zero
	for _, ev := range events {
		if !ev.Timestamp.Before(cutoff) {
			continue
		}
		hasHistory = true
		balance = balance.Add(ev.Delta)
	}
	if balance.IsNegative() {
		slog.Warn("ledger before cutoff sums to a negative balance, clamping to zero", "balance", balance)
		balance = decimal.Zero
	}
	return balance, hasHistory
}

// WindowEvents returns the events with timestamps in [cutoff, now), preserving order.
func WindowEvents(events []domain.BalanceEvent, cutoff, now time.Time) []domain.BalanceEvent {
	out := make([]domain.BalanceEvent, 0, len(events))
	for _, ev := range events {
		if ev.Timestamp.Before(cutoff) || !ev.Timestamp.Before(now) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// WindowDelta sums the deltas of events in [cutoff, now).
func WindowDelta(events []domain.BalanceEvent, cutoff, now time.Time) decimal.Decimal {
	sum := decimal.Zero
	for _, ev := range WindowEvents(events, cutoff, now) {
		sum = sum.Add(ev.Delta)
	}
	return sum
}

func sortedEvents(events []domain.BalanceEvent) []domain.BalanceEvent {
	byTime := func(a, b domain.BalanceEvent) int { return a.Timestamp.Compare(b.Timestamp) }
	if slices.IsSortedFunc(events, byTime) {
		return events
	}
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, byTime)
	return sorted
}
