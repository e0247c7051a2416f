// Package portfolio reconstructs the valuation history of an account.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/mtlprog/suihistory/internal/domain"
	"github.com/mtlprog/suihistory/internal/ledger"
	"github.com/mtlprog/suihistory/internal/price"
	"github.com/mtlprog/suihistory/internal/replay"
	"github.com/mtlprog/suihistory/internal/timeframe"
)

// LedgerCollector lists the most recent raw ledger records of an account.
type LedgerCollector interface {
	Collect(ctx context.Context, account string, limit int) ([]domain.RawEvent, error)
}

// BalanceFetcher returns the current balance of an account.
type BalanceFetcher interface {
	FetchBalance(ctx context.Context, address string, asset domain.AssetInfo) (domain.Balance, error)
}

// History is a reconstructed valuation curve.
type History struct {
	Account      string                  `json:"account"`
	Asset        domain.AssetInfo        `json:"asset"`
	Currency     string                  `json:"currency,omitempty"`
	Timeframe    domain.Timeframe        `json:"timeframe"`
	From         time.Time               `json:"from"`
	To           time.Time               `json:"to"`
	Balance      decimal.Decimal         `json:"balance"`
	CurrentPrice decimal.Decimal         `json:"currentPrice"`
	EventCount   int                     `json:"eventCount"`
	Points       []domain.PortfolioPoint `json:"points"`
}

// Service orchestrates ledger collection, price resolution and replay.
type Service struct {
	ledger   LedgerCollector
	balances BalanceFetcher
	oracle   price.Oracle
	windower *timeframe.Windower
	engine   *replay.Engine
	cache    *price.Cache
	asset    domain.AssetInfo
	currency string
	timeout  time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithCache shares a price cache across calls. Without it every call gets a fresh cache.
func WithCache(c *price.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithTimeout bounds each balance and price call. Ledger paging is bounded per page by the
// collector itself.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithWindower replaces the default windower.
func WithWindower(w *timeframe.Windower) Option {
	return func(s *Service) { s.windower = w }
}

// WithAsset selects the tracked asset. Defaults to SUI.
func WithAsset(a domain.AssetInfo) Option {
	return func(s *Service) { s.asset = a }
}

// WithCurrency labels histories with the reference currency.
func WithCurrency(c string) Option {
	return func(s *Service) { s.currency = c }
}

// NewService creates a new portfolio Service. balances may be nil when only
// GetPortfolioHistory is used.
func NewService(collector LedgerCollector, balances BalanceFetcher, oracle price.Oracle, opts ...Option) *Service {
	s := &Service{
		ledger:   collector,
		balances: balances,
		oracle:   oracle,
		windower: timeframe.NewWindower(),
		engine:   replay.NewEngine(replay.WithPrefetch(true)),
		asset:    domain.SUIAsset(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAccountHistory fetches the current balance of the account, then reconstructs its history.
func (s *Service) GetAccountHistory(ctx context.Context, account string, tf domain.Timeframe) (History, error) {
	addr, err := domain.NormalizeAddress(account)
	if err != nil {
		return History{}, err
	}
	if _, err := s.windower.Policy(tf); err != nil {
		return History{}, err
	}
	if s.balances == nil {
		return History{}, fmt.Errorf("%w: no balance source configured", domain.ErrUpstreamUnavailable)
	}

	bctx, cancel := s.withTimeout(ctx)
	balance, err := s.balances.FetchBalance(bctx, addr, s.asset)
	cancel()
	if err != nil {
		return History{}, fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}

	return s.GetPortfolioHistory(ctx, addr, balance.Amount, tf)
}

// GetPortfolioHistory reconstructs the value of account over the timeframe ending now, given
// its positive current balance in natural units.
//
// Ledger failures degrade to an estimated curve. A missing current price is an error
// wrapping domain.ErrUpstreamUnavailable.
func (s *Service) GetPortfolioHistory(ctx context.Context, account string, currentBalance decimal.Decimal, tf domain.Timeframe) (History, error) {
	addr, err := domain.NormalizeAddress(account)
	if err != nil {
		return History{}, err
	}
	if !currentBalance.IsPositive() {
		return History{}, fmt.Errorf("%w: balance must be positive, got %s", domain.ErrInvalidInput, currentBalance)
	}
	window, err := s.windower.Window(tf)
	if err != nil {
		return History{}, err
	}

	var (
		raw          []domain.RawEvent
		currentPrice decimal.Decimal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := s.ledger.Collect(gctx, addr, window.MaxLedgerEvents)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("ledger unavailable, continuing without events", "account", addr, "error", err)
			return nil
		}
		raw = records
		return nil
	})
	g.Go(func() error {
		p, err := s.currentPrice(gctx, window.Now)
		if err != nil {
			return err
		}
		currentPrice = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return History{}, err
	}

	events, err := ledger.Normalize(raw, addr, s.asset)
	if err != nil {
		return History{}, err
	}

	cache := s.cache
	if cache == nil {
		cache = price.NewCache(0)
	}
	resolver := price.NewResolver(s.oracle, cache, s.asset.Symbol, currentPrice, s.timeout)

	points, err := s.engine.Replay(ctx, replay.Input{
		CurrentBalance: currentBalance,
		CurrentPrice:   currentPrice,
		Events:         events,
		Window:         window,
		Prices:         resolver,
	})
	if err != nil {
		return History{}, err
	}

	slog.Info("portfolio history reconstructed",
		"account", addr,
		"timeframe", tf,
		"events", len(events),
		"points", len(points))

	return History{
		Account:      addr,
		Asset:        s.asset,
		Currency:     s.currency,
		Timeframe:    tf,
		From:         window.Cutoff,
		To:           window.Now,
		Balance:      currentBalance,
		CurrentPrice: currentPrice,
		EventCount:   len(replay.WindowEvents(events, window.Cutoff, window.Now)),
		Points:       points,
	}, nil
}

// CurrentPrice returns the spot price of the tracked asset.
func (s *Service) CurrentPrice(ctx context.Context) (decimal.Decimal, error) {
	return s.currentPrice(ctx, time.Now())
}

// currentPrice asks for the spot price, then for the historical price nearest now.
func (s *Service) currentPrice(ctx context.Context, now time.Time) (decimal.Decimal, error) {
	spot, spotErr := s.ask(ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return s.oracle.CurrentPrice(ctx, s.asset.Symbol)
	})
	if spotErr == nil {
		return spot, nil
	}
	if ctx.Err() != nil {
		return decimal.Zero, ctx.Err()
	}

	near, nearErr := s.ask(ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return s.oracle.PriceNear(ctx, s.asset.Symbol, now)
	})
	if nearErr == nil {
		slog.Warn("spot price unavailable, using latest historical price", "symbol", s.asset.Symbol, "error", spotErr)
		return near, nil
	}
	if ctx.Err() != nil {
		return decimal.Zero, ctx.Err()
	}

	return decimal.Zero, fmt.Errorf("%w: no current price for %s: %w",
		domain.ErrUpstreamUnavailable, s.asset.Symbol, errors.Join(spotErr, nearErr))
}

func (s *Service) ask(ctx context.Context, fetch func(context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := fetch(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if p.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative price %s", price.ErrNoPrice, p)
	}
	return p, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
