package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/mtlprog/suihistory/internal/domain"
)

// Direction selects which side of a transfer the account is on.
type Direction int

const (
	// Outgoing lists records sent by the account.
	Outgoing Direction = iota
	// Incoming lists records received by the account.
	Incoming
)

func (d Direction) String() string {
	if d == Incoming {
		return "incoming"
	}
	return "outgoing"
}

// Page is one page of ledger records, newest first.
type Page struct {
	Events     []domain.RawEvent
	NextCursor string
	HasMore    bool
}

// Source lists ledger records touching an account.
type Source interface {
	ListBalanceEvents(ctx context.Context, account string, dir Direction, cursor string) (Page, error)
}

// Collector pages both directions of an account's ledger.
type Collector struct {
	source      Source
	callTimeout time.Duration
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithCallTimeout bounds every single page request. Zero leaves requests bounded only by the
// caller's context.
func WithCallTimeout(d time.Duration) CollectorOption {
	return func(c *Collector) { c.callTimeout = d }
}

// NewCollector creates a new ledger collector.
func NewCollector(source Source, opts ...CollectorOption) *Collector {
	c := &Collector{source: source}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect fetches up to limit of the most recent records in each direction concurrently and
// merges them, dropping records seen in both directions.
func (c *Collector) Collect(ctx context.Context, account string, limit int) ([]domain.RawEvent, error) {
	var outgoing, incoming []domain.RawEvent

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		outgoing, err = c.collectDirection(gctx, account, Outgoing, limit)
		return err
	})
	g.Go(func() error {
		var err error
		incoming, err = c.collectDirection(gctx, account, Incoming, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := lo.UniqBy(append(outgoing, incoming...), func(r domain.RawEvent) string { return r.ID })
	slog.Debug("collected ledger records",
		"account", account,
		"outgoing", len(outgoing),
		"incoming", len(incoming),
		"merged", len(merged))
	return merged, nil
}

func (c *Collector) collectDirection(ctx context.Context, account string, dir Direction, limit int) ([]domain.RawEvent, error) {
	var (
		records []domain.RawEvent
		cursor  string
	)
	seen := make(map[string]bool)

	for limit <= 0 || len(records) < limit {
		page, err := c.listPage(ctx, account, dir, cursor)
		if err != nil {
			return nil, fmt.Errorf("listing %s records of %s: %w", dir, account, err)
		}
		records = append(records, page.Events...)

		if !page.HasMore || page.NextCursor == "" || seen[page.NextCursor] {
			break
		}
		seen[page.NextCursor] = true
		cursor = page.NextCursor
	}

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (c *Collector) listPage(ctx context.Context, account string, dir Direction, cursor string) (Page, error) {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}
	return c.source.ListBalanceEvents(ctx, account, dir, cursor)
}
