package sui

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/mtlprog/suihistory/internal/domain"
	"github.com/mtlprog/suihistory/internal/ledger"
)

// PageSize is the number of transaction blocks requested per page.
const PageSize = 100

type queryOptions struct {
	ShowBalanceChanges bool `json:"showBalanceChanges"`
	ShowEffects        bool `json:"showEffects"`
	ShowObjectChanges  bool `json:"showObjectChanges"`
}

type transactionQuery struct {
	Filter  map[string]string `json:"filter"`
	Options queryOptions      `json:"options"`
}

// QueryTransactionBlocks returns one page of transaction blocks sent by (Outgoing) or
// received by (Incoming) the address, newest first.
func (c *Client) QueryTransactionBlocks(ctx context.Context, address string, dir ledger.Direction, cursor string) (TransactionBlockPage, error) {
	filterKey := "FromAddress"
	if dir == ledger.Incoming {
		filterKey = "ToAddress"
	}
	query := transactionQuery{
		Filter: map[string]string{filterKey: address},
		Options: queryOptions{
			ShowBalanceChanges: true,
			ShowEffects:        true,
			ShowObjectChanges:  true,
		},
	}

	var cursorParam any
	if cursor != "" {
		cursorParam = cursor
	}

	var page TransactionBlockPage
	if err := c.call(ctx, "suix_queryTransactionBlocks", &page, query, cursorParam, PageSize, true); err != nil {
		return TransactionBlockPage{}, fmt.Errorf("querying %s transactions of %s: %w", dir, address, err)
	}
	return page, nil
}

// ListBalanceEvents implements ledger.Source.
func (c *Client) ListBalanceEvents(ctx context.Context, account string, dir ledger.Direction, cursor string) (ledger.Page, error) {
	page, err := c.QueryTransactionBlocks(ctx, account, dir, cursor)
	if err != nil {
		return ledger.Page{}, err
	}

	events := make([]domain.RawEvent, 0, len(page.Data))
	for _, tx := range page.Data {
		events = append(events, toRawEvent(tx))
	}

	var next string
	if page.NextCursor != nil {
		next = *page.NextCursor
	}
	return ledger.Page{Events: events, NextCursor: next, HasMore: page.HasNextPage}, nil
}

func toRawEvent(tx TransactionBlock) domain.RawEvent {
	changes := tx.BalanceChanges
	if changes == nil && tx.Effects != nil {
		changes = tx.Effects.BalanceChanges
	}

	ev := domain.RawEvent{
		ID:                tx.Digest,
		Timestamp:         parseTimestampMs(tx.TimestampMs),
		HasBalanceChanges: changes != nil,
		ObjectChangeCount: len(tx.ObjectChanges),
	}
	for _, bc := range changes {
		ev.BalanceChanges = append(ev.BalanceChanges, domain.RawBalanceChange{
			Owner:    bc.Owner.Address,
			CoinType: bc.CoinType,
			Amount:   domain.SafeParse(bc.Amount),
		})
	}
	return ev
}

func parseTimestampMs(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		slog.Warn("invalid transaction timestamp", "timestampMs", s)
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
