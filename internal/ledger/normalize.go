// Package ledger turns raw ledger records into signed balance events for one account and asset.
package ledger

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/suihistory/internal/domain"
)

// Normalize converts raw ledger records into balance events of the given account and asset.
//
// Records without a timestamp or without balance-change data are dropped, as are records whose
// matching changes sum to zero. Object changes are logged, never interpreted. Duplicate ids keep
// their first occurrence. The result is sorted ascending by timestamp, then id.
func Normalize(raw []domain.RawEvent, account string, asset domain.AssetInfo) ([]domain.BalanceEvent, error) {
	owner, err := domain.NormalizeAddress(account)
	if err != nil {
		return nil, err
	}
	if asset.IsZero() {
		return nil, fmt.Errorf("%w: empty asset", domain.ErrInvalidInput)
	}

	unique := lo.UniqBy(raw, func(r domain.RawEvent) string { return r.ID })

	events := lo.FilterMap(unique, func(r domain.RawEvent, _ int) (domain.BalanceEvent, bool) {
		if r.Timestamp.IsZero() {
			return domain.BalanceEvent{}, false
		}
		if !r.HasBalanceChanges {
			slog.Debug("ignoring record without balance changes",
				"id", r.ID, "object_changes", r.ObjectChangeCount)
			return domain.BalanceEvent{}, false
		}

		sum := decimal.Zero
		for _, c := range r.BalanceChanges {
			if !asset.Matches(c.CoinType) {
				continue
			}
			changeOwner, err := domain.NormalizeAddress(c.Owner)
			if err != nil || changeOwner != owner {
				continue
			}
			sum = sum.Add(c.Amount)
		}
		if sum.IsZero() {
			return domain.BalanceEvent{}, false
		}

		return domain.BalanceEvent{
			ID:        r.ID,
			Timestamp: r.Timestamp,
			Delta:     domain.FromBaseUnits(sum, asset.Decimals),
		}, true
	})

	slices.SortFunc(events, func(a, b domain.BalanceEvent) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return events, nil
}
