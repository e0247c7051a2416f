package sui

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/suihistory/internal/domain"
)

// FetchBalance returns the current balance of an asset held by an address.
func (c *Client) FetchBalance(ctx context.Context, address string, asset domain.AssetInfo) (domain.Balance, error) {
	var result CoinBalance
	if err := c.call(ctx, "suix_getBalance", &result, address, asset.CoinType); err != nil {
		return domain.Balance{}, fmt.Errorf("fetching balance of %s: %w", address, err)
	}

	raw, err := decimal.NewFromString(result.TotalBalance)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("parsing total balance %q: %w", result.TotalBalance, err)
	}
	return domain.NewBalance(asset, raw), nil
}
