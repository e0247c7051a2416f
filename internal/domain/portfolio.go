package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is the current holding of one asset, produced once at the adapter boundary.
type Balance struct {
	Asset  AssetInfo       `json:"asset"`
	Raw    decimal.Decimal `json:"raw"`    // base units
	Amount decimal.Decimal `json:"amount"` // decimal-adjusted
}

// NewBalance builds a Balance from a base-unit amount.
func NewBalance(asset AssetInfo, raw decimal.Decimal) Balance {
	return Balance{
		Asset:  asset,
		Raw:    raw,
		Amount: FromBaseUnits(raw, asset.Decimals),
	}
}

// PricePoint is a price in reference currency per unit of asset.
type PricePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

// PortfolioPoint is one point of the valuation curve. Estimated marks values whose balance
// was extrapolated rather than replayed from the ledger.
type PortfolioPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Value     decimal.Decimal `json:"value"`
	Estimated bool            `json:"estimated,omitempty"`
}
