package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawBalanceChange is one per-owner, per-coin amount change reported by the ledger,
// in base units (MIST for SUI).
type RawBalanceChange struct {
	Owner    string          `json:"owner"`
	CoinType string          `json:"coinType"`
	Amount   decimal.Decimal `json:"amount"`
}

// RawEvent is a ledger record before normalization. Timestamp is zero when the ledger
// did not report one. HasBalanceChanges is false when the record carries no delta data at
// all, in which case only ObjectChangeCount structural changes are known.
type RawEvent struct {
	ID                string             `json:"id"`
	Timestamp         time.Time          `json:"timestamp"`
	BalanceChanges    []RawBalanceChange `json:"balanceChanges"`
	HasBalanceChanges bool               `json:"hasBalanceChanges"`
	ObjectChangeCount int                `json:"objectChangeCount"`
}

// BalanceEvent is a single balance change of one asset for one account, in decimal-adjusted units.
type BalanceEvent struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Delta     decimal.Decimal `json:"delta"`
}
