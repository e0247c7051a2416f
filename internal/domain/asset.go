package domain

import "strings"

// AssetInfo describes a fungible Sui coin.
type AssetInfo struct {
	CoinType string `json:"coinType"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

// IsZero reports whether the asset is unspecified.
func (a AssetInfo) IsZero() bool {
	return strings.TrimSpace(a.CoinType) == ""
}

// Matches reports whether coinType refers to this asset. Sui reports the native coin both as
// "0x2::sui::SUI" and with a fully padded package address.
func (a AssetInfo) Matches(coinType string) bool {
	return canonicalCoinType(a.CoinType) == canonicalCoinType(coinType)
}

func canonicalCoinType(coinType string) string {
	pkg, rest, ok := strings.Cut(strings.TrimSpace(coinType), "::")
	if !ok {
		return coinType
	}
	if addr, err := NormalizeAddress(pkg); err == nil {
		pkg = addr
	}
	return pkg + "::" + rest
}

var suiAsset = AssetInfo{
	CoinType: "0x2::sui::SUI",
	Symbol:   "SUI",
	Decimals: 9,
}

// SUIAsset returns the Sui native coin (9 decimals, base unit MIST).
func SUIAsset() AssetInfo { return suiAsset }
