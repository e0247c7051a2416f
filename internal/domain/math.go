package domain

import "github.com/shopspring/decimal"

// SafeParse parses a string into a decimal, returning zero for invalid or empty input.
func SafeParse(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FromBaseUnits converts an integer base-unit amount (e.g. MIST) to natural units.
func FromBaseUnits(raw decimal.Decimal, decimals int32) decimal.Decimal {
	return raw.Shift(-decimals)
}
