package models

import "github.com/shopspring/decimal"

// Quantize normalizes a money amount to 2dp by truncating toward zero.
// Truncation, never rounding up: rounding up could overcredit a wallet or
// undercharge a purchase by a kobo.
func Quantize(amount decimal.Decimal) decimal.Decimal {
	return amount.Truncate(2)
}

// Zero is the canonical zero money amount.
func Zero() decimal.Decimal {
	return decimal.Zero
}
