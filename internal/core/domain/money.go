package domain

import "github.com/shopspring/decimal"

// AmountPlaces is the scale of every stored monetary column.
const AmountPlaces = 4

// NormalizeAmount floors a positive amount to the storage scale.
func NormalizeAmount(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(AmountPlaces)
}

// ValidAmount reports whether d is strictly positive at storage scale.
func ValidAmount(d decimal.Decimal) bool {
	return NormalizeAmount(d).IsPositive()
}
