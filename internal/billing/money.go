package billing

import "github.com/shopspring/decimal"

// RoundHalfUp rounds a decimal amount to the nearest integer minor unit.
// Ties round away from zero so a credit line mirrors the charge it offsets.
// This is the single rounding rule for the whole engine.
func RoundHalfUp(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// ItemSubtotal computes unitPrice * quantity * prorata in minor units.
func ItemSubtotal(unitPriceHtva int64, quantity int, prorata decimal.Decimal) int64 {
	return RoundHalfUp(decimal.NewFromInt(unitPriceHtva).
		Mul(decimal.NewFromInt(int64(quantity))).
		Mul(prorata))
}

// VatOf computes the VAT amount for a subtotal at the given rate.
func VatOf(subtotalHtva int64, rate decimal.Decimal) int64 {
	return RoundHalfUp(decimal.NewFromInt(subtotalHtva).Mul(rate))
}
