package checkout

import "github.com/shopspring/decimal"

// ApplicationFeeCents computes the platform's cut of a sale in cents:
// round-half-up(unitAmount * feePercent / 100). Decimal math end to end so
// cent amounts never pass through floats.
func ApplicationFeeCents(unitAmount int64, feePercent decimal.Decimal) int64 {
	return decimal.NewFromInt(unitAmount).
		Mul(feePercent).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
