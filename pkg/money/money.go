// Package money wraps the decimal arithmetic used for cash, fees and cost
// basis. Amounts are persisted as float64 but every computation goes through
// decimal so results are not skewed by binary rounding.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// FromFloat converts a float to a decimal, mapping NaN and Inf to zero.
func FromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

// Float converts a decimal back to float64.
func Float(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

// TradeValue returns quantity * price.
func TradeValue(quantity int64, price float64) decimal.Decimal {
	return decimal.NewFromInt(quantity).Mul(FromFloat(price))
}

// ApplyRate returns value * rate.
func ApplyRate(value decimal.Decimal, rate float64) decimal.Decimal {
	return value.Mul(FromFloat(rate))
}

// WeightedAverage returns the cost basis after adding addQty shares at
// addPrice to a holding of qty shares at avg.
func WeightedAverage(qty int64, avg float64, addQty int64, addPrice float64) float64 {
	total := qty + addQty
	if total <= 0 {
		return 0
	}
	cost := TradeValue(qty, avg).Add(TradeValue(addQty, addPrice))
	return Float(cost.Div(decimal.NewFromInt(total)))
}

// PnL returns quantity * (price - basis).
func PnL(quantity int64, price, basis float64) float64 {
	diff := FromFloat(price).Sub(FromFloat(basis))
	return Float(diff.Mul(decimal.NewFromInt(quantity)))
}

// Add returns a + b.
func Add(a, b float64) float64 {
	return Float(FromFloat(a).Add(FromFloat(b)))
}

// Sub returns a - b.
func Sub(a, b float64) float64 {
	return Float(FromFloat(a).Sub(FromFloat(b)))
}

// Round rounds to the given number of decimal places.
func Round(val float64, places int32) float64 {
	return Float(FromFloat(val).Round(places))
}

// LTE reports whether a <= b under decimal comparison.
func LTE(a, b float64) bool { return FromFloat(a).Cmp(FromFloat(b)) <= 0 }

// GTE reports whether a >= b under decimal comparison.
func GTE(a, b float64) bool { return FromFloat(a).Cmp(FromFloat(b)) >= 0 }
