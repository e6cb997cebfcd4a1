package types

import (
	"math"

	"github.com/shopspring/decimal"
)

const defaultPlaces = 8

// places returns the number of decimals implied by a step such as 0.001.
func places(step float64) int32 {
	if step <= 0 {
		return defaultPlaces
	}
	exp := decimal.NewFromFloat(step).Exponent()
	if exp >= 0 {
		return 0
	}
	return -exp
}

// Truncate rounds amount down to the venue quantity step. Without a known step
// it truncates to 8 decimals.
func (l MarketLimits) Truncate(amount float64) float64 {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0
	}
	d := decimal.NewFromFloat(amount)
	if l.QtyStep > 0 {
		step := decimal.NewFromFloat(l.QtyStep)
		d = d.Div(step).Floor().Mul(step)
	}
	v, _ := d.Truncate(places(l.QtyStep)).Float64()
	return v
}

// Format renders amount truncated to the step with fixed decimals, as order APIs expect.
func (l MarketLimits) Format(amount float64) string {
	return decimal.NewFromFloat(l.Truncate(amount)).StringFixed(places(l.QtyStep))
}
