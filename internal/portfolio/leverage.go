package portfolio

import "fmt"

const (
	// MarginBuffer keeps 1% of buying power back for fees.
	MarginBuffer = 0.99

	MinLeverage = 1
)

// MaxPositionValue is the notional a balance can open at leverage.
// Leverage below 1 is treated as 1 (spot).
func MaxPositionValue(available float64, leverage int) float64 {
	if available <= 0 {
		return 0
	}
	if leverage < MinLeverage {
		leverage = MinLeverage
	}
	return available * float64(leverage)
}

// ValidateLeverage checks leverage against the venue maximum; maxLeverage <= 0 means unknown.
func ValidateLeverage(leverage int, maxLeverage float64) error {
	if leverage < MinLeverage {
		return fmt.Errorf("leverage must be at least %d, got %d", MinLeverage, leverage)
	}
	if maxLeverage > 0 && float64(leverage) > maxLeverage {
		return fmt.Errorf("leverage %d exceeds venue maximum %.0f", leverage, maxLeverage)
	}
	return nil
}

// BuyCapacity is the largest quantity that effective balance supports at price,
// keeping MarginBuffer back.
func BuyCapacity(effective float64, leverage int, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return MaxPositionValue(effective, leverage) * MarginBuffer / price
}
