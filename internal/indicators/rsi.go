package indicators

import "errors"

var ErrInsufficientData = errors.New("insufficient data")

// RSI computes the Relative Strength Index over the last period price changes
// using simple averages of gains and losses.
func RSI(prices []float64, period int) (float64, error) {
	if period <= 0 || len(prices) < period+1 {
		return 0, ErrInsufficientData
	}

	window := prices[len(prices)-period-1:]
	var gain, loss float64
	for i := 1; i < len(window); i++ {
		change := window[i] - window[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil
		}
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}
