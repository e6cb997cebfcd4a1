package indicators

// MACDResult holds the latest MACD line, its signal line and the histogram.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD computes fast/slow EMA difference and its signalSpan EMA.
func MACD(prices []float64, fast, slow, signalSpan int) (MACDResult, error) {
	if fast <= 0 || slow <= fast || signalSpan <= 0 || len(prices) < slow {
		return MACDResult{}, ErrInsufficientData
	}

	fastEMA := EMASeries(prices, fast)
	slowEMA := EMASeries(prices, slow)
	line := make([]float64, len(prices))
	for i := range prices {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	signal := EMASeries(line, signalSpan)

	last := len(prices) - 1
	return MACDResult{
		MACD:      line[last],
		Signal:    signal[last],
		Histogram: line[last] - signal[last],
	}, nil
}
