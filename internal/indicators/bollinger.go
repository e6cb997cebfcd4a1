package indicators

// Bands holds Bollinger band levels.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger returns the SMA of the last period prices with bands at
// multiplier sample standard deviations.
func Bollinger(prices []float64, period int, multiplier float64) (Bands, error) {
	if period < 2 || len(prices) < period {
		return Bands{}, ErrInsufficientData
	}
	recent := prices[len(prices)-period:]
	middle := mean(recent)
	dev := sampleStdDev(recent, middle)
	return Bands{
		Upper:  middle + multiplier*dev,
		Middle: middle,
		Lower:  middle - multiplier*dev,
	}, nil
}

// PercentB is the position of price inside the bands, 0 at lower and 100 at upper.
func (b Bands) PercentB(price float64) float64 {
	if b.Upper == b.Lower {
		return 50
	}
	return (price - b.Lower) / (b.Upper - b.Lower) * 100
}
