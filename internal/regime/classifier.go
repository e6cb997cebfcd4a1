package regime

import (
	"fmt"

	"github.com/ducminhle1904/crypto-oracle-bot/pkg/types"
)

// Regime labels the current market state.
type Regime string

const (
	HighTrend  Regime = "HIGH_TREND"
	HighChoppy Regime = "HIGH_CHOPPY"
	Low        Regime = "LOW"
	Normal     Regime = "NORMAL"
)

const (
	// Window is the number of most recent candles considered.
	Window = 5

	HighVolatilityPercent = 0.5
	LowVolatilityPercent  = 0.1
	TrendADX              = 25.0
)

// Reading is a classification together with the inputs that produced it.
type Reading struct {
	Regime        Regime
	AvgVolatility float64 // percent
	ADX           *float64
}

func (r Reading) String() string {
	if r.ADX == nil {
		return fmt.Sprintf("%s (vol %.3f%%, ADX n/a)", r.Regime, r.AvgVolatility)
	}
	return fmt.Sprintf("%s (vol %.3f%%, ADX %.1f)", r.Regime, r.AvgVolatility, *r.ADX)
}

// Classify labels the market from the intrabar range of the last Window
// candles and an optional ADX value.
func Classify(candles []types.OHLCV, adx *float64) Reading {
	reading := Reading{Regime: Normal, ADX: adx}
	if len(candles) < Window {
		return reading
	}

	var sum float64
	var n int
	for _, c := range candles[len(candles)-Window:] {
		if c.Low <= 0 {
			continue
		}
		sum += (c.High - c.Low) / c.Low
		n++
	}
	if n == 0 {
		return reading
	}
	reading.AvgVolatility = sum / float64(n) * 100

	switch {
	case reading.AvgVolatility > HighVolatilityPercent && adx != nil && *adx > TrendADX:
		reading.Regime = HighTrend
	case reading.AvgVolatility > HighVolatilityPercent:
		reading.Regime = HighChoppy
	case reading.AvgVolatility < LowVolatilityPercent:
		reading.Regime = Low
	}
	return reading
}
