package types

import "time"

type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// Balance is a per-currency wallet entry. Equity includes unrealized PnL on unified accounts
// and is zero when the venue does not report it.
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
	Total  float64
	Equity float64
}

// Closes returns the close prices of candles in order.
func Closes(candles []OHLCV) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// TradingFee holds taker and maker rates as fractions (0.001 = 0.1%).
type TradingFee struct {
	Taker float64
	Maker float64
}

// MarketLimits are venue trading rules for one symbol. Zero means unknown.
type MarketLimits struct {
	MinAmount   float64
	MinCost     float64
	QtyStep     float64
	MaxLeverage float64
}
