package indicators

import "github.com/ducminhle1904/crypto-oracle-bot/pkg/types"

const (
	// MinCandles is the history length below which no indicator is reported.
	MinCandles = 30

	RSIPeriod       = 14
	MACDFast        = 12
	MACDSlow        = 26
	MACDSignal      = 9
	BollingerPeriod = 20
	BollingerWidth  = 2.0
	ADXPeriod       = 14
)

// Snapshot is the indicator set attached to one analysis cycle. Nil fields are unavailable.
type Snapshot struct {
	RSI        *float64
	MACD       *float64
	MACDSignal *float64
	MACDHist   *float64
	BBUpper    *float64
	BBMiddle   *float64
	BBLower    *float64
	ADX        *float64
}

// Compute evaluates the standard indicator set on candles (oldest first).
func Compute(candles []types.OHLCV) Snapshot {
	var s Snapshot
	if len(candles) < MinCandles {
		return s
	}
	closes := types.Closes(candles)

	if v, err := RSI(closes, RSIPeriod); err == nil {
		s.RSI = &v
	}
	if m, err := MACD(closes, MACDFast, MACDSlow, MACDSignal); err == nil {
		s.MACD, s.MACDSignal, s.MACDHist = &m.MACD, &m.Signal, &m.Histogram
	}
	if b, err := Bollinger(closes, BollingerPeriod, BollingerWidth); err == nil {
		s.BBUpper, s.BBMiddle, s.BBLower = &b.Upper, &b.Middle, &b.Lower
	}
	if a, err := ADX(candles, ADXPeriod); err == nil {
		s.ADX = &a.ADX
	}
	return s
}

// Empty reports whether no indicator could be computed.
func (s Snapshot) Empty() bool {
	return s.RSI == nil && s.MACD == nil && s.BBMiddle == nil && s.ADX == nil
}
