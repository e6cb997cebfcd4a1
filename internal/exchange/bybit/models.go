package bybit

import (
	"strconv"
	"time"
)

// Categories of the v5 unified API.
const (
	CategorySpot   = "spot"
	CategoryLinear = "linear"
)

// Kline is one candlestick.
type Kline struct {
	StartTime  time.Time
	OpenPrice  float64
	HighPrice  float64
	LowPrice   float64
	ClosePrice float64
	Volume     float64
	Turnover   float64
}

// CoinBalance is a per-coin wallet row of the unified account.
type CoinBalance struct {
	Coin          string
	Equity        float64
	WalletBalance float64
	Free          float64
	Locked        float64
	UsdValue      float64
	UnrealisedPnl float64
}

type Order struct {
	OrderID      string
	OrderLinkID  string
	Symbol       string
	Side         string
	OrderType    string
	Qty          float64
	CumExecQty   float64
	CumExecValue float64
	AvgPrice     float64
	OrderStatus  string
	CreatedTime  time.Time
	UpdatedTime  time.Time
}

// IsFilled reports a fully or partially executed order that is no longer working.
func (o Order) IsFilled() bool {
	switch o.OrderStatus {
	case "Filled", "PartiallyFilledCanceled":
		return true
	}
	return false
}

type PositionInfo struct {
	Symbol        string
	Side          string // Buy, Sell or empty when flat
	Size          float64
	AvgPrice      float64
	MarkPrice     float64
	UnrealisedPnl float64
	Leverage      float64
	PositionIdx   int
	TradeMode     int // 0 cross, 1 isolated
}

// FeeRate is the account's rate for one symbol.
type FeeRate struct {
	Symbol       string
	TakerFeeRate float64
	MakerFeeRate float64
}

func parseFloat64(s string) float64 {
	if s == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// parseTimestamp converts a milliseconds timestamp string.
func parseTimestamp(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	msec, _ := strconv.ParseInt(ts, 10, 64)
	return time.UnixMilli(msec)
}
