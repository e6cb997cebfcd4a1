package types

import "strings"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

// Position is a read-only snapshot of an open derivatives position.
type Position struct {
	Symbol        string
	Side          PositionSide
	Size          float64
	EntryPrice    float64
	UnrealizedPnL float64
	Leverage      float64
}

// PnLPercent returns the signed price move since entry as a fraction.
func (p Position) PnLPercent(price float64) float64 {
	if p.EntryPrice <= 0 || price <= 0 {
		return 0
	}
	move := (price - p.EntryPrice) / p.EntryPrice
	if p.Side == PositionShort {
		return -move
	}
	return move
}

// ClosingSide returns the order side that reduces p.
func (p Position) ClosingSide() Side {
	if p.Side == PositionShort {
		return SideBuy
	}
	return SideSell
}

type OrderRequest struct {
	Symbol     string
	Side       Side
	Amount     float64
	ReduceOnly bool
	MarginMode string
	ClientID   string
}

type OrderResult struct {
	OrderID  string
	ClientID string
	Side     Side
	Filled   float64
	AvgPrice float64
	Status   string
}

// ParseSide accepts buy/sell in any case.
func ParseSide(s string) (Side, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return SideBuy, true
	case "SELL":
		return SideSell, true
	}
	return "", false
}
