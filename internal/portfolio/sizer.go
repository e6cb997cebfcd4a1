package portfolio

import (
	"fmt"
	"math"

	boterrors "github.com/ducminhle1904/crypto-oracle-bot/internal/errors"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/signal"
	"github.com/ducminhle1904/crypto-oracle-bot/pkg/types"
)

const (
	// AutoQuotaFraction of a symbol's quota is used per order in auto mode.
	AutoQuotaFraction = 0.1
	// AutoFallbackTarget is the auto order value when the quota is unknown.
	AutoFallbackTarget = 10.0
	// AutoMinCostFactor lifts auto orders clear of the venue minimum notional.
	AutoMinCostFactor = 1.5
	// AutoFallbackFloor is the auto floor when the venue minimum notional is unknown.
	AutoFallbackFloor = 5.0
	// MinCostRaiseFactor pads a notional raise so rounding stays above the minimum.
	MinCostRaiseFactor = 1.05

	component = "SIZER"
)

// AutoAmount derives the configured order quantity for "auto" symbols.
func AutoAmount(quota float64, quotaKnown bool, price float64, limits types.MarketLimits) float64 {
	if price <= 0 {
		return 0
	}
	target := AutoFallbackTarget
	if quotaKnown {
		target = quota * AutoQuotaFraction
	}
	floor := AutoFallbackFloor
	if limits.MinCost > 0 {
		floor = limits.MinCost * AutoMinCostFactor
	}
	if target < floor {
		target = floor
	}
	return limits.Truncate(target / price)
}

// Request carries everything needed to size one order.
type Request struct {
	Side          types.Side
	Closing       bool
	Confidence    signal.Confidence
	ConfigAmount  float64
	AdvisorAmount float64
	MaxTradeLimit float64
	Price         float64
	Limits        types.MarketLimits
}

// Result is the sized quantity and how it was chosen.
type Result struct {
	Amount float64
	Basis  string
	Notes  []string
}

// Size resolves the final order quantity. Closing orders and HIGH confidence
// ignore the configured amount; every path is capped by MaxTradeLimit. Venue
// minimum raises are only taken for BUY orders the capacity can afford.
func Size(req Request) (Result, error) {
	var res Result
	limit := math.Max(0, req.MaxTradeLimit)
	advisor := req.AdvisorAmount
	if advisor <= 0 {
		advisor = req.ConfigAmount
		res.Notes = append(res.Notes, "advisor amount missing, using configured amount")
	}

	switch {
	case req.Closing:
		res.Amount = math.Min(advisor, limit)
		res.Basis = "closing: min(advisor, held)"
	case req.Confidence == signal.High:
		res.Amount = math.Min(advisor, limit)
		res.Basis = "high confidence: min(advisor, capacity)"
	default:
		res.Amount = math.Min(req.ConfigAmount, math.Min(advisor, limit))
		res.Basis = "min(config, advisor, capacity)"
	}

	lim := req.Limits
	buy := req.Side == types.SideBuy

	if lim.MinAmount > 0 && res.Amount < lim.MinAmount {
		if !buy || limit < lim.MinAmount {
			return res, abort("min_amount", "amount %.8g below venue minimum %.8g", res.Amount, lim.MinAmount)
		}
		res.Notes = append(res.Notes, fmt.Sprintf("raised %.8g to venue minimum %.8g", res.Amount, lim.MinAmount))
		res.Amount = lim.MinAmount
	}

	res.Amount = lim.Truncate(res.Amount)
	if lim.MinAmount > 0 && res.Amount < lim.MinAmount {
		return res, abort("precision", "amount %.8g below venue minimum %.8g after truncation", res.Amount, lim.MinAmount)
	}

	if lim.MinCost > 0 && req.Price > 0 && res.Amount*req.Price < lim.MinCost {
		if !buy || limit*req.Price < lim.MinCost {
			return res, abort("min_cost", "notional %.4f below venue minimum %.4f", res.Amount*req.Price, lim.MinCost)
		}
		raised := math.Min(lim.Truncate(lim.MinCost/req.Price*MinCostRaiseFactor), lim.Truncate(limit))
		if raised*req.Price < lim.MinCost {
			return res, abort("min_cost", "capacity %.8g cannot reach venue minimum notional %.4f", limit, lim.MinCost)
		}
		res.Notes = append(res.Notes, fmt.Sprintf("raised %.8g to %.8g for minimum notional %.4f", res.Amount, raised, lim.MinCost))
		res.Amount = raised
	}

	if res.Amount <= 0 {
		return res, abort("final", "amount %.8g is not tradable", res.Amount)
	}
	return res, nil
}

func abort(operation, format string, args ...interface{}) error {
	return boterrors.NewSizingError(component, operation, fmt.Sprintf(format, args...))
}
