package signal

import (
	"fmt"

	"github.com/ducminhle1904/crypto-oracle-bot/pkg/types"
)

const (
	// SlippageAllowance is added to the round-trip fee to form the minimum exit profit.
	SlippageAllowance = 0.0005
	// WarningBand is the profit range above the minimum that is flagged as thin.
	WarningBand = 0.003
)

// Decision records what the gate did to a signal.
type Decision struct {
	Held    bool
	Warning bool
	PnL     float64 // fraction, set when the fee filter evaluated a position
	Notes   []string
}

// Gate filters advisor signals by confidence and by exit profitability.
type Gate struct {
	MinConfidence Confidence
}

// MinProfit returns the smallest exit profit fraction that covers fees.
func MinProfit(takerFee float64) float64 {
	return 2*takerFee + SlippageAllowance
}

// Apply mutates s in place. position is the holding a SELL would reduce and
// may be nil; price is the analysis price.
func (g Gate) Apply(s *Signal, position *types.Position, price, takerFee float64) Decision {
	var d Decision
	if s == nil {
		d.Held = true
		return d
	}

	if s.Confidence.Rank() < floorRank(g.MinConfidence) {
		note := fmt.Sprintf(" [confidence filter: %s < %s]", s.Confidence, g.MinConfidence)
		s.hold(note)
		d.Held = true
		d.Notes = append(d.Notes, note)
		return d
	}

	if s.Action == Sell && position != nil && position.Size > 0 && position.EntryPrice > 0 {
		pnl := position.PnLPercent(price)
		minProfit := MinProfit(takerFee)
		d.PnL = pnl

		switch {
		case pnl >= 0 && pnl < minProfit:
			note := fmt.Sprintf(" [fee filter: profit %.3f%% < %.3f%% round trip]", pnl*100, minProfit*100)
			s.hold(note)
			d.Held = true
			d.Notes = append(d.Notes, note)
			return d
		case pnl >= minProfit && pnl < minProfit+WarningBand:
			d.Warning = true
			d.Notes = append(d.Notes, fmt.Sprintf("thin exit margin: profit %.2f%%", pnl*100))
		}
	}

	d.Held = s.IsHold()
	return d
}
