package advisor

import (
	"context"
	"time"

	"github.com/ducminhle1904/crypto-oracle-bot/internal/indicators"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/regime"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/signal"
	"github.com/ducminhle1904/crypto-oracle-bot/pkg/types"
)

// Advisor proposes a trade signal for a market snapshot. Replies are
// untrusted; implementations return an error instead of a partial signal.
type Advisor interface {
	Propose(ctx context.Context, in Context) (*signal.Signal, error)
}

// Pinger is implemented by advisors that support a connectivity check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Holding describes what the trader currently holds in the symbol.
type Holding struct {
	// Spot: base asset balance. Margin: nil Position means flat.
	SpotAmount float64
	Position   *types.Position
	// EntryPrice is the average cost, 0 when unknown.
	EntryPrice float64
}

// Context is everything the advisor sees for one analysis cycle.
type Context struct {
	Symbol      string
	Timeframe   string
	Margin      bool
	Leverage    int
	Price       float64
	PriceChange float64 // percent, last close vs previous close
	At          time.Time

	Candles      []types.OHLCV // most recent last; the prompt uses the last five
	Indicators   indicators.Snapshot
	PriceHistory []float64
	Regime       regime.Reading
	LastSignal   *signal.Signal
	Holding      Holding

	Balance      float64 // effective buying power in quote currency
	ConfigAmount float64
	AutoAmount   bool
	TakerFee     float64
}

// MaxBuyable is the quantity the balance could buy at the current price.
func (c Context) MaxBuyable() float64 {
	if c.Price <= 0 {
		return 0
	}
	lev := 1
	if c.Margin && c.Leverage > 1 {
		lev = c.Leverage
	}
	return c.Balance * float64(lev) / c.Price
}
