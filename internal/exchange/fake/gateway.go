// Package fake provides an in-memory MarketGateway for tests and dry runs.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/ducminhle1904/crypto-oracle-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-oracle-bot/pkg/types"
)

// Gateway simulates a venue with instant fills at the current price.
type Gateway struct {
	mu sync.Mutex

	Prices    map[string]float64
	CandleSet map[string][]types.OHLCV
	Balances  map[string]types.Balance
	Open      map[string]types.Position
	Fees      map[string]types.TradingFee
	Limits    map[string]types.MarketLimits
	BuyPrices map[string]float64
	Leverage  map[string]int

	// Errors keyed by method name (Ticker, Tickers, Balance, PlaceMarketOrder, ...).
	Errors       map[string]error
	Orders       []types.OrderRequest
	TickerCalls  int
	TickersCalls int
	nextID       int
}

func New() *Gateway {
	return &Gateway{
		Prices:    make(map[string]float64),
		CandleSet: make(map[string][]types.OHLCV),
		Balances:  make(map[string]types.Balance),
		Open:      make(map[string]types.Position),
		Fees:      make(map[string]types.TradingFee),
		Limits:    make(map[string]types.MarketLimits),
		BuyPrices: make(map[string]float64),
		Leverage:  make(map[string]int),
		Errors:    make(map[string]error),
	}
}

// SetUSDT sets the quote wallet. Equity defaults to total.
func (g *Gateway) SetUSDT(free, total float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Balances["USDT"] = types.Balance{Asset: "USDT", Free: free, Total: total, Equity: total}
}

// SetHolding sets a spot base-asset balance.
func (g *Gateway) SetHolding(asset string, amount float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Balances[asset] = types.Balance{Asset: asset, Free: amount, Total: amount}
}

func (g *Gateway) SetPrice(symbol string, price float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Prices[symbol] = price
}

func (g *Gateway) PlacedOrders() []types.OrderRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]types.OrderRequest(nil), g.Orders...)
}

func (g *Gateway) err(method string) error {
	return g.Errors[method]
}

func (g *Gateway) Name() string { return "fake" }

func (g *Gateway) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]types.OHLCV, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.err("Candles"); err != nil {
		return nil, err
	}
	c := g.CandleSet[symbol]
	if limit > 0 && len(c) > limit {
		c = c[len(c)-limit:]
	}
	return append([]types.OHLCV(nil), c...), nil
}

func (g *Gateway) Ticker(ctx context.Context, symbol string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.TickerCalls++
	if err := g.err("Ticker"); err != nil {
		return 0, err
	}
	p, ok := g.Prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return p, nil
}

func (g *Gateway) Tickers(ctx context.Context, symbols []string) (map[string]float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.TickersCalls++
	if err := g.err("Tickers"); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if p, ok := g.Prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

func (g *Gateway) Balance(ctx context.Context) (map[string]types.Balance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.err("Balance"); err != nil {
		return nil, err
	}
	out := make(map[string]types.Balance, len(g.Balances))
	for k, v := range g.Balances {
		out[k] = v
	}
	return out, nil
}

func (g *Gateway) Positions(ctx context.Context, symbols []string) ([]types.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.err("Positions"); err != nil {
		return nil, err
	}
	var out []types.Position
	for _, s := range symbols {
		if p, ok := g.Open[s]; ok && p.Size > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

func (g *Gateway) TradingFee(ctx context.Context, symbol string) (types.TradingFee, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.err("TradingFee"); err != nil {
		return types.TradingFee{}, err
	}
	fee, ok := g.Fees[symbol]
	if !ok {
		return types.TradingFee{}, fmt.Errorf("no fee for %s", symbol)
	}
	return fee, nil
}

func (g *Gateway) MarketLimits(ctx context.Context, symbol string) (types.MarketLimits, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.err("MarketLimits"); err != nil {
		return types.MarketLimits{}, err
	}
	return g.Limits[symbol], nil
}

func (g *Gateway) LastBuyPrice(ctx context.Context, symbol string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.err("LastBuyPrice"); err != nil {
		return 0, err
	}
	return g.BuyPrices[symbol], nil
}

func (g *Gateway) SetLeverage(ctx context.Context, symbol string, leverage int, marginMode string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.err("SetLeverage"); err != nil {
		return err
	}
	g.Leverage[symbol] = leverage
	return nil
}

// PlaceMarketOrder fills immediately at the current price and updates balances or positions.
func (g *Gateway) PlaceMarketOrder(ctx context.Context, req types.OrderRequest) (*types.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.err("PlaceMarketOrder"); err != nil {
		return nil, err
	}

	sym, err := exchange.ParseSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	price := g.Prices[req.Symbol]
	g.Orders = append(g.Orders, req)
	g.nextID++

	if sym.IsSwap() {
		g.fillContract(req, price)
	} else {
		g.fillSpot(sym, req, price)
	}

	return &types.OrderResult{
		OrderID:  fmt.Sprintf("fake-%d", g.nextID),
		ClientID: req.ClientID,
		Side:     req.Side,
		Filled:   req.Amount,
		AvgPrice: price,
		Status:   "Filled",
	}, nil
}

func (g *Gateway) fillSpot(sym exchange.Symbol, req types.OrderRequest, price float64) {
	base := g.Balances[sym.Base]
	quote := g.Balances[sym.Quote]
	base.Asset, quote.Asset = sym.Base, sym.Quote
	cost := req.Amount * price

	if req.Side == types.SideBuy {
		base.Free += req.Amount
		base.Total += req.Amount
		quote.Free -= cost
		quote.Total -= cost
		quote.Equity -= cost
		g.BuyPrices[req.Symbol] = price
	} else {
		base.Free -= req.Amount
		base.Total -= req.Amount
		quote.Free += cost
		quote.Total += cost
		quote.Equity += cost
	}
	g.Balances[sym.Base] = base
	g.Balances[sym.Quote] = quote
}

func (g *Gateway) fillContract(req types.OrderRequest, price float64) {
	side := types.PositionLong
	if req.Side == types.SideSell {
		side = types.PositionShort
	}

	pos, ok := g.Open[req.Symbol]
	switch {
	case !ok || pos.Size == 0:
		if req.ReduceOnly {
			return
		}
		g.Open[req.Symbol] = types.Position{Symbol: req.Symbol, Side: side, Size: req.Amount, EntryPrice: price}
	case pos.Side == side:
		if req.ReduceOnly {
			return
		}
		total := pos.Size + req.Amount
		pos.EntryPrice = (pos.EntryPrice*pos.Size + price*req.Amount) / total
		pos.Size = total
		g.Open[req.Symbol] = pos
	default:
		remaining := req.Amount - pos.Size
		switch {
		case remaining < 0:
			pos.Size = -remaining
			g.Open[req.Symbol] = pos
		case remaining == 0 || req.ReduceOnly:
			delete(g.Open, req.Symbol)
		default:
			g.Open[req.Symbol] = types.Position{Symbol: req.Symbol, Side: side, Size: remaining, EntryPrice: price}
		}
	}
}

var _ exchange.MarketGateway = (*Gateway)(nil)
