package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ducminhle1904/crypto-oracle-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/logger"
	"github.com/ducminhle1904/crypto-oracle-bot/pkg/id"
	"github.com/ducminhle1904/crypto-oracle-bot/pkg/types"
)

// bybitAPI is the subset of *bybit.Client the adapter uses.
type bybitAPI interface {
	Environment() string
	GetKlines(ctx context.Context, category, symbol, interval string, limit int) ([]bybit.Kline, error)
	GetTickers(ctx context.Context, category string, symbols ...string) (map[string]float64, error)
	GetLatestPrice(ctx context.Context, category, symbol string) (float64, error)
	GetWalletBalance(ctx context.Context) ([]bybit.CoinBalance, error)
	GetFeeRate(ctx context.Context, category, symbol string) (*bybit.FeeRate, error)
	GetPositions(ctx context.Context, symbol string) ([]bybit.PositionInfo, error)
	GetOrderHistory(ctx context.Context, category, symbol string, limit int) ([]bybit.Order, error)
	GetOrder(ctx context.Context, category, symbol, orderID string) (*bybit.Order, error)
	PlaceMarketOrder(ctx context.Context, p bybit.MarketOrderParams) (*bybit.OrderAck, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	InstrumentInfo(ctx context.Context, category, symbol string) (*bybit.InstrumentInfo, error)
}

// clientAPI adapts *bybit.Client to bybitAPI.
type clientAPI struct {
	*bybit.Client
}

func (c clientAPI) InstrumentInfo(ctx context.Context, category, symbol string) (*bybit.InstrumentInfo, error) {
	return c.Instruments().GetInstrumentInfo(ctx, category, symbol)
}

// BybitAdapter implements exchange.MarketGateway on the Bybit v5 unified account.
type BybitAdapter struct {
	client  bybitAPI
	logger  *logger.Logger
	streams map[string]*exchange.TickerStream

	// fill confirmation polling
	confirmAttempts int
	confirmDelay    time.Duration
}

func NewBybitAdapter(config bybit.Config, log *logger.Logger) *BybitAdapter {
	return newBybitAdapter(clientAPI{bybit.NewClient(config)}, log)
}

func newBybitAdapter(client bybitAPI, log *logger.Logger) *BybitAdapter {
	return &BybitAdapter{
		client:          client,
		logger:          log,
		streams:         make(map[string]*exchange.TickerStream),
		confirmAttempts: 3,
		confirmDelay:    300 * time.Millisecond,
	}
}

func (b *BybitAdapter) Name() string {
	return "Bybit"
}

func (b *BybitAdapter) Environment() string {
	return b.client.Environment()
}

// StartStreams subscribes to public tickers for the symbols and keeps them running until ctx ends.
// Ticker then prefers a streamed price younger than maxAge.
func (b *BybitAdapter) StartStreams(ctx context.Context, symbols []string, testnet bool, maxAge time.Duration) error {
	byKind := make(map[string][]string)
	for _, s := range symbols {
		sym, err := exchange.ParseSymbol(s)
		if err != nil {
			return err
		}
		byKind[sym.Kind()] = append(byKind[sym.Kind()], sym.VenueID())
	}

	for kind, venueIDs := range byKind {
		url := exchange.BybitPublicSpotURL
		switch {
		case kind == exchange.KindLinear && testnet:
			url = exchange.BybitTestnetPublicLinearURL
		case kind == exchange.KindLinear:
			url = exchange.BybitPublicLinearURL
		case testnet:
			url = exchange.BybitTestnetPublicSpotURL
		}
		stream := exchange.NewTickerStream(url, venueIDs, maxAge, b.logger)
		b.streams[kind] = stream
		go stream.Run(ctx)
	}
	return nil
}

func category(sym exchange.Symbol) string {
	if sym.IsSwap() {
		return bybit.CategoryLinear
	}
	return bybit.CategorySpot
}

func (b *BybitAdapter) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]types.OHLCV, error) {
	sym, err := exchange.ParseSymbol(symbol)
	if err != nil {
		return nil, err
	}
	interval, err := bybit.KlineInterval(timeframe)
	if err != nil {
		return nil, err
	}

	klines, err := b.client.GetKlines(ctx, category(sym), sym.VenueID(), interval, limit)
	if err != nil {
		return nil, err
	}

	candles := make([]types.OHLCV, len(klines))
	for i, k := range klines {
		candles[i] = types.OHLCV{
			Open:      k.OpenPrice,
			High:      k.HighPrice,
			Low:       k.LowPrice,
			Close:     k.ClosePrice,
			Volume:    k.Volume,
			Timestamp: k.StartTime,
		}
	}
	return candles, nil
}

func (b *BybitAdapter) Ticker(ctx context.Context, symbol string) (float64, error) {
	sym, err := exchange.ParseSymbol(symbol)
	if err != nil {
		return 0, err
	}
	if stream, ok := b.streams[sym.Kind()]; ok {
		if price, ok := stream.Price(sym.VenueID()); ok {
			return price, nil
		}
	}
	return b.client.GetLatestPrice(ctx, category(sym), sym.VenueID())
}

// Tickers fetches each category once and maps venue ids back to unified symbols.
func (b *BybitAdapter) Tickers(ctx context.Context, symbols []string) (map[string]float64, error) {
	byCategory := make(map[string][]exchange.Symbol)
	for _, s := range symbols {
		sym, err := exchange.ParseSymbol(s)
		if err != nil {
			return nil, err
		}
		byCategory[category(sym)] = append(byCategory[category(sym)], sym)
	}

	out := make(map[string]float64, len(symbols))
	for cat, syms := range byCategory {
		prices, err := b.client.GetTickers(ctx, cat)
		if err != nil {
			return nil, err
		}
		for _, sym := range syms {
			if p, ok := prices[sym.VenueID()]; ok {
				out[sym.Unified] = p
			}
		}
	}
	return out, nil
}

func (b *BybitAdapter) Balance(ctx context.Context) (map[string]types.Balance, error) {
	coins, err := b.client.GetWalletBalance(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]types.Balance, len(coins))
	for _, c := range coins {
		out[c.Coin] = types.Balance{
			Asset:  c.Coin,
			Free:   c.Free,
			Locked: c.Locked,
			Total:  c.WalletBalance,
			Equity: c.Equity,
		}
	}
	return out, nil
}

// Positions returns open linear positions for the given unified symbols. Spot symbols are skipped.
func (b *BybitAdapter) Positions(ctx context.Context, symbols []string) ([]types.Position, error) {
	wanted := make(map[string]string)
	for _, s := range symbols {
		sym, err := exchange.ParseSymbol(s)
		if err != nil {
			return nil, err
		}
		if sym.IsSwap() {
			wanted[sym.VenueID()] = sym.Unified
		}
	}
	if len(wanted) == 0 {
		return nil, nil
	}

	query := ""
	if len(wanted) == 1 {
		for venueID := range wanted {
			query = venueID
		}
	}
	infos, err := b.client.GetPositions(ctx, query)
	if err != nil {
		return nil, err
	}

	var out []types.Position
	for _, p := range infos {
		unified, ok := wanted[p.Symbol]
		if !ok {
			continue
		}
		side := types.PositionLong
		if p.Side == "Sell" {
			side = types.PositionShort
		}
		out = append(out, types.Position{
			Symbol:        unified,
			Side:          side,
			Size:          p.Size,
			EntryPrice:    p.AvgPrice,
			UnrealizedPnL: p.UnrealisedPnl,
			Leverage:      p.Leverage,
		})
	}
	return out, nil
}

func (b *BybitAdapter) TradingFee(ctx context.Context, symbol string) (types.TradingFee, error) {
	sym, err := exchange.ParseSymbol(symbol)
	if err != nil {
		return types.TradingFee{}, err
	}
	fee, err := b.client.GetFeeRate(ctx, category(sym), sym.VenueID())
	if err != nil {
		return types.TradingFee{}, err
	}
	return types.TradingFee{Taker: fee.TakerFeeRate, Maker: fee.MakerFeeRate}, nil
}

func (b *BybitAdapter) MarketLimits(ctx context.Context, symbol string) (types.MarketLimits, error) {
	sym, err := exchange.ParseSymbol(symbol)
	if err != nil {
		return types.MarketLimits{}, err
	}
	info, err := b.client.InstrumentInfo(ctx, category(sym), sym.VenueID())
	if err != nil {
		return types.MarketLimits{}, err
	}
	return types.MarketLimits{
		MinAmount:   info.MinOrderQty,
		MinCost:     info.MinNotional,
		QtyStep:     info.QtyStep,
		MaxLeverage: info.MaxLeverage,
	}, nil
}

// LastBuyPrice scans recent spot orders for the newest filled buy.
func (b *BybitAdapter) LastBuyPrice(ctx context.Context, symbol string) (float64, error) {
	sym, err := exchange.ParseSymbol(symbol)
	if err != nil {
		return 0, err
	}
	if sym.IsSwap() {
		return 0, exchange.ErrNotSupported.WithDetails("entry price of contracts comes from positions")
	}

	orders, err := b.client.GetOrderHistory(ctx, bybit.CategorySpot, sym.VenueID(), 50)
	if err != nil {
		return 0, err
	}
	for _, o := range orders {
		if side, ok := types.ParseSide(o.Side); !ok || side != types.SideBuy || !o.IsFilled() {
			continue
		}
		if o.AvgPrice > 0 {
			return o.AvgPrice, nil
		}
		if o.CumExecQty > 0 {
			return o.CumExecValue / o.CumExecQty, nil
		}
	}
	return 0, nil
}

// PlaceMarketOrder formats the quantity to the instrument step, submits once and then
// polls briefly for the fill. A failed fill lookup still returns the accepted order.
func (b *BybitAdapter) PlaceMarketOrder(ctx context.Context, req types.OrderRequest) (*types.OrderResult, error) {
	sym, err := exchange.ParseSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	cat := category(sym)

	limits, err := b.MarketLimits(ctx, req.Symbol)
	if err != nil {
		b.logger.LogWarning("place order", "no lot size rules for %s, using raw precision: %v", req.Symbol, err)
	}
	qty := limits.Truncate(req.Amount)
	if qty <= 0 {
		return nil, exchange.ErrOrderSizeTooSmall.WithDetails(fmt.Sprintf("%s amount %.8f", req.Symbol, req.Amount))
	}

	side := "Buy"
	if req.Side == types.SideSell {
		side = "Sell"
	}
	clientID := req.ClientID
	if clientID == "" {
		clientID = id.OrderLinkID(sym.Base)
	}
	if sym.IsSwap() && req.MarginMode != "" {
		// Unified accounts set cross/isolated per account, not per order.
		b.logger.Info("%s order tagged %s margin", req.Symbol, req.MarginMode)
	}

	ack, err := b.client.PlaceMarketOrder(ctx, bybit.MarketOrderParams{
		Category:    cat,
		Symbol:      sym.VenueID(),
		Side:        side,
		Qty:         limits.Format(qty),
		ReduceOnly:  req.ReduceOnly,
		OrderLinkID: clientID,
	})
	if err != nil {
		if bybit.IsInsufficientBalanceError(err) {
			return nil, fmt.Errorf("%w: %v", exchange.ErrInsufficientBalance, err)
		}
		return nil, err
	}

	result := &types.OrderResult{
		OrderID:  ack.OrderID,
		ClientID: clientID,
		Side:     req.Side,
		Filled:   qty,
		Status:   "Submitted",
	}

	for attempt := 0; attempt < b.confirmAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return result, nil
		case <-time.After(b.confirmDelay):
		}
		order, err := b.client.GetOrder(ctx, cat, sym.VenueID(), ack.OrderID)
		if err != nil {
			continue
		}
		result.Status = order.OrderStatus
		if order.CumExecQty > 0 {
			result.Filled = order.CumExecQty
			result.AvgPrice = order.AvgPrice
		}
		if order.IsFilled() {
			break
		}
	}
	return result, nil
}

// SetLeverage applies leverage to a contract symbol. Spot symbols are a no-op.
func (b *BybitAdapter) SetLeverage(ctx context.Context, symbol string, leverage int, marginMode string) error {
	sym, err := exchange.ParseSymbol(symbol)
	if err != nil {
		return err
	}
	if !sym.IsSwap() {
		return nil
	}
	if err := b.client.SetLeverage(ctx, sym.VenueID(), leverage); err != nil {
		return err
	}
	b.logger.Info("%s leverage set to %dx (%s)", symbol, leverage, strings.ToLower(marginMode))
	return nil
}

var _ exchange.MarketGateway = (*BybitAdapter)(nil)
