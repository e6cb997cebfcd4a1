package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-oracle-bot/internal/config"
	botErrors "github.com/ducminhle1904/crypto-oracle-bot/internal/errors"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/logger"
	"github.com/ducminhle1904/crypto-oracle-bot/pkg/types"
)

type stubClient struct {
	tickers    map[string]map[string]float64
	tickerHits map[string]int
	wallet     []bybit.CoinBalance
	positions  []bybit.PositionInfo
	history    []bybit.Order
	instrument *bybit.InstrumentInfo
	placeErr   error
	placed     []bybit.MarketOrderParams
	order      *bybit.Order
	leverage   map[string]int
}

func (s *stubClient) Environment() string { return "demo" }

func (s *stubClient) GetKlines(ctx context.Context, category, symbol, interval string, limit int) ([]bybit.Kline, error) {
	return []bybit.Kline{
		{StartTime: time.Unix(0, 0), OpenPrice: 1, HighPrice: 2, LowPrice: 0.5, ClosePrice: 1.5, Volume: 10},
	}, nil
}

func (s *stubClient) GetTickers(ctx context.Context, category string, symbols ...string) (map[string]float64, error) {
	if s.tickerHits == nil {
		s.tickerHits = make(map[string]int)
	}
	s.tickerHits[category]++
	return s.tickers[category], nil
}

func (s *stubClient) GetLatestPrice(ctx context.Context, category, symbol string) (float64, error) {
	p, ok := s.tickers[category][symbol]
	if !ok {
		return 0, errors.New("no price")
	}
	return p, nil
}

func (s *stubClient) GetWalletBalance(ctx context.Context) ([]bybit.CoinBalance, error) {
	return s.wallet, nil
}

func (s *stubClient) GetFeeRate(ctx context.Context, category, symbol string) (*bybit.FeeRate, error) {
	return &bybit.FeeRate{Symbol: symbol, TakerFeeRate: 0.001, MakerFeeRate: 0.001}, nil
}

func (s *stubClient) GetPositions(ctx context.Context, symbol string) ([]bybit.PositionInfo, error) {
	return s.positions, nil
}

func (s *stubClient) GetOrderHistory(ctx context.Context, category, symbol string, limit int) ([]bybit.Order, error) {
	return s.history, nil
}

func (s *stubClient) GetOrder(ctx context.Context, category, symbol, orderID string) (*bybit.Order, error) {
	if s.order == nil {
		return nil, errors.New("not found")
	}
	return s.order, nil
}

func (s *stubClient) PlaceMarketOrder(ctx context.Context, p bybit.MarketOrderParams) (*bybit.OrderAck, error) {
	if s.placeErr != nil {
		return nil, s.placeErr
	}
	s.placed = append(s.placed, p)
	return &bybit.OrderAck{OrderID: "ord-1", OrderLinkID: p.OrderLinkID}, nil
}

func (s *stubClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if s.leverage == nil {
		s.leverage = make(map[string]int)
	}
	s.leverage[symbol] = leverage
	return nil
}

func (s *stubClient) InstrumentInfo(ctx context.Context, category, symbol string) (*bybit.InstrumentInfo, error) {
	if s.instrument == nil {
		return nil, errors.New("unknown instrument")
	}
	return s.instrument, nil
}

func newTestAdapter(s *stubClient) *BybitAdapter {
	a := newBybitAdapter(s, logger.Nop())
	a.confirmDelay = time.Millisecond
	return a
}

func TestTickersBatchesPerCategory(t *testing.T) {
	s := &stubClient{tickers: map[string]map[string]float64{
		bybit.CategorySpot:   {"ETHUSDT": 3000, "SOLUSDT": 150},
		bybit.CategoryLinear: {"BTCUSDT": 65000},
	}}
	a := newTestAdapter(s)

	prices, err := a.Tickers(context.Background(), []string{"ETH/USDT", "SOL/USDT", "BTC/USDT:USDT", "XRP/USDT"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"ETH/USDT": 3000, "SOL/USDT": 150, "BTC/USDT:USDT": 65000}, prices)
	assert.Equal(t, 1, s.tickerHits[bybit.CategorySpot])
	assert.Equal(t, 1, s.tickerHits[bybit.CategoryLinear])
}

func TestBalanceAndPositionsMapping(t *testing.T) {
	s := &stubClient{
		wallet: []bybit.CoinBalance{{Coin: "USDT", Equity: 1020, WalletBalance: 1000, Free: 900, Locked: 100}},
		positions: []bybit.PositionInfo{
			{Symbol: "BTCUSDT", Side: "Sell", Size: 0.01, AvgPrice: 60000, UnrealisedPnl: -5},
			{Symbol: "DOGEUSDT", Side: "Buy", Size: 100},
		},
	}
	a := newTestAdapter(s)

	bal, err := a.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.Balance{Asset: "USDT", Free: 900, Locked: 100, Total: 1000, Equity: 1020}, bal["USDT"])

	pos, err := a.Positions(context.Background(), []string{"BTC/USDT:USDT", "ETH/USDT"})
	require.NoError(t, err)
	require.Len(t, pos, 1)
	assert.Equal(t, "BTC/USDT:USDT", pos[0].Symbol)
	assert.Equal(t, types.PositionShort, pos[0].Side)
	assert.Equal(t, 60000.0, pos[0].EntryPrice)

	none, err := a.Positions(context.Background(), []string{"ETH/USDT"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPlaceMarketOrderFormatsAndConfirms(t *testing.T) {
	s := &stubClient{
		instrument: &bybit.InstrumentInfo{MinOrderQty: 0.001, QtyStep: 0.001, MinNotional: 5},
		order:      &bybit.Order{OrderID: "ord-1", OrderStatus: "Filled", CumExecQty: 0.012, AvgPrice: 65010},
	}
	a := newTestAdapter(s)

	res, err := a.PlaceMarketOrder(context.Background(), types.OrderRequest{
		Symbol: "BTC/USDT:USDT", Side: types.SideSell, Amount: 0.01299, ReduceOnly: true, MarginMode: "cross", ClientID: "close-1",
	})
	require.NoError(t, err)
	require.Len(t, s.placed, 1)

	p := s.placed[0]
	assert.Equal(t, bybit.CategoryLinear, p.Category)
	assert.Equal(t, "BTCUSDT", p.Symbol)
	assert.Equal(t, "Sell", p.Side)
	assert.Equal(t, "0.012", p.Qty)
	assert.True(t, p.ReduceOnly)
	assert.Equal(t, "close-1", p.OrderLinkID)

	assert.Equal(t, "ord-1", res.OrderID)
	assert.Equal(t, 0.012, res.Filled)
	assert.Equal(t, 65010.0, res.AvgPrice)
	assert.Equal(t, "Filled", res.Status)
}

func TestPlaceMarketOrderErrors(t *testing.T) {
	s := &stubClient{instrument: &bybit.InstrumentInfo{QtyStep: 0.1}}
	a := newTestAdapter(s)

	_, err := a.PlaceMarketOrder(context.Background(), types.OrderRequest{Symbol: "ETH/USDT", Side: types.SideBuy, Amount: 0.05})
	assert.ErrorIs(t, err, exchange.ErrOrderSizeTooSmall)

	s.placeErr = &bybit.APIError{Code: bybit.ErrCodeInsufficientBalance, Message: "ab not enough for new order"}
	_, err = a.PlaceMarketOrder(context.Background(), types.OrderRequest{Symbol: "ETH/USDT", Side: types.SideBuy, Amount: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, exchange.ErrInsufficientBalance)
	assert.True(t, botErrors.LooksLikeInsufficientMargin(err))
}

func TestPlaceMarketOrderWithoutConfirmation(t *testing.T) {
	s := &stubClient{instrument: &bybit.InstrumentInfo{QtyStep: 0.01}}
	a := newTestAdapter(s)

	res, err := a.PlaceMarketOrder(context.Background(), types.OrderRequest{Symbol: "ETH/USDT", Side: types.SideBuy, Amount: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0.5, res.Filled)
	assert.Zero(t, res.AvgPrice)
	assert.Equal(t, "Submitted", res.Status)
	assert.NotEmpty(t, s.placed[0].OrderLinkID)
}

func TestLastBuyPrice(t *testing.T) {
	s := &stubClient{history: []bybit.Order{
		{Side: "Sell", OrderStatus: "Filled", AvgPrice: 3200},
		{Side: "Buy", OrderStatus: "Cancelled", AvgPrice: 3100},
		{Side: "Buy", OrderStatus: "Filled", CumExecQty: 2, CumExecValue: 6000},
	}}
	a := newTestAdapter(s)

	price, err := a.LastBuyPrice(context.Background(), "ETH/USDT")
	require.NoError(t, err)
	assert.Equal(t, 3000.0, price)

	_, err = a.LastBuyPrice(context.Background(), "ETH/USDT:USDT")
	assert.ErrorIs(t, err, exchange.ErrNotSupported)

	s.history = []bybit.Order{
		{Side: "", OrderStatus: "Filled", AvgPrice: 2900},
		{Side: "BUY", OrderStatus: "Filled", AvgPrice: 2800},
	}
	price, err = a.LastBuyPrice(context.Background(), "ETH/USDT")
	require.NoError(t, err)
	assert.Equal(t, 2800.0, price, "side casing from the venue is normalised")
}

func TestSetLeverageSkipsSpot(t *testing.T) {
	s := &stubClient{}
	a := newTestAdapter(s)

	require.NoError(t, a.SetLeverage(context.Background(), "ETH/USDT", 5, ""))
	require.NoError(t, a.SetLeverage(context.Background(), "ETH/USDT:USDT", 5, "isolated"))
	assert.Equal(t, map[string]int{"ETHUSDT": 5}, s.leverage)
}

func TestCandlesAndLimits(t *testing.T) {
	s := &stubClient{instrument: &bybit.InstrumentInfo{MinOrderQty: 0.01, MinNotional: 5, QtyStep: 0.01, MaxLeverage: 50}}
	a := newTestAdapter(s)

	candles, err := a.Candles(context.Background(), "ETH/USDT", "15m", 50)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 1.5, candles[0].Close)

	_, err = a.Candles(context.Background(), "ETH/USDT", "7m", 50)
	assert.Error(t, err)

	limits, err := a.MarketLimits(context.Background(), "ETH/USDT")
	require.NoError(t, err)
	assert.Equal(t, types.MarketLimits{MinAmount: 0.01, MinCost: 5, QtyStep: 0.01, MaxLeverage: 50}, limits)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ExchangeConfig
		ok   bool
	}{
		{"valid", config.ExchangeConfig{Name: "bybit", APIKey: "k", APISecret: "s", Demo: true}, true},
		{"unsupported", config.ExchangeConfig{Name: "okx", APIKey: "k", APISecret: "s"}, false},
		{"missing keys", config.ExchangeConfig{Name: "bybit"}, false},
		{"demo and testnet", config.ExchangeConfig{Name: "Bybit", APIKey: "k", APISecret: "s", Demo: true, Testnet: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
