package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boterrors "github.com/ducminhle1904/crypto-oracle-bot/internal/errors"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/exchange/fake"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/logger"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/notifications"
	"github.com/ducminhle1904/crypto-oracle-bot/pkg/id"
	"github.com/ducminhle1904/crypto-oracle-bot/pkg/types"
)

type alerts struct {
	levels []string
	msgs   []string
}

func (a *alerts) SendAlert(level, message string) error {
	a.levels = append(a.levels, level)
	a.msgs = append(a.msgs, message)
	return nil
}

func newRouter(t *testing.T, gw *fake.Gateway, opts Options) (*Router, *alerts, *[]time.Duration) {
	t.Helper()
	n := &alerts{}
	r := NewRouter(gw, n, logger.Nop(), opts)
	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return r, n, &slept
}

func TestRouter_DryRun(t *testing.T) {
	gw := fake.New()
	gw.SetPrice("ETH/USDT", 2000)
	r, n, _ := newRouter(t, gw, Options{MaxSlippagePercent: 1, TestMode: true})

	out, err := r.Execute(context.Background(), Plan{Symbol: "ETH/USDT", Side: types.SideBuy, Amount: 0.1, AnalysisPrice: 2000})
	require.NoError(t, err)
	assert.True(t, out.DryRun)
	assert.Empty(t, gw.PlacedOrders())
	assert.Zero(t, gw.TickerCalls)
	assert.Empty(t, n.msgs)
}

func TestRouter_SlippageGuard(t *testing.T) {
	gw := fake.New()
	gw.SetPrice("ETH/USDT", 2030)
	r, n, _ := newRouter(t, gw, Options{MaxSlippagePercent: 1})

	out, err := r.Execute(context.Background(), Plan{Symbol: "ETH/USDT", Side: types.SideBuy, Amount: 0.1, AnalysisPrice: 2000})
	require.ErrorIs(t, err, ErrSlippage)
	assert.True(t, out.Cancelled)
	assert.InDelta(t, 1.5, out.Slippage, 1e-9)
	assert.Empty(t, gw.PlacedOrders())
	require.Len(t, n.levels, 1)
	assert.Equal(t, notifications.LevelWarning, n.levels[0])
	assert.Contains(t, n.msgs[0], "Trade cancelled")
}

func TestRouter_TickerFailureProceeds(t *testing.T) {
	gw := fake.New()
	gw.SetPrice("ETH/USDT", 2000)
	gw.SetUSDT(1000, 1000)
	gw.Errors["Ticker"] = errors.New("timeout")
	r, _, _ := newRouter(t, gw, Options{MaxSlippagePercent: 1})

	out, err := r.Execute(context.Background(), Plan{Symbol: "ETH/USDT", Side: types.SideBuy, Amount: 0.1, AnalysisPrice: 2000})
	require.NoError(t, err)
	require.NotNil(t, out.Entry)
	assert.Len(t, gw.PlacedOrders(), 1)
}

func TestRouter_Reversal(t *testing.T) {
	const sym = "BTC/USDT:USDT"
	gw := fake.New()
	gw.SetPrice(sym, 50000)
	short := types.Position{Symbol: sym, Side: types.PositionShort, Size: 0.02, EntryPrice: 51000}
	gw.Open[sym] = short
	r, n, slept := newRouter(t, gw, Options{MaxSlippagePercent: 1})

	out, err := r.Execute(context.Background(), Plan{
		Symbol: sym, Side: types.SideBuy, Amount: 0.01, AnalysisPrice: 50000,
		CloseLeg: &short, MarginMode: "cross", Reason: "trend flip",
	})
	require.NoError(t, err)

	orders := gw.PlacedOrders()
	require.Len(t, orders, 2)
	assert.Equal(t, types.SideBuy, orders[0].Side)
	assert.True(t, orders[0].ReduceOnly)
	assert.Equal(t, 0.02, orders[0].Amount)
	assert.Equal(t, "cross", orders[0].MarginMode)
	assert.False(t, orders[1].ReduceOnly)
	assert.Equal(t, 0.01, orders[1].Amount)

	assert.Equal(t, []time.Duration{DefaultSettleDelay}, *slept)
	require.NotNil(t, out.Close)
	require.NotNil(t, out.Entry)
	assert.Equal(t, LegClose, out.Close.Leg)
	assert.Equal(t, 50000.0, out.Entry.AvgPrice)

	_, err = id.Time(out.Entry.ID)
	assert.NoError(t, err)
	assert.Len(t, n.msgs, 2)

	pos := gw.Open[sym]
	assert.Equal(t, types.PositionLong, pos.Side)
	assert.Equal(t, 0.01, pos.Size)
}

func TestRouter_PyramidingAllowed(t *testing.T) {
	const sym = "BTC/USDT:USDT"
	gw := fake.New()
	gw.SetPrice(sym, 50000)
	gw.Open[sym] = types.Position{Symbol: sym, Side: types.PositionLong, Size: 0.01, EntryPrice: 49000}
	r, _, slept := newRouter(t, gw, Options{MaxSlippagePercent: 1})

	_, err := r.Execute(context.Background(), Plan{Symbol: sym, Side: types.SideBuy, Amount: 0.01, AnalysisPrice: 50000})
	require.NoError(t, err)
	assert.Len(t, gw.PlacedOrders(), 1)
	assert.Empty(t, *slept)
	assert.InDelta(t, 0.02, gw.Open[sym].Size, 1e-12)
}

func TestRouter_SpotSellUsesHeldBalance(t *testing.T) {
	gw := fake.New()
	gw.SetPrice("ETH/USDT", 2000)
	gw.SetUSDT(0, 0)
	gw.SetHolding("ETH", 0.0456)
	r, _, _ := newRouter(t, gw, Options{MaxSlippagePercent: 1})

	out, err := r.Execute(context.Background(), Plan{
		Symbol: "ETH/USDT", Side: types.SideSell, Amount: 0.1, AnalysisPrice: 2000,
		VerifySpotBalance: true, BaseAsset: "ETH", Limits: types.MarketLimits{QtyStep: 0.001},
	})
	require.NoError(t, err)
	require.NotNil(t, out.Entry)
	assert.InDelta(t, 0.045, out.Entry.Filled, 1e-12)
}

func TestRouter_SpotSellNothingHeld(t *testing.T) {
	gw := fake.New()
	gw.SetPrice("ETH/USDT", 2000)
	r, _, _ := newRouter(t, gw, Options{})

	_, err := r.Execute(context.Background(), Plan{
		Symbol: "ETH/USDT", Side: types.SideSell, Amount: 0.1, AnalysisPrice: 2000,
		VerifySpotBalance: true, BaseAsset: "ETH",
	})
	require.Error(t, err)
	assert.True(t, boterrors.HasCategory(err, boterrors.ErrorCategorySizing))
	assert.Empty(t, gw.PlacedOrders())
}

func TestRouter_SpotSellDustBelowMinimums(t *testing.T) {
	tests := []struct {
		name   string
		held   float64
		limits types.MarketLimits
		placed bool
	}{
		{"below min amount", 0.0042, types.MarketLimits{QtyStep: 0.0001, MinAmount: 0.005}, false},
		{"below min notional", 0.0042, types.MarketLimits{QtyStep: 0.0001, MinCost: 10}, false},
		{"truncates to zero", 0.0042, types.MarketLimits{QtyStep: 0.01}, false},
		{"above both minimums", 0.0456, types.MarketLimits{QtyStep: 0.001, MinAmount: 0.005, MinCost: 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := fake.New()
			gw.SetPrice("ETH/USDT", 2000)
			gw.SetHolding("ETH", tt.held)
			r, _, _ := newRouter(t, gw, Options{})

			out, err := r.Execute(context.Background(), Plan{
				Symbol: "ETH/USDT", Side: types.SideSell, Amount: 0.1, AnalysisPrice: 2000,
				VerifySpotBalance: true, BaseAsset: "ETH", Limits: tt.limits,
			})
			if tt.placed {
				require.NoError(t, err)
				require.NotNil(t, out.Entry)
				assert.Len(t, gw.PlacedOrders(), 1)
				return
			}
			require.Error(t, err)
			assert.True(t, boterrors.HasCategory(err, boterrors.ErrorCategorySizing))
			assert.Nil(t, out.Entry)
			assert.Empty(t, gw.PlacedOrders())
		})
	}
}

func TestRouter_ExecutionFailures(t *testing.T) {
	tests := []struct {
		name         string
		venueErr     error
		insufficient bool
	}{
		{"insufficient margin", errors.New("bybit API error 110007: ab not enough for new order"), true},
		{"generic reject", errors.New("bybit API error 10001: params error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := fake.New()
			gw.SetPrice("ETH/USDT", 2000)
			gw.Errors["PlaceMarketOrder"] = tt.venueErr
			r, n, _ := newRouter(t, gw, Options{MaxSlippagePercent: 1})

			_, err := r.Execute(context.Background(), Plan{Symbol: "ETH/USDT", Side: types.SideBuy, Amount: 0.1, AnalysisPrice: 2000})
			require.Error(t, err)

			var botErr *boterrors.BotError
			require.ErrorAs(t, err, &botErr)
			assert.Equal(t, boterrors.ErrorCategoryExecution, botErr.Category)
			assert.Equal(t, tt.insufficient, botErr.InsufficientMargin)
			assert.ErrorIs(t, err, tt.venueErr)

			require.Len(t, n.levels, 1)
			assert.Equal(t, notifications.LevelError, n.levels[0])
		})
	}
}

func TestRouter_CloseLegFailureStops(t *testing.T) {
	const sym = "BTC/USDT:USDT"
	gw := fake.New()
	gw.SetPrice(sym, 50000)
	gw.Errors["PlaceMarketOrder"] = errors.New("reduce-only rejected")
	short := types.Position{Symbol: sym, Side: types.PositionShort, Size: 0.02, EntryPrice: 51000}
	r, _, slept := newRouter(t, gw, Options{})

	out, err := r.Execute(context.Background(), Plan{Symbol: sym, Side: types.SideBuy, Amount: 0.01, AnalysisPrice: 50000, CloseLeg: &short})
	require.Error(t, err)
	assert.Nil(t, out.Entry)
	assert.Empty(t, *slept)
}

func TestRouter_Flatten(t *testing.T) {
	gw := fake.New()
	gw.SetPrice("BTC/USDT:USDT", 50000)
	gw.Open["BTC/USDT:USDT"] = types.Position{Symbol: "BTC/USDT:USDT", Side: types.PositionShort, Size: 0.02, EntryPrice: 51000}
	r, _, _ := newRouter(t, gw, Options{MaxSlippagePercent: 0.01})

	conf, err := r.Flatten(context.Background(), "BTC/USDT:USDT", gw.Open["BTC/USDT:USDT"], "cross", "risk halt")
	require.NoError(t, err)
	require.NotNil(t, conf)
	assert.Equal(t, LegClose, conf.Leg)

	orders := gw.PlacedOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, types.SideBuy, orders[0].Side)
	assert.True(t, orders[0].ReduceOnly)
	assert.Zero(t, gw.TickerCalls)
	assert.NotContains(t, gw.Open, "BTC/USDT:USDT")
}

func TestRouter_FlattenDryRun(t *testing.T) {
	gw := fake.New()
	r, _, _ := newRouter(t, gw, Options{TestMode: true})

	conf, err := r.Flatten(context.Background(), "ETH/USDT", types.Position{Side: types.PositionLong, Size: 1}, "", "risk halt")
	require.NoError(t, err)
	assert.Nil(t, conf)
	assert.Empty(t, gw.PlacedOrders())
}
