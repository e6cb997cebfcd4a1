package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-oracle-bot/pkg/types"
)

func TestSpotFillsMoveBalances(t *testing.T) {
	g := New()
	g.SetUSDT(1000, 1000)
	g.SetPrice("ETH/USDT", 100)
	ctx := context.Background()

	_, err := g.PlaceMarketOrder(ctx, types.OrderRequest{Symbol: "ETH/USDT", Side: types.SideBuy, Amount: 2})
	require.NoError(t, err)

	bal, _ := g.Balance(ctx)
	assert.Equal(t, 2.0, bal["ETH"].Free)
	assert.Equal(t, 800.0, bal["USDT"].Free)
	assert.Equal(t, 100.0, g.BuyPrices["ETH/USDT"])

	_, err = g.PlaceMarketOrder(ctx, types.OrderRequest{Symbol: "ETH/USDT", Side: types.SideSell, Amount: 2})
	require.NoError(t, err)
	bal, _ = g.Balance(ctx)
	assert.Equal(t, 0.0, bal["ETH"].Free)
	assert.Equal(t, 1000.0, bal["USDT"].Free)
}

func TestContractFills(t *testing.T) {
	g := New()
	g.SetPrice("BTC/USDT:USDT", 100)
	ctx := context.Background()
	sym := []string{"BTC/USDT:USDT"}

	_, _ = g.PlaceMarketOrder(ctx, types.OrderRequest{Symbol: sym[0], Side: types.SideBuy, Amount: 1})
	g.SetPrice(sym[0], 200)
	_, _ = g.PlaceMarketOrder(ctx, types.OrderRequest{Symbol: sym[0], Side: types.SideBuy, Amount: 1})

	pos, err := g.Positions(ctx, sym)
	require.NoError(t, err)
	require.Len(t, pos, 1)
	assert.Equal(t, 2.0, pos[0].Size)
	assert.Equal(t, 150.0, pos[0].EntryPrice)

	_, _ = g.PlaceMarketOrder(ctx, types.OrderRequest{Symbol: sym[0], Side: types.SideSell, Amount: 2, ReduceOnly: true})
	pos, _ = g.Positions(ctx, sym)
	assert.Empty(t, pos)

	_, _ = g.PlaceMarketOrder(ctx, types.OrderRequest{Symbol: sym[0], Side: types.SideSell, Amount: 1})
	pos, _ = g.Positions(ctx, sym)
	require.Len(t, pos, 1)
	assert.Equal(t, types.PositionShort, pos[0].Side)
}

func TestInjectedErrors(t *testing.T) {
	g := New()
	g.Errors["Ticker"] = assert.AnError

	_, err := g.Ticker(context.Background(), "ETH/USDT")
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, g.TickerCalls)
}
