package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/ducminhle1904/crypto-oracle-bot/internal/advisor"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/config"
	boterrors "github.com/ducminhle1904/crypto-oracle-bot/internal/errors"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/logger"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/portfolio"
	"github.com/ducminhle1904/crypto-oracle-bot/pkg/types"
)

// Default fee rates used until the venue reports the account's own.
var (
	DefaultSpotFees   = types.TradingFee{Taker: 0.001, Maker: 0.0008}
	DefaultMarginFees = types.TradingFee{Taker: 0.0005, Maker: 0.0002}
)

// Mode holds the behaviour that differs between spot and derivatives symbols.
type Mode interface {
	Name() string
	DefaultFees() types.TradingFee
	Leverage() int

	// Setup prepares the venue for trading, e.g. leverage. Called once at startup.
	Setup(ctx context.Context) error

	// Holding reads what the trader currently holds.
	Holding(ctx context.Context) (advisor.Holding, error)
	// UsedCapital is the quota already consumed by h.
	UsedCapital(h advisor.Holding, price float64) float64
	// GatePosition is the position a SELL would reduce, for the fee filter.
	GatePosition(h advisor.Holding) *types.Position

	// Leg describes how side trades against h: the capacity limit, whether the
	// entry order is closing and the opposing position to flatten first.
	Leg(side types.Side, h advisor.Holding, effective, price float64) (Leg, error)

	// ExitPosition is what a global halt must flatten, nil when flat.
	ExitPosition(h advisor.Holding) *types.Position
}

// Leg is the mode's view of one trade.
type Leg struct {
	MaxTradeLimit     float64
	Closing           bool
	CloseLeg          *types.Position
	VerifySpotBalance bool
}

// errNothingToSell marks a spot SELL without a base balance.
var errNothingToSell = errors.New("no spot balance to sell")

func newMode(cfg config.SymbolConfig, sym exchange.Symbol, gw exchange.MarketGateway, log *logger.Logger) Mode {
	if cfg.IsMargin() {
		lev := cfg.Leverage
		if lev < portfolio.MinLeverage {
			lev = portfolio.MinLeverage
		}
		return &marginMode{gateway: gw, symbol: sym, leverage: lev, marginMode: cfg.MarginMode, logger: log}
	}
	return &spotMode{gateway: gw, symbol: sym, logger: log}
}

type spotMode struct {
	gateway exchange.MarketGateway
	symbol  exchange.Symbol
	logger  *logger.Logger
}

func (m *spotMode) Name() string                  { return config.TradeModeCash }
func (m *spotMode) DefaultFees() types.TradingFee { return DefaultSpotFees }
func (m *spotMode) Leverage() int                 { return 1 }

func (m *spotMode) Setup(ctx context.Context) error { return nil }

func (m *spotMode) Holding(ctx context.Context) (advisor.Holding, error) {
	balances, err := m.gateway.Balance(ctx)
	if err != nil {
		return advisor.Holding{}, err
	}
	h := advisor.Holding{SpotAmount: balances[m.symbol.Base].Total}
	if h.SpotAmount <= 0 {
		return h, nil
	}
	entry, err := m.gateway.LastBuyPrice(ctx, m.symbol.Unified)
	if err != nil {
		m.logger.LogWarning("Entry price", "%s: %v", m.symbol, err)
		return h, nil
	}
	h.EntryPrice = entry
	return h, nil
}

func (m *spotMode) UsedCapital(h advisor.Holding, price float64) float64 {
	return portfolio.SpotUsedCapital(h.SpotAmount, price)
}

func (m *spotMode) GatePosition(h advisor.Holding) *types.Position {
	if h.SpotAmount <= 0 || h.EntryPrice <= 0 {
		return nil
	}
	return &types.Position{Symbol: m.symbol.Unified, Side: types.PositionLong, Size: h.SpotAmount, EntryPrice: h.EntryPrice}
}

func (m *spotMode) Leg(side types.Side, h advisor.Holding, effective, price float64) (Leg, error) {
	if side == types.SideBuy {
		return Leg{MaxTradeLimit: portfolio.BuyCapacity(effective, 1, price)}, nil
	}
	if h.SpotAmount <= 0 {
		return Leg{}, errNothingToSell
	}
	return Leg{MaxTradeLimit: h.SpotAmount, Closing: true, VerifySpotBalance: true}, nil
}

func (m *spotMode) ExitPosition(h advisor.Holding) *types.Position {
	if h.SpotAmount <= 0 {
		return nil
	}
	return &types.Position{Symbol: m.symbol.Unified, Side: types.PositionLong, Size: h.SpotAmount, EntryPrice: h.EntryPrice}
}

type marginMode struct {
	gateway    exchange.MarketGateway
	symbol     exchange.Symbol
	leverage   int
	marginMode string
	logger     *logger.Logger
}

func (m *marginMode) Name() string                  { return m.marginMode }
func (m *marginMode) DefaultFees() types.TradingFee { return DefaultMarginFees }
func (m *marginMode) Leverage() int                 { return m.leverage }

// Setup checks leverage against the venue maximum and sets it. Margin mode is
// account level on Bybit and only tags orders.
func (m *marginMode) Setup(ctx context.Context) error {
	limits, err := m.gateway.MarketLimits(ctx, m.symbol.Unified)
	if err != nil {
		m.logger.LogWarning("setup", "%s market limits unavailable, leverage not checked: %v", m.symbol, err)
	}
	if err := portfolio.ValidateLeverage(m.leverage, limits.MaxLeverage); err != nil {
		return boterrors.NewConfigurationError(component, "setup", fmt.Sprintf("%s: %v", m.symbol, err))
	}
	if err := m.gateway.SetLeverage(ctx, m.symbol.Unified, m.leverage, m.marginMode); err != nil {
		return fmt.Errorf("set leverage %dx on %s: %w", m.leverage, m.symbol, err)
	}
	m.logger.Info("leverage set to %dx (%s) on %s", m.leverage, m.marginMode, m.symbol)
	return nil
}

func (m *marginMode) Holding(ctx context.Context) (advisor.Holding, error) {
	positions, err := m.gateway.Positions(ctx, []string{m.symbol.Unified})
	if err != nil {
		return advisor.Holding{}, err
	}
	for i := range positions {
		p := positions[i]
		if p.Symbol == m.symbol.Unified && p.Size > 0 {
			return advisor.Holding{Position: &p, EntryPrice: p.EntryPrice}, nil
		}
	}
	return advisor.Holding{}, nil
}

// UsedCapital is zero: open positions are not deducted from the quota.
func (m *marginMode) UsedCapital(advisor.Holding, float64) float64 { return 0 }

func (m *marginMode) GatePosition(h advisor.Holding) *types.Position {
	return h.Position
}

// Leg opens or adds on the signal side. An opposing position is closed first
// and the entry then opens the new direction.
func (m *marginMode) Leg(side types.Side, h advisor.Holding, effective, price float64) (Leg, error) {
	leg := Leg{MaxTradeLimit: portfolio.BuyCapacity(effective, m.leverage, price)}
	if p := h.Position; p != nil && p.Size > 0 && p.ClosingSide() == side {
		closing := *p
		leg.CloseLeg = &closing
	}
	return leg, nil
}

func (m *marginMode) ExitPosition(h advisor.Holding) *types.Position {
	if h.Position == nil || h.Position.Size <= 0 {
		return nil
	}
	p := *h.Position
	return &p
}
