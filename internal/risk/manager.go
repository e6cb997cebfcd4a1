package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-oracle-bot/internal/config"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/ledger"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/logger"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/monitoring"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/state"
	"github.com/ducminhle1904/crypto-oracle-bot/pkg/types"
)

// State is the risk manager lifecycle. HALTED is terminal.
type State string

const (
	StateInitializing State = "INITIALIZING"
	StateMonitoring   State = "MONITORING"
	StateHalted       State = "HALTED"
)

// Trigger names the threshold that halted trading.
type Trigger string

const (
	TriggerNone           Trigger = ""
	TriggerTakeProfitUSDT Trigger = "TAKE_PROFIT_USDT"
	TriggerTakeProfitRate Trigger = "TAKE_PROFIT_RATE"
	TriggerStopLossUSDT   Trigger = "STOP_LOSS_USDT"
	TriggerStopLossRate   Trigger = "STOP_LOSS_RATE"
)

const (
	// RecalibrationThreshold is the deviation between real and configured capital
	// above which the baseline is reset to the real equity.
	RecalibrationThreshold = 0.10

	QuoteAsset = "USDT"

	callTimeout = 30 * time.Second
)

// ErrNoEquity is returned when the account reports no usable quote equity.
var ErrNoEquity = errors.New("no usable USDT equity")

// Result is the outcome of one Check.
type Result struct {
	State      State
	Trigger    Trigger
	Equity     float64
	PnL        float64
	PnLPercent float64
	Reason     string
	// Skipped is set when the cycle could not value the account.
	Skipped bool
}

// Halted reports whether trading must stop.
func (r Result) Halted() bool { return r.State == StateHalted }

// Trader is the part of a symbol trader the risk manager needs.
type Trader interface {
	Symbol() string
	// SpotAsset returns the base asset held for spot symbols.
	SpotAsset() (string, bool)
	ClosePosition(ctx context.Context) error
}

// BaselineStore persists the smart baseline.
type BaselineStore interface {
	Load() state.RiskState
	SaveBaseline(v float64) error
}

// Recorder appends equity rows.
type Recorder interface {
	Append(e ledger.Entry) error
}

// Valuation is the account's marked-to-market value.
type Valuation struct {
	QuoteEquity float64
	// Holdings maps spot symbol to its value in USDT.
	Holdings map[string]float64
	Prices   map[string]float64
	Total    float64
}

// Manager tracks account equity against a baseline and halts on take-profit or stop-loss.
type Manager struct {
	mu sync.Mutex

	gateway   exchange.MarketGateway
	cfg       config.RiskControlConfig
	store     BaselineStore
	recorder  Recorder
	traders   []Trader
	timeframe string
	logger    *logger.Logger

	state    State
	baseline float64
	halt     *Result
	now      func() time.Time
}

// Options configure a Manager. Recorder may be nil.
type Options struct {
	Config    config.RiskControlConfig
	Store     BaselineStore
	Recorder  Recorder
	Traders   []Trader
	Timeframe string
	Logger    *logger.Logger
}

func NewManager(gw exchange.MarketGateway, opts Options) *Manager {
	monitoring.UpdateRiskState(string(StateInitializing))
	return &Manager{
		gateway:   gw,
		cfg:       opts.Config,
		store:     opts.Store,
		recorder:  opts.Recorder,
		traders:   opts.Traders,
		timeframe: opts.Timeframe,
		logger:    opts.Logger,
		state:     StateInitializing,
		now:       time.Now,
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Baseline returns the current smart baseline, 0 before initialization.
func (m *Manager) Baseline() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseline
}

// Initialize values the account, calibrates the baseline and persists it.
func (m *Manager) Initialize(ctx context.Context) (Valuation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateHalted {
		return Valuation{}, fmt.Errorf("risk manager halted")
	}
	return m.initialize(ctx)
}

func (m *Manager) initialize(ctx context.Context) (Valuation, error) {
	val, err := m.valuate(ctx)
	if err != nil {
		return val, err
	}

	var persisted *float64
	if m.store != nil {
		if v, ok := m.store.Load().Baseline(); ok {
			persisted = &v
		}
	}
	baseline, why := Calibrate(val.Total, m.cfg.InitialBalanceUSDT, persisted)
	m.baseline = baseline
	m.logger.Info("baseline %.2f USDT (%s), real equity %.2f", baseline, why, val.Total)

	if m.store != nil {
		if err := m.store.SaveBaseline(baseline); err != nil {
			m.logger.LogError("Persist baseline", err)
		}
	}
	m.setState(StateMonitoring)
	return val, nil
}

// Calibrate chooses the baseline. With a configured initial balance, a real
// equity more than 10% away from it wins; otherwise the persisted baseline, or
// the initial balance when nothing is persisted. Without an initial balance the
// persisted baseline, or the real equity.
func Calibrate(real, initial float64, persisted *float64) (float64, string) {
	if initial > 0 {
		if dev := math.Abs(real-initial) / initial; dev > RecalibrationThreshold {
			return real, fmt.Sprintf("real equity deviates %.1f%% from configured %.2f", dev*100, initial)
		}
		if persisted != nil {
			return *persisted, "persisted"
		}
		return initial, "configured initial balance"
	}
	if persisted != nil {
		return *persisted, "persisted"
	}
	return real, "real equity"
}

// Check runs one risk cycle. Once halted it returns the same result without
// touching the venue or the ledger.
func (m *Manager) Check(ctx context.Context) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.halt != nil {
		return *m.halt
	}

	var (
		val Valuation
		err error
	)
	if m.state == StateInitializing {
		val, err = m.initialize(ctx)
	} else {
		val, err = m.valuate(ctx)
	}
	if err != nil {
		m.logger.LogWarning("Risk check", "skipped: %v", err)
		monitoring.RecordError("risk_check")
		return Result{State: m.state, Skipped: true, Reason: err.Error()}
	}
	if m.baseline <= 0 {
		return Result{State: m.state, Equity: val.Total, Skipped: true, Reason: "baseline not positive"}
	}

	pnl := val.Total - m.baseline
	pnlPct := pnl / m.baseline * 100
	res := Result{State: m.state, Equity: val.Total, PnL: pnl, PnLPercent: pnlPct}

	if m.recorder != nil {
		err := m.recorder.Append(ledger.Entry{Time: m.now(), TotalEquity: val.Total, PnL: pnl, PnLPercent: pnlPct})
		if err != nil {
			m.logger.LogError("Ledger append", err)
		}
	}
	monitoring.UpdateEquity(val.Total, pnl, m.baseline)
	m.logger.Status("equity %.2f USDT, baseline %.2f, pnl %+.2f (%+.2f%%)", val.Total, m.baseline, pnl, pnlPct)

	trigger, reason := Evaluate(m.cfg, pnl, pnlPct)
	if trigger == TriggerNone {
		return res
	}

	m.setState(StateHalted)
	res.State = StateHalted
	res.Trigger = trigger
	res.Reason = reason
	m.halt = &res
	m.logger.Warning("risk control triggered: %s", reason)
	return res
}

// Evaluate checks take-profit before stop-loss, absolute before percent.
// Nil or non-positive thresholds never trigger. Rates are fractions.
func Evaluate(cfg config.RiskControlConfig, pnl, pnlPct float64) (Trigger, string) {
	if v, ok := threshold(cfg.MaxProfitUSDT); ok && pnl >= v {
		return TriggerTakeProfitUSDT, fmt.Sprintf("take profit: pnl %.2f USDT >= %.2f USDT", pnl, v)
	}
	if v, ok := threshold(cfg.MaxProfitRate); ok && pnlPct >= v*100 {
		return TriggerTakeProfitRate, fmt.Sprintf("take profit: pnl %.2f%% >= %.2f%%", pnlPct, v*100)
	}
	if v, ok := threshold(cfg.MaxLossUSDT); ok && pnl <= -v {
		return TriggerStopLossUSDT, fmt.Sprintf("stop loss: pnl %.2f USDT <= -%.2f USDT", pnl, v)
	}
	if v, ok := threshold(cfg.MaxLossRate); ok && pnlPct <= -v*100 {
		return TriggerStopLossRate, fmt.Sprintf("stop loss: pnl %.2f%% <= -%.2f%%", pnlPct, v*100)
	}
	return TriggerNone, ""
}

func threshold(v *float64) (float64, bool) {
	if v == nil || *v <= 0 {
		return 0, false
	}
	return *v, true
}

// CloseAll flattens every trader, continuing past failures.
func (m *Manager) CloseAll(ctx context.Context) error {
	var errs []error
	for _, t := range m.traders {
		if err := t.ClosePosition(ctx); err != nil {
			m.logger.LogError(fmt.Sprintf("Close %s", t.Symbol()), err)
			errs = append(errs, fmt.Errorf("%s: %w", t.Symbol(), err))
			continue
		}
		m.logger.Info("%s flattened", t.Symbol())
	}
	return errors.Join(errs...)
}

// valuate reads quote equity and marks spot holdings to market. Callers hold m.mu.
func (m *Manager) valuate(ctx context.Context) (Valuation, error) {
	val := Valuation{Holdings: make(map[string]float64), Prices: make(map[string]float64)}

	cctx, cancel := context.WithTimeout(ctx, callTimeout)
	balances, err := m.gateway.Balance(cctx)
	cancel()
	if err != nil {
		return val, fmt.Errorf("balance: %w", err)
	}
	val.QuoteEquity = QuoteEquity(balances[QuoteAsset])
	if val.QuoteEquity <= 0 {
		return val, ErrNoEquity
	}

	held := make(map[string]float64)
	for _, t := range m.traders {
		asset, ok := t.SpotAsset()
		if !ok {
			continue
		}
		if amount := balances[asset].Total; amount > 0 {
			held[t.Symbol()] = amount
		}
	}

	symbols := make([]string, 0, len(held))
	for s := range held {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	val.Total = val.QuoteEquity
	for s, p := range m.prices(ctx, symbols) {
		val.Prices[s] = p
		val.Holdings[s] = held[s] * p
		val.Total += held[s] * p
	}
	return val, nil
}

// QuoteEquity prefers unified-account equity, then wallet total, then free balance.
func QuoteEquity(b types.Balance) float64 {
	switch {
	case b.Equity > 0:
		return b.Equity
	case b.Total > 0:
		return b.Total
	default:
		return b.Free
	}
}

// prices quotes symbols with one batch call, falling back per symbol to the
// ticker and then to the last candle close. Unpriced symbols are left out.
func (m *Manager) prices(ctx context.Context, symbols []string) map[string]float64 {
	out := make(map[string]float64, len(symbols))
	if len(symbols) == 0 {
		return out
	}

	cctx, cancel := context.WithTimeout(ctx, callTimeout)
	batch, err := m.gateway.Tickers(cctx, symbols)
	cancel()
	if err != nil {
		m.logger.LogWarning("Batch tickers", "%v", err)
	}
	for _, s := range symbols {
		if p := batch[s]; p > 0 {
			out[s] = p
			continue
		}
		if p, ok := m.fallbackPrice(ctx, s); ok {
			out[s] = p
			continue
		}
		m.logger.Warning("no price for %s, holding excluded from equity", s)
	}
	return out
}

func (m *Manager) fallbackPrice(ctx context.Context, symbol string) (float64, bool) {
	cctx, cancel := context.WithTimeout(ctx, callTimeout)
	p, err := m.gateway.Ticker(cctx, symbol)
	cancel()
	if err == nil && p > 0 {
		return p, true
	}

	cctx, cancel = context.WithTimeout(ctx, callTimeout)
	candles, cerr := m.gateway.Candles(cctx, symbol, m.timeframe, 1)
	cancel()
	if cerr == nil && len(candles) > 0 && candles[len(candles)-1].Close > 0 {
		m.logger.LogWarning("Ticker", "%s: %v, using last close", symbol, err)
		return candles[len(candles)-1].Close, true
	}
	return 0, false
}

func (m *Manager) setState(s State) {
	m.state = s
	monitoring.UpdateRiskState(string(s))
}
