package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ducminhle1904/crypto-oracle-bot/internal/advisor"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/config"
	boterrors "github.com/ducminhle1904/crypto-oracle-bot/internal/errors"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/execution"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/indicators"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/ledger"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/logger"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/monitoring"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/notifications"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/portfolio"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/regime"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/safety"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/signal"
	"github.com/ducminhle1904/crypto-oracle-bot/pkg/reporting"
	"github.com/ducminhle1904/crypto-oracle-bot/pkg/types"
)

const (
	component = "TRADER"

	// CandleLimit is the number of candles fetched per cycle.
	CandleLimit = 100
	// FeeRefreshInterval is how often venue fee rates are re-read.
	FeeRefreshInterval = 4 * time.Hour
	// CallTimeout bounds a single gateway call.
	CallTimeout = 30 * time.Second
	// Consecutive advisor failures pause the advisor for AdvisorCooldown.
	AdvisorFailureThreshold = 3
	AdvisorCooldown         = 15 * time.Minute
)

// TradeJournal stores confirmed orders.
type TradeJournal interface {
	RecordTrade(t ledger.TradeRecord) error
}

// Deps are the collaborators a Trader needs.
type Deps struct {
	Gateway  exchange.MarketGateway
	Advisor  advisor.Advisor
	Notifier notifications.Notifier
	Logger   *logger.Logger
	// Journal is optional.
	Journal TradeJournal
}

// TraderState is the mutable per-symbol state. Only the owning Trader touches it.
type TraderState struct {
	PriceHistory []float64
	Signals      *signal.History
	Amount       float64
	Fees         types.TradingFee
	FeesUpdated  time.Time
}

// Report summarises one Run.
type Report struct {
	Symbol   string
	Price    float64
	Regime   regime.Reading
	Signal   *signal.Signal
	Decision signal.Decision
	Sizing   *portfolio.Result
	Outcome  *execution.Outcome
	Skipped  string
}

// Trader runs the analyse → gate → size → route cycle for one symbol.
type Trader struct {
	cfg            config.SymbolConfig
	symbol         exchange.Symbol
	timeframe      string
	initialBalance float64
	historyLimit   int

	gateway  exchange.MarketGateway
	advisor  advisor.Advisor
	breaker  *safety.Breaker
	router   *execution.Router
	mode     Mode
	gate     signal.Gate
	notifier notifications.Notifier
	journal  TradeJournal
	logger   *logger.Logger

	state TraderState
	now   func() time.Time
}

// NewTrader builds a trader for cfg. The mode variant follows cfg.TradeMode.
func NewTrader(cfg config.SymbolConfig, trading config.TradingConfig, deps Deps) (*Trader, error) {
	if deps.Gateway == nil || deps.Advisor == nil {
		return nil, boterrors.NewConfigurationError(component, "new_trader", "gateway and advisor are required")
	}
	sym, err := exchange.ParseSymbol(cfg.Symbol)
	if err != nil {
		return nil, boterrors.NewConfigurationError(component, "new_trader", err.Error())
	}
	if cfg.IsMargin() != sym.IsSwap() {
		return nil, boterrors.NewConfigurationError(component, "new_trader",
			fmt.Sprintf("trade mode %s does not match symbol %s", cfg.TradeMode, sym))
	}
	minConf, err := signal.ParseConfidence(cfg.MinConfidence)
	if err != nil {
		minConf = signal.Medium
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	historyLimit := trading.Strategy.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 20
	}

	t := &Trader{
		cfg:            cfg,
		symbol:         sym,
		timeframe:      trading.Timeframe,
		initialBalance: trading.RiskControl.InitialBalanceUSDT,
		historyLimit:   historyLimit,
		gateway:        deps.Gateway,
		advisor:        deps.Advisor,
		gate:           signal.Gate{MinConfidence: minConf},
		notifier:       notifier,
		journal:        deps.Journal,
		logger:         deps.Logger,
		now:            time.Now,
	}
	t.mode = newMode(cfg, sym, deps.Gateway, deps.Logger)
	t.breaker = safety.NewBreaker("advisor "+sym.Unified, safety.BreakerConfig{
		FailureThreshold: AdvisorFailureThreshold,
		Cooldown:         AdvisorCooldown,
	})
	t.breaker.OnStateChange(func(from, to safety.BreakerState) {
		t.logger.Warning("%s advisor circuit %s -> %s", sym, from, to)
	})
	t.router = execution.NewRouter(deps.Gateway, notifier, deps.Logger, execution.Options{
		MaxSlippagePercent: trading.MaxSlippagePercent,
		TestMode:           trading.TestMode,
	})
	t.state = TraderState{
		Signals: signal.NewHistory(trading.Strategy.SignalLimit),
		Fees:    t.mode.DefaultFees(),
	}
	if !cfg.Amount.Auto {
		t.state.Amount = cfg.Amount.Value
	}
	return t, nil
}

func (t *Trader) Symbol() string { return t.symbol.Unified }

// SpotAsset returns the base asset for spot symbols.
func (t *Trader) SpotAsset() (string, bool) {
	if t.cfg.IsMargin() {
		return "", false
	}
	return t.symbol.Base, true
}

// State returns a copy of the trader's state.
func (t *Trader) State() TraderState {
	s := t.state
	s.PriceHistory = append([]float64(nil), t.state.PriceHistory...)
	return s
}

// Setup applies venue settings such as leverage.
func (t *Trader) Setup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()
	return t.mode.Setup(ctx)
}

// Run executes one analysis cycle. Errors are already logged; the returned
// error carries its category for the caller's bookkeeping.
func (t *Trader) Run(ctx context.Context) (*Report, error) {
	rep := &Report{Symbol: t.symbol.Unified}
	now := t.now()
	t.refreshFees(ctx, now)

	candles, err := t.candles(ctx)
	if err != nil {
		return rep, t.readFailure("candles", err)
	}
	if len(candles) == 0 {
		return rep, t.readFailure("candles", errors.New("no candles returned"))
	}
	t.warmUp(candles)

	price := candles[len(candles)-1].Close
	rep.Price = price
	t.pushPrice(price)
	monitoring.UpdatePrice(t.symbol.Unified, price)

	free := t.freeQuote(ctx)
	holding, err := t.holding(ctx)
	if err != nil {
		return rep, t.readFailure("holding", err)
	}
	limits := t.limits(ctx)

	quota, known := t.cfg.Quota(t.initialBalance)
	alloc := portfolio.Allocation{
		Quota:      quota,
		QuotaKnown: known,
		Used:       t.mode.UsedCapital(holding, price),
		Free:       free,
	}
	effective := alloc.Effective()
	if t.cfg.Amount.Auto {
		t.state.Amount = portfolio.AutoAmount(quota, known, price, limits)
	}

	snap := indicators.Compute(candles)
	reading := regime.Classify(candles, snap.ADX)
	rep.Regime = reading

	in := advisor.Context{
		Symbol:       t.symbol.Unified,
		Timeframe:    t.timeframe,
		Margin:       t.cfg.IsMargin(),
		Leverage:     t.mode.Leverage(),
		Price:        price,
		PriceChange:  priceChange(candles),
		At:           now,
		Candles:      candles,
		Indicators:   snap,
		PriceHistory: append([]float64(nil), t.state.PriceHistory...),
		Regime:       reading,
		LastSignal:   t.state.Signals.Last(),
		Holding:      holding,
		Balance:      effective,
		ConfigAmount: t.state.Amount,
		AutoAmount:   t.cfg.Amount.Auto,
		TakerFee:     t.state.Fees.Taker,
	}

	if err := t.breaker.Allow(); err != nil {
		rep.Skipped = err.Error()
		t.logger.Info("%s HOLD: %v", t.symbol, err)
		return rep, nil
	}
	sig, err := t.advisor.Propose(ctx, in)
	if err != nil {
		t.breaker.Failure()
		t.logger.LogError(fmt.Sprintf("Advisor %s", t.symbol), err)
		monitoring.RecordError(string(boterrors.ErrorCategoryAdvisor))
		if !boterrors.HasCategory(err, boterrors.ErrorCategoryAdvisor) && !boterrors.HasCategory(err, boterrors.ErrorCategoryTimeout) {
			err = boterrors.NewAdvisorError(component, "propose", err)
		}
		return rep, err
	}
	t.breaker.Success()
	t.state.Signals.Add(*sig)
	rep.Signal = sig

	decision := t.gate.Apply(sig, t.mode.GatePosition(holding), price, t.state.Fees.Taker)
	rep.Decision = decision
	monitoring.RecordGateDecision(t.symbol.Unified, string(sig.Action))
	t.logger.LogCycle(price, string(reading.Regime), string(sig.Action), string(sig.Confidence), t.state.Amount, describeHolding(holding))
	if decision.Warning {
		t.logger.Warning("%s: %s", t.symbol, strings.Join(decision.Notes, "; "))
	}
	if decision.Held {
		t.logger.Info("%s HOLD: %s", t.symbol, sig.Reason)
		return rep, nil
	}

	side := types.SideBuy
	if sig.Action == signal.Sell {
		side = types.SideSell
	}
	leg, err := t.mode.Leg(side, holding, effective, price)
	if errors.Is(err, errNothingToSell) {
		rep.Skipped = err.Error()
		t.logger.Info("%s SELL skipped: %s", t.symbol, err)
		return rep, nil
	}
	if err != nil {
		return rep, err
	}

	res, err := portfolio.Size(portfolio.Request{
		Side:          side,
		Closing:       leg.Closing,
		Confidence:    sig.Confidence,
		ConfigAmount:  t.state.Amount,
		AdvisorAmount: sig.Amount,
		MaxTradeLimit: leg.MaxTradeLimit,
		Price:         price,
		Limits:        limits,
	})
	if err != nil {
		monitoring.RecordSizingAbort(t.symbol.Unified)
		t.logger.LogWarning("Sizing", "%s %s aborted: %v", t.symbol, side, err)
		return rep, err
	}
	rep.Sizing = &res
	for _, note := range res.Notes {
		t.logger.Info("%s sizing: %s", t.symbol, note)
	}
	t.logger.Info("%s %s %.8g (%s, limit %.8g, effective %.2f of quota %s)",
		t.symbol, side, res.Amount, res.Basis, leg.MaxTradeLimit, effective, quotaText(quota, known))

	plan := execution.Plan{
		Symbol:            t.symbol.Unified,
		Side:              side,
		Amount:            res.Amount,
		AnalysisPrice:     price,
		CloseLeg:          leg.CloseLeg,
		MarginMode:        t.cfg.MarginMode,
		VerifySpotBalance: leg.VerifySpotBalance,
		BaseAsset:         t.symbol.Base,
		Limits:            limits,
		Reason:            sig.Reason,
	}
	out, err := t.router.Execute(ctx, plan)
	rep.Outcome = out
	if out != nil {
		t.record(out.Close, sig.Reason)
		t.record(out.Entry, sig.Reason)
	}
	if err != nil {
		return rep, err
	}
	if sig.StopLoss != nil || sig.TakeProfit != nil {
		t.logger.Info("%s advisor levels: stop loss %s, take profit %s", t.symbol, level(sig.StopLoss), level(sig.TakeProfit))
	}
	return rep, nil
}

// ClosePosition flattens whatever the trader holds. Used on a global halt.
func (t *Trader) ClosePosition(ctx context.Context) error {
	holding, err := t.holding(ctx)
	if err != nil {
		return fmt.Errorf("%s: read holding: %w", t.symbol, err)
	}
	pos := t.mode.ExitPosition(holding)
	if pos == nil {
		return nil
	}
	if !t.cfg.IsMargin() {
		pos.Size = t.limits(ctx).Truncate(pos.Size)
		if pos.Size <= 0 {
			return nil
		}
	}
	_, err = t.router.Flatten(ctx, t.symbol.Unified, *pos, t.cfg.MarginMode, "risk control halt")
	return err
}

// Asset describes the trader's holding for the startup asset table.
func (t *Trader) Asset(ctx context.Context, price float64) (reporting.AssetRow, error) {
	quota, known := t.cfg.Quota(t.initialBalance)
	row := reporting.AssetRow{
		Symbol:     t.symbol.Unified,
		Mode:       t.mode.Name(),
		Allocation: t.cfg.Allocation,
		Quota:      quota,
		QuotaKnown: known,
		Price:      price,
	}
	holding, err := t.holding(ctx)
	if err != nil {
		return row, err
	}
	if p := holding.Position; p != nil {
		row.Holding = p.Size
		row.Side = string(p.Side)
		row.Value = p.Size * price
		row.EntryPrice = p.EntryPrice
		row.PnLPercent = p.PnLPercent(price) * 100
	} else {
		row.Holding = holding.SpotAmount
		row.Value = portfolio.SpotUsedCapital(holding.SpotAmount, price)
		row.EntryPrice = holding.EntryPrice
		if gp := t.mode.GatePosition(holding); gp != nil {
			row.PnLPercent = gp.PnLPercent(price) * 100
		}
	}
	alloc := portfolio.Allocation{Quota: quota, QuotaKnown: known, Used: row.Value}
	row.UsagePercent = alloc.UsagePercent()
	return row, nil
}

func (t *Trader) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, CallTimeout)
}

func (t *Trader) candles(ctx context.Context) ([]types.OHLCV, error) {
	ctx, cancel := t.call(ctx)
	defer cancel()
	return t.gateway.Candles(ctx, t.symbol.Unified, t.timeframe, CandleLimit)
}

func (t *Trader) holding(ctx context.Context) (advisor.Holding, error) {
	ctx, cancel := t.call(ctx)
	defer cancel()
	return t.mode.Holding(ctx)
}

// freeQuote reads the free quote balance, 0 when unavailable.
func (t *Trader) freeQuote(ctx context.Context) float64 {
	ctx, cancel := t.call(ctx)
	defer cancel()
	balances, err := t.gateway.Balance(ctx)
	if err != nil {
		t.logger.LogWarning("Balance", "%s: %v", t.symbol, err)
		return 0
	}
	return balances[t.quoteAsset()].Free
}

func (t *Trader) quoteAsset() string {
	if t.symbol.IsSwap() {
		return t.symbol.Settle
	}
	return t.symbol.Quote
}

// limits reads venue rules; unknown rules are zero and skip their checks.
func (t *Trader) limits(ctx context.Context) types.MarketLimits {
	ctx, cancel := t.call(ctx)
	defer cancel()
	lim, err := t.gateway.MarketLimits(ctx, t.symbol.Unified)
	if err != nil {
		t.logger.LogWarning("Market limits", "%s: %v", t.symbol, err)
		return types.MarketLimits{}
	}
	return lim
}

// refreshFees re-reads fee rates on the first run and every FeeRefreshInterval.
// A failed read keeps the previous rates.
func (t *Trader) refreshFees(ctx context.Context, now time.Time) {
	if !t.state.FeesUpdated.IsZero() && now.Sub(t.state.FeesUpdated) < FeeRefreshInterval {
		return
	}
	ctx, cancel := t.call(ctx)
	defer cancel()
	fee, err := t.gateway.TradingFee(ctx, t.symbol.Unified)
	t.state.FeesUpdated = now
	if err != nil || fee.Taker <= 0 {
		t.logger.LogWarning("Fee rates", "%s: keeping taker %.4f%%: %v", t.symbol, t.state.Fees.Taker*100, err)
		return
	}
	t.state.Fees = fee
	t.logger.Info("%s fees: taker %.4f%% maker %.4f%%", t.symbol, fee.Taker*100, fee.Maker*100)
}

// warmUp seeds the price history from candles on the first run.
func (t *Trader) warmUp(candles []types.OHLCV) {
	if len(t.state.PriceHistory) > 0 {
		return
	}
	closes := types.Closes(candles[:len(candles)-1])
	if len(closes) > t.historyLimit-1 {
		closes = closes[len(closes)-(t.historyLimit-1):]
	}
	t.state.PriceHistory = closes
	t.logger.Info("%s warm-up: seeded %d closes", t.symbol, len(closes))
}

func (t *Trader) pushPrice(price float64) {
	t.state.PriceHistory = append(t.state.PriceHistory, price)
	if n := len(t.state.PriceHistory); n > t.historyLimit {
		t.state.PriceHistory = t.state.PriceHistory[n-t.historyLimit:]
	}
}

func (t *Trader) record(conf *execution.Confirmation, reason string) {
	if conf == nil || t.journal == nil {
		return
	}
	err := t.journal.RecordTrade(ledger.TradeRecord{
		Ref:      conf.ID,
		OrderID:  conf.OrderID,
		Symbol:   t.symbol.Unified,
		Leg:      conf.Leg,
		Side:     string(conf.Action),
		Filled:   conf.Filled,
		AvgPrice: conf.AvgPrice,
		Time:     t.now(),
		Reason:   reason,
	})
	if err != nil {
		t.logger.LogWarning("Trade journal", "%s: %v", t.symbol, err)
	}
}

func (t *Trader) readFailure(op string, err error) error {
	botErr := boterrors.NewTransientReadError(component, op, err).WithContext("symbol", t.symbol.Unified)
	t.logger.LogError(fmt.Sprintf("Read %s %s", op, t.symbol), err)
	monitoring.RecordError(string(boterrors.ErrorCategoryTransientRead))
	return botErr
}

// priceChange is the last close against the previous close, in percent.
func priceChange(candles []types.OHLCV) float64 {
	if len(candles) < 2 {
		return 0
	}
	prev := candles[len(candles)-2].Close
	if prev == 0 {
		return 0
	}
	return (candles[len(candles)-1].Close - prev) / prev * 100
}

func describeHolding(h advisor.Holding) string {
	if p := h.Position; p != nil {
		return fmt.Sprintf("%s %.6g", p.Side, p.Size)
	}
	if h.SpotAmount > 0 {
		return fmt.Sprintf("spot %.6g", h.SpotAmount)
	}
	return "flat"
}

func quotaText(quota float64, known bool) string {
	if !known {
		return "unknown"
	}
	return fmt.Sprintf("%.2f", quota)
}

func level(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", *v)
}
