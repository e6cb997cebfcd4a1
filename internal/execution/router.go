package execution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	boterrors "github.com/ducminhle1904/crypto-oracle-bot/internal/errors"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/logger"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/monitoring"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/notifications"
	"github.com/ducminhle1904/crypto-oracle-bot/pkg/id"
	"github.com/ducminhle1904/crypto-oracle-bot/pkg/types"
)

const (
	component = "ROUTER"

	DefaultSettleDelay = time.Second
	LegEntry           = "entry"
	LegClose           = "close"
)

// ErrSlippage marks a trade cancelled because the market moved during analysis.
var ErrSlippage = errors.New("price moved beyond slippage limit")

// Plan is one sized trade ready for the venue.
type Plan struct {
	Symbol        string
	Side          types.Side
	Amount        float64
	AnalysisPrice float64
	// CloseLeg is the opposing position to flatten before the entry order.
	CloseLeg   *types.Position
	MarginMode string
	// VerifySpotBalance re-reads the held base balance before a spot sell.
	VerifySpotBalance bool
	BaseAsset         string
	Limits            types.MarketLimits
	Reason            string
}

// Confirmation is a venue-acknowledged order.
type Confirmation struct {
	ID       string
	OrderID  string
	Leg      string
	Action   types.Side
	Filled   float64
	AvgPrice float64
}

// Outcome reports what Execute did.
type Outcome struct {
	DryRun    bool
	Cancelled bool
	Slippage  float64 // percent
	Close     *Confirmation
	Entry     *Confirmation
}

// Router sequences order placement for a single trader.
type Router struct {
	gateway     exchange.MarketGateway
	notifier    notifications.Notifier
	logger      *logger.Logger
	maxSlippage float64
	testMode    bool
	settleDelay time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// Options configure a Router.
type Options struct {
	MaxSlippagePercent float64
	TestMode           bool
	SettleDelay        time.Duration
}

func NewRouter(gateway exchange.MarketGateway, notifier notifications.Notifier, log *logger.Logger, opts Options) *Router {
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	delay := opts.SettleDelay
	if delay <= 0 {
		delay = DefaultSettleDelay
	}
	return &Router{
		gateway:     gateway,
		notifier:    notifier,
		logger:      log,
		maxSlippage: opts.MaxSlippagePercent,
		testMode:    opts.TestMode,
		settleDelay: delay,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Execute runs the slippage guard, the optional reversal close leg and the
// entry order. Orders are never retried.
func (r *Router) Execute(ctx context.Context, plan Plan) (*Outcome, error) {
	out := &Outcome{}

	if r.testMode {
		r.logger.Trade("[DRY RUN] %s %.8g %s @ %.4f (%s)", plan.Side, plan.Amount, plan.Symbol, plan.AnalysisPrice, plan.Reason)
		if plan.CloseLeg != nil {
			r.logger.Trade("[DRY RUN] would first close %s %.8g", plan.CloseLeg.Side, plan.CloseLeg.Size)
		}
		out.DryRun = true
		return out, nil
	}

	if cancelled, gap := r.slippageExceeded(ctx, plan); cancelled {
		out.Cancelled = true
		out.Slippage = gap
		r.logger.Warning("analysis price %.4f deviates %.2f%% from live price (limit %.2f%%), trade cancelled",
			plan.AnalysisPrice, gap, r.maxSlippage)
		r.notify(notifications.LevelWarning, fmt.Sprintf("Trade cancelled %s\nReason: price moved %.2f%%", plan.Symbol, gap))
		return out, ErrSlippage
	}

	if plan.CloseLeg != nil && plan.CloseLeg.Size > 0 {
		conf, err := r.closeLeg(ctx, plan)
		if err != nil {
			return out, err
		}
		out.Close = conf
		if err := r.sleep(ctx, r.settleDelay); err != nil {
			return out, err
		}
	}

	amount := plan.Amount
	if plan.VerifySpotBalance && plan.Side == types.SideSell {
		held, err := r.heldBase(ctx, plan.BaseAsset)
		if err != nil {
			r.logger.LogWarning("Spot balance check", "%v", err)
		} else if held < amount {
			amount = plan.Limits.Truncate(held)
			r.logger.Warning("held %s %.8g below planned %.8g, selling %.8g", plan.BaseAsset, held, plan.Amount, amount)
		}
		if amount <= 0 {
			return out, boterrors.NewSizingError(component, "spot_sell", fmt.Sprintf("no %s balance to sell", plan.BaseAsset))
		}
		if amount < plan.Limits.MinAmount {
			return out, boterrors.NewSizingError(component, "spot_sell",
				fmt.Sprintf("%s balance %.8g below venue minimum %.8g", plan.BaseAsset, amount, plan.Limits.MinAmount))
		}
		if plan.AnalysisPrice > 0 && amount*plan.AnalysisPrice < plan.Limits.MinCost {
			return out, boterrors.NewSizingError(component, "spot_sell",
				fmt.Sprintf("%s balance %.8g worth %.4f below venue minimum notional %.4f",
					plan.BaseAsset, amount, amount*plan.AnalysisPrice, plan.Limits.MinCost))
		}
	}

	conf, err := r.place(ctx, plan, types.OrderRequest{
		Symbol:     plan.Symbol,
		Side:       plan.Side,
		Amount:     amount,
		MarginMode: plan.MarginMode,
	}, LegEntry)
	if err != nil {
		return out, err
	}
	out.Entry = conf
	return out, nil
}

func (r *Router) slippageExceeded(ctx context.Context, plan Plan) (bool, float64) {
	if r.maxSlippage <= 0 || plan.AnalysisPrice <= 0 {
		return false, 0
	}
	live, err := r.gateway.Ticker(ctx, plan.Symbol)
	if err != nil || live <= 0 {
		r.logger.LogWarning("Slippage check", "live price unavailable, proceeding: %v", err)
		return false, 0
	}
	gap := math.Abs(live-plan.AnalysisPrice) / plan.AnalysisPrice * 100
	return gap > r.maxSlippage, gap
}

func (r *Router) closeLeg(ctx context.Context, plan Plan) (*Confirmation, error) {
	pos := plan.CloseLeg
	r.logger.Trade("reversal: closing %s %.8g %s before %s", pos.Side, pos.Size, plan.Symbol, plan.Side)
	return r.place(ctx, plan, types.OrderRequest{
		Symbol:     plan.Symbol,
		Side:       pos.ClosingSide(),
		Amount:     pos.Size,
		ReduceOnly: true,
		MarginMode: plan.MarginMode,
	}, LegClose)
}

func (r *Router) heldBase(ctx context.Context, asset string) (float64, error) {
	balances, err := r.gateway.Balance(ctx)
	if err != nil {
		return 0, err
	}
	return balances[asset].Free, nil
}

func (r *Router) place(ctx context.Context, plan Plan, req types.OrderRequest, leg string) (*Confirmation, error) {
	result, err := r.gateway.PlaceMarketOrder(ctx, req)
	if err != nil {
		botErr := boterrors.NewExecutionError(component, "place_"+leg, err).
			WithContext("symbol", req.Symbol).
			WithContext("side", string(req.Side)).
			WithContext("amount", req.Amount)

		kind := "generic"
		msg := fmt.Sprintf("Order failed %s %s %.8g\n%v", plan.Symbol, req.Side, req.Amount, err)
		if botErr.InsufficientMargin {
			kind = "insufficient_margin"
			msg = fmt.Sprintf("Insufficient margin for %s %s %.8g\n%v", plan.Symbol, req.Side, req.Amount, err)
		}
		monitoring.RecordExecutionFailure(plan.Symbol, kind)
		r.logger.LogError("Order placement", botErr)
		r.notify(notifications.LevelError, msg)
		return nil, botErr
	}

	conf := &Confirmation{
		ID:       id.New(),
		OrderID:  result.OrderID,
		Leg:      leg,
		Action:   req.Side,
		Filled:   result.Filled,
		AvgPrice: result.AvgPrice,
	}
	if conf.Filled <= 0 {
		conf.Filled = req.Amount
	}
	if conf.AvgPrice <= 0 {
		conf.AvgPrice = plan.AnalysisPrice
	}

	monitoring.RecordTrade(plan.Symbol, string(req.Side), leg, conf.Filled)
	r.logger.Trade("%s %s %s filled %.8g @ %.4f order=%s ref=%s",
		leg, req.Side, plan.Symbol, conf.Filled, conf.AvgPrice, conf.OrderID, conf.ID)

	title := "Trade executed"
	if leg == LegClose {
		title = "Position closed"
	}
	r.notify(notifications.LevelSuccess, fmt.Sprintf("%s %s\n%s %.8g @ %.4f\nOrder: %s\nReason: %s",
		title, plan.Symbol, req.Side, conf.Filled, conf.AvgPrice, conf.OrderID, plan.Reason))
	return conf, nil
}

func (r *Router) notify(level, msg string) {
	if err := r.notifier.SendAlert(level, msg); err != nil {
		r.logger.LogWarning("Notification", "%v", err)
	}
}

// Flatten closes pos with a single reduce-only order. The slippage guard is
// skipped; halts must not be cancelled by a moving market.
func (r *Router) Flatten(ctx context.Context, symbol string, pos types.Position, marginMode, reason string) (*Confirmation, error) {
	if pos.Size <= 0 {
		return nil, nil
	}
	plan := Plan{
		Symbol:     symbol,
		Side:       pos.ClosingSide(),
		Amount:     pos.Size,
		CloseLeg:   &pos,
		MarginMode: marginMode,
		Reason:     reason,
	}
	if r.testMode {
		r.logger.Trade("[DRY RUN] would close %s %.8g %s (%s)", pos.Side, pos.Size, symbol, reason)
		return nil, nil
	}
	return r.closeLeg(ctx, plan)
}
