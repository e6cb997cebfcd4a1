package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-oracle-bot/internal/advisor"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/bot"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/config"
	boterrors "github.com/ducminhle1904/crypto-oracle-bot/internal/errors"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/exchange/adapters"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/ledger"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/logger"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/monitoring"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/notifications"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/risk"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/state"
	"github.com/ducminhle1904/crypto-oracle-bot/pkg/reporting"
)

const (
	// TraderPause separates symbol traders within a cycle.
	TraderPause = time.Second
	// HaltCloseTimeout bounds flattening after a kill-switch trigger.
	HaltCloseTimeout = 2 * time.Minute
	historyEvery     = time.Hour
	tickerMaxAge     = 30 * time.Second
)

var (
	demoFlag   bool
	dryRunFlag bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the trading loop",
	Long: `Start the trading loop.

The bot runs one cycle immediately and then one per candle interval until
interrupted or until a take-profit or stop-loss limit halts it. A halt
closes every managed position and exits.`,
	RunE: runBot,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&demoFlag, "demo", false, "use the Bybit demo environment")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "log orders instead of placing them")
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("demo") {
		cfg.Exchange.Demo = demoFlag
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.Trading.TestMode = dryRunFlag
	}

	log, err := logger.New("oracle-bot", cfg.Trading.Timeframe)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Close()
	out := cmd.OutOrStdout()

	gw, err := adapters.NewGateway(cfg.Exchange, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Exchange.Stream {
		symbols := make([]string, 0, len(cfg.Symbols))
		for _, s := range cfg.Symbols {
			symbols = append(symbols, s.Symbol)
		}
		if err := gw.StartStreams(ctx, symbols, cfg.Exchange.Testnet, tickerMaxAge); err != nil {
			log.LogWarning("streams", "ticker stream unavailable, using REST: %v", err)
		}
	}

	adv, err := advisor.NewChatClient(cfg.Advisor)
	if err != nil {
		return err
	}
	notifier := buildNotifier(cfg.Trading.Notification)

	store, err := state.Open(cfg.Storage.StateFile)
	if err != nil {
		log.LogWarning("state", "%v; starting without a persisted baseline", err)
	}
	defer store.Close()

	book, err := ledger.Open(cfg.Storage.LedgerFile)
	if err != nil {
		return err
	}
	defer book.Close()

	var (
		journal bot.TradeJournal
		mirror  equityHistory
	)
	if cfg.Storage.SQLitePath != "" {
		db, err := ledger.NewSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			log.LogWarning("sqlite", "mirror disabled: %v", err)
		} else {
			book.SetMirror(db)
			journal = db
			mirror = db
		}
	}

	health := monitoring.NewHealthChecker(cfg.Interval())
	if addr := cfg.Monitoring.ListenAddr; addr != "" {
		go func() {
			if err := monitoring.Serve(ctx, addr, health); err != nil {
				log.LogError("monitoring", err)
			}
		}()
		log.Info("📈 Metrics and health on %s", addr)
	}

	reporting.PrintConfig(out, "BOT CONFIGURATION", configLines(cfg, gw.Environment()))

	selfCheck(ctx, gw, adv, cfg, log)

	deps := bot.Deps{Gateway: gw, Advisor: adv, Notifier: notifier, Logger: log, Journal: journal}
	traders := make([]*bot.Trader, 0, len(cfg.Symbols))
	riskTraders := make([]risk.Trader, 0, len(cfg.Symbols))
	for _, sc := range cfg.Symbols {
		tr, err := bot.NewTrader(sc, cfg.Trading, deps)
		if err != nil {
			return err
		}
		if err := tr.Setup(ctx); err != nil {
			return err
		}
		traders = append(traders, tr)
		riskTraders = append(riskTraders, tr)
	}

	rm := risk.NewManager(gw, risk.Options{
		Config:    cfg.Trading.RiskControl,
		Store:     store,
		Recorder:  book,
		Traders:   riskTraders,
		Timeframe: cfg.Trading.Timeframe,
		Logger:    log,
	})
	val, err := rm.Initialize(ctx)
	if err != nil {
		log.LogWarning("risk", "initial valuation failed, retrying on the first cycle: %v", err)
	}
	printAssets(ctx, out, cfg, gw, traders, rm, val, log)
	printHistory(ctx, out, book.Path(), mirror, log)

	notify(notifier, log, notifications.LevelInfo, fmt.Sprintf("oracle-bot started on %s: %d symbols, %s, dry run %v",
		gw.Environment(), len(traders), cfg.Trading.Timeframe, cfg.Trading.TestMode))

	r := &runner{
		traders:     make([]cycleTrader, 0, len(traders)),
		risk:        rm,
		health:      health,
		notifier:    notifier,
		logger:      log,
		out:         out,
		ledgerPath:  book.Path(),
		mirror:      mirror,
		pause:       TraderPause,
		now:         time.Now,
		lastHistory: time.Now(),
	}
	for _, t := range traders {
		r.traders = append(r.traders, t)
	}
	return r.loop(ctx, cfg.Interval())
}

type cycleTrader interface {
	Symbol() string
	Run(ctx context.Context) (*bot.Report, error)
}

type riskChecker interface {
	Check(ctx context.Context) risk.Result
	CloseAll(ctx context.Context) error
}

// runner drives the per-interval cycle: risk check first, then every trader in order.
type runner struct {
	traders  []cycleTrader
	risk     riskChecker
	health   *monitoring.HealthChecker
	notifier notifications.Notifier
	logger   *logger.Logger
	out      io.Writer

	ledgerPath  string
	mirror      equityHistory
	pause       time.Duration
	now         func() time.Time
	lastHistory time.Time
}

func (r *runner) loop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if r.cycle(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			r.logger.Info("🛑 Shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

// cycle runs one interval and reports whether the bot halted.
func (r *runner) cycle(ctx context.Context) bool {
	res := r.risk.Check(ctx)
	if res.Halted() {
		r.halt(ctx, res)
		return true
	}

	for i, t := range r.traders {
		if ctx.Err() != nil {
			return false
		}
		if i > 0 && r.pause > 0 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(r.pause):
			}
		}
		rep, err := t.Run(ctx)
		if err != nil {
			botErr := boterrors.CategorizeError(err, "trader", "run")
			r.logger.LogError(t.Symbol(), err)
			r.health.RecordError(fmt.Sprintf("%s: %v", t.Symbol(), err))
			monitoring.RecordError(string(botErr.Category))
			continue
		}
		if traded(rep) {
			r.health.TradeExecuted(r.now())
		}
	}

	now := r.now()
	r.health.CycleCompleted(now)
	if now.Sub(r.lastHistory) >= historyEvery {
		printHistory(ctx, r.out, r.ledgerPath, r.mirror, r.logger)
		r.lastHistory = now
	}
	return false
}

func (r *runner) halt(ctx context.Context, res risk.Result) {
	r.health.Halted(res.Reason)
	r.logger.Warning("🛑 %s triggered: %s", res.Trigger, res.Reason)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), HaltCloseTimeout)
	defer cancel()
	closeErr := r.risk.CloseAll(closeCtx)
	if closeErr != nil {
		r.logger.LogError("close all", closeErr)
	}

	msg := fmt.Sprintf("Trading halted by %s\n%s\nFinal equity: %.2f USDT\nPnL: %+.2f USDT (%+.2f%%)",
		res.Trigger, res.Reason, res.Equity, res.PnL, res.PnLPercent)
	if closeErr != nil {
		msg += "\nSome positions failed to close, check the account manually"
	}
	level := notifications.LevelWarning
	if strings.HasPrefix(string(res.Trigger), "TAKE_PROFIT") {
		level = notifications.LevelSuccess
	}
	notify(r.notifier, r.logger, level, msg)
}

func traded(rep *bot.Report) bool {
	if rep == nil || rep.Outcome == nil || rep.Outcome.DryRun {
		return false
	}
	return rep.Outcome.Entry != nil || rep.Outcome.Close != nil
}

func notify(n notifications.Notifier, log *logger.Logger, level, msg string) {
	if n == nil {
		return
	}
	if err := n.SendAlert(level, msg); err != nil {
		log.LogWarning("notify", "alert not delivered: %v", err)
	}
}

func buildNotifier(cfg config.NotificationConfig) notifications.Notifier {
	if !cfg.Enabled {
		return notifications.Nop{}
	}
	var sinks notifications.Multi
	if cfg.WebhookURL != "" {
		sinks = append(sinks, notifications.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramToken != "" && cfg.TelegramChat != "" {
		sinks = append(sinks, notifications.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChat))
	}
	if len(sinks) == 0 {
		return notifications.Nop{}
	}
	return sinks
}

// selfCheck reports account and advisor status before any trader starts.
// Failures are logged; traders still start and retry on their own cycles.
func selfCheck(ctx context.Context, gw exchange.MarketGateway, adv advisor.Advisor, cfg *config.Config, log *logger.Logger) {
	callCtx, cancel := context.WithTimeout(ctx, bot.CallTimeout)
	defer cancel()

	balances, err := gw.Balance(callCtx)
	if err != nil {
		log.LogError("startup balance", boterrors.CategorizeError(err, "startup", "balance"))
	} else {
		usdt := balances[risk.QuoteAsset]
		log.Info("💰 USDT equity %.2f, free %.2f", risk.QuoteEquity(usdt), usdt.Free)

		managed := make(map[string]bool)
		for _, sc := range cfg.Symbols {
			if sym, err := exchange.ParseSymbol(sc.Symbol); err == nil {
				managed[sym.Base] = true
			}
		}
		for asset, b := range balances {
			if asset != risk.QuoteAsset && !managed[asset] && b.Total > 0 {
				log.Info("ℹ️  Unmanaged asset %s: %.8f (not traded, not valued)", asset, b.Total)
			}
		}
	}

	if p, ok := adv.(advisor.Pinger); ok {
		if err := p.Ping(callCtx); err != nil {
			log.LogError("startup advisor", boterrors.WrapError(err, boterrors.ErrorCategoryAdvisor, "startup", "ping"))
		} else {
			log.Info("🤖 Advisor reachable")
		}
	}
}

func configLines(cfg *config.Config, env string) []reporting.ConfigLine {
	rc := cfg.Trading.RiskControl
	lines := []reporting.ConfigLine{
		{Key: "Exchange", Value: fmt.Sprintf("%s (%s)", cfg.Exchange.Name, env)},
		{Key: "Advisor", Value: cfg.Advisor.Model},
		{Key: "Timeframe", Value: cfg.Trading.Timeframe},
		{Key: "Dry run", Value: fmt.Sprintf("%v", cfg.Trading.TestMode)},
		{Key: "Min confidence", Value: cfg.Trading.MinConfidence},
		{Key: "Max slippage", Value: fmt.Sprintf("%.2f%%", cfg.Trading.MaxSlippagePercent)},
		{},
		{Key: "Initial balance", Value: fmt.Sprintf("%.2f USDT", rc.InitialBalanceUSDT)},
		{Key: "Take profit", Value: limitText(rc.MaxProfitUSDT, rc.MaxProfitRate)},
		{Key: "Stop loss", Value: limitText(rc.MaxLossUSDT, rc.MaxLossRate)},
		{},
	}
	for _, sc := range cfg.Symbols {
		v := sc.TradeMode
		if sc.IsMargin() {
			v = fmt.Sprintf("%s %dx", sc.TradeMode, sc.Leverage)
		}
		lines = append(lines, reporting.ConfigLine{Key: sc.Symbol, Value: fmt.Sprintf("%s, allocation %g, amount %s", v, sc.Allocation, sc.Amount)})
	}
	return lines
}

func limitText(usdt, rate *float64) string {
	var parts []string
	if usdt != nil && *usdt > 0 {
		parts = append(parts, fmt.Sprintf("%.2f USDT", *usdt))
	}
	if rate != nil && *rate > 0 {
		parts = append(parts, fmt.Sprintf("%.2f%%", *rate*100))
	}
	if len(parts) == 0 {
		return "off"
	}
	return strings.Join(parts, " or ")
}

func printAssets(ctx context.Context, out io.Writer, cfg *config.Config, gw exchange.MarketGateway, traders []*bot.Trader, rm *risk.Manager, val risk.Valuation, log *logger.Logger) {
	rows := make([]reporting.AssetRow, 0, len(traders))
	for _, t := range traders {
		price, ok := val.Prices[t.Symbol()]
		if !ok {
			callCtx, cancel := context.WithTimeout(ctx, bot.CallTimeout)
			p, err := gw.Ticker(callCtx, t.Symbol())
			cancel()
			if err != nil {
				log.LogWarning("assets", "%s price unavailable: %v", t.Symbol(), err)
			}
			price = p
		}
		row, err := t.Asset(ctx, price)
		if err != nil {
			log.LogWarning("assets", "%s holding unavailable: %v", t.Symbol(), err)
		}
		rows = append(rows, row)
	}
	reporting.PrintAssets(out, reporting.Summary{
		Exchange:  gw.Name(),
		Timeframe: cfg.Trading.Timeframe,
		DryRun:    cfg.Trading.TestMode,
		Equity:    val.Total,
		Baseline:  rm.Baseline(),
	}, rows)
}

// equityHistory is the read side of the SQLite mirror.
type equityHistory interface {
	RecentEquity(ctx context.Context, limit int) ([]ledger.Entry, error)
}

// loadHistory reads the CSV ledger, falling back to the mirror when the file
// cannot be read or holds no rows.
func loadHistory(ctx context.Context, path string, mirror equityHistory, limit int) ([]ledger.Entry, error) {
	entries, err := ledger.ReadAll(path)
	if mirror == nil || (err == nil && len(entries) > 0) {
		return entries, err
	}
	rows, merr := mirror.RecentEquity(ctx, limit)
	if merr != nil {
		return entries, errors.Join(err, fmt.Errorf("sqlite mirror: %w", merr))
	}
	return rows, nil
}

func printHistory(ctx context.Context, out io.Writer, path string, mirror equityHistory, log *logger.Logger) {
	entries, err := loadHistory(ctx, path, mirror, reporting.HistoryRows)
	if err != nil {
		log.LogWarning("history", "%v", err)
		return
	}
	reporting.PrintHistory(out, entries)
}
