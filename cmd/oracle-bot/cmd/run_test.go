package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-oracle-bot/internal/advisor"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/bot"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/config"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/exchange/fake"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/execution"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/ledger"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/logger"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/monitoring"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/notifications"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/risk"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/signal"
)

type stubRisk struct {
	result   risk.Result
	closeErr error
	checks   int
	closes   int
	// ctx state seen by CloseAll at call time
	closeErrAtCall error
	closeDeadline  bool
}

func (s *stubRisk) Check(ctx context.Context) risk.Result {
	s.checks++
	return s.result
}

func (s *stubRisk) CloseAll(ctx context.Context) error {
	s.closes++
	s.closeErrAtCall = ctx.Err()
	_, s.closeDeadline = ctx.Deadline()
	return s.closeErr
}

type stubTrader struct {
	symbol string
	report *bot.Report
	err    error
	runs   int
}

func (s *stubTrader) Symbol() string { return s.symbol }

func (s *stubTrader) Run(ctx context.Context) (*bot.Report, error) {
	s.runs++
	return s.report, s.err
}

type alerts struct{ sent []string }

func (a *alerts) SendAlert(level, message string) error {
	a.sent = append(a.sent, level+": "+message)
	return nil
}

func newRunner(rm riskChecker, traders ...cycleTrader) (*runner, *alerts) {
	a := &alerts{}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &runner{
		traders:     traders,
		risk:        rm,
		health:      monitoring.NewHealthChecker(time.Minute),
		notifier:    a,
		logger:      logger.Nop(),
		out:         &bytes.Buffer{},
		now:         func() time.Time { return now },
		lastHistory: now,
	}, a
}

func TestRunner_CycleRunsTradersInOrder(t *testing.T) {
	filled := &bot.Report{Outcome: &execution.Outcome{Entry: &execution.Confirmation{}}}
	a := &stubTrader{symbol: "ETH/USDT", report: filled}
	b := &stubTrader{symbol: "BTC/USDT:USDT", err: errors.New("candles: timeout")}
	c := &stubTrader{symbol: "SOL/USDT", report: &bot.Report{Skipped: "hold"}}
	rm := &stubRisk{result: risk.Result{State: risk.StateMonitoring}}
	r, _ := newRunner(rm, a, b, c)

	halted := r.cycle(context.Background())

	assert.False(t, halted)
	assert.Equal(t, 1, rm.checks)
	assert.Equal(t, []int{1, 1, 1}, []int{a.runs, b.runs, c.runs}, "a failing trader does not stop the others")
	st := r.health.Status(r.now())
	assert.Equal(t, r.now(), st.LastCycle)
	assert.Equal(t, r.now(), st.LastTrade)
	require.Len(t, st.Errors, 1)
	assert.Contains(t, st.Errors[0], "BTC/USDT:USDT")
}

func TestRunner_HaltClosesAndStops(t *testing.T) {
	tr := &stubTrader{symbol: "ETH/USDT"}
	rm := &stubRisk{result: risk.Result{
		State:      risk.StateHalted,
		Trigger:    risk.TriggerStopLossRate,
		Equity:     890,
		PnL:        -110,
		PnLPercent: -11,
		Reason:     "stop loss",
	}}
	r, a := newRunner(rm, tr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	halted := r.cycle(ctx)

	assert.True(t, halted)
	assert.Zero(t, tr.runs, "traders do not run after a halt")
	assert.Equal(t, 1, rm.closes)
	assert.NoError(t, rm.closeErrAtCall, "closing survives a cancelled parent context")
	assert.True(t, rm.closeDeadline)

	require.Len(t, a.sent, 1)
	assert.Contains(t, a.sent[0], notifications.LevelWarning)
	assert.Contains(t, a.sent[0], "STOP_LOSS_RATE")
	assert.Contains(t, a.sent[0], "890.00")
	assert.True(t, r.health.Status(r.now()).Halted)
}

func TestRunner_TakeProfitNotifiesSuccess(t *testing.T) {
	rm := &stubRisk{
		result:   risk.Result{State: risk.StateHalted, Trigger: risk.TriggerTakeProfitUSDT},
		closeErr: errors.New("ETH/USDT: rejected"),
	}
	r, a := newRunner(rm)

	assert.True(t, r.cycle(context.Background()))
	require.Len(t, a.sent, 1)
	assert.Contains(t, a.sent[0], notifications.LevelSuccess)
	assert.Contains(t, a.sent[0], "check the account manually")
}

func TestRunner_SkippedCheckStillTrades(t *testing.T) {
	tr := &stubTrader{symbol: "ETH/USDT", report: &bot.Report{}}
	r, _ := newRunner(&stubRisk{result: risk.Result{State: risk.StateInitializing, Skipped: true}}, tr)

	assert.False(t, r.cycle(context.Background()))
	assert.Equal(t, 1, tr.runs)
	assert.True(t, r.health.Status(r.now()).LastTrade.IsZero())
}

func TestRunner_PrintsHistoryHourly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pnl.csv")
	book, err := ledger.Open(path)
	require.NoError(t, err)
	require.NoError(t, book.Append(ledger.Entry{Time: time.Now(), TotalEquity: 1000}))
	require.NoError(t, book.Close())

	r, _ := newRunner(&stubRisk{result: risk.Result{State: risk.StateMonitoring}})
	r.ledgerPath = path
	out := r.out.(*bytes.Buffer)

	r.cycle(context.Background())
	assert.Empty(t, out.String())

	later := r.now().Add(time.Hour)
	r.now = func() time.Time { return later }
	r.cycle(context.Background())
	assert.Contains(t, out.String(), "PNL HISTORY")
}

func TestLoadHistory_FallsBackToMirror(t *testing.T) {
	dir := t.TempDir()
	db, err := ledger.NewSQLite(filepath.Join(dir, "oracle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, db.RecordEquity(ledger.Entry{Time: start.Add(time.Duration(i) * time.Hour), TotalEquity: 1000 + float64(i)}))
	}

	csvPath := filepath.Join(dir, "pnl.csv")
	book, err := ledger.Open(csvPath)
	require.NoError(t, err)
	require.NoError(t, book.Append(ledger.Entry{Time: start, TotalEquity: 500}))
	require.NoError(t, book.Close())

	tests := []struct {
		name   string
		path   string
		mirror equityHistory
		limit  int
		want   []float64
	}{
		{"csv wins when it has rows", csvPath, db, 10, []float64{500}},
		{"missing csv uses the mirror", filepath.Join(dir, "gone.csv"), db, 10, []float64{1000, 1001, 1002}},
		{"mirror honours the limit", filepath.Join(dir, "gone.csv"), db, 2, []float64{1001, 1002}},
		{"no mirror", filepath.Join(dir, "gone.csv"), nil, 10, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := loadHistory(context.Background(), tt.path, tt.mirror, tt.limit)
			require.NoError(t, err)
			var got []float64
			for _, e := range entries {
				got = append(got, e.TotalEquity)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunner_PrintsHistoryFromMirror(t *testing.T) {
	db, err := ledger.NewSQLite(filepath.Join(t.TempDir(), "oracle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RecordEquity(ledger.Entry{Time: time.Now(), TotalEquity: 1234.5}))

	r, _ := newRunner(&stubRisk{result: risk.Result{State: risk.StateMonitoring}})
	r.ledgerPath = filepath.Join(t.TempDir(), "missing.csv")
	r.mirror = db
	r.lastHistory = r.now().Add(-time.Hour)

	r.cycle(context.Background())
	out := r.out.(*bytes.Buffer).String()
	assert.Contains(t, out, "PNL HISTORY")
	assert.Contains(t, out, "1234.50")
}

func TestTraded(t *testing.T) {
	tests := []struct {
		name string
		rep  *bot.Report
		want bool
	}{
		{"nil report", nil, false},
		{"held", &bot.Report{}, false},
		{"dry run", &bot.Report{Outcome: &execution.Outcome{DryRun: true}}, false},
		{"cancelled", &bot.Report{Outcome: &execution.Outcome{Cancelled: true}}, false},
		{"close only", &bot.Report{Outcome: &execution.Outcome{Close: &execution.Confirmation{}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, traded(tt.rep))
		})
	}
}

func TestBuildNotifier(t *testing.T) {
	assert.Equal(t, notifications.Nop{}, buildNotifier(config.NotificationConfig{WebhookURL: "http://x"}))
	assert.Equal(t, notifications.Nop{}, buildNotifier(config.NotificationConfig{Enabled: true}))

	n := buildNotifier(config.NotificationConfig{
		Enabled:       true,
		WebhookURL:    "http://localhost/hook",
		TelegramToken: "token",
		TelegramChat:  "42",
	})
	multi, ok := n.(notifications.Multi)
	require.True(t, ok)
	assert.Len(t, multi, 2)
}

func TestLimitText(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	assert.Equal(t, "off", limitText(nil, f(0)))
	assert.Equal(t, "100.00 USDT", limitText(f(100), nil))
	assert.Equal(t, "100.00 USDT or 5.00%", limitText(f(100), f(0.05)))
}

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pnl.csv")
	book, err := ledger.Open(path)
	require.NoError(t, err)
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local)
	for i, eq := range []float64{1000, 1050} {
		require.NoError(t, book.Append(ledger.Entry{Time: start.Add(time.Duration(i) * time.Hour), TotalEquity: eq, PnL: eq - 1000}))
	}
	require.NoError(t, book.Close())
	xlsx := filepath.Join(dir, "out.xlsx")

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"history", "--ledger", path, "--xlsx=" + xlsx})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		ledgerFlag, xlsxFlag = "", ""
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "PNL HISTORY")
	assert.Contains(t, buf.String(), "2 rows")
	assert.Contains(t, buf.String(), "Exported 2 rows")
	assert.FileExists(t, xlsx)
}

type pingAdvisor struct{ err error }

func (p pingAdvisor) Propose(ctx context.Context, in advisor.Context) (*signal.Signal, error) {
	return nil, errors.New("not used")
}

func (p pingAdvisor) Ping(ctx context.Context) error { return p.err }

func TestSelfCheck(t *testing.T) {
	gw := fake.New()
	gw.SetUSDT(80, 100)
	gw.SetHolding("ETH", 0.5)
	gw.SetHolding("DOGE", 50)
	cfg := &config.Config{Symbols: []config.SymbolConfig{{Symbol: "ETH/USDT"}}}

	var buf bytes.Buffer
	selfCheck(context.Background(), gw, pingAdvisor{}, cfg, logger.NewWriter("MAIN", &buf))
	out := buf.String()
	assert.Contains(t, out, "USDT equity 100.00, free 80.00")
	assert.Contains(t, out, "Unmanaged asset DOGE")
	assert.NotContains(t, out, "Unmanaged asset ETH")
	assert.Contains(t, out, "Advisor reachable")

	buf.Reset()
	gw.Errors["Balance"] = errors.New("invalid api key")
	selfCheck(context.Background(), gw, pingAdvisor{err: errors.New("401")}, cfg, logger.NewWriter("MAIN", &buf))
	out = buf.String()
	assert.Contains(t, out, "startup balance")
	assert.Contains(t, out, "startup advisor")
	assert.NotContains(t, out, "Advisor reachable")
}
