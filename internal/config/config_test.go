package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "exchange": {"demo": true},
  "symbols": [
    {"symbol": "eth/usdt", "allocation": 0.5, "amount": "auto"},
    {"symbol": "BTC/USDT:USDT", "allocation": 0.5, "leverage": 3, "amount": 0.001, "min_confidence": "high"}
  ],
  "trading": {
    "timeframe": "15m",
    "risk_control": {"initial_balance_usdt": 1000, "max_profit_usdt": 100, "max_loss_rate": 0.1}
  }
}`

const sampleYAML = `
symbols:
  - symbol: SOL/USDT:USDT
    trade_mode: isolated
    leverage: 5
    allocation: 200
    amount: "0.5"
trading:
  timeframe: 1h
  min_confidence: low
  risk_control:
    initial_balance_usdt: 500
    max_loss_usdt: null
storage:
  sqlite_path: ledger.db
`

func TestParseJSONAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleJSON), ".json")
	require.NoError(t, err)

	assert.Equal(t, "bybit", cfg.Exchange.Name)
	assert.True(t, cfg.Exchange.Demo)
	assert.Equal(t, "MEDIUM", cfg.Trading.MinConfidence)
	assert.Equal(t, 1.0, cfg.Trading.MaxSlippagePercent)
	assert.Equal(t, 20, cfg.Trading.Strategy.HistoryLimit)
	assert.Equal(t, 30, cfg.Trading.Strategy.SignalLimit)
	assert.Equal(t, "bot_state.json", cfg.Storage.StateFile)
	assert.Equal(t, "pnl_history.csv", cfg.Storage.LedgerFile)
	assert.Equal(t, 60, cfg.Advisor.TimeoutSeconds)
	assert.Equal(t, 15*time.Minute, cfg.Interval())

	eth := cfg.Symbols[0]
	assert.Equal(t, "ETH/USDT", eth.Symbol)
	assert.Equal(t, TradeModeCash, eth.TradeMode)
	assert.False(t, eth.IsMargin())
	assert.Equal(t, 1, eth.Leverage)
	assert.True(t, eth.Amount.Auto)
	assert.Equal(t, "MEDIUM", eth.MinConfidence)

	btc := cfg.Symbols[1]
	assert.Equal(t, TradeModeCross, btc.TradeMode)
	assert.Equal(t, TradeModeCross, btc.MarginMode)
	assert.Equal(t, 3, btc.Leverage)
	assert.Equal(t, FixedAmount(0.001), btc.Amount)
	assert.Equal(t, "HIGH", btc.MinConfidence)

	rc := cfg.Trading.RiskControl
	require.NotNil(t, rc.MaxProfitUSDT)
	assert.Equal(t, 100.0, *rc.MaxProfitUSDT)
	assert.Nil(t, rc.MaxProfitRate)
	assert.True(t, rc.Enabled())
}

func TestParseYAML(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML), ".yaml")
	require.NoError(t, err)

	require.Len(t, cfg.Symbols, 1)
	sol := cfg.Symbols[0]
	assert.Equal(t, TradeModeIsolated, sol.TradeMode)
	assert.Equal(t, TradeModeIsolated, sol.MarginMode)
	assert.Equal(t, FixedAmount(0.5), sol.Amount)
	assert.Equal(t, "LOW", sol.MinConfidence)
	assert.Equal(t, time.Hour, cfg.Interval())
	assert.Equal(t, "ledger.db", cfg.Storage.SQLitePath)
	assert.Nil(t, cfg.Trading.RiskControl.MaxLossUSDT)
	assert.False(t, cfg.Trading.RiskControl.Enabled())

	quota, ok := sol.Quota(cfg.Trading.RiskControl.InitialBalanceUSDT)
	assert.True(t, ok)
	assert.Equal(t, 200.0, quota)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no symbols", `{"symbols": []}`},
		{"duplicate", `{"symbols": [{"symbol": "ETH/USDT"}, {"symbol": "eth/usdt"}]}`},
		{"cash with settle", `{"symbols": [{"symbol": "ETH/USDT:USDT", "trade_mode": "cash"}]}`},
		{"margin without settle", `{"symbols": [{"symbol": "ETH/USDT", "trade_mode": "cross"}]}`},
		{"bad trade mode", `{"symbols": [{"symbol": "ETH/USDT", "trade_mode": "spot"}]}`},
		{"negative amount", `{"symbols": [{"symbol": "ETH/USDT", "amount": -1}]}`},
		{"bad confidence", `{"symbols": [{"symbol": "ETH/USDT"}], "trading": {"min_confidence": "ULTRA"}}`},
		{"bad timeframe", `{"symbols": [{"symbol": "ETH/USDT"}], "trading": {"timeframe": "15x"}}`},
		{"negative threshold", `{"symbols": [{"symbol": "ETH/USDT"}], "trading": {"risk_control": {"max_loss_rate": -0.1}}}`},
		{"bad amount text", `{"symbols": [{"symbol": "ETH/USDT", "amount": "lots"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), ".json")
			assert.Error(t, err)
		})
	}
}

func TestEnvOverridesSecrets(t *testing.T) {
	t.Setenv("BYBIT_API_KEY", "key-from-env")
	t.Setenv("BYBIT_API_SECRET", "secret-from-env")
	t.Setenv("DEEPSEEK_API_KEY", "ds-from-env")

	cfg, err := Parse([]byte(`{"exchange": {"api_key": "file"}, "symbols": [{"symbol": "ETH/USDT"}]}`), ".json")
	require.NoError(t, err)
	assert.Equal(t, "key-from-env", cfg.Exchange.APIKey)
	assert.Equal(t, "secret-from-env", cfg.Exchange.APISecret)
	assert.Equal(t, "ds-from-env", cfg.Advisor.APIKey)
}

func TestLoadResolvesPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Symbols, 2)

	_, err = Load(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestQuota(t *testing.T) {
	tests := []struct {
		name       string
		allocation float64
		initial    float64
		want       float64
		ok         bool
	}{
		{"ratio of initial", 0.3, 1000, 300, true},
		{"full allocation", 1.0, 1000, 1000, true},
		{"absolute amount", 250, 0, 250, true},
		{"unknown without initial", 0.5, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, ok := SymbolConfig{Allocation: tt.allocation}.Quota(tt.initial)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, q, 1e-9)
		})
	}
}

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"1m", time.Minute, false},
		{"15m", 15 * time.Minute, false},
		{"4h", 4 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"m", 0, true},
		{"0m", 0, true},
		{"5y", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeframe(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
