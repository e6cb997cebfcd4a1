package reporting

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/crypto-oracle-bot/internal/ledger"
)

func sampleEntries() []ledger.Entry {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	equities := []float64{1000, 1040, 980, 1100}
	out := make([]ledger.Entry, len(equities))
	for i, eq := range equities {
		out[i] = ledger.Entry{
			Time:        start.Add(time.Duration(i) * 15 * time.Minute),
			TotalEquity: eq,
			PnL:         eq - 1000,
			PnLPercent:  (eq - 1000) / 10,
		}
	}
	return out
}

func TestBar(t *testing.T) {
	tests := []struct {
		name   string
		v, max float64
		want   string
	}{
		{"full gain", 50, 50, strings.Repeat("+", 10)},
		{"half loss", -25, 50, strings.Repeat("-", 5)},
		{"tiny still visible", 0.01, 50, "+"},
		{"zero", 0, 50, ""},
		{"no scale", 10, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Bar(tt.v, tt.max, 10))
		})
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleEntries())
	assert.Equal(t, 4, s.Rows)
	assert.Equal(t, 1000.0, s.FirstEquity)
	assert.Equal(t, 1100.0, s.LastEquity)
	assert.Equal(t, 1100.0, s.PeakEquity)
	assert.InDelta(t, 5.769, s.MaxDrawdownPercent, 0.001) // 1040 → 980
	assert.Equal(t, HistorySummary{}, Summarize(nil))
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	PrintHistory(&buf, sampleEntries())
	out := buf.String()
	assert.Contains(t, out, "PNL HISTORY")
	assert.Contains(t, out, "2025-03-01 12:45:00")
	assert.Contains(t, out, "+100.00")
	assert.Contains(t, out, "-20.00")

	buf.Reset()
	PrintHistory(&buf, nil)
	assert.Contains(t, buf.String(), "No PnL history yet")
}

func TestPrintHistory_LastRowsOnly(t *testing.T) {
	var entries []ledger.Entry
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < HistoryRows+5; i++ {
		entries = append(entries, ledger.Entry{Time: start.Add(time.Duration(i) * time.Hour), TotalEquity: 1000})
	}
	var buf bytes.Buffer
	PrintHistory(&buf, entries)
	assert.NotContains(t, buf.String(), "2025-01-01 00:00:00")
	assert.Contains(t, buf.String(), "2025-01-01 14:00:00")
}

func TestPrintAssets(t *testing.T) {
	var buf bytes.Buffer
	PrintAssets(&buf, Summary{Exchange: "bybit", Timeframe: "15m", DryRun: true, Equity: 1200, Baseline: 1000}, []AssetRow{
		{Symbol: "ETH/USDT", Mode: "cash", Allocation: 0.5, Quota: 500, QuotaKnown: true, Holding: 0.1, Value: 200, UsagePercent: 40, EntryPrice: 1900, PnLPercent: 5.26},
		{Symbol: "BTC/USDT:USDT", Mode: "cross", Allocation: 0.5, Side: "short", Holding: 0.01},
	})
	out := buf.String()
	assert.Contains(t, out, "ETH/USDT")
	assert.Contains(t, out, "40.0%")
	assert.Contains(t, out, "+5.26%")
	assert.Contains(t, out, "short 0.01")
	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "DRY RUN")
}

func TestPrintConfig(t *testing.T) {
	var buf bytes.Buffer
	PrintConfig(&buf, "BOT CONFIGURATION", []ConfigLine{
		{Key: "Exchange", Value: "bybit (demo)"},
		{},
		{Key: "Timeframe", Value: "15m"},
	})
	assert.Contains(t, buf.String(), "BOT CONFIGURATION")
	assert.Contains(t, buf.String(), "bybit (demo)")
}

func TestWriteHistoryXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "history.xlsx")
	require.NoError(t, WriteHistoryXLSX(sampleEntries(), path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	assert.Equal(t, []string{historySheet, summarySheet}, fx.GetSheetList())

	header, err := fx.GetCellValue(historySheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Time", header)

	rows, err := fx.GetRows(historySheet)
	require.NoError(t, err)
	assert.Len(t, rows, 5)

	eq, err := fx.GetCellValue(historySheet, "B5", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "1100", eq)

	count, err := fx.GetCellValue(summarySheet, "B2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "4", count)
}

func TestDefaultExportPath(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, filepath.Join("results", "pnl_history_20250301_093000.xlsx"), DefaultExportPath("data/pnl_history.csv", now))
}
