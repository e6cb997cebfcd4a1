package reporting

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/crypto-oracle-bot/internal/ledger"
)

// HistoryRows is how many ledger rows the PnL history table shows.
const HistoryRows = 10

const barWidth = 20

// AssetRow is one symbol in the startup asset table.
type AssetRow struct {
	Symbol       string
	Mode         string
	Allocation   float64
	Quota        float64
	QuotaKnown   bool
	Price        float64
	Side         string // long/short for derivatives, empty for spot
	Holding      float64
	Value        float64
	UsagePercent float64
	EntryPrice   float64
	PnLPercent   float64
}

// Summary is the account overview printed with the asset table.
type Summary struct {
	Exchange  string
	Timeframe string
	DryRun    bool
	Equity    float64
	Baseline  float64
}

// PrintAssets renders the startup asset table.
func PrintAssets(w io.Writer, sum Summary, rows []AssetRow) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("PORTFOLIO")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Symbol", "Mode", "Alloc", "Quota", "Holding", "Value", "Usage", "Entry", "Est. PnL"})

	for _, r := range rows {
		holding := fmt.Sprintf("%.6g", r.Holding)
		if r.Side != "" && r.Holding > 0 {
			holding = fmt.Sprintf("%s %.6g", r.Side, r.Holding)
		}
		quota, usage := "n/a", "n/a"
		if r.QuotaKnown {
			quota = fmt.Sprintf("$%.2f", r.Quota)
			usage = fmt.Sprintf("%.1f%%", r.UsagePercent)
		}
		entry, pnl := "-", "-"
		if r.EntryPrice > 0 && r.Holding > 0 {
			entry = fmt.Sprintf("%.4f", r.EntryPrice)
			pnl = signed(r.PnLPercent) + "%"
		}
		t.AppendRow(table.Row{
			r.Symbol, r.Mode, allocation(r.Allocation), quota, holding,
			fmt.Sprintf("$%.2f", r.Value), usage, entry, pnl,
		})
	}

	t.AppendFooter(table.Row{"Equity", fmt.Sprintf("$%.2f", sum.Equity), "Baseline", fmt.Sprintf("$%.2f", sum.Baseline), "", "", "", sum.Exchange, sum.Timeframe})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 9, Align: text.AlignRight},
	})
	t.Render()
	if sum.DryRun {
		fmt.Fprintln(w, "DRY RUN: orders are logged, not placed")
	}
	fmt.Fprintln(w)
}

// PrintHistory renders the last HistoryRows ledger entries with a PnL bar scaled
// to the largest absolute PnL shown.
func PrintHistory(w io.Writer, entries []ledger.Entry) {
	entries = ledger.Tail(entries, HistoryRows)
	if len(entries) == 0 {
		fmt.Fprintln(w, "No PnL history yet")
		return
	}

	maxAbs := 0.0
	for _, e := range entries {
		maxAbs = math.Max(maxAbs, math.Abs(e.PnL))
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("PNL HISTORY")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Time", "Equity", "PnL", "PnL %", ""})
	for _, e := range entries {
		t.AppendRow(table.Row{
			e.Time.Format(ledger.TimeLayout),
			fmt.Sprintf("$%.2f", e.TotalEquity),
			signed(e.PnL),
			signed(e.PnLPercent) + "%",
			Bar(e.PnL, maxAbs, barWidth),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	t.Render()
	fmt.Fprintln(w)
}

// Bar draws v as a bar of up to width cells relative to maxAbs.
// Gains use '+' and losses '-'.
func Bar(v, maxAbs float64, width int) string {
	if maxAbs <= 0 || v == 0 || width <= 0 {
		return ""
	}
	n := int(math.Round(math.Abs(v) / maxAbs * float64(width)))
	if n == 0 {
		n = 1
	}
	if v < 0 {
		return strings.Repeat("-", n)
	}
	return strings.Repeat("+", n)
}

// ConfigLine is one key/value pair of the configuration summary.
type ConfigLine struct {
	Key   string
	Value string
}

// PrintConfig renders a two column configuration summary.
func PrintConfig(w io.Writer, title string, lines []ConfigLine) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	for i, l := range lines {
		if l.Key == "" {
			if i > 0 {
				t.AppendSeparator()
			}
			continue
		}
		t.AppendRow(table.Row{l.Key, l.Value})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 22, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 50, Align: text.AlignLeft},
	})
	t.Render()
	fmt.Fprintln(w)
}

func allocation(a float64) string {
	if a > 1 {
		return fmt.Sprintf("$%.2f", a)
	}
	return fmt.Sprintf("%.0f%%", a*100)
}

func signed(v float64) string {
	if v > 0 {
		return fmt.Sprintf("+%.2f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
