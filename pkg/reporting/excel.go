package reporting

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/crypto-oracle-bot/internal/ledger"
)

const (
	historySheet = "PnL History"
	summarySheet = "Summary"
)

// ExcelStyles holds the cell styles used by the history workbook.
type ExcelStyles struct {
	HeaderStyle   int
	DateStyle     int
	CurrencyStyle int
	GainStyle     int
	LossStyle     int
}

// WriteHistoryXLSX exports ledger entries to an Excel workbook with a history
// sheet and a summary sheet.
func WriteHistoryXLSX(entries []ledger.Entry, path string) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	fx := excelize.NewFile()
	defer fx.Close()

	fx.SetSheetName(fx.GetSheetName(0), historySheet)
	if _, err := fx.NewSheet(summarySheet); err != nil {
		return err
	}

	styles, err := createExcelStyles(fx)
	if err != nil {
		return err
	}
	if err := writeHistorySheet(fx, entries, styles); err != nil {
		return err
	}
	if err := writeSummarySheet(fx, entries, styles); err != nil {
		return err
	}
	return fx.SaveAs(path)
}

func createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error
	border := []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}

	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	styles.DateStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    22, // m/d/yy h:mm
		Alignment: &excelize.Alignment{Horizontal: "left"},
		Border:    border,
	})
	if err != nil {
		return styles, err
	}

	styles.CurrencyStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7,
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    border,
	})
	if err != nil {
		return styles, err
	}

	styles.GainStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    2,
		Font:      &excelize.Font{Color: "006100"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"C6EFCE"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    border,
	})
	if err != nil {
		return styles, err
	}

	styles.LossStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    2,
		Font:      &excelize.Font{Color: "9C0006"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"FFC7CE"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    border,
	})
	return styles, err
}

func writeHistorySheet(fx *excelize.File, entries []ledger.Entry, styles ExcelStyles) error {
	headers := []string{"Time", "Total Equity (USDT)", "PnL (USDT)", "PnL %"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(historySheet, cell, h); err != nil {
			return err
		}
	}
	if err := fx.SetCellStyle(historySheet, "A1", "D1", styles.HeaderStyle); err != nil {
		return err
	}

	for i, e := range entries {
		row := i + 2
		values := []interface{}{e.Time, e.TotalEquity, e.PnL, e.PnLPercent}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := fx.SetCellValue(historySheet, cell, v); err != nil {
				return err
			}
		}
		pnlStyle := styles.GainStyle
		if e.PnL < 0 {
			pnlStyle = styles.LossStyle
		}
		a, _ := excelize.CoordinatesToCellName(1, row)
		b, _ := excelize.CoordinatesToCellName(2, row)
		c, _ := excelize.CoordinatesToCellName(3, row)
		d, _ := excelize.CoordinatesToCellName(4, row)
		if err := fx.SetCellStyle(historySheet, a, a, styles.DateStyle); err != nil {
			return err
		}
		if err := fx.SetCellStyle(historySheet, b, b, styles.CurrencyStyle); err != nil {
			return err
		}
		if err := fx.SetCellStyle(historySheet, c, d, pnlStyle); err != nil {
			return err
		}
	}

	_ = fx.SetColWidth(historySheet, "A", "A", 20)
	_ = fx.SetColWidth(historySheet, "B", "D", 18)
	return fx.SetPanes(historySheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeSummarySheet(fx *excelize.File, entries []ledger.Entry, styles ExcelStyles) error {
	s := Summarize(entries)
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Rows", s.Rows},
		{"First equity", s.FirstEquity},
		{"Last equity", s.LastEquity},
		{"Last PnL (USDT)", s.LastPnL},
		{"Last PnL %", s.LastPnLPercent},
		{"Peak equity", s.PeakEquity},
		{"Max drawdown %", s.MaxDrawdownPercent},
	}
	for i, r := range rows {
		for j, v := range r {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			if err := fx.SetCellValue(summarySheet, cell, v); err != nil {
				return err
			}
		}
	}
	if err := fx.SetCellStyle(summarySheet, "A1", "B1", styles.HeaderStyle); err != nil {
		return err
	}
	return fx.SetColWidth(summarySheet, "A", "B", 20)
}

// HistorySummary aggregates a ledger.
type HistorySummary struct {
	Rows               int
	FirstEquity        float64
	LastEquity         float64
	LastPnL            float64
	LastPnLPercent     float64
	PeakEquity         float64
	MaxDrawdownPercent float64
}

// Summarize computes first/last/peak equity and the largest peak-to-trough drop.
func Summarize(entries []ledger.Entry) HistorySummary {
	var s HistorySummary
	s.Rows = len(entries)
	if len(entries) == 0 {
		return s
	}
	first, last := entries[0], entries[len(entries)-1]
	s.FirstEquity = first.TotalEquity
	s.LastEquity = last.TotalEquity
	s.LastPnL = last.PnL
	s.LastPnLPercent = last.PnLPercent

	for _, e := range entries {
		if e.TotalEquity > s.PeakEquity {
			s.PeakEquity = e.TotalEquity
		}
		if s.PeakEquity > 0 {
			if dd := (s.PeakEquity - e.TotalEquity) / s.PeakEquity * 100; dd > s.MaxDrawdownPercent {
				s.MaxDrawdownPercent = dd
			}
		}
	}
	return s
}

func (s HistorySummary) String() string {
	return fmt.Sprintf("%d rows, equity %.2f → %.2f (peak %.2f, max drawdown %.2f%%)",
		s.Rows, s.FirstEquity, s.LastEquity, s.PeakEquity, s.MaxDrawdownPercent)
}
