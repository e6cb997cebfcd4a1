package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-oracle-bot/internal/ledger"
	"github.com/ducminhle1904/crypto-oracle-bot/pkg/reporting"
)

var (
	ledgerFlag string
	xlsxFlag   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the PnL ledger",
	Long: `Show the last rows of the PnL ledger with a summary.

With --xlsx the whole ledger is exported to an Excel workbook. A bare
--xlsx writes to results/<ledger>_<timestamp>.xlsx; use --xlsx=path to choose.`,
	RunE: showHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&ledgerFlag, "ledger", "", "ledger CSV file (default: storage.ledger_file from the config)")
	historyCmd.Flags().StringVar(&xlsxFlag, "xlsx", "", "export the ledger to an .xlsx file (--xlsx=path)")
	historyCmd.Flags().Lookup("xlsx").NoOptDefVal = "auto"
}

func showHistory(cmd *cobra.Command, args []string) error {
	path := ledgerFlag
	var mirror equityHistory
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Storage.LedgerFile
		if cfg.Storage.SQLitePath != "" {
			db, err := ledger.NewSQLite(cfg.Storage.SQLitePath)
			if err != nil {
				return fmt.Errorf("open sqlite %s: %w", cfg.Storage.SQLitePath, err)
			}
			defer db.Close()
			mirror = db
		}
	}

	entries, err := loadHistory(cmd.Context(), path, mirror, -1)
	if err != nil {
		return fmt.Errorf("read ledger %s: %w", path, err)
	}
	out := cmd.OutOrStdout()
	reporting.PrintHistory(out, entries)
	if len(entries) > 0 {
		fmt.Fprintln(out, reporting.Summarize(entries))
	}

	if xlsxFlag == "" {
		return nil
	}
	dest := xlsxFlag
	if dest == "auto" {
		dest = reporting.DefaultExportPath(path, time.Now())
	}
	if err := reporting.WriteHistoryXLSX(entries, dest); err != nil {
		return err
	}
	fmt.Fprintf(out, "📊 Exported %d rows to %s\n", len(entries), dest)
	return nil
}
