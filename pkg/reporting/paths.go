package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultExportPath derives an .xlsx path in results/ from the ledger file name.
func DefaultExportPath(ledgerFile string, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(ledgerFile), filepath.Ext(ledgerFile))
	if base == "" || base == "." {
		base = "pnl_history"
	}
	return filepath.Join("results", fmt.Sprintf("%s_%s.xlsx", base, now.Format("20060102_150405")))
}

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
