package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-oracle-bot/internal/config"
)

var (
	configFile string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "oracle-bot",
	Short: "Advisor-driven crypto trading bot with account-wide risk control",
	Long: `oracle-bot trades a set of spot and perpetual symbols on Bybit.

Every candle interval it checks account equity against take-profit and
stop-loss limits, then asks the advisor model for a signal per symbol,
filters it by confidence and fees, sizes it within the symbol's capital
quota and places market orders.

Examples:
  oracle-bot run --config configs/config.json --dry-run
  oracle-bot history --config configs/config.json --xlsx`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.json", "config file (JSON or YAML); bare names are looked up in configs/")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "environment file with API secrets")
}

// loadConfig reads the env file, then the config, so env secrets override the file.
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				fmt.Fprintf(os.Stderr, "⚠️  Could not load %s: %v\n", envFile, err)
			}
		}
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
