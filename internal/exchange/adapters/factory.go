package adapters

import (
	"fmt"
	"strings"

	"github.com/ducminhle1904/crypto-oracle-bot/internal/config"
	botErrors "github.com/ducminhle1904/crypto-oracle-bot/internal/errors"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/logger"
)

// SupportedExchanges lists the venues NewGateway can build.
func SupportedExchanges() []string {
	return []string{"bybit"}
}

// NewGateway builds the gateway named in the exchange config.
func NewGateway(cfg config.ExchangeConfig, log *logger.Logger) (*BybitAdapter, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return NewBybitAdapter(bybit.Config{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		Testnet:   cfg.Testnet,
		Demo:      cfg.Demo,
	}, log), nil
}

func ValidateConfig(cfg config.ExchangeConfig) error {
	name := strings.ToLower(cfg.Name)
	if name != "bybit" {
		return botErrors.NewConfigurationError("exchange", "create",
			fmt.Sprintf("unsupported exchange %q, supported: %s", cfg.Name, strings.Join(SupportedExchanges(), ", ")))
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return botErrors.NewCredentialsError("exchange", "create", "BYBIT_API_KEY and BYBIT_API_SECRET are required")
	}
	if cfg.Demo && cfg.Testnet {
		return botErrors.NewConfigurationError("exchange", "create", "demo and testnet cannot both be enabled")
	}
	return nil
}
