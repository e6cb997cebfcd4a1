package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Trade modes. cash trades spot; cross and isolated trade linear perpetuals.
const (
	TradeModeCash     = "cash"
	TradeModeCross    = "cross"
	TradeModeIsolated = "isolated"
)

// Config is the complete bot configuration.
type Config struct {
	Exchange   ExchangeConfig   `json:"exchange" yaml:"exchange"`
	Advisor    AdvisorConfig    `json:"advisor" yaml:"advisor"`
	Symbols    []SymbolConfig   `json:"symbols" yaml:"symbols"`
	Trading    TradingConfig    `json:"trading" yaml:"trading"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Monitoring MonitoringConfig `json:"monitoring" yaml:"monitoring"`
}

type ExchangeConfig struct {
	Name      string `json:"name" yaml:"name"`
	APIKey    string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APISecret string `json:"api_secret,omitempty" yaml:"api_secret,omitempty"`
	Testnet   bool   `json:"testnet" yaml:"testnet"`
	Demo      bool   `json:"demo" yaml:"demo"`
	// Stream enables the public websocket ticker feed.
	Stream bool `json:"stream" yaml:"stream"`
}

type AdvisorConfig struct {
	BaseURL        string  `json:"base_url" yaml:"base_url"`
	Model          string  `json:"model" yaml:"model"`
	APIKey         string  `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	TimeoutSeconds int     `json:"timeout_seconds" yaml:"timeout_seconds"`
	Temperature    float64 `json:"temperature" yaml:"temperature"`
}

// SymbolConfig is immutable after Load.
type SymbolConfig struct {
	Symbol        string  `json:"symbol" yaml:"symbol"`
	TradeMode     string  `json:"trade_mode" yaml:"trade_mode"`
	MarginMode    string  `json:"margin_mode" yaml:"margin_mode"`
	Leverage      int     `json:"leverage" yaml:"leverage"`
	Allocation    float64 `json:"allocation" yaml:"allocation"`
	Amount        Amount  `json:"amount" yaml:"amount"`
	MinConfidence string  `json:"min_confidence,omitempty" yaml:"min_confidence,omitempty"`
}

// IsMargin reports whether the symbol trades derivatives.
func (s SymbolConfig) IsMargin() bool {
	return s.TradeMode != TradeModeCash
}

// Quota returns the capital assigned to this symbol. ok is false when no
// initial balance is configured and the quota is unknown.
func (s SymbolConfig) Quota(initialBalance float64) (quota float64, ok bool) {
	if s.Allocation > 1 {
		return s.Allocation, true
	}
	if initialBalance <= 0 {
		return 0, false
	}
	return initialBalance * s.Allocation, true
}

type TradingConfig struct {
	Timeframe          string             `json:"timeframe" yaml:"timeframe"`
	TestMode           bool               `json:"test_mode" yaml:"test_mode"`
	MinConfidence      string             `json:"min_confidence" yaml:"min_confidence"`
	MaxSlippagePercent float64            `json:"max_slippage_percent" yaml:"max_slippage_percent"`
	Strategy           StrategyConfig     `json:"strategy" yaml:"strategy"`
	RiskControl        RiskControlConfig  `json:"risk_control" yaml:"risk_control"`
	Notification       NotificationConfig `json:"notification" yaml:"notification"`
}

type StrategyConfig struct {
	HistoryLimit int `json:"history_limit" yaml:"history_limit"`
	SignalLimit  int `json:"signal_limit" yaml:"signal_limit"`
}

// RiskControlConfig holds the account-wide kill-switch thresholds. A nil or
// zero threshold never triggers. Rates are fractions (0.1 = 10%).
type RiskControlConfig struct {
	InitialBalanceUSDT float64  `json:"initial_balance_usdt" yaml:"initial_balance_usdt"`
	MaxProfitUSDT      *float64 `json:"max_profit_usdt" yaml:"max_profit_usdt"`
	MaxProfitRate      *float64 `json:"max_profit_rate" yaml:"max_profit_rate"`
	MaxLossUSDT        *float64 `json:"max_loss_usdt" yaml:"max_loss_usdt"`
	MaxLossRate        *float64 `json:"max_loss_rate" yaml:"max_loss_rate"`
}

type NotificationConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	WebhookURL    string `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty"`
	TelegramToken string `json:"telegram_token,omitempty" yaml:"telegram_token,omitempty"`
	TelegramChat  string `json:"telegram_chat,omitempty" yaml:"telegram_chat,omitempty"`
}

type StorageConfig struct {
	StateFile  string `json:"state_file" yaml:"state_file"`
	LedgerFile string `json:"ledger_file" yaml:"ledger_file"`
	SQLitePath string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
}

type MonitoringConfig struct {
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
}

// Load reads a JSON or YAML config file, applies env overrides and defaults, and validates.
// A bare file name is looked up in configs/.
func Load(configFile string) (*Config, error) {
	if !strings.ContainsAny(configFile, "/\\") {
		configFile = filepath.Join("configs", configFile)
	}
	if filepath.Ext(configFile) == "" {
		configFile += ".json"
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	cfg, err := Parse(data, filepath.Ext(configFile))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data as YAML when ext is .yaml or .yml and as JSON otherwise.
func Parse(data []byte, ext string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// applyEnv fills secrets from the environment. Env wins over file values.
func (c *Config) applyEnv() {
	c.Exchange.APIKey = getEnv("BYBIT_API_KEY", c.Exchange.APIKey)
	c.Exchange.APISecret = getEnv("BYBIT_API_SECRET", c.Exchange.APISecret)
	c.Advisor.APIKey = getEnv("DEEPSEEK_API_KEY", c.Advisor.APIKey)
	c.Trading.Notification.WebhookURL = getEnv("WEBHOOK_URL", c.Trading.Notification.WebhookURL)
	c.Trading.Notification.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", c.Trading.Notification.TelegramToken)
	c.Trading.Notification.TelegramChat = getEnv("TELEGRAM_CHAT_ID", c.Trading.Notification.TelegramChat)
}

func (c *Config) setDefaults() {
	if c.Exchange.Name == "" {
		c.Exchange.Name = "bybit"
	}
	if c.Advisor.BaseURL == "" {
		c.Advisor.BaseURL = "https://api.deepseek.com"
	}
	if c.Advisor.Model == "" {
		c.Advisor.Model = "deepseek-chat"
	}
	if c.Advisor.TimeoutSeconds == 0 {
		c.Advisor.TimeoutSeconds = 60
	}
	if c.Advisor.Temperature == 0 {
		c.Advisor.Temperature = 0.1
	}

	if c.Trading.Timeframe == "" {
		c.Trading.Timeframe = "15m"
	}
	if c.Trading.MinConfidence == "" {
		c.Trading.MinConfidence = "MEDIUM"
	}
	c.Trading.MinConfidence = strings.ToUpper(c.Trading.MinConfidence)
	if c.Trading.MaxSlippagePercent == 0 {
		c.Trading.MaxSlippagePercent = 1.0
	}
	if c.Trading.Strategy.HistoryLimit == 0 {
		c.Trading.Strategy.HistoryLimit = 20
	}
	if c.Trading.Strategy.SignalLimit == 0 {
		c.Trading.Strategy.SignalLimit = 30
	}

	if c.Storage.StateFile == "" {
		c.Storage.StateFile = "bot_state.json"
	}
	if c.Storage.LedgerFile == "" {
		c.Storage.LedgerFile = "pnl_history.csv"
	}

	for i := range c.Symbols {
		s := &c.Symbols[i]
		s.Symbol = strings.ToUpper(strings.TrimSpace(s.Symbol))
		if s.TradeMode == "" {
			if strings.Contains(s.Symbol, ":") {
				s.TradeMode = TradeModeCross
			} else {
				s.TradeMode = TradeModeCash
			}
		}
		s.TradeMode = strings.ToLower(s.TradeMode)
		if s.Allocation == 0 {
			s.Allocation = 1.0
		}
		if !s.Amount.Auto && s.Amount.Value == 0 {
			s.Amount = AutoAmount()
		}
		if s.IsMargin() {
			if s.MarginMode == "" {
				s.MarginMode = s.TradeMode
			}
			if s.Leverage == 0 {
				s.Leverage = 1
			}
		} else {
			s.MarginMode = ""
			s.Leverage = 1
		}
		if s.MinConfidence == "" {
			s.MinConfidence = c.Trading.MinConfidence
		}
		s.MinConfidence = strings.ToUpper(s.MinConfidence)
	}
}

var confidenceNames = map[string]bool{"LOW": true, "MEDIUM": true, "HIGH": true}

func (c *Config) validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if !confidenceNames[c.Trading.MinConfidence] {
		return fmt.Errorf("invalid min_confidence %q", c.Trading.MinConfidence)
	}
	if c.Trading.MaxSlippagePercent < 0 {
		return fmt.Errorf("max_slippage_percent must be positive")
	}
	if c.Trading.Strategy.HistoryLimit < 0 || c.Trading.Strategy.SignalLimit < 0 {
		return fmt.Errorf("history_limit and signal_limit must be positive")
	}
	if _, err := ParseTimeframe(c.Trading.Timeframe); err != nil {
		return err
	}

	rc := c.Trading.RiskControl
	if rc.InitialBalanceUSDT < 0 {
		return fmt.Errorf("initial_balance_usdt cannot be negative")
	}
	for name, v := range map[string]*float64{
		"max_profit_usdt": rc.MaxProfitUSDT,
		"max_profit_rate": rc.MaxProfitRate,
		"max_loss_usdt":   rc.MaxLossUSDT,
		"max_loss_rate":   rc.MaxLossRate,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}

	seen := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		if s.Symbol == "" {
			return fmt.Errorf("symbol name is required")
		}
		if seen[s.Symbol] {
			return fmt.Errorf("duplicate symbol %s", s.Symbol)
		}
		seen[s.Symbol] = true

		switch s.TradeMode {
		case TradeModeCash:
			if strings.Contains(s.Symbol, ":") {
				return fmt.Errorf("%s: cash trade_mode needs a spot symbol like BTC/USDT", s.Symbol)
			}
		case TradeModeCross, TradeModeIsolated:
			if !strings.Contains(s.Symbol, ":") {
				return fmt.Errorf("%s: %s trade_mode needs a settle suffix like BTC/USDT:USDT", s.Symbol, s.TradeMode)
			}
			if s.MarginMode != TradeModeCross && s.MarginMode != TradeModeIsolated {
				return fmt.Errorf("%s: invalid margin_mode %q", s.Symbol, s.MarginMode)
			}
		default:
			return fmt.Errorf("%s: invalid trade_mode %q", s.Symbol, s.TradeMode)
		}
		if !strings.Contains(s.Symbol, "/") {
			return fmt.Errorf("%s: symbol must be BASE/QUOTE", s.Symbol)
		}
		if s.Leverage < 1 {
			return fmt.Errorf("%s: leverage must be at least 1", s.Symbol)
		}
		if s.Allocation <= 0 {
			return fmt.Errorf("%s: allocation must be positive", s.Symbol)
		}
		if !s.Amount.Auto && s.Amount.Value <= 0 {
			return fmt.Errorf("%s: amount must be positive or \"auto\"", s.Symbol)
		}
		if !confidenceNames[s.MinConfidence] {
			return fmt.Errorf("%s: invalid min_confidence %q", s.Symbol, s.MinConfidence)
		}
	}
	return nil
}

// Interval returns the trading loop period.
func (c *Config) Interval() time.Duration {
	d, err := ParseTimeframe(c.Trading.Timeframe)
	if err != nil {
		return time.Minute
	}
	return d
}

// ParseTimeframe converts candle timeframes such as 1m, 15m, 1h, 4h and 1d.
func ParseTimeframe(tf string) (time.Duration, error) {
	tf = strings.TrimSpace(tf)
	if len(tf) < 2 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
	switch tf[len(tf)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("invalid timeframe %q", tf)
}

// Enabled reports whether any kill-switch threshold is set.
func (r RiskControlConfig) Enabled() bool {
	for _, v := range []*float64{r.MaxProfitUSDT, r.MaxProfitRate, r.MaxLossUSDT, r.MaxLossRate} {
		if v != nil && *v > 0 {
			return true
		}
	}
	return false
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
