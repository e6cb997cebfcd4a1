package exchange

import (
	"context"

	"github.com/ducminhle1904/crypto-oracle-bot/pkg/types"
)

// MarketGateway is the venue surface the engine trades through. Symbols use the
// unified form: BASE/QUOTE for spot and BASE/QUOTE:SETTLE for linear perpetuals.
type MarketGateway interface {
	Name() string

	// Market data
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]types.OHLCV, error)
	Ticker(ctx context.Context, symbol string) (float64, error)
	// Tickers returns last prices for symbols in one call where the venue allows it.
	// Symbols missing from the result were not quoted.
	Tickers(ctx context.Context, symbols []string) (map[string]float64, error)

	// Account
	Balance(ctx context.Context) (map[string]types.Balance, error)
	Positions(ctx context.Context, symbols []string) ([]types.Position, error)
	TradingFee(ctx context.Context, symbol string) (types.TradingFee, error)
	MarketLimits(ctx context.Context, symbol string) (types.MarketLimits, error)
	// LastBuyPrice returns the average price of the most recent filled spot buy, or 0.
	LastBuyPrice(ctx context.Context, symbol string) (float64, error)

	// Trading
	PlaceMarketOrder(ctx context.Context, req types.OrderRequest) (*types.OrderResult, error)
	SetLeverage(ctx context.Context, symbol string, leverage int, marginMode string) error
}

// ExchangeError is a venue failure normalised across adapters.
type ExchangeError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Details     string `json:"details,omitempty"`
	IsRetryable bool   `json:"is_retryable"`
}

func (e *ExchangeError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Is matches on Code so wrapped copies with details still compare equal to the sentinels.
func (e *ExchangeError) Is(target error) bool {
	t, ok := target.(*ExchangeError)
	return ok && t.Code == e.Code
}

// WithDetails returns a copy of e carrying details.
func (e *ExchangeError) WithDetails(details string) *ExchangeError {
	cp := *e
	cp.Details = details
	return &cp
}

var (
	ErrInsufficientBalance = &ExchangeError{
		Code:    "INSUFFICIENT_BALANCE",
		Message: "Insufficient balance for trade",
	}

	ErrInvalidSymbol = &ExchangeError{
		Code:    "INVALID_SYMBOL",
		Message: "Invalid trading symbol",
	}

	ErrOrderSizeTooSmall = &ExchangeError{
		Code:    "ORDER_SIZE_TOO_SMALL",
		Message: "Order size below minimum requirements",
	}

	ErrRateLimitExceeded = &ExchangeError{
		Code:        "RATE_LIMIT_EXCEEDED",
		Message:     "API rate limit exceeded",
		IsRetryable: true,
	}

	ErrAuthenticationFailed = &ExchangeError{
		Code:    "AUTHENTICATION_FAILED",
		Message: "API authentication failed",
	}

	ErrNotSupported = &ExchangeError{
		Code:    "NOT_SUPPORTED",
		Message: "Operation not supported for this market",
	}
)
