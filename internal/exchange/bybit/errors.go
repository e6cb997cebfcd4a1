package bybit

import (
	"errors"
	"fmt"
)

// APIError is a non-zero retCode returned by the Bybit API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("bybit API error %d: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("bybit API error %d: %s", e.Code, e.Message)
}

const (
	ErrCodeInvalidAPIKey        = 10003
	ErrCodeInvalidSignature     = 10004
	ErrCodeInvalidTimestamp     = 10002
	ErrCodeRateLimitExceeded    = 10006
	ErrCodeOrderNotFound        = 110001
	ErrCodeInsufficientBalance  = 110007
	ErrCodeSymbolNotFound       = 110009
	ErrCodeInsufficientAvail    = 110012
	ErrCodeInvalidQuantity      = 110020
	ErrCodeLeverageNotModified  = 110043
	ErrCodeMarginInsufficient   = 110044
	ErrCodeSpotInsufficient     = 170131
	ErrCodeSpotOrderValueTooLow = 170140
)

// ParseAPIError converts a response envelope into an error. Zero means success.
func ParseAPIError(retCode int, retMsg string) error {
	if retCode == 0 {
		return nil
	}
	return &APIError{Code: retCode, Message: retMsg}
}

func apiCode(err error) (int, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	return 0, false
}

func IsRateLimitError(err error) bool {
	code, ok := apiCode(err)
	return ok && code == ErrCodeRateLimitExceeded
}

func IsAuthenticationError(err error) bool {
	code, _ := apiCode(err)
	switch code {
	case ErrCodeInvalidAPIKey, ErrCodeInvalidSignature, ErrCodeInvalidTimestamp:
		return true
	}
	return false
}

// IsInsufficientBalanceError covers unified, contract and spot balance rejects.
func IsInsufficientBalanceError(err error) bool {
	code, _ := apiCode(err)
	switch code {
	case ErrCodeInsufficientBalance, ErrCodeInsufficientAvail, ErrCodeMarginInsufficient, ErrCodeSpotInsufficient:
		return true
	}
	return false
}

func IsOrderNotFoundError(err error) bool {
	code, ok := apiCode(err)
	return ok && code == ErrCodeOrderNotFound
}
