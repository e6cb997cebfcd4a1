package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCategory classifies a failure by how the engine reacts to it.
type ErrorCategory string

const (
	// Handled inside a cycle: log, notify where useful, continue with the next cycle.
	ErrorCategoryTransientRead ErrorCategory = "TRANSIENT_READ"
	ErrorCategoryAdvisor       ErrorCategory = "ADVISOR"
	ErrorCategorySizing        ErrorCategory = "SIZING"
	ErrorCategoryExecution     ErrorCategory = "EXECUTION"

	// Transport level, usually wrapped into one of the above by the caller.
	ErrorCategoryNetwork   ErrorCategory = "NETWORK"
	ErrorCategoryTimeout   ErrorCategory = "TIMEOUT"
	ErrorCategoryRateLimit ErrorCategory = "RATE_LIMIT"

	// Startup failures.
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"
	ErrorCategoryCredentials   ErrorCategory = "CREDENTIALS"
)

// BotError is a categorized error with the component and operation that produced it.
type BotError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}

	// InsufficientMargin is set on execution failures the venue rejected for lack of funds.
	InsufficientMargin bool
}

func (e *BotError) Error() string {
	msg := fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

func (e *BotError) Unwrap() error {
	return e.Underlying
}

// IsFatal reports whether the bot should refuse to start or stop.
func (e *BotError) IsFatal() bool {
	return e.Category == ErrorCategoryConfiguration || e.Category == ErrorCategoryCredentials
}

func NewBotError(category ErrorCategory, component, operation, message string) *BotError {
	return &BotError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
	}
}

// WrapError wraps err with category and origin. Returns nil for a nil err.
func WrapError(err error, category ErrorCategory, component, operation string) *BotError {
	if err == nil {
		return nil
	}
	return &BotError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Context:    make(map[string]interface{}),
	}
}

func (e *BotError) WithContext(key string, value interface{}) *BotError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *BotError) WithMessage(format string, args ...interface{}) *BotError {
	e.Message = fmt.Sprintf(format, args...)
	return e
}

// CategorizeError maps a generic error onto a category by its text.
// Errors that already carry a category are returned as is.
func CategorizeError(err error, component, operation string) *BotError {
	if err == nil {
		return nil
	}

	var botErr *BotError
	if stderrors.As(err, &botErr) {
		return botErr
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return WrapError(err, ErrorCategoryTimeout, component, operation)
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many"):
		return WrapError(err, ErrorCategoryRateLimit, component, operation)
	case strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "signature"):
		return WrapError(err, ErrorCategoryCredentials, component, operation)
	case strings.Contains(msg, "connection") || strings.Contains(msg, "dial") ||
		strings.Contains(msg, "network") || strings.Contains(msg, "eof"):
		return WrapError(err, ErrorCategoryNetwork, component, operation)
	}
	return WrapError(err, ErrorCategoryTransientRead, component, operation)
}

func NewTransientReadError(component, operation string, err error) *BotError {
	return WrapError(err, ErrorCategoryTransientRead, component, operation)
}

func NewAdvisorError(component, operation string, err error) *BotError {
	return WrapError(err, ErrorCategoryAdvisor, component, operation)
}

func NewSizingError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategorySizing, component, operation, message)
}

func NewConfigurationError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryConfiguration, component, operation, message)
}

func NewCredentialsError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryCredentials, component, operation, message)
}

// NewExecutionError wraps an order placement failure and flags insufficient margin.
func NewExecutionError(component, operation string, err error) *BotError {
	e := WrapError(err, ErrorCategoryExecution, component, operation)
	if e != nil {
		e.InsufficientMargin = LooksLikeInsufficientMargin(err)
	}
	return e
}

// Venue reject codes for insufficient balance or margin.
var insufficientCodes = []string{
	"110007", // bybit: ab not enough for new order
	"110012", // bybit: insufficient available balance
	"110044", // bybit: available margin insufficient
	"170131", // bybit spot: insufficient balance
	"51008",  // okx: insufficient balance
}

// LooksLikeInsufficientMargin inspects err for known insufficient-funds codes or text.
func LooksLikeInsufficientMargin(err error) bool {
	if err == nil {
		return false
	}
	var botErr *BotError
	if stderrors.As(err, &botErr) && botErr.InsufficientMargin {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "insufficient") || strings.Contains(msg, "not enough") {
		return true
	}
	for _, code := range insufficientCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

// HasCategory reports whether any BotError in err's chain has category c.
func HasCategory(err error, c ErrorCategory) bool {
	for err != nil {
		if b, ok := err.(*BotError); ok && b.Category == c {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}
