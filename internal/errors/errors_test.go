package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"timeout", stderrors.New("context deadline exceeded"), ErrorCategoryTimeout},
		{"rate limit", stderrors.New("Too many visits"), ErrorCategoryRateLimit},
		{"unmatched venue text", stderrors.New("error sign! origin_string"), ErrorCategoryTransientRead},
		{"bad signature", stderrors.New("signature mismatch"), ErrorCategoryCredentials},
		{"network", stderrors.New("dial tcp: lookup api.bybit.com"), ErrorCategoryNetwork},
		{"unknown", stderrors.New("something odd"), ErrorCategoryTransientRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CategorizeError(tt.err, "gateway", "ticker")
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Category)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.Nil(t, CategorizeError(nil, "gateway", "ticker"))
}

func TestCategorizeErrorKeepsExisting(t *testing.T) {
	orig := NewSizingError("BTC/USDT", "size", "below minimum")
	wrapped := fmt.Errorf("cycle: %w", orig)

	got := CategorizeError(wrapped, "other", "op")
	assert.Same(t, orig, got)
	assert.True(t, HasCategory(wrapped, ErrorCategorySizing))
	assert.False(t, HasCategory(wrapped, ErrorCategoryExecution))
}

func TestExecutionErrorInsufficientMargin(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"bybit code", stderrors.New("bybit API error 110007: ab not enough for new order"), true},
		{"okx code", stderrors.New("code=51008"), true},
		{"text", stderrors.New("Insufficient balance"), true},
		{"generic", stderrors.New("order price out of range"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExecutionError("ETH/USDT", "place_order", tt.err)
			assert.Equal(t, ErrorCategoryExecution, e.Category)
			assert.Equal(t, tt.want, e.InsufficientMargin)
			assert.Equal(t, tt.want, LooksLikeInsufficientMargin(e))
		})
	}
}

func TestBotErrorMessage(t *testing.T) {
	e := NewConfigurationError("config", "validate", "no symbols")
	assert.Equal(t, "[CONFIG:config] validate: no symbols", e.Error())
	assert.True(t, e.IsFatal())

	w := WrapError(stderrors.New("boom"), ErrorCategoryAdvisor, "advisor", "propose").WithMessage("call %d failed", 2)
	assert.Equal(t, "[ADVISOR:advisor] propose: call 2 failed: boom", w.Error())
	assert.False(t, w.IsFatal())
}
