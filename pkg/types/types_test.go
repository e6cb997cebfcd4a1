package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarketLimitsTruncate(t *testing.T) {
	tests := []struct {
		name   string
		step   float64
		amount float64
		want   float64
		str    string
	}{
		{"three decimals", 0.001, 0.01299, 0.012, "0.012"},
		{"exact step kept", 0.01, 0.3, 0.3, "0.30"},
		{"integer step", 1, 12.9, 12, "12"},
		{"spot precision", 0.00001, 0.0336633, 0.03366, "0.03366"},
		{"unknown step", 0, 1.123456789, 1.12345678, "1.12345678"},
		{"negative", 0.001, -1, 0, "0.000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := MarketLimits{QtyStep: tt.step}
			assert.InDelta(t, tt.want, l.Truncate(tt.amount), 1e-12)
			assert.Equal(t, tt.str, l.Format(tt.amount))
		})
	}
}

func TestPositionHelpers(t *testing.T) {
	long := Position{Side: PositionLong, EntryPrice: 100}
	short := Position{Side: PositionShort, EntryPrice: 100}

	assert.InDelta(t, 0.05, long.PnLPercent(105), 1e-12)
	assert.InDelta(t, -0.05, short.PnLPercent(105), 1e-12)
	assert.Equal(t, 0.0, Position{}.PnLPercent(105))
	assert.Equal(t, SideSell, long.ClosingSide())
	assert.Equal(t, SideBuy, short.ClosingSide())
}

func TestParseSide(t *testing.T) {
	s, ok := ParseSide(" buy ")
	assert.True(t, ok)
	assert.Equal(t, SideBuy, s)

	_, ok = ParseSide("hold")
	assert.False(t, ok)
}

func TestCloses(t *testing.T) {
	assert.Equal(t, []float64{1, 2}, Closes([]OHLCV{{Close: 1}, {Close: 2}}))
}
