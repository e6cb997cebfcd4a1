package exchange

import (
	"fmt"
	"strings"
)

// Market kinds.
const (
	KindSpot   = "spot"
	KindLinear = "linear"
)

// Symbol is a parsed unified symbol such as BTC/USDT or BTC/USDT:USDT.
type Symbol struct {
	Unified string
	Base    string
	Quote   string
	Settle  string
}

// ParseSymbol splits a unified symbol. A settle suffix marks a linear perpetual.
func ParseSymbol(s string) (Symbol, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	pair, settle, _ := strings.Cut(s, ":")
	base, quote, ok := strings.Cut(pair, "/")
	if !ok || base == "" || quote == "" {
		return Symbol{}, ErrInvalidSymbol.WithDetails(s)
	}
	if strings.Contains(s, ":") && settle == "" {
		return Symbol{}, ErrInvalidSymbol.WithDetails(s)
	}
	return Symbol{Unified: s, Base: base, Quote: quote, Settle: settle}, nil
}

func MustParseSymbol(s string) Symbol {
	sym, err := ParseSymbol(s)
	if err != nil {
		panic(fmt.Sprintf("exchange: %v", err))
	}
	return sym
}

// IsSwap reports whether the symbol is a perpetual contract.
func (s Symbol) IsSwap() bool {
	return s.Settle != ""
}

func (s Symbol) Kind() string {
	if s.IsSwap() {
		return KindLinear
	}
	return KindSpot
}

// VenueID is the concatenated form most venues use, e.g. BTCUSDT.
func (s Symbol) VenueID() string {
	return s.Base + s.Quote
}

func (s Symbol) String() string {
	return s.Unified
}
