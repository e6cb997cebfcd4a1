package signal

import (
	"fmt"
	"strings"
	"time"
)

type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)

// ParseAction accepts BUY, SELL and HOLD in any case.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case Buy, Sell, Hold:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

type Confidence string

const (
	Low    Confidence = "LOW"
	Medium Confidence = "MEDIUM"
	High   Confidence = "HIGH"
)

// ParseConfidence accepts LOW, MEDIUM and HIGH in any case.
func ParseConfidence(s string) (Confidence, error) {
	switch c := Confidence(strings.ToUpper(strings.TrimSpace(s))); c {
	case Low, Medium, High:
		return c, nil
	default:
		return "", fmt.Errorf("unknown confidence %q", s)
	}
}

// Rank orders confidence levels LOW < MEDIUM < HIGH. Unknown values rank as LOW.
func (c Confidence) Rank() int {
	switch Confidence(strings.ToUpper(string(c))) {
	case High:
		return 3
	case Medium:
		return 2
	default:
		return 1
	}
}

// floorRank ranks a configured minimum; unknown floors rank as MEDIUM.
func floorRank(c Confidence) int {
	if _, err := ParseConfidence(string(c)); err != nil {
		return Medium.Rank()
	}
	return c.Rank()
}

// Signal is a validated advisor proposal. Optional prices are nil when the
// advisor did not supply them.
type Signal struct {
	Action     Action
	Confidence Confidence
	Amount     float64
	StopLoss   *float64
	TakeProfit *float64
	Reason     string
	Timestamp  time.Time
}

// IsHold reports whether the signal requests no trade.
func (s *Signal) IsHold() bool {
	return s == nil || s.Action == Hold
}

// hold downgrades the signal and appends note to the reason.
func (s *Signal) hold(note string) {
	s.Action = Hold
	s.Reason += note
}

func (s *Signal) String() string {
	return fmt.Sprintf("%s/%s amount=%g reason=%q", s.Action, s.Confidence, s.Amount, s.Reason)
}

// History is a bounded FIFO of recent signals.
type History struct {
	limit int
	items []Signal
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 30
	}
	return &History{limit: limit}
}

func (h *History) Add(s Signal) {
	h.items = append(h.items, s)
	if len(h.items) > h.limit {
		h.items = h.items[len(h.items)-h.limit:]
	}
}

// Last returns the most recent signal, or nil when empty.
func (h *History) Last() *Signal {
	if len(h.items) == 0 {
		return nil
	}
	s := h.items[len(h.items)-1]
	return &s
}

func (h *History) Len() int { return len(h.items) }
