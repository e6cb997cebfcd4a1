package signal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrNoPayload = errors.New("no JSON object in advisor reply")

// number accepts a JSON number, a numeric string, an empty string or null.
type number struct {
	value *float64
}

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		n.value = &v
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.value = &v
	return nil
}

type payload struct {
	Signal     *string `json:"signal"`
	Confidence *string `json:"confidence"`
	Reason     string  `json:"reason"`
	Amount     number  `json:"amount"`
	StopLoss   number  `json:"stop_loss"`
	TakeProfit number  `json:"take_profit"`
}

// Parse extracts a Signal from a free-form advisor reply. Markdown fences are
// stripped and the text between the first '{' and the last '}' is decoded.
// A missing or unknown action rejects the reply, as does an unknown
// confidence; a missing confidence defaults to LOW.
func Parse(raw string, now time.Time) (*Signal, error) {
	text := strings.ReplaceAll(raw, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, ErrNoPayload
	}

	var p payload
	if err := json.Unmarshal([]byte(text[start:end+1]), &p); err != nil {
		return nil, fmt.Errorf("decode advisor reply: %w", err)
	}
	if p.Signal == nil {
		return nil, errors.New("advisor reply missing signal")
	}
	action, err := ParseAction(*p.Signal)
	if err != nil {
		return nil, err
	}

	confidence := Low
	if p.Confidence != nil {
		if confidence, err = ParseConfidence(*p.Confidence); err != nil {
			return nil, err
		}
	}

	s := &Signal{
		Action:     action,
		Confidence: confidence,
		Reason:     strings.TrimSpace(p.Reason),
		StopLoss:   p.StopLoss.value,
		TakeProfit: p.TakeProfit.value,
		Timestamp:  now,
	}
	if p.Amount.value != nil && *p.Amount.value > 0 {
		s.Amount = *p.Amount.value
	}
	return s, nil
}
