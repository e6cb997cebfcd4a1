package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Amount is a per-order base quantity, either fixed or "auto".
type Amount struct {
	Auto  bool
	Value float64
}

func AutoAmount() Amount { return Amount{Auto: true} }

func FixedAmount(v float64) Amount { return Amount{Value: v} }

func (a Amount) String() string {
	if a.Auto {
		return "auto"
	}
	return strconv.FormatFloat(a.Value, 'f', -1, 64)
}

func (a *Amount) set(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "auto") {
		*a = AutoAmount()
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("amount must be a number or \"auto\", got %q", raw)
	}
	*a = FixedAmount(v)
	return nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = AutoAmount()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return a.set(s)
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("amount must be a number or \"auto\": %w", err)
	}
	*a = FixedAmount(v)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if a.Auto {
		return []byte(`"auto"`), nil
	}
	return json.Marshal(a.Value)
}

func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("amount must be a scalar")
	}
	if node.Tag == "!!null" {
		*a = AutoAmount()
		return nil
	}
	return a.set(node.Value)
}
