package notifications

import (
	"errors"
	"strings"
)

const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notifier delivers a short text alert. Callers log and drop failures.
type Notifier interface {
	SendAlert(level, message string) error
}

// Multi fans an alert out to every sink and joins their errors.
type Multi []Notifier

func (m Multi) SendAlert(level, message string) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.SendAlert(level, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards alerts.
type Nop struct{}

func (Nop) SendAlert(string, string) error { return nil }

// isPlaceholder reports template values left in a config file.
func isPlaceholder(s string) bool {
	return strings.TrimSpace(s) == "" || strings.Contains(s, "YOUR_")
}

func levelPrefix(level string) string {
	switch level {
	case LevelWarning:
		return "⚠️"
	case LevelError:
		return "🚨"
	case LevelSuccess:
		return "✅"
	default:
		return "ℹ️"
	}
}
