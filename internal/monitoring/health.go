package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker tracks the trading loop for the /health endpoint.
type HealthChecker struct {
	mu        sync.RWMutex
	interval  time.Duration
	lastCycle time.Time
	lastTrade time.Time
	halted    bool
	reason    string
	errors    []string
}

type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	LastCycle time.Time `json:"last_cycle"`
	LastTrade time.Time `json:"last_trade,omitempty"`
	Halted    bool      `json:"halted"`
	Reason    string    `json:"reason,omitempty"`
	Uptime    string    `json:"uptime"`
	Errors    []string  `json:"errors,omitempty"`
}

const maxHealthErrors = 10

// NewHealthChecker expects a cycle at least every interval.
func NewHealthChecker(interval time.Duration) *HealthChecker {
	return &HealthChecker{interval: interval}
}

func (h *HealthChecker) CycleCompleted(at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCycle = at
}

func (h *HealthChecker) TradeExecuted(at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastTrade = at
}

func (h *HealthChecker) Halted(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.halted = true
	h.reason = reason
}

// RecordError keeps the most recent error messages.
func (h *HealthChecker) RecordError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > maxHealthErrors {
		h.errors = h.errors[len(h.errors)-maxHealthErrors:]
	}
}

// Status reports healthy while cycles keep arriving, degraded when they are
// late by more than two intervals, halted after a risk stop.
func (h *HealthChecker) Status(now time.Time) HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	switch {
	case h.halted:
		status = "halted"
	case h.lastCycle.IsZero() || (h.interval > 0 && now.Sub(h.lastCycle) > 2*h.interval):
		status = "degraded"
	}

	return HealthStatus{
		Status:    status,
		Timestamp: now,
		LastCycle: h.lastCycle,
		LastTrade: h.lastTrade,
		Halted:    h.halted,
		Reason:    h.reason,
		Uptime:    now.Sub(startTime).Round(time.Second).String(),
		Errors:    append([]string(nil), h.errors...),
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Status(time.Now())

	w.Header().Set("Content-Type", "application/json")
	if health.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}
