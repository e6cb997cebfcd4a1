package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_bot_trades_total",
			Help: "Orders confirmed by the venue",
		},
		[]string{"symbol", "side", "leg"},
	)

	tradeAmount = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_bot_trade_amount",
			Help:    "Distribution of filled order quantities",
			Buckets: prometheus.ExponentialBuckets(0.0001, 10, 9),
		},
		[]string{"symbol"},
	)

	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "oracle_bot_current_price",
			Help: "Last analysis price per symbol",
		},
		[]string{"symbol"},
	)

	gateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_bot_gate_decisions_total",
			Help: "Signals after gating, by resulting action",
		},
		[]string{"symbol", "action"},
	)

	sizingAborts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_bot_sizing_aborts_total",
			Help: "Trades dropped by the position sizer",
		},
		[]string{"symbol"},
	)

	executionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_bot_execution_failures_total",
			Help: "Orders rejected by the venue",
		},
		[]string{"symbol", "kind"},
	)

	equity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oracle_bot_total_equity_usdt",
		Help: "Account equity including valued spot holdings",
	})

	pnl = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oracle_bot_pnl_usdt",
		Help: "Equity minus the smart baseline",
	})

	baseline = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oracle_bot_baseline_usdt",
		Help: "Smart baseline used as the PnL reference",
	})

	riskState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "oracle_bot_risk_state",
			Help: "1 for the current risk manager state",
		},
		[]string{"state"},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_bot_errors_total",
			Help: "Errors by category",
		},
		[]string{"type"},
	)
)

var riskStates = []string{"INITIALIZING", "MONITORING", "HALTED"}

func init() {
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(tradeAmount)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(gateDecisions)
	prometheus.MustRegister(sizingAborts)
	prometheus.MustRegister(executionFailures)
	prometheus.MustRegister(equity)
	prometheus.MustRegister(pnl)
	prometheus.MustRegister(baseline)
	prometheus.MustRegister(riskState)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler serves the Prometheus metrics endpoint.
type MetricsHandler struct{}

func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordTrade counts a confirmed order. leg is "entry" or "close".
func RecordTrade(symbol, side, leg string, amount float64) {
	tradesTotal.WithLabelValues(symbol, side, leg).Inc()
	tradeAmount.WithLabelValues(symbol).Observe(amount)
}

func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

func RecordGateDecision(symbol, action string) {
	gateDecisions.WithLabelValues(symbol, action).Inc()
}

func RecordSizingAbort(symbol string) {
	sizingAborts.WithLabelValues(symbol).Inc()
}

// RecordExecutionFailure counts a rejected order; kind is "insufficient_margin" or "generic".
func RecordExecutionFailure(symbol, kind string) {
	executionFailures.WithLabelValues(symbol, kind).Inc()
}

// UpdateEquity publishes the latest risk check figures.
func UpdateEquity(total, profit, base float64) {
	equity.Set(total)
	pnl.Set(profit)
	baseline.Set(base)
}

// UpdateRiskState marks state as the only active risk state.
func UpdateRiskState(state string) {
	for _, s := range riskStates {
		v := 0.0
		if s == state {
			v = 1
		}
		riskState.WithLabelValues(s).Set(v)
	}
}

func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
