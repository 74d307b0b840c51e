package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	settlementsTotal     *prometheus.CounterVec
	settlementDivergence prometheus.Counter
	mintLatencySeconds   prometheus.Histogram
	reconciliationDrift  prometheus.Histogram
	reconciliationAlerts *prometheus.CounterVec
	chainCallsTotal      *prometheus.CounterVec
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	httpErrorsTotal      *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors for the settlement
// subsystem.
func RegisterMetrics() {
	registerOnce.Do(func() {
		settlementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Settlement attempts by outcome.",
		}, []string{"outcome"})

		settlementDivergence = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "settlement_divergence_total",
			Help: "Mints that landed on chain without a matching local ledger write.",
		})

		mintLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mint_latency_seconds",
			Help:    "Latency of mint submissions including receipt wait.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		})

		reconciliationDrift = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reconciliation_drift_tokens",
			Help:    "Absolute difference between cached and on-chain balances at reconciliation.",
			Buckets: []float64{0, 0.001, 0.01, 0.1, 1, 10, 100, 1000},
		})

		reconciliationAlerts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconciliation_alerts_total",
			Help: "Reconciliation findings by kind.",
		}, []string{"kind"})

		chainCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chain_calls_total",
			Help: "Chain gateway calls by method and outcome.",
		}, []string{"method", "outcome"})

		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_request_errors_total",
			Help: "HTTP responses with status >= 400 by method, route and status.",
		}, []string{"method", "route", "status"})

		prometheus.MustRegister(
			settlementsTotal,
			settlementDivergence,
			mintLatencySeconds,
			reconciliationDrift,
			reconciliationAlerts,
			chainCallsTotal,
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
		)
	})
}

// Settlements exposes the settlement outcome counter.
func Settlements() *prometheus.CounterVec {
	RegisterMetrics()
	return settlementsTotal
}

// SettlementDivergence exposes the divergence counter.
func SettlementDivergence() prometheus.Counter {
	RegisterMetrics()
	return settlementDivergence
}

// MintLatency exposes the mint latency histogram.
func MintLatency() prometheus.Histogram {
	RegisterMetrics()
	return mintLatencySeconds
}

// ReconciliationDrift exposes the balance drift histogram.
func ReconciliationDrift() prometheus.Histogram {
	RegisterMetrics()
	return reconciliationDrift
}

// ReconciliationAlerts exposes the reconciliation findings counter.
func ReconciliationAlerts() *prometheus.CounterVec {
	RegisterMetrics()
	return reconciliationAlerts
}

// ChainCalls exposes the chain gateway call counter.
func ChainCalls() *prometheus.CounterVec {
	RegisterMetrics()
	return chainCallsTotal
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}
