// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Backtest metrics
	BacktestsTotal   *prometheus.CounterVec
	BacktestDuration *prometheus.HistogramVec
	TradesClosed     *prometheus.CounterVec
	EntriesRejected  *prometheus.CounterVec

	// Optimizer metrics
	OptimizationsTotal   *prometheus.CounterVec
	OptimizationDuration *prometheus.HistogramVec
	CandidatesEvaluated  *prometheus.CounterVec

	// Persistence metrics
	PersistenceFailures *prometheus.CounterVec

	// Ingestion metrics
	CandlesIngested prometheus.Counter

	// API metrics
	HTTPRequests    *prometheus.CounterVec
	WSStreamsActive prometheus.Gauge

	// Health metrics
	LastSuccessfulBacktest prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "strategy_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		BacktestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtests by strategy and status",
		}, []string{"strategy", "status"}),
		BacktestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest execution duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"strategy"}),
		TradesClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_closed_total",
			Help:      "Total number of simulated trades closed by exit signal",
		}, []string{"strategy", "exit_signal"}),
		EntriesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "entries_rejected_total",
			Help:      "Total number of entry signals refused by the risk manager",
		}, []string{"strategy"}),

		OptimizationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "runs_total",
			Help:      "Total number of optimizer runs by objective and status",
		}, []string{"objective", "status"}),
		OptimizationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "duration_seconds",
			Help:      "Optimizer execution duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"objective"}),
		CandidatesEvaluated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "candidates_evaluated_total",
			Help:      "Total number of sampled weight vectors evaluated",
		}, []string{"objective"}),

		PersistenceFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "persistence_failures_total",
			Help:      "Total number of results that could not be persisted",
		}, []string{"store"}),

		CandlesIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "candles_ingested_total",
			Help:      "Total number of candles stored by backfills",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and status code",
		}, []string{"route", "code"}),
		WSStreamsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "ws_streams_active",
			Help:      "Number of websocket backtest streams in progress",
		}),

		LastSuccessfulBacktest: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_backtest_timestamp",
			Help:      "Unix timestamp of last successful backtest",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordBacktest records a finished backtest.
func RecordBacktest(strategy, status string, durationSeconds float64) {
	DefaultMetrics.BacktestsTotal.WithLabelValues(strategy, status).Inc()
	DefaultMetrics.BacktestDuration.WithLabelValues(strategy).Observe(durationSeconds)
}

// RecordTradeClosed increments the closed trades counter.
func RecordTradeClosed(strategy, exitSignal string) {
	DefaultMetrics.TradesClosed.WithLabelValues(strategy, exitSignal).Inc()
}

// RecordEntriesRejected adds n risk-manager rejections.
func RecordEntriesRejected(strategy string, n int) {
	if n > 0 {
		DefaultMetrics.EntriesRejected.WithLabelValues(strategy).Add(float64(n))
	}
}

// RecordOptimization records a finished optimizer run.
func RecordOptimization(objective, status string, durationSeconds float64, candidates int) {
	DefaultMetrics.OptimizationsTotal.WithLabelValues(objective, status).Inc()
	DefaultMetrics.OptimizationDuration.WithLabelValues(objective).Observe(durationSeconds)
	if candidates > 0 {
		DefaultMetrics.CandidatesEvaluated.WithLabelValues(objective).Add(float64(candidates))
	}
}

// RecordPersistenceFailure increments the persistence failure counter for store.
func RecordPersistenceFailure(store string) {
	DefaultMetrics.PersistenceFailures.WithLabelValues(store).Inc()
}

// RecordCandlesIngested adds n stored candles.
func RecordCandlesIngested(n int) {
	DefaultMetrics.CandlesIngested.Add(float64(n))
}

// RecordHTTPRequest increments the API request counter.
func RecordHTTPRequest(route, code string) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, code).Inc()
}

// UpdateLastSuccessfulBacktest sets the health timestamp gauge.
func UpdateLastSuccessfulBacktest(unix int64) {
	DefaultMetrics.LastSuccessfulBacktest.Set(float64(unix))
}

// TrackWSStream marks a WebSocket stream as open until the returned func is called.
func TrackWSStream() func() {
	DefaultMetrics.WSStreamsActive.Inc()
	return DefaultMetrics.WSStreamsActive.Dec
}
