package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	decisions     *prometheus.CounterVec
	orderOutcomes *prometheus.CounterVec
	retries       *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		decisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecore_decisions_total",
				Help: "Total fusion decisions by final signal",
			},
			[]string{"symbol", "final"},
		),
		orderOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecore_order_outcomes_total",
				Help: "Total order outcomes by state",
			},
			[]string{"symbol", "state"},
		),
		retries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecore_retries_total",
				Help: "Total retried operations",
			},
			[]string{"operation"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecore_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradecore_last_price",
				Help: "Last close price seen for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradecore_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordDecision records one fusion decision.
func (r *Recorder) RecordDecision(symbol, final string) {
	r.decisions.WithLabelValues(symbol, final).Inc()
}

// RecordOrderOutcome records one resolved (or unresolved) order outcome.
func (r *Recorder) RecordOrderOutcome(symbol, state string) {
	r.orderOutcomes.WithLabelValues(symbol, state).Inc()
}

// RecordRetry records a retried operation.
func (r *Recorder) RecordRetry(op string) {
	r.retries.WithLabelValues(op).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last close price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
