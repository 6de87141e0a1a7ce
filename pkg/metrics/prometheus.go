package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	diagnostics  *prometheus.CounterVec
	unusualness  *prometheus.GaugeVec
	focusSize    prometheus.Gauge
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		messagesSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mmlens_messages_sent_total",
				Help: "Total number of messages sent to backend",
			},
			[]string{"backend", "ticker"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mmlens_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		diagnostics: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mmlens_diagnostics_total",
				Help: "Diagnostics produced, by regime and ticker",
			},
			[]string{"regime", "ticker"},
		),
		unusualness: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mmlens_unusualness_score",
				Help: "Latest unusualness percentile score per ticker",
			},
			[]string{"ticker"},
		),
		focusSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mmlens_focus_size",
				Help: "Number of tickers currently in FOCUS",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mmlens_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordMessageSent records a message sent to a backend.
func (r *Recorder) RecordMessageSent(backend, ticker string) {
	r.messagesSent.WithLabelValues(backend, ticker).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordDiagnostic records one produced diagnostic.
func (r *Recorder) RecordDiagnostic(regime, ticker string) {
	r.diagnostics.WithLabelValues(regime, ticker).Inc()
}

// RecordUnusualness records the latest unusualness score for a ticker.
func (r *Recorder) RecordUnusualness(ticker string, score float64) {
	r.unusualness.WithLabelValues(ticker).Set(score)
}

// RecordFocusSize records the current FOCUS set size.
func (r *Recorder) RecordFocusSize(n int) {
	r.focusSize.Set(float64(n))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
