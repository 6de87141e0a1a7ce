package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	DiagnosticsLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mmlens",
			Subsystem: "diagnostics",
			Name:      "latency_seconds",
			Help:      "Latency of diagnostics endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	DiagnosticsErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mmlens",
			Subsystem: "diagnostics",
			Name:      "errors_total",
			Help:      "Errors by diagnostics endpoint",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(DiagnosticsLatency, DiagnosticsErrors)
	})
}
