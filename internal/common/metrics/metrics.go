// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EngineCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docassembly_engine_calls_total",
			Help: "Total number of calls made to the document-assembly engine",
		},
		[]string{"operation", "status"},
	)

	EngineCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docassembly_engine_call_duration_seconds",
			Help:    "Duration of engine calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"operation"},
	)

	DocumentsAssembled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docassembly_documents_assembled_total",
			Help: "Total number of documents assembled, by document type",
		},
		[]string{"format"},
	)

	PendingAssemblies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docassembly_pending_assemblies_total",
			Help: "Total number of pending assemblies reported by the engine",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docassembly_sessions_active",
			Help: "Number of work sessions created and not yet completed by this host",
		},
	)
)
