package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics tracks object-store operations per collection.
type StoreMetrics struct {
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	if reg == nil {
		return &StoreMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Latency of object store operations.",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"collection", "op"})
	errors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "operation_errors_total",
		Help:      "Object store operations that returned an error.",
	}, []string{"collection", "op"})
	reg.MustRegister(duration, errors)
	return &StoreMetrics{duration: duration, errors: errors}
}

// Observe records one operation. err may be nil.
func (m *StoreMetrics) Observe(collection, op string, took time.Duration, err error) {
	if m == nil || m.duration == nil {
		return
	}
	collection = normalizeLabel(collection)
	op = normalizeLabel(op)
	m.duration.WithLabelValues(collection, op).Observe(took.Seconds())
	if err != nil {
		m.errors.WithLabelValues(collection, op).Inc()
	}
}
