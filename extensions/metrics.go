package extensions

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	kiln "github.com/kiln-fn/kiln-go"
)

// MetricsExtension exports container operation metrics to prometheus.
type MetricsExtension struct {
	kiln.BaseExtension

	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	warnings   *prometheus.CounterVec
}

// NewMetricsExtension creates a metrics extension and registers its
// collectors with reg.
func NewMetricsExtension(reg prometheus.Registerer) *MetricsExtension {
	m := &MetricsExtension{
		BaseExtension: kiln.NewBaseExtension("metrics"),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kiln",
			Name:      "operations_total",
			Help:      "Container operations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kiln",
			Name:      "operation_duration_seconds",
			Help:      "Container operation latency by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kiln",
			Name:      "warnings_total",
			Help:      "Diagnostic warnings by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.operations, m.durations, m.warnings)
	return m
}

func (m *MetricsExtension) Wrap(ctx context.Context, next func() (any, error), op *kiln.Operation) (any, error) {
	start := time.Now()
	result, err := next()
	m.durations.WithLabelValues(string(op.Kind)).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(string(op.Kind), outcome).Inc()

	return result, err
}

func (m *MetricsExtension) OnWarning(w kiln.Warning, c *kiln.Container) {
	m.warnings.WithLabelValues(string(w.Kind)).Inc()
}
