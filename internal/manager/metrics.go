package manager

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "labseq"
	metricsSubsystem = "manager"
)

// Operation kinds used as the "kind" label.
const (
	kindCondition   = "condition"
	kindMeasurement = "measurement"
)

// Metrics holds the manager's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// operations counts executed run-order steps.
	// Labels: kind (condition, measurement)
	operations *prometheus.CounterVec

	// failures counts failed measurement runs.
	// Labels: measurement
	failures *prometheus.CounterVec

	// runs counts finished runs.
	// Labels: outcome (success, failure)
	runs *prometheus.CounterVec

	// duration measures wall-clock time of whole runs.
	duration prometheus.Histogram
}

// NewMetrics registers the manager collectors with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "operations_total",
			Help:      "Run-order operations executed, by kind",
		}, []string{"kind"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "measurement_failures_total",
			Help:      "Failed measurement runs, by measurement",
		}, []string{"measurement"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "runs_total",
			Help:      "Finished runs, by outcome",
		}, []string{"outcome"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a full run in seconds",
			Buckets:   []float64{0.1, 1, 10, 60, 300, 900, 3600, 14400},
		}),
	}
}

func (m *Metrics) operation(kind string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(kind).Inc()
}

func (m *Metrics) failure(measurement string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(measurement).Inc()
}

func (m *Metrics) finished(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}
