// Package metrics exposes Prometheus collectors for calculation traffic.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "tvm_"

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the calculation collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	calculations *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	irrIteration prometheus.Histogram
}

// New creates and registers all collectors on a fresh registry.
// rowCount backs the history gauge; it may be nil.
func New(rowCount func() float64) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calculations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "calculations_total",
				Help: "Total calculations by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "calculation_duration_seconds",
				Help:    "Calculation latency in seconds",
				Buckets: []float64{1e-6, 1e-5, 1e-4, 1e-3, 1e-2, 1e-1},
			},
			[]string{"kind"},
		),
		irrIteration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "irr_iterations",
				Help:    "Newton iterations spent per IRR solve",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
		),
	}

	m.registry.MustRegister(
		m.calculations,
		m.duration,
		m.irrIteration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if rowCount != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + "calculation_history_rows",
				Help: "Rows in the calculation history table",
			},
			rowCount,
		))
	}

	return m
}

// ObserveCalculation records one calculation.
func (m *Metrics) ObserveCalculation(kind, outcome string, elapsed time.Duration) {
	m.calculations.WithLabelValues(kind, outcome).Inc()
	m.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveIRRIterations records the iteration count of one IRR solve.
func (m *Metrics) ObserveIRRIterations(n int) {
	m.irrIteration.Observe(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
