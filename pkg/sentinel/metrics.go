// metrics.go instruments the capture pipeline with Prometheus collectors.

package sentinel

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks pipeline activity for one Catcher. A nil *Metrics records
// nothing.
type Metrics struct {
	service    string
	reports    *prometheus.CounterVec
	attempts   *prometheus.HistogramVec
	duration   *prometheus.HistogramVec
	hookFaults *prometheus.CounterVec
	sinkErrors *prometheus.CounterVec
}

// NewMetrics creates the pipeline collectors and registers them with reg.
// Collectors already registered by another Catcher are shared.
func NewMetrics(reg prometheus.Registerer, service string) *Metrics {
	m := &Metrics{service: service}

	m.reports = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_reports_total",
			Help: "Total number of reports by capture source and final status",
		},
		[]string{"service", "source", "status"},
	))

	m.attempts = register(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_delivery_attempts",
			Help:    "HTTP attempts issued per delivered or failed report",
			Buckets: []float64{1, 2, 3, 4, 6, 11},
		},
		[]string{"service"},
	))

	m.duration = register(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_delivery_duration_seconds",
			Help:    "Time spent delivering a report, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	))

	m.hookFaults = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_hook_faults_total",
			Help: "Total number of panics recovered from user-supplied filters and enrichers",
		},
		[]string{"service", "hook"},
	))

	m.sinkErrors = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_sink_errors_total",
			Help: "Total number of mirror sink write failures",
		},
		[]string{"service"},
	))

	return m
}

// register registers c, reusing an identical collector that is already
// registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

// RecordOutcome records the final status of one report.
func (m *Metrics) RecordOutcome(source Source, o Outcome) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(m.service, string(source), string(o.Status)).Inc()
}

// RecordDelivery records one call to the Deliverer.
func (m *Metrics) RecordDelivery(o Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(m.service).Observe(float64(o.Attempts))
	m.duration.WithLabelValues(m.service).Observe(elapsed.Seconds())
}

// RecordHookFault records a recovered panic in the named user hook.
func (m *Metrics) RecordHookFault(hook string) {
	if m == nil {
		return
	}
	m.hookFaults.WithLabelValues(m.service, hook).Inc()
}

// RecordSinkError records a failed mirror sink write.
func (m *Metrics) RecordSinkError() {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(m.service).Inc()
}
