package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for step counters.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Metrics collects batch-run measurements in a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	rows         *prometheus.CounterVec
	lastSuccess  *prometheus.GaugeVec
}

// NewMetrics builds and registers the run collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "almadb_steps_total",
				Help: "Schema steps and seed groups executed, by engine and outcome.",
			},
			[]string{"engine", "outcome"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "almadb_step_duration_seconds",
				Help:    "Duration of individual schema steps and seed groups.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"engine"},
		),
		rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "almadb_rows_inserted_total",
				Help: "Fixture rows inserted, by table.",
			},
			[]string{"table"},
		),
		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "almadb_last_success_timestamp_seconds",
				Help: "Unix time of the last fully successful run, by engine.",
			},
			[]string{"engine"},
		),
	}
	m.registry.MustRegister(m.steps, m.stepDuration, m.rows, m.lastSuccess)
	return m
}

// Registry exposes the underlying gatherer.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveStep records one step or group execution.
func (m *Metrics) ObserveStep(engine string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}
	m.steps.WithLabelValues(engine, outcome).Inc()
	m.stepDuration.WithLabelValues(engine).Observe(d.Seconds())
}

// AddRows records inserted fixture rows for a table.
func (m *Metrics) AddRows(table string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rows.WithLabelValues(table).Add(float64(n))
}

// MarkSuccess stamps the completion time of a successful run.
func (m *Metrics) MarkSuccess(engine string, at time.Time) {
	if m == nil {
		return
	}
	m.lastSuccess.WithLabelValues(engine).Set(float64(at.Unix()))
}

// WriteTextfile dumps the registry in the text exposition format, suitable for
// the node exporter textfile collector. An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
