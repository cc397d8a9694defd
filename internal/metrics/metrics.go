package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the supervisor's collectors on a private registry. There is
// no HTTP listener; WriteTextfile dumps them for a node_exporter textfile
// collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	lines    *prometheus.CounterVec
	exits    *prometheus.CounterVec
	failures *prometheus.CounterVec
	running  *prometheus.GaugeVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		lines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sudare",
				Subsystem: "process",
				Name:      "lines_total",
				Help:      "Number of output lines captured.",
			}, []string{"process", "stream"},
		),
		exits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sudare",
				Subsystem: "process",
				Name:      "exits_total",
				Help:      "Number of process exits by exit code.",
			}, []string{"process", "code"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sudare",
				Subsystem: "process",
				Name:      "failures_total",
				Help:      "Number of processes that failed to start or lost their output streams.",
			}, []string{"process"},
		),
		running: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "sudare",
				Subsystem: "process",
				Name:      "running",
				Help:      "1 while the process is running.",
			}, []string{"process"},
		),
	}
	m.reg.MustRegister(m.lines, m.exits, m.failures, m.running)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) ObserveLine(process, stream string) {
	if m != nil {
		m.lines.WithLabelValues(process, stream).Inc()
	}
}

func (m *Metrics) ObserveStart(process string) {
	if m != nil {
		m.running.WithLabelValues(process).Set(1)
	}
}

func (m *Metrics) ObserveExit(process string, code int) {
	if m != nil {
		m.running.WithLabelValues(process).Set(0)
		m.exits.WithLabelValues(process, strconv.Itoa(code)).Inc()
	}
}

func (m *Metrics) ObserveFailure(process string) {
	if m != nil {
		m.running.WithLabelValues(process).Set(0)
		m.failures.WithLabelValues(process).Inc()
	}
}

// WriteTextfile writes the current values in the Prometheus text format.
// Empty path or nil receiver is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.reg)
}
