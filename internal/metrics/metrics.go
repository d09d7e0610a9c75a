// Package metrics exposes Prometheus counters for recorded entries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "logbook"

// Recorder owns a private registry and the counters updated by storage.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry      *prometheus.Registry
	recorded      *prometheus.CounterVec
	writeFailures prometheus.Counter
}

// New creates a Recorder with its own registry, including Go runtime collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		recorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logs_recorded_total",
			Help:      "Number of log entries recorded, by level.",
		}, []string{"level"}),
		writeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_failures_total",
			Help:      "Number of entries kept in memory whose file append failed.",
		}),
	}

	r.registry.MustRegister(
		r.recorded,
		r.writeFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the registry to expose over HTTP.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Recorded counts one entry at level.
func (r *Recorder) Recorded(level string) {
	if r == nil {
		return
	}
	r.recorded.WithLabelValues(level).Inc()
}

// WriteFailed counts one failed file append.
func (r *Recorder) WriteFailed() {
	if r == nil {
		return
	}
	r.writeFailures.Inc()
}
