package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine/driver counters exposed on an optional
// --metrics-addr HTTP listener.
type Metrics struct {
	registry *prometheus.Registry

	PacketsSeen    prometheus.Counter
	PacketsDropped prometheus.Counter
	PacketsMangled prometheus.Counter
	OperatorErrors prometheus.Counter
	CasesPassed    prometheus.Counter
	CasesFailed    prometheus.Counter
	CasesNotRun    prometheus.Counter
}

// NewMetrics registers a fresh set of counters against a private registry
// (never the global default registry, so multiple Engines in the same
// process — e.g. in tests — don't collide on metric names).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		PacketsSeen: factory.NewCounter(prometheus.CounterOpts{
			Name: "fragscapy_packets_seen_total",
			Help: "Packets dequeued from the kernel queue.",
		}),
		PacketsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "fragscapy_packets_dropped_total",
			Help: "Packets given a drop verdict.",
		}),
		PacketsMangled: factory.NewCounter(prometheus.CounterOpts{
			Name: "fragscapy_packets_mangled_total",
			Help: "Packets re-injected with a rewritten payload.",
		}),
		OperatorErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "fragscapy_operator_errors_total",
			Help: "Recoverable per-packet operator errors.",
		}),
		CasesPassed: factory.NewCounter(prometheus.CounterOpts{
			Name: "fragscapy_cases_passed_total",
			Help: "Test cases whose command exited zero.",
		}),
		CasesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "fragscapy_cases_failed_total",
			Help: "Test cases whose command exited nonzero.",
		}),
		CasesNotRun: factory.NewCounter(prometheus.CounterOpts{
			Name: "fragscapy_cases_not_run_total",
			Help: "Test cases aborted before the command ran.",
		}),
	}
}

// Handler returns an http.Handler serving these metrics in the Prometheus
// exposition format, for mounting at --metrics-addr.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
