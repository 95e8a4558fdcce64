// Package metrics exposes the Prometheus instrumentation for the retry
// state machine, the readahead predictor, and the directory/DNLC cache.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every counter/gauge the client records. Constructed once
// per process against a dedicated registry so tests can create isolated
// instances without colliding on the global default registry.
type Metrics struct {
	Registry *prometheus.Registry

	RPCRetriesTotal      *prometheus.CounterVec
	RPCFailuresTotal     *prometheus.CounterVec
	ReadaheadActivations prometheus.Counter
	DNLCLookupsTotal     *prometheus.CounterVec
	TaskSlotsInUse        prometheus.Gauge
	TaskSlotsCapacity      prometheus.Gauge
}

// New constructs and registers the full metric set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		RPCRetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aznfsc",
			Name:      "rpc_retries_total",
			Help:      "RPC submissions retried, by NFS procedure and outcome kind.",
		}, []string{"proc", "kind"}),

		RPCFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aznfsc",
			Name:      "rpc_failures_total",
			Help:      "RPC submissions that ultimately failed, by NFS procedure.",
		}, []string{"proc"}),

		ReadaheadActivations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "aznfsc",
			Name:      "readahead_activations_total",
			Help:      "Number of times the readahead predictor issued a prefetch window.",
		}),

		DNLCLookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aznfsc",
			Name:      "dnlc_lookups_total",
			Help:      "Directory-name-lookup-cache lookups, by result.",
		}, []string{"result"}), // hit, miss, negative

		TaskSlotsInUse: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "aznfsc",
			Name:      "task_slots_in_use",
			Help:      "Outstanding RPC task slots currently allocated.",
		}),

		TaskSlotsCapacity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "aznfsc",
			Name:      "task_slots_capacity",
			Help:      "Fixed capacity of the RPC task slot pool.",
		}),
	}
}

// Handler returns the HTTP handler to serve this instance's registry on
// the configured metrics address.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
