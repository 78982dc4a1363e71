package metrics

import (
	"net/http"

	"geotrack/internal/domain/tracking"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "geotrack"

// Drop reasons reported on results_dropped_total.
const (
	DropEmpty     = "empty"
	DropMalformed = "malformed"
	DropQueueFull = "queue_full"
	DropStale     = "stale"
)

// Metrics groups the tracker's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	state            prometheus.Gauge
	commands         *prometheus.CounterVec
	batchesDelivered prometheus.Counter
	samplesForwarded prometheus.Counter
	resultsDropped   *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracking_state",
			Help:      "1 while background tracking is active, 0 while idle.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Bridge commands handled, by method and outcome.",
		}, []string{"method", "outcome"}),
		batchesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_delivered_total",
			Help:      "Sample batches delivered by the location subscription.",
		}),
		samplesForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_forwarded_total",
			Help:      "Samples handed to the downstream sink.",
		}),
		resultsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_dropped_total",
			Help:      "Provider results or batches dropped before reaching the sink.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.state,
		m.commands,
		m.batchesDelivered,
		m.samplesForwarded,
		m.resultsDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SetState(state tracking.State) {
	if m == nil {
		return
	}
	if state.Active() {
		m.state.Set(1)
		return
	}
	m.state.Set(0)
}

func (m *Metrics) ObserveCommand(method, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) ObserveBatch() {
	if m == nil {
		return
	}
	m.batchesDelivered.Inc()
}

func (m *Metrics) ObserveForwarded(n int) {
	if m == nil {
		return
	}
	m.samplesForwarded.Add(float64(n))
}

func (m *Metrics) ObserveDropped(reason string) {
	if m == nil {
		return
	}
	m.resultsDropped.WithLabelValues(reason).Inc()
}
