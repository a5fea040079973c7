package promclient

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "depthbridge"

// Metrics holds the collectors of one process. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SyncPhase        *prometheus.GaugeVec
	Resyncs          *prometheus.CounterVec
	UpdatesApplied   *prometheus.CounterVec
	SnapshotFetches  *prometheus.CounterVec
	PendingEvents    *prometheus.GaugeVec
	StreamReconnects prometheus.Counter
	ArbitrageSignals *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SyncPhase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_phase",
			Help:      "Current sync phase per symbol: 0 awaiting snapshot, 1 buffering, 2 synced.",
		}, []string{"symbol"}),
		Resyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resyncs_total",
			Help:      "Number of order book resynchronizations.",
		}, []string{"symbol", "reason"}),
		UpdatesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_applied_total",
			Help:      "Number of published order book changes.",
		}, []string{"symbol"}),
		SnapshotFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_fetches_total",
			Help:      "Number of snapshot requests by result.",
		}, []string{"symbol", "result"}),
		PendingEvents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_events",
			Help:      "Number of buffered depth updates waiting for a snapshot.",
		}, []string{"symbol"}),
		StreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_reconnects_total",
			Help:      "Number of restored stream connections.",
		}),
		ArbitrageSignals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "arbitrage_signals_total",
			Help:      "Number of emitted arbitrage signals.",
		}, []string{"symbol"}),
	}

	m.registry.MustRegister(
		m.SyncPhase,
		m.Resyncs,
		m.UpdatesApplied,
		m.SnapshotFetches,
		m.PendingEvents,
		m.StreamReconnects,
		m.ArbitrageSignals,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetPhase(symbol string, phase int) {
	if m == nil {
		return
	}
	m.SyncPhase.WithLabelValues(symbol).Set(float64(phase))
}

func (m *Metrics) ObserveResync(symbol, reason string) {
	if m == nil {
		return
	}
	m.Resyncs.WithLabelValues(symbol, reason).Inc()
}

func (m *Metrics) ObserveApplied(symbol string) {
	if m == nil {
		return
	}
	m.UpdatesApplied.WithLabelValues(symbol).Inc()
}

func (m *Metrics) ObserveSnapshotFetch(symbol, result string) {
	if m == nil {
		return
	}
	m.SnapshotFetches.WithLabelValues(symbol, result).Inc()
}

func (m *Metrics) SetPending(symbol string, n int) {
	if m == nil {
		return
	}
	m.PendingEvents.WithLabelValues(symbol).Set(float64(n))
}

func (m *Metrics) ObserveReconnect() {
	if m == nil {
		return
	}
	m.StreamReconnects.Inc()
}

func (m *Metrics) ObserveSignal(symbol string) {
	if m == nil {
		return
	}
	m.ArbitrageSignals.WithLabelValues(symbol).Inc()
}

// Forget drops the per-symbol series of an untracked symbol.
func (m *Metrics) Forget(symbol string) {
	if m == nil {
		return
	}
	m.SyncPhase.DeleteLabelValues(symbol)
	m.PendingEvents.DeleteLabelValues(symbol)
}
