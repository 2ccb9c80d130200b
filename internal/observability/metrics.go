package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hotspot"

// Metrics holds the Prometheus collectors for the hotspot service.
type Metrics struct {
	// Ingest.
	RecordsKept    prometheus.Counter
	RecordsDropped *prometheus.CounterVec // labels: reason

	// Refresh loop.
	RefreshTotal       *prometheus.CounterVec // labels: outcome={success,error,stale,skipped}
	RefreshDuration    prometheus.Histogram
	RefreshToken       prometheus.Gauge
	WorkingSetSize     prometheus.Gauge
	RefreshLoopRunning prometheus.Gauge

	// Layer composition.
	LayerBuilds        prometheus.Counter
	LayerReuse         prometheus.Counter
	LayerBuildDuration prometheus.Histogram

	// Geocoding.
	GeocodeRequests    *prometheus.CounterVec   // labels: provider, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: provider
	SearchStale        prometheus.Counter

	// Interaction.
	Selections          *prometheus.CounterVec // labels: source={click,hover}
	SelectionIdleClears prometheus.Counter
}

// NewMetrics creates all service metrics and registers them with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so multiple tests can
// construct their own without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsKept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_kept_total",
			Help:      "Feed records that passed coordinate validation.",
		}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Feed records rejected by coordinate validation, by reason.",
		}, []string{"reason"}),
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Refresh attempts by outcome.",
		}, []string{"outcome"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a feed fetch plus validation.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		RefreshToken: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_token",
			Help:      "Token of the most recently applied record set.",
		}),
		WorkingSetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "working_set_size",
			Help:      "Records in the current working set.",
		}),
		RefreshLoopRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_loop_running",
			Help:      "1 while the refresh loop is active, 0 after it stops.",
		}),
		LayerBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layer_builds_total",
			Help:      "Layer sets constructed.",
		}),
		LayerReuse: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layer_reuse_total",
			Help:      "Compositions answered with the existing layer set.",
		}),
		LayerBuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layer_build_duration_seconds",
			Help:      "Time spent constructing a layer set.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Autocomplete requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Autocomplete cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Geocoding provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider"}),
		SearchStale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_stale_responses_total",
			Help:      "Autocomplete responses discarded because newer input arrived.",
		}),
		Selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Non-empty selections by pointer event source.",
		}, []string{"source"}),
		SelectionIdleClears: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selection_idle_clears_total",
			Help:      "Selections cleared by the idle timer.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RecordsKept,
		m.RecordsDropped,
		m.RefreshTotal,
		m.RefreshDuration,
		m.RefreshToken,
		m.WorkingSetSize,
		m.RefreshLoopRunning,
		m.LayerBuilds,
		m.LayerReuse,
		m.LayerBuildDuration,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.SearchStale,
		m.Selections,
		m.SelectionIdleClears,
	}
}
