package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// event pipeline and the safety engine.
type Metrics struct {
	// Pipeline metrics.
	EventsProcessed *prometheus.CounterVec // labels: outcome={assessed,error,skipped,conflict}
	ScorerDuration  prometheus.Histogram
	PollCycles      prometheus.Counter
	PollBatchSize   prometheus.Histogram
	PipelineRunning prometheus.Gauge

	// Push delivery metrics.
	NotificationsConsumed prometheus.Counter
	AlertsPublished       prometheus.Counter

	// Safety engine metrics.
	SafetyQueries   *prometheus.CounterVec   // labels: operation={threats_nearby,routes_analyze,safety_check}, outcome={ok,error}
	MapsAPIDuration *prometheus.HistogramVec // labels: method={places,directions}
	PlacesCache     *prometheus.CounterVec   // labels: result={hit,miss}
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crisis_safety",
			Name:      "events_processed_total",
			Help:      "Event state transitions attempted, by outcome.",
		}, []string{"outcome"}),
		ScorerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crisis_safety",
			Name:      "scorer_duration_seconds",
			Help:      "Risk classifier call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		PollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crisis_safety",
			Name:      "poll_cycles_total",
			Help:      "Completed polling cycles.",
		}),
		PollBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crisis_safety",
			Name:      "poll_batch_size",
			Help:      "Number of NEW events found per polling cycle.",
			Buckets:   []float64{0, 1, 5, 10, 20, 30, 40, 50},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crisis_safety",
			Name:      "pipeline_running",
			Help:      "1 when the polling loop is active, 0 when shut down.",
		}),
		NotificationsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crisis_safety",
			Name:      "notifications_consumed_total",
			Help:      "Push-mode wake-up messages consumed.",
		}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crisis_safety",
			Name:      "alerts_published_total",
			Help:      "Assessed-event alert messages published.",
		}),
		SafetyQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crisis_safety",
			Name:      "safety_queries_total",
			Help:      "Safety engine queries by operation and outcome.",
		}, []string{"operation", "outcome"}),
		MapsAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crisis_safety",
			Name:      "maps_api_duration_seconds",
			Help:      "Mapping provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
		}, []string{"method"}),
		PlacesCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crisis_safety",
			Name:      "places_cache_total",
			Help:      "Nearby-places cache lookups by result.",
		}, []string{"result"}),
	}

	prometheus.MustRegister(
		m.EventsProcessed,
		m.ScorerDuration,
		m.PollCycles,
		m.PollBatchSize,
		m.PipelineRunning,
		m.NotificationsConsumed,
		m.AlertsPublished,
		m.SafetyQueries,
		m.MapsAPIDuration,
		m.PlacesCache,
	)

	return m
}

// NewMetricsForTesting creates Metrics with unregistered collectors to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		EventsProcessed:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "crisis_safety", Name: "events_processed_total"}, []string{"outcome"}),
		ScorerDuration:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "crisis_safety", Name: "scorer_duration_seconds"}),
		PollCycles:            prometheus.NewCounter(prometheus.CounterOpts{Namespace: "crisis_safety", Name: "poll_cycles_total"}),
		PollBatchSize:         prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "crisis_safety", Name: "poll_batch_size"}),
		PipelineRunning:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "crisis_safety", Name: "pipeline_running"}),
		NotificationsConsumed: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "crisis_safety", Name: "notifications_consumed_total"}),
		AlertsPublished:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "crisis_safety", Name: "alerts_published_total"}),
		SafetyQueries:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "crisis_safety", Name: "safety_queries_total"}, []string{"operation", "outcome"}),
		MapsAPIDuration:       prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "crisis_safety", Name: "maps_api_duration_seconds"}, []string{"method"}),
		PlacesCache:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "crisis_safety", Name: "places_cache_total"}, []string{"result"}),
	}
}
