package hydrate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures coordinator metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "replay").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for hydration duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures coordinator metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the hydration duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "replay",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus metrics for one coordinator. A nil *Metrics
// is valid and records nothing, so construction stays optional.
//
// Metrics collected:
//   - replay_events_total: Counter of routed events by route and phase
//   - replay_events_replayed_total: Counter of queued events replayed
//   - replay_events_requeued_total: Counter of requeue decisions
//   - replay_queue_depth: Gauge of events awaiting replay
//   - replay_fragments_hydrating: Gauge of fragments with hydration in flight
//   - replay_fragments_hydrated_total: Counter of fragments drained
//   - replay_hydration_failures_total: Counter of renderer failures by op
//   - replay_hydration_duration_seconds: Histogram of batch hydration time
//   - replay_handler_panics_total: Counter of recovered handler panics
type Metrics struct {
	eventsTotal       *prometheus.CounterVec
	replayedTotal     prometheus.Counter
	requeuedTotal     prometheus.Counter
	queueDepth        prometheus.Gauge
	hydrating         prometheus.Gauge
	hydratedTotal     prometheus.Counter
	hydrationFailures *prometheus.CounterVec
	hydrationDuration prometheus.Histogram
	handlerPanics     prometheus.Counter
}

// NewMetrics registers and returns coordinator metrics.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	if len(config.Buckets) == 0 {
		config.Buckets = prometheus.DefBuckets
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "events_total",
			Help:        "Total events routed through the coordinator",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "phase"}),

		replayedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "events_replayed_total",
			Help:        "Queued events replayed after hydration",
			ConstLabels: config.ConstLabels,
		}),

		requeuedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "events_requeued_total",
			Help:        "Requeue decisions made during drain passes",
			ConstLabels: config.ConstLabels,
		}),

		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "queue_depth",
			Help:        "Events currently awaiting replay",
			ConstLabels: config.ConstLabels,
		}),

		hydrating: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "fragments_hydrating",
			Help:        "Fragments with hydration in flight",
			ConstLabels: config.ConstLabels,
		}),

		hydratedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "fragments_hydrated_total",
			Help:        "Fragments hydrated and drained",
			ConstLabels: config.ConstLabels,
		}),

		hydrationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "hydration_failures_total",
			Help:        "Renderer failures by operation",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		hydrationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "hydration_duration_seconds",
			Help:        "Time from hydration trigger to drain completion",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		handlerPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "handler_panics_total",
			Help:        "Recovered panics from stashed handlers",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func (m *Metrics) recordEvent(route, phase string) {
	if m != nil {
		m.eventsTotal.WithLabelValues(route, phase).Inc()
	}
}

func (m *Metrics) recordReplayed(n int) {
	if m != nil && n > 0 {
		m.replayedTotal.Add(float64(n))
	}
}

func (m *Metrics) recordRequeued(n int) {
	if m != nil && n > 0 {
		m.requeuedTotal.Add(float64(n))
	}
}

func (m *Metrics) setQueueDepth(n int) {
	if m != nil {
		m.queueDepth.Set(float64(n))
	}
}

func (m *Metrics) hydrationStarted(fragments int) {
	if m != nil {
		m.hydrating.Add(float64(fragments))
	}
}

func (m *Metrics) hydrationDrained(fragments int, elapsed time.Duration) {
	if m != nil {
		m.hydrating.Sub(float64(fragments))
		m.hydratedTotal.Add(float64(fragments))
		m.hydrationDuration.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) recordFailure(op string) {
	if m != nil {
		m.hydrationFailures.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) recordPanic() {
	if m != nil {
		m.handlerPanics.Inc()
	}
}
