// Package metrics exposes Prometheus instrumentation for the reactive core
// and the job scheduler.
//
// Collection is opt-in: until Enable is called, every Record function is a
// no-op with negligible overhead, so the core packages can call them
// unconditionally.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures metric registration.
type Config struct {
	// Namespace is the metrics namespace (default: "reflow").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for flush duration.
	// Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// Option configures metric registration.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the flush-duration histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "reflow",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// collector holds the registered metrics.
type collector struct {
	effectRuns         prometheus.Counter
	triggersTotal      *prometheus.CounterVec
	flushesTotal       prometheus.Counter
	flushDuration      prometheus.Histogram
	jobsExecuted       prometheus.Counter
	jobErrors          prometheus.Counter
	queueDepth         prometheus.Gauge
	recursionLimitHits prometheus.Counter
}

var (
	globalCollector *collector
	globalMu        sync.Mutex
)

// Enable registers the metrics and turns recording on. Calling it twice is
// a no-op; the first configuration wins.
//
// Metrics registered:
//   - reflow_effect_runs_total: Counter of tracked effect executions
//   - reflow_triggers_total: Counter of change notifications by kind
//   - reflow_flushes_total: Counter of scheduler flush passes
//   - reflow_flush_duration_seconds: Histogram of flush wall time
//   - reflow_jobs_executed_total: Counter of scheduler job invocations
//   - reflow_job_errors_total: Counter of recovered job panics
//   - reflow_queue_depth: Gauge of the main queue length at enqueue time
//   - reflow_recursion_limit_hits_total: Counter of jobs skipped by the
//     recursion guard
func Enable(opts ...Option) {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCollector != nil {
		return
	}
	globalCollector = initCollector(config)
}

func initCollector(config Config) *collector {
	factory := promauto.With(config.Registry)

	return &collector{
		effectRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_runs_total",
			Help:        "Total number of tracked effect executions",
			ConstLabels: config.ConstLabels,
		}),

		triggersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "triggers_total",
			Help:        "Total number of change notifications by kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		flushesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flushes_total",
			Help:        "Total number of scheduler flush passes",
			ConstLabels: config.ConstLabels,
		}),

		flushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_duration_seconds",
			Help:        "Scheduler flush duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		jobsExecuted: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "jobs_executed_total",
			Help:        "Total number of scheduler job invocations",
			ConstLabels: config.ConstLabels,
		}),

		jobErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "job_errors_total",
			Help:        "Total number of recovered job panics",
			ConstLabels: config.ConstLabels,
		}),

		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "queue_depth",
			Help:        "Main queue length observed at enqueue time",
			ConstLabels: config.ConstLabels,
		}),

		recursionLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "recursion_limit_hits_total",
			Help:        "Total number of jobs skipped by the recursion guard",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// =============================================================================
// Recording Functions
// =============================================================================

// RecordEffectRun records one tracked effect execution.
func RecordEffectRun() {
	if c := current(); c != nil {
		c.effectRuns.Inc()
	}
}

// RecordTrigger records a change notification of the given kind.
func RecordTrigger(kind string) {
	if c := current(); c != nil {
		c.triggersTotal.WithLabelValues(kind).Inc()
	}
}

// RecordFlush records one completed flush pass and its duration.
func RecordFlush(d time.Duration) {
	if c := current(); c != nil {
		c.flushesTotal.Inc()
		c.flushDuration.Observe(d.Seconds())
	}
}

// RecordJobRun records one scheduler job invocation.
func RecordJobRun() {
	if c := current(); c != nil {
		c.jobsExecuted.Inc()
	}
}

// RecordJobError records a recovered job panic.
func RecordJobError() {
	if c := current(); c != nil {
		c.jobErrors.Inc()
	}
}

// RecordQueueDepth records the main queue length.
func RecordQueueDepth(n int) {
	if c := current(); c != nil {
		c.queueDepth.Set(float64(n))
	}
}

// RecordRecursionLimit records a job skipped by the recursion guard.
func RecordRecursionLimit() {
	if c := current(); c != nil {
		c.recursionLimitHits.Inc()
	}
}

func current() *collector {
	globalMu.Lock()
	c := globalCollector
	globalMu.Unlock()
	return c
}
