// Package metrics provides Prometheus instrumentation for rate limiters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"learn.admission/config"
)

const (
	namespace = "admission"
	subsystem = "ratelimit"
)

// Eviction reasons used as the reason label of evictions_total.
const (
	ReasonIdle = "idle"
	ReasonLRU  = "lru"
)

// Registry holds all metric vectors. Limiters record through the
// RateLimitMetrics handle returned by ForLimiter.
type Registry struct {
	Requests  *prometheus.CounterVec
	Allowed   *prometheus.CounterVec
	Denied    *prometheus.CounterVec
	Errors    *prometheus.CounterVec
	Instances *prometheus.GaugeVec
	Evictions *prometheus.CounterVec
	Tokens    *prometheus.GaugeVec
}

// DefaultRegistry records into prometheus.DefaultRegisterer, which is what
// promhttp.Handler serves.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates and registers every metric vector with reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	labels := []string{"limiter_key", "algorithm"}

	return &Registry{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "requests_total",
				Help:      "Total number of admission decisions requested",
			},
			labels,
		),
		Allowed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "allowed_total",
				Help:      "Total number of allowed requests",
			},
			labels,
		),
		Denied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "denied_total",
				Help:      "Total number of denied requests",
			},
			labels,
		),
		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "errors_total",
				Help:      "Total number of requests that could not be decided",
			},
			labels,
		),
		Instances: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "registry_instances",
				Help:      "Number of client identities holding a limiter instance",
			},
			labels,
		),
		Evictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "evictions_total",
				Help:      "Total number of limiter instances evicted from the registry",
			},
			append(labels, "reason"),
		),
		Tokens: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tokens_available",
				Help:      "Remaining capacity of the most recently decided client identity",
			},
			labels,
		),
	}
}

// RateLimitMetrics records the metrics of one configured limiter. A nil
// *RateLimitMetrics records nothing.
type RateLimitMetrics struct {
	requests  prometheus.Counter
	allowed   prometheus.Counter
	denied    prometheus.Counter
	errors    prometheus.Counter
	instances prometheus.Gauge
	evictions *prometheus.CounterVec
	tokens    prometheus.Gauge
}

// ForLimiter binds the vectors to one limiter key and algorithm.
func (r *Registry) ForLimiter(key string, algorithm config.AlgorithmType) *RateLimitMetrics {
	l := prometheus.Labels{"limiter_key": key, "algorithm": string(algorithm)}
	return &RateLimitMetrics{
		requests:  r.Requests.With(l),
		allowed:   r.Allowed.With(l),
		denied:    r.Denied.With(l),
		errors:    r.Errors.With(l),
		instances: r.Instances.With(l),
		evictions: r.Evictions.MustCurryWith(l),
		tokens:    r.Tokens.With(l),
	}
}

// RecordRequest counts one decision.
func (m *RateLimitMetrics) RecordRequest(allowed bool) {
	if m == nil {
		return
	}
	m.requests.Inc()
	if allowed {
		m.allowed.Inc()
	} else {
		m.denied.Inc()
	}
}

// RecordError counts a request that failed before a decision was made.
func (m *RateLimitMetrics) RecordError() {
	if m == nil {
		return
	}
	m.requests.Inc()
	m.errors.Inc()
}

// SetInstances reports the registry size.
func (m *RateLimitMetrics) SetInstances(n int) {
	if m == nil {
		return
	}
	m.instances.Set(float64(n))
}

// RecordEviction counts one evicted instance.
func (m *RateLimitMetrics) RecordEviction(reason string) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(reason).Inc()
}

// SetTokens reports the remaining capacity observed after a decision.
func (m *RateLimitMetrics) SetTokens(v float64) {
	if m == nil {
		return
	}
	m.tokens.Set(v)
}
