package scopekit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the permission engine.
// All recording methods are nil-safe so instrumentation stays optional.
type Metrics struct {
	// Decision metrics
	ChecksTotal   *prometheus.CounterVec
	CheckDuration *prometheus.HistogramVec

	// Rule cache metrics
	CacheHitsTotal          prometheus.Counter
	CacheMissesTotal        prometheus.Counter
	CacheInvalidationsTotal prometheus.Counter

	// Collaborator lookup failures (fail-closed denials)
	LookupErrorsTotal *prometheus.CounterVec

	// Expired-assignment sweep metrics
	SweepRunsTotal        prometheus.Counter
	SweptAssignmentsTotal prometheus.Counter
	SweepErrorsTotal      prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics on the given
// registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scopekit_checks_total",
				Help: "Total number of access check decisions",
			},
			[]string{"resource_type", "action", "decision"},
		),
		CheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scopekit_check_duration_seconds",
				Help:    "Access check evaluation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resource_type"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scopekit_rule_cache_hits_total",
				Help: "Total number of effective-rule cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scopekit_rule_cache_misses_total",
				Help: "Total number of effective-rule cache misses",
			},
		),
		CacheInvalidationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scopekit_rule_cache_invalidations_total",
				Help: "Total number of effective-rule cache invalidations",
			},
		),
		LookupErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scopekit_lookup_errors_total",
				Help: "Total number of collaborator lookup failures during evaluation",
			},
			[]string{"lookup"},
		),
		SweepRunsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scopekit_sweep_runs_total",
				Help: "Total number of expired-assignment sweep runs",
			},
		),
		SweptAssignmentsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scopekit_swept_assignments_total",
				Help: "Total number of expired role assignments deleted by the sweeper",
			},
		),
		SweepErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scopekit_sweep_errors_total",
				Help: "Total number of failed sweep runs",
			},
		),
	}

	registry.MustRegister(
		m.ChecksTotal,
		m.CheckDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheInvalidationsTotal,
		m.LookupErrorsTotal,
		m.SweepRunsTotal,
		m.SweptAssignmentsTotal,
		m.SweepErrorsTotal,
	)

	return m
}

func (m *Metrics) recordDecision(resourceType ResourceType, action Action, allowed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.ChecksTotal.WithLabelValues(string(resourceType), string(action), decision).Inc()
	m.CheckDuration.WithLabelValues(string(resourceType)).Observe(elapsed.Seconds())
}

func (m *Metrics) recordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) recordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

func (m *Metrics) recordCacheInvalidation(n int) {
	if m == nil {
		return
	}
	m.CacheInvalidationsTotal.Add(float64(n))
}

func (m *Metrics) recordLookupError(lookup string) {
	if m == nil {
		return
	}
	m.LookupErrorsTotal.WithLabelValues(lookup).Inc()
}

func (m *Metrics) recordSweep(deleted int, err error) {
	if m == nil {
		return
	}
	m.SweepRunsTotal.Inc()
	if err != nil {
		m.SweepErrorsTotal.Inc()
		return
	}
	m.SweptAssignmentsTotal.Add(float64(deleted))
}
