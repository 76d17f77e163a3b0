// Package metrics exposes Prometheus collectors for the integrity engine.
//
// Every Collector owns its registry, so tests and multiple engines in one
// process never collide on registration. A nil *Collector is valid and
// records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "canon"

// Collector holds all Prometheus metrics for the engine.
type Collector struct {
	registry *prometheus.Registry

	Audits         *prometheus.CounterVec
	Issues         *prometheus.CounterVec
	Trips          *prometheus.CounterVec
	Resets         prometheus.Counter
	OracleCalls    *prometheus.CounterVec
	OracleDuration prometheus.Histogram
	GuardDenials   *prometheus.CounterVec
	StaleResults   prometheus.Counter
	StoreOps       *prometheus.CounterVec
}

// NewCollector creates a collector with the given namespace.
// An empty namespace means DefaultNamespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Audits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audits_total",
				Help:      "Total number of audits by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		Issues: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "issues_total",
				Help:      "Total number of verification issues by code and severity",
			},
			[]string{"code", "severity"},
		),
		Trips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breaker_trips_total",
				Help:      "Total number of circuit breaker trips by level",
			},
			[]string{"level"},
		),
		Resets: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breaker_resets_total",
				Help:      "Total number of manual circuit breaker resets",
			},
		),
		OracleCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "oracle_calls_total",
				Help:      "Total number of consistency oracle calls by status",
			},
			[]string{"status"},
		),
		OracleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "oracle_call_duration_seconds",
				Help:      "Consistency oracle call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		GuardDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "guard_denials_total",
				Help:      "Total number of access guard denials by code",
			},
			[]string{"code"},
		),
		StaleResults: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_results_total",
				Help:      "Branch audit results dropped because the branch changed",
			},
		),
		StoreOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Total number of store operations by operation and status",
			},
			[]string{"operation", "status"},
		),
	}

	registry.MustRegister(
		c.Audits,
		c.Issues,
		c.Trips,
		c.Resets,
		c.OracleCalls,
		c.OracleDuration,
		c.GuardDenials,
		c.StaleResults,
		c.StoreOps,
	)
	return c
}

// Registry returns the registry holding this collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordAudit counts one audit.
func (c *Collector) RecordAudit(kind, outcome string) {
	if c == nil {
		return
	}
	c.Audits.WithLabelValues(kind, outcome).Inc()
}

// RecordIssue counts one verification issue.
func (c *Collector) RecordIssue(code, severity string) {
	if c == nil {
		return
	}
	c.Issues.WithLabelValues(code, severity).Inc()
}

// RecordTrip counts a breaker transition into a tripped level.
func (c *Collector) RecordTrip(level string) {
	if c == nil {
		return
	}
	c.Trips.WithLabelValues(level).Inc()
}

// RecordReset counts a manual breaker reset.
func (c *Collector) RecordReset() {
	if c == nil {
		return
	}
	c.Resets.Inc()
}

// RecordOracleCall counts an oracle call and observes its duration.
func (c *Collector) RecordOracleCall(status string, seconds float64) {
	if c == nil {
		return
	}
	c.OracleCalls.WithLabelValues(status).Inc()
	c.OracleDuration.Observe(seconds)
}

// RecordGuardDenial counts a guard denial.
func (c *Collector) RecordGuardDenial(code string) {
	if c == nil {
		return
	}
	c.GuardDenials.WithLabelValues(code).Inc()
}

// RecordStaleResult counts a dropped branch audit result.
func (c *Collector) RecordStaleResult() {
	if c == nil {
		return
	}
	c.StaleResults.Inc()
}

// RecordStoreOp counts a store operation.
func (c *Collector) RecordStoreOp(operation string, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.StoreOps.WithLabelValues(operation, status).Inc()
}
