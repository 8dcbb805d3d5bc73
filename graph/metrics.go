// Package graph provides the sequential workflow execution engine.
package graph

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects Prometheus metrics for workflow execution,
// all namespaced "invoiced_":
//
//  1. stage_latency_ms (histogram): stage execution duration. Labels:
//     stage, status (completed/failed).
//  2. stage_retries_total (counter): retry attempts per stage. Labels:
//     stage, reason.
//  3. tool_calls_total (counter): Bigtool capability invocations. Labels:
//     capability, server, status.
//  4. hitl_pending (gauge): checkpoints currently awaiting a human
//     decision.
//  5. workflows_completed_total (counter): terminal workflow outcomes.
//     Labels: outcome (the terminal stage id, e.g. COMPLETE/MANUAL_HANDOFF).
type PrometheusMetrics struct {
	stageLatency       *prometheus.HistogramVec
	stageRetries       *prometheus.CounterVec
	toolCalls          *prometheus.CounterVec
	hitlPending        prometheus.Gauge
	workflowsCompleted *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics creates and registers all workflow metrics against
// registry (use prometheus.DefaultRegisterer for the global registry, or a
// fresh *prometheus.Registry for test isolation).
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	pm := &PrometheusMetrics{enabled: true}

	pm.stageLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "invoiced",
		Name:      "stage_latency_ms",
		Help:      "Stage execution duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000},
	}, []string{"stage", "status"})

	pm.stageRetries = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoiced",
		Name:      "stage_retries_total",
		Help:      "Cumulative stage retry attempts",
	}, []string{"stage", "reason"})

	pm.toolCalls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoiced",
		Name:      "tool_calls_total",
		Help:      "Bigtool capability invocations",
	}, []string{"capability", "server", "status"})

	pm.hitlPending = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "invoiced",
		Name:      "hitl_pending",
		Help:      "Checkpoints currently awaiting a human decision",
	})

	pm.workflowsCompleted = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoiced",
		Name:      "workflows_completed_total",
		Help:      "Terminal workflow outcomes",
	}, []string{"outcome"})

	return pm
}

// RecordStageLatency records how long a stage took and whether it
// succeeded.
func (pm *PrometheusMetrics) RecordStageLatency(stage string, latency time.Duration, status string) {
	if !pm.isEnabled() {
		return
	}
	pm.stageLatency.WithLabelValues(stage, status).Observe(float64(latency.Milliseconds()))
}

// IncrementStageRetries records a stage retry attempt.
func (pm *PrometheusMetrics) IncrementStageRetries(stage, reason string) {
	if !pm.isEnabled() {
		return
	}
	pm.stageRetries.WithLabelValues(stage, reason).Inc()
}

// IncrementToolCalls records a Bigtool capability invocation outcome.
func (pm *PrometheusMetrics) IncrementToolCalls(capability, server, status string) {
	if !pm.isEnabled() {
		return
	}
	pm.toolCalls.WithLabelValues(capability, server, status).Inc()
}

// SetHITLPending sets the current count of checkpoints awaiting a human
// decision.
func (pm *PrometheusMetrics) SetHITLPending(count int) {
	if !pm.isEnabled() {
		return
	}
	pm.hitlPending.Set(float64(count))
}

// IncrementWorkflowsCompleted records a terminal workflow outcome.
func (pm *PrometheusMetrics) IncrementWorkflowsCompleted(outcome string) {
	if !pm.isEnabled() {
		return
	}
	pm.workflowsCompleted.WithLabelValues(outcome).Inc()
}

func (pm *PrometheusMetrics) isEnabled() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// Disable turns off metric recording, useful in tests that don't want to
// register against the default registry repeatedly.
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable.
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}
