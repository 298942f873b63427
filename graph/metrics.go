// Package graph provides the core graph execution engine and runtime for the evolutionary beam search orchestrator.
package graph

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics provides Prometheus-compatible metrics collection for
// simulation runs in production environments.
//
// Metrics exposed (all namespaced with "ebs_"):
//
// 1. node_visits_total (counter): Number of times each node has run.
// Labels: run_id, node_id.
//
// 2. iteration (gauge): Current iteration number of the running simulation.
// Labels: run_id.
//
// 3. step_latency_ms (histogram): Node execution duration in milliseconds.
// Labels: run_id, node_id, status (success/error).
//
// 4. convergence_events_total (counter): Convergence criteria satisfied.
// Labels: run_id, criterion.
//
// 5. hil_latency_ms (histogram): Wall-clock time a human took to respond to
// an ask_human request.
// Labels: run_id.
//
// 6. kb_writes_total (counter): Knowledge base archive writes.
// Labels: run_id, kind (experience/strategy).
//
// Thread-safe: All methods use mutex protection or Prometheus's own atomics.
type PrometheusMetrics struct {
	nodeVisits  *prometheus.CounterVec
	iteration   *prometheus.GaugeVec
	stepLatency *prometheus.HistogramVec
	convergence *prometheus.CounterVec
	hilLatency  *prometheus.HistogramVec
	kbWrites    *prometheus.CounterVec

	registry prometheus.Registerer
	mu       sync.RWMutex
	enabled  bool
}

// NewPrometheusMetrics creates and registers all simulation metrics with the
// provided Prometheus registry.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	pm := &PrometheusMetrics{registry: registry, enabled: true}

	pm.nodeVisits = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ebs",
		Name:      "node_visits_total",
		Help:      "Number of times each node has executed",
	}, []string{"run_id", "node_id"})

	pm.iteration = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ebs",
		Name:      "iteration",
		Help:      "Current iteration number of the running simulation",
	}, []string{"run_id"})

	pm.stepLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ebs",
		Name:      "step_latency_ms",
		Help:      "Node execution duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000},
	}, []string{"run_id", "node_id", "status"})

	pm.convergence = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ebs",
		Name:      "convergence_events_total",
		Help:      "Convergence criteria satisfied during a simulation run",
	}, []string{"run_id", "criterion"})

	pm.hilLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ebs",
		Name:      "hil_latency_ms",
		Help:      "Wall-clock time between an ask_human request and its response",
		Buckets:   []float64{100, 500, 1000, 5000, 30000, 60000, 300000, 1800000},
	}, []string{"run_id"})

	pm.kbWrites = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ebs",
		Name:      "kb_writes_total",
		Help:      "Knowledge base archive writes",
	}, []string{"run_id", "kind"})

	return pm
}

// RecordStepLatency records the execution duration of a node.
func (pm *PrometheusMetrics) RecordStepLatency(runID, nodeID string, latency time.Duration, status string) {
	if !pm.isEnabled() {
		return
	}
	pm.stepLatency.WithLabelValues(runID, nodeID, status).Observe(float64(latency.Milliseconds()))
}

// IncrementNodeVisits records a node execution.
func (pm *PrometheusMetrics) IncrementNodeVisits(runID, nodeID string) {
	if !pm.isEnabled() {
		return
	}
	pm.nodeVisits.WithLabelValues(runID, nodeID).Inc()
}

// SetIteration records the current iteration number of a run.
func (pm *PrometheusMetrics) SetIteration(runID string, iteration int) {
	if !pm.isEnabled() {
		return
	}
	pm.iteration.WithLabelValues(runID).Set(float64(iteration))
}

// IncrementConvergence records a convergence criterion being satisfied.
func (pm *PrometheusMetrics) IncrementConvergence(runID, criterion string) {
	if !pm.isEnabled() {
		return
	}
	pm.convergence.WithLabelValues(runID, criterion).Inc()
}

// RecordHILLatency records the time a human took to respond to an ask_human request.
func (pm *PrometheusMetrics) RecordHILLatency(runID string, latency time.Duration) {
	if !pm.isEnabled() {
		return
	}
	pm.hilLatency.WithLabelValues(runID).Observe(float64(latency.Milliseconds()))
}

// IncrementKBWrites records a knowledge base archive write.
func (pm *PrometheusMetrics) IncrementKBWrites(runID, kind string) {
	if !pm.isEnabled() {
		return
	}
	pm.kbWrites.WithLabelValues(runID, kind).Inc()
}

func (pm *PrometheusMetrics) isEnabled() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// Disable temporarily disables metric recording (useful for testing).
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable().
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}
