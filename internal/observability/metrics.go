// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "research_trends"

// Metrics holds the pipeline counters and histograms. Each Metrics owns its
// registry so tests and concurrent runs never collide on registration.
type Metrics struct {
	Registry *prometheus.Registry

	// StageRuns counts stage executions by stage and result status.
	StageRuns *prometheus.CounterVec

	// StageDuration observes stage wall time in seconds.
	StageDuration *prometheus.HistogramVec

	// WorkflowRuns counts finished workflow runs by final status.
	WorkflowRuns *prometheus.CounterVec

	// PapersProcessed counts per-paper outcomes (added, matched, summarized, reused, failed...).
	PapersProcessed *prometheus.CounterVec

	// LLMRequests counts LLM invocations by outcome.
	LLMRequests *prometheus.CounterVec
}

// NewMetrics creates the pipeline metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		StageRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Stage executions by stage and result status.",
		}, []string{"stage", "status"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Stage execution time in seconds.",
			Buckets:   []float64{0.1, 1, 5, 30, 60, 300, 900, 1800, 3600},
		}, []string{"stage"}),
		WorkflowRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Workflow runs by final status.",
		}, []string{"status"}),
		PapersProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_processed_total",
			Help:      "Per-paper outcomes by stage.",
		}, []string{"stage", "outcome"}),
		LLMRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "LLM invocations by outcome.",
		}, []string{"status"}),
	}
}

// ObserveStage records one stage execution. A nil Metrics is a no-op.
func (m *Metrics) ObserveStage(stage, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StageRuns.WithLabelValues(stage, status).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ObserveWorkflow records a finished run.
func (m *Metrics) ObserveWorkflow(status string) {
	if m == nil {
		return
	}
	m.WorkflowRuns.WithLabelValues(status).Inc()
}

// AddPapers adds n to the per-paper outcome counter.
func (m *Metrics) AddPapers(stage, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PapersProcessed.WithLabelValues(stage, outcome).Add(float64(n))
}

// ObserveLLM records one LLM invocation outcome.
func (m *Metrics) ObserveLLM(status string) {
	if m == nil {
		return
	}
	m.LLMRequests.WithLabelValues(status).Inc()
}

// WriteTextfile writes the registry in the Prometheus text format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
