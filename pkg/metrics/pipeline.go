package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Order pipeline outcomes.
const (
	OutcomeCreated   = "created"
	OutcomeExisting  = "existing"
	OutcomeRetried   = "retried"
	OutcomeExhausted = "exhausted"
	OutcomeRejected  = "rejected"
)

// PipelineMetrics tracks order creation attempts.
type PipelineMetrics struct {
	outcomes *prometheus.CounterVec
	duration prometheus.Histogram
	failed   prometheus.Counter
}

// NewPipelineMetrics registers order pipeline metrics on reg. A nil reg yields a no-op recorder.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_order_pipeline_outcomes_total",
		Help: "Order pipeline runs by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fulfillment_order_pipeline_duration_seconds",
		Help:    "Duration of a single order pipeline attempt.",
		Buckets: prometheus.DefBuckets,
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_order_lines_failed_total",
		Help: "Order lines failed for insufficient stock.",
	})
	reg.MustRegister(outcomes, duration, failed)
	return &PipelineMetrics{outcomes: outcomes, duration: duration, failed: failed}
}

// Observe records one attempt with its outcome.
func (m *PipelineMetrics) Observe(outcome string, d time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.duration.Observe(d.Seconds())
}

// AddFailedLines counts lines rejected at stock decrement.
func (m *PipelineMetrics) AddFailedLines(n int) {
	if m == nil || m.failed == nil || n <= 0 {
		return
	}
	m.failed.Add(float64(n))
}
