package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "payout-batch"
	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.IncSuccess(job)
	metrics.IncFailure(job)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "fulfillment_cron_job_success_total", "job", job); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "fulfillment_cron_job_failure_total", "job", job); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "fulfillment_cron_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

func TestPipelineMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)
	m.Observe(OutcomeCreated, 10*time.Millisecond)
	m.Observe(OutcomeCreated, 10*time.Millisecond)
	m.Observe(OutcomeExhausted, time.Second)
	m.AddFailedLines(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "fulfillment_order_pipeline_outcomes_total", "outcome", OutcomeCreated); err != nil || got != 2 {
		t.Fatalf("expected created=2, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "fulfillment_order_pipeline_outcomes_total", "outcome", OutcomeExhausted); err != nil || got != 1 {
		t.Fatalf("expected exhausted=1, got %f err=%v", got, err)
	}
	failed := findMetricFamily(mfs, "fulfillment_order_lines_failed_total")
	if failed == nil || failed.GetMetric()[0].GetCounter().GetValue() != 3 {
		t.Fatalf("expected 3 failed lines")
	}
}

func TestCarrierMetricsLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCarrierMetrics(reg)
	m.Inc("DHL", "open")
	m.Inc("", "ok")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "fulfillment_carrier_quotes_total", "outcome", "open"); err != nil || got != 1 {
		t.Fatalf("expected open=1, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "fulfillment_carrier_quotes_total", "carrier", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected unknown carrier label, got %f err=%v", got, err)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	NewPipelineMetrics(nil).Observe(OutcomeCreated, time.Second)
	NewCarrierMetrics(nil).Inc("DHL", "ok")
	NewCronJobMetrics(nil).IncSuccess("job")
	var m *PipelineMetrics
	m.AddFailedLines(1)
}
