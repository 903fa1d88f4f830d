// Package middleware provides cross-cutting concerns for the prediction
// pipeline.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/courtside/propcast/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It provides real-time monitoring of batch throughput,
// worker performance, per-system abstention rates, and queue pressure.
type PrometheusMetrics struct {
	abstentionCounter *prometheus.CounterVec
	batchCounter      *prometheus.CounterVec
	operationCounter  *prometheus.CounterVec
	executionLatency  *prometheus.HistogramVec
	systemWeights     *prometheus.GaugeVec
	systemGauges      *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance and
// registers all required metrics in the global Prometheus registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		// Pipeline-specific metrics.
		abstentionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "method_abstentions_total",
				Help: "Total abstentions per scoring method.",
			},
			[]string{"system"},
		),
		batchCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batches_total",
				Help: "Total batches by lifecycle event and label.",
			},
			[]string{"event", "label"},
		),

		// General execution metrics for comprehensive observability.
		executionLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_operation_duration_seconds",
				Help:    "Execution time of pipeline operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		operationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_operations_total",
				Help: "Total operations performed by the pipeline.",
			},
			[]string{"operation"},
		),
		systemWeights: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "system_base_weight",
				Help: "Active base weight per scoring method.",
			},
			[]string{"system"},
		),
		systemGauges: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pipeline_system_state",
				Help: "Current system state values for the pipeline.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	_ map[string]string,
) {
	pm.executionLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by
// incrementing Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case "method_abstentions_total":
		pm.abstentionCounter.WithLabelValues(labels["system"]).Add(value)
	case "batches_created_total":
		pm.batchCounter.WithLabelValues("created", labels["scope"]).Add(value)
	case "batches_closed_total":
		pm.batchCounter.WithLabelValues("closed", labels["status"]).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	if metric == "system_base_weight" {
		pm.systemWeights.WithLabelValues(labels["system"]).Set(value)
		return
	}
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
