// Package metrics exposes Prometheus collectors for allocation runs.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "producao_"

	ResultSuccess      = "success"
	ResultDataQuality  = "data_quality"
	ResultConfig       = "configuration"
	ResultPartialWrite = "partial_write"
	ResultError        = "error"
)

var (
	registerOnce sync.Once

	runsTotal       *prometheus.CounterVec
	runLatency      *prometheus.HistogramVec
	workersPerRun   prometheus.Histogram
	publishFailures prometheus.Counter
	dataIssues      *prometheus.CounterVec
	exportsTotal    *prometheus.CounterVec
)

// Init registers the collectors on the default registry. Observers are
// no-ops until Init runs.
func Init() {
	registerOnce.Do(func() {
		runsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "runs_total",
				Help: "Total allocation runs by result and revenue mode",
			},
			[]string{"result", "mode"},
		)
		runLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "run_latency_seconds",
				Help:    "Allocation run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		workersPerRun = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "run_workers",
				Help:    "Workers paid per successful run",
				Buckets: prometheus.LinearBuckets(0, 10, 10),
			},
		)
		publishFailures = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "publish_failures_total",
				Help: "Total worker documents that failed to publish",
			},
		)
		dataIssues = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "data_quality_issues_total",
				Help: "Total data-quality issues found by code",
			},
			[]string{"code"},
		)
		exportsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "exports_total",
				Help: "Total snapshot exports by format and result",
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(runsTotal, runLatency, workersPerRun, publishFailures, dataIssues, exportsTotal)
	})
}

// ObserveRun records a run's outcome and latency.
func ObserveRun(result, mode string, workers int, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if mode == "" {
		mode = "unknown"
	}
	if runsTotal != nil {
		runsTotal.WithLabelValues(result, mode).Inc()
	}
	if runLatency != nil {
		runLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if workersPerRun != nil && result == ResultSuccess {
		workersPerRun.Observe(float64(workers))
	}
}

// AddPublishFailures counts documents that failed to publish.
func AddPublishFailures(count int) {
	if count <= 0 {
		return
	}
	if publishFailures != nil {
		publishFailures.Add(float64(count))
	}
}

// IncDataIssue counts one data-quality issue.
func IncDataIssue(code string) {
	if code == "" {
		code = "unknown"
	}
	if dataIssues != nil {
		dataIssues.WithLabelValues(code).Inc()
	}
}

// IncExport counts one export.
func IncExport(format, result string) {
	if result == "" {
		result = ResultSuccess
	}
	if exportsTotal != nil {
		exportsTotal.WithLabelValues(format, result).Inc()
	}
}
