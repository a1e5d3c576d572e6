package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	LLMCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_call_latency_ms",
			Help:    "LLM extraction call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"provider", "status"},
	)

	ImportRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_import_runs_total",
			Help: "Total number of import runs",
		},
		[]string{"status"}, // complete, error
	)

	// outcome: new, duplicate, extract_failed, save_failed
	InvoicesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoices_processed_total",
			Help: "Invoices processed by the importer, by outcome",
		},
		[]string{"outcome"},
	)
)

func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func RecordLLMCall(provider, status string, duration time.Duration) {
	LLMCallLatency.WithLabelValues(provider, status).Observe(float64(duration.Milliseconds()))
}

func RecordImportRun(status string) {
	ImportRuns.WithLabelValues(status).Inc()
}

func RecordInvoices(outcome string, n int) {
	if n <= 0 {
		return
	}
	InvoicesProcessed.WithLabelValues(outcome).Add(float64(n))
}
