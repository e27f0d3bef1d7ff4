package observability

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the batch orchestrator.
type Metrics struct {
	registry *prometheus.Registry

	invoicesGeneratedTotal    *prometheus.CounterVec
	invoicesFailedTotal       *prometheus.CounterVec
	invoicesSkippedTotal      *prometheus.CounterVec
	invoiceGenerationDuration *prometheus.HistogramVec
	batchesTotal              *prometheus.CounterVec
	batchDuration             prometheus.Histogram
	workerInflight            prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		invoicesGeneratedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "billing_engine",
				Name:      "invoices_generated_total",
				Help:      "Total number of invoices generated successfully.",
			},
			[]string{"recipient_type"},
		),
		invoicesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "billing_engine",
				Name:      "invoices_failed_total",
				Help:      "Total number of invoice generations that ended in failure.",
			},
			[]string{"recipient_type", "reason"},
		),
		invoicesSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "billing_engine",
				Name:      "invoices_skipped_total",
				Help:      "Total number of recipients skipped during a batch run.",
			},
			[]string{"recipient_type", "reason"},
		),
		invoiceGenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "billing_engine",
				Name:      "invoice_generation_duration_seconds",
				Help:      "Per-recipient invoice generation duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"recipient_type"},
		),
		batchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "billing_engine",
				Name:      "batches_total",
				Help:      "Total number of batch runs grouped by terminal status.",
			},
			[]string{"status"},
		),
		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "billing_engine",
				Name:      "batch_duration_seconds",
				Help:      "End-to-end batch run duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		workerInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "billing_engine",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight invoice generations.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.invoicesGeneratedTotal,
		m.invoicesFailedTotal,
		m.invoicesSkippedTotal,
		m.invoiceGenerationDuration,
		m.batchesTotal,
		m.batchDuration,
		m.workerInflight,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncInvoiceGenerated(recipientType string) {
	if m == nil {
		return
	}
	m.invoicesGeneratedTotal.WithLabelValues(normalizeLabel(recipientType)).Inc()
}

func (m *Metrics) IncInvoiceFailed(recipientType string, reason string) {
	if m == nil {
		return
	}
	m.invoicesFailedTotal.WithLabelValues(normalizeLabel(recipientType), normalizeLabel(reason)).Inc()
}

func (m *Metrics) IncInvoiceSkipped(recipientType string, reason string) {
	if m == nil {
		return
	}
	m.invoicesSkippedTotal.WithLabelValues(normalizeLabel(recipientType), normalizeLabel(reason)).Inc()
}

func (m *Metrics) ObserveInvoiceGenerationDuration(recipientType string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.invoiceGenerationDuration.WithLabelValues(normalizeLabel(recipientType)).Observe(seconds)
}

func (m *Metrics) IncBatch(status string) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *Metrics) ObserveBatchDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.batchDuration.Observe(seconds)
}

func (m *Metrics) IncWorkerInFlight() {
	if m == nil {
		return
	}
	m.workerInflight.Inc()
}

func (m *Metrics) DecWorkerInFlight() {
	if m == nil {
		return
	}
	m.workerInflight.Dec()
}

func normalizeLabel(label string) string {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
