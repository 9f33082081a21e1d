package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aluiziolira/jbscrape/models"
)

// Metrics bundles Prometheus collectors shared by all sources.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RecordsTotal    *prometheus.CounterVec
	RetriesTotal    *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jbscrape_requests_total",
			Help: "Total marketplace requests issued.",
		},
		[]string{"source"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jbscrape_request_duration_seconds",
			Help:    "Marketplace request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jbscrape_records_emitted_total",
			Help: "Raw listing records handed to the pipeline.",
		},
		[]string{"source"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jbscrape_retries_total",
			Help: "Retry attempts scheduled.",
		},
		[]string{"source"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jbscrape_errors_total",
			Help: "Failed marketplace requests by type.",
		},
		[]string{"source", "error_type"},
	)

	registry.MustRegister(requests, requestDuration, records, retries, errorsTotal)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		RecordsTotal:    records,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
	}
}

func (m *Metrics) incRequest(src models.Source) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(string(src)).Inc()
}

func (m *Metrics) observeDuration(src models.Source, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(string(src)).Observe(d.Seconds())
}

func (m *Metrics) incRecords(src models.Source) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(string(src)).Inc()
}

func (m *Metrics) incRetries(src models.Source) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(string(src)).Inc()
}

func (m *Metrics) incError(src models.Source, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(string(src), errorType).Inc()
}
