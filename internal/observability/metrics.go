package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cvetrack"

// Metrics owns its registry so several instances (tests, sub-apps) never collide on
// the global default registerer. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	ingestRecords  *prometheus.CounterVec
	ingestBatches  *prometheus.CounterVec
	ingestDuration prometheus.Histogram

	fetchRuns     *prometheus.CounterVec
	fetchDocs     prometheus.Counter
	fetchDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	m.apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	m.apiInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "HTTP requests currently being served",
	})

	m.ingestRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_records_total",
			Help:      "CVE records processed by batch upload, by outcome",
		},
		[]string{"outcome"},
	)
	m.ingestBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_batches_total",
			Help:      "Batch uploads, by result",
		},
		[]string{"result"},
	)
	m.ingestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ingest_batch_duration_seconds",
		Help:      "Wall time of one batch upload",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	m.fetchRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_runs_total",
			Help:      "Fetch job iterations, by result",
		},
		[]string{"result"},
	)
	m.fetchDocs = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_documents_total",
		Help:      "Documents read from the source repository",
	})
	m.fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_run_duration_seconds",
		Help:      "Wall time of one fetch iteration",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests,
		m.apiLatency,
		m.apiInflight,
		m.ingestRecords,
		m.ingestBatches,
		m.ingestDuration,
		m.fetchRuns,
		m.fetchDocs,
		m.fetchDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) IncInflight() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) DecInflight() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

// ObserveIngest records one batch upload. ok=false means the batch was rolled back.
func (m *Metrics) ObserveIngest(inserted, updated, invalid int, ok bool, dur time.Duration) {
	if m == nil {
		return
	}
	result := "committed"
	if !ok {
		result = "rolled_back"
	} else {
		m.ingestRecords.WithLabelValues("inserted").Add(float64(inserted))
		m.ingestRecords.WithLabelValues("updated").Add(float64(updated))
	}
	m.ingestRecords.WithLabelValues("invalid").Add(float64(invalid))
	m.ingestBatches.WithLabelValues(result).Inc()
	m.ingestDuration.Observe(dur.Seconds())
}

func (m *Metrics) ObserveFetch(documents int, err error, dur time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.fetchRuns.WithLabelValues(result).Inc()
	m.fetchDocs.Add(float64(documents))
	m.fetchDuration.Observe(dur.Seconds())
}
