// Package metrics defines the Prometheus metrics exported by the directory service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the namespace for all directory metrics.
	Namespace = "card_directory"

	crawlerSubsystem = "crawler"
	apiSubsystem     = "api"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Crawl pipeline
	URLsEnqueuedTotal    prometheus.Counter
	URLsProcessedTotal   *prometheus.CounterVec
	FetchDurationSeconds prometheus.Histogram
	QueueDepth           prometheus.Gauge
	CrawlRunning         prometheus.Gauge
	RunsStartedTotal     prometheus.Counter

	// HTTP API
	RequestsTotal          *prometheus.CounterVec
	RequestDurationSeconds *prometheus.HistogramVec
}

// New creates and registers all metrics with reg (nil = default registerer).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}
	m.initCrawlerMetrics(factory)
	m.initAPIMetrics(factory)
	return m
}

func (m *Metrics) initCrawlerMetrics(factory promauto.Factory) {
	m.URLsEnqueuedTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: crawlerSubsystem,
		Name:      "urls_enqueued_total",
		Help:      "Total number of URLs accepted into the crawl queue",
	})

	m.URLsProcessedTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: crawlerSubsystem,
		Name:      "urls_processed_total",
		Help:      "Total number of dequeued URLs by pipeline result",
	}, []string{"result", "error_type"})

	m.FetchDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: crawlerSubsystem,
		Name:      "fetch_duration_seconds",
		Help:      "Duration of page fetches in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 9), // 50ms to ~12.8s
	})

	m.QueueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: crawlerSubsystem,
		Name:      "queue_depth",
		Help:      "Number of URLs waiting in the crawl queue",
	})

	m.CrawlRunning = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: crawlerSubsystem,
		Name:      "running",
		Help:      "1 while a drain loop is active",
	})

	m.RunsStartedTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: crawlerSubsystem,
		Name:      "runs_started_total",
		Help:      "Total number of crawl runs started",
	})
}

func (m *Metrics) initAPIMetrics(factory promauto.Factory) {
	m.RequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: apiSubsystem,
		Name:      "requests_total",
		Help:      "Total number of HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	m.RequestDurationSeconds = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: apiSubsystem,
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
}

// Enqueued records n URLs accepted into the queue
func (m *Metrics) Enqueued(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.URLsEnqueuedTotal.Add(float64(n))
}

// Processed records the result of one pipeline run
func (m *Metrics) Processed(result, errorType string) {
	if m == nil {
		return
	}
	m.URLsProcessedTotal.WithLabelValues(result, errorType).Inc()
}

// ObserveFetch records how long a fetch took
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDurationSeconds.Observe(d.Seconds())
}

// SetQueueDepth records the current queue length
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// SetRunning records whether a drain loop is active
func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.CrawlRunning.Set(1)
		m.RunsStartedTotal.Inc()
		return
	}
	m.CrawlRunning.Set(0)
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}
