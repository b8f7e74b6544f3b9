// Package prometheus exposes the engine's operational metrics.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var documentDurationBuckets = []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120}

// Collector holds every metric the engine emits.  It satisfies the
// application layer's metrics interface and feeds the HTTP middleware.
type Collector struct {
	documentsProcessed *prometheus.CounterVec
	documentDuration   *prometheus.HistogramVec
	duplicatesDetected *prometheus.CounterVec
	batchesProcessed   prometheus.Counter
	batchSize          prometheus.Histogram

	inferenceFallbacks prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewCollector registers all metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		documentsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "referta_documents_processed_total",
			Help: "Documents processed, by category and trend verdict.",
		}, []string{"category", "verdict"}),
		documentDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "referta_document_processing_seconds",
			Help:    "Per-document pipeline duration.",
			Buckets: documentDurationBuckets,
		}, []string{"category"}),
		duplicatesDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "referta_duplicates_detected_total",
			Help: "Documents rejected as duplicates, by category.",
		}, []string{"category"}),
		batchesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "referta_batches_processed_total",
			Help: "Analysis batches processed.",
		}),
		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "referta_batch_size",
			Help:    "Documents per analysis batch.",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
		inferenceFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "referta_inference_fallbacks_total",
			Help: "Comparisons resolved by the deterministic fallback.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "referta_http_requests_total",
			Help: "HTTP requests, by method, route, and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "referta_http_request_duration_seconds",
			Help:    "HTTP request duration, by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// DocumentProcessed records one completed document pipeline.
func (c *Collector) DocumentProcessed(category, verdict string, seconds float64) {
	c.documentsProcessed.WithLabelValues(category, verdict).Inc()
	c.documentDuration.WithLabelValues(category).Observe(seconds)
}

// DuplicateDetected records one rejected duplicate.
func (c *Collector) DuplicateDetected(category string) {
	c.duplicatesDetected.WithLabelValues(category).Inc()
}

// BatchProcessed records one completed batch.
func (c *Collector) BatchProcessed(size int) {
	c.batchesProcessed.Inc()
	c.batchSize.Observe(float64(size))
}

// InferenceFallback records one comparison the model could not resolve.
func (c *Collector) InferenceFallback() {
	c.inferenceFallbacks.Inc()
}

// ObserveHTTP records one handled HTTP request.
func (c *Collector) ObserveHTTP(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
