package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_DocumentProcessed(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.DocumentProcessed("laboratory", "unchanged", 0.8)
	c.DocumentProcessed("laboratory", "worsened", 1.2)
	c.DocumentProcessed("imaging", "unchanged", 0.4)

	assert.Equal(t, float64(2), testutil.ToFloat64(
		c.documentsProcessed.WithLabelValues("laboratory", "unchanged"))+testutil.ToFloat64(
		c.documentsProcessed.WithLabelValues("laboratory", "worsened")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		c.documentsProcessed.WithLabelValues("imaging", "unchanged")))
}

func TestCollector_DuplicatesAndBatches(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.DuplicateDetected("laboratory")
	c.DuplicateDetected("laboratory")
	c.BatchProcessed(3)
	c.InferenceFallback()

	assert.Equal(t, float64(2), testutil.ToFloat64(c.duplicatesDetected.WithLabelValues("laboratory")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.batchesProcessed))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.inferenceFallbacks))
}

func TestCollector_ObserveHTTP(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveHTTP("POST", "/api/v1/analyze", 200, 150*time.Millisecond)
	c.ObserveHTTP("POST", "/api/v1/analyze", 400, 5*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.httpRequests.WithLabelValues("POST", "/api/v1/analyze", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.httpRequests.WithLabelValues("POST", "/api/v1/analyze", "400")))
}
