// Package metrics provides Prometheus instrumentation for the storage
// engine's disk, buffer pool, index, and catalog layers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the engine updates. A nil
// *Metrics is valid everywhere it is threaded through: every Record*
// method below is safe to call on a nil receiver and becomes a no-op,
// so embedders that don't want a Prometheus registry can pass nil.
type Metrics struct {
	BufferHitsTotal      prometheus.Counter
	BufferMissesTotal    prometheus.Counter
	BufferEvictionsTotal prometheus.Counter
	BufferPinnedPages    prometheus.Gauge

	DiskReadsTotal      prometheus.Counter
	DiskWritesTotal      prometheus.Counter
	DiskReadDuration     prometheus.Histogram
	DiskWriteDuration    prometheus.Histogram
	DiskAllocatedPages   prometheus.Gauge

	IndexSplitsTotal       *prometheus.CounterVec
	IndexMergesTotal       *prometheus.CounterVec
	IndexRedistributeTotal *prometheus.CounterVec

	CatalogTablesTotal prometheus.Gauge
	CatalogIndexesTotal prometheus.Gauge

	GrpcRequestsInFlight prometheus.Gauge
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
}

// New creates and registers the engine's metrics against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// registry across test binaries.
func New(reg prometheus.Registerer) *Metrics {
	fac := promauto.With(reg)

	return &Metrics{
		BufferHitsTotal: fac.NewCounter(prometheus.CounterOpts{
			Name: "relstore_buffer_pool_hits_total",
			Help: "Fetches satisfied without a disk read.",
		}),
		BufferMissesTotal: fac.NewCounter(prometheus.CounterOpts{
			Name: "relstore_buffer_pool_misses_total",
			Help: "Fetches that required a disk read.",
		}),
		BufferEvictionsTotal: fac.NewCounter(prometheus.CounterOpts{
			Name: "relstore_buffer_pool_evictions_total",
			Help: "Frames evicted by the LRU replacer.",
		}),
		BufferPinnedPages: fac.NewGauge(prometheus.GaugeOpts{
			Name: "relstore_buffer_pool_pinned_pages",
			Help: "Frames currently pinned.",
		}),
		DiskReadsTotal: fac.NewCounter(prometheus.CounterOpts{
			Name: "relstore_disk_reads_total",
			Help: "Physical page reads.",
		}),
		DiskWritesTotal: fac.NewCounter(prometheus.CounterOpts{
			Name: "relstore_disk_writes_total",
			Help: "Physical page writes.",
		}),
		DiskReadDuration: fac.NewHistogram(prometheus.HistogramOpts{
			Name:    "relstore_disk_read_duration_seconds",
			Help:    "Latency of a single page read.",
			Buckets: prometheus.DefBuckets,
		}),
		DiskWriteDuration: fac.NewHistogram(prometheus.HistogramOpts{
			Name:    "relstore_disk_write_duration_seconds",
			Help:    "Latency of a single page write.",
			Buckets: prometheus.DefBuckets,
		}),
		DiskAllocatedPages: fac.NewGauge(prometheus.GaugeOpts{
			Name: "relstore_disk_allocated_pages",
			Help: "Logical pages currently allocated.",
		}),
		IndexSplitsTotal: fac.NewCounterVec(prometheus.CounterOpts{
			Name: "relstore_index_splits_total",
			Help: "B+Tree node splits by node kind.",
		}, []string{"node"}),
		IndexMergesTotal: fac.NewCounterVec(prometheus.CounterOpts{
			Name: "relstore_index_merges_total",
			Help: "B+Tree node coalesces by node kind.",
		}, []string{"node"}),
		IndexRedistributeTotal: fac.NewCounterVec(prometheus.CounterOpts{
			Name: "relstore_index_redistributes_total",
			Help: "B+Tree sibling redistributions by node kind.",
		}, []string{"node"}),
		CatalogTablesTotal: fac.NewGauge(prometheus.GaugeOpts{
			Name: "relstore_catalog_tables_total",
			Help: "Tables currently registered in the catalog.",
		}),
		CatalogIndexesTotal: fac.NewGauge(prometheus.GaugeOpts{
			Name: "relstore_catalog_indexes_total",
			Help: "Indexes currently registered in the catalog.",
		}),
		GrpcRequestsInFlight: fac.NewGauge(prometheus.GaugeOpts{
			Name: "relstore_grpc_requests_in_flight",
			Help: "Admin RPCs currently being handled.",
		}),
		GrpcRequestsTotal: fac.NewCounterVec(prometheus.CounterOpts{
			Name: "relstore_grpc_requests_total",
			Help: "Admin RPCs completed, by method and status.",
		}, []string{"method", "status"}),
		GrpcRequestDuration: fac.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relstore_grpc_request_duration_seconds",
			Help:    "Latency of an admin RPC.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

func (m *Metrics) bufferHit() {
	if m != nil {
		m.BufferHitsTotal.Inc()
	}
}

func (m *Metrics) bufferMiss() {
	if m != nil {
		m.BufferMissesTotal.Inc()
	}
}

// RecordFetch records a FetchPage outcome.
func (m *Metrics) RecordFetch(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.bufferHit()
	} else {
		m.bufferMiss()
	}
}

// RecordEviction records a replacer victim selection.
func (m *Metrics) RecordEviction() {
	if m != nil {
		m.BufferEvictionsTotal.Inc()
	}
}

// SetPinnedPages updates the pinned-frame gauge.
func (m *Metrics) SetPinnedPages(n int) {
	if m != nil {
		m.BufferPinnedPages.Set(float64(n))
	}
}

// SetAllocatedPages updates the allocated-logical-page gauge.
func (m *Metrics) SetAllocatedPages(n int) {
	if m != nil {
		m.DiskAllocatedPages.Set(float64(n))
	}
}

// RecordRead records a physical page read and its latency.
func (m *Metrics) RecordRead(seconds float64) {
	if m == nil {
		return
	}
	m.DiskReadsTotal.Inc()
	m.DiskReadDuration.Observe(seconds)
}

// RecordWrite records a physical page write and its latency.
func (m *Metrics) RecordWrite(seconds float64) {
	if m == nil {
		return
	}
	m.DiskWritesTotal.Inc()
	m.DiskWriteDuration.Observe(seconds)
}

// RecordSplit records a B+Tree node split.
func (m *Metrics) RecordSplit(node string) {
	if m != nil {
		m.IndexSplitsTotal.WithLabelValues(node).Inc()
	}
}

// RecordMerge records a B+Tree node coalesce.
func (m *Metrics) RecordMerge(node string) {
	if m != nil {
		m.IndexMergesTotal.WithLabelValues(node).Inc()
	}
}

// RecordRedistribute records a B+Tree sibling redistribution.
func (m *Metrics) RecordRedistribute(node string) {
	if m != nil {
		m.IndexRedistributeTotal.WithLabelValues(node).Inc()
	}
}

// SetCatalogCounts updates the catalog gauges.
func (m *Metrics) SetCatalogCounts(tables, indexes int) {
	if m == nil {
		return
	}
	m.CatalogTablesTotal.Set(float64(tables))
	m.CatalogIndexesTotal.Set(float64(indexes))
}

// RecordGrpcRequest records a completed admin RPC's status and latency.
func (m *Metrics) RecordGrpcRequest(method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}
