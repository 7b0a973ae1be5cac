// Package metrics provides Prometheus instrumentation for the queue engine
// and the storage layer. Metrics are instance-scoped (registered against a
// caller-supplied Registerer) so embedding applications keep control of
// their registry; Nop() yields a fully functional set backed by a private
// registry for code paths that do not care.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bridgeq"

// Metrics holds the queue engine counters, labeled by channel.
type Metrics struct {
	Enqueued       *prometheus.CounterVec
	Delivered      *prometheus.CounterVec
	Replayed       *prometheus.CounterVec
	Duplicates     *prometheus.CounterVec
	Acked          *prometheus.CounterVec
	GCRemoved      *prometheus.CounterVec
	DecodeFailures *prometheus.CounterVec

	storage *StorageHook
}

// New registers the metric set against reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	byChannel := []string{"channel"}
	return &Metrics{
		Enqueued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_enqueued_total",
			Help:      "Messages persisted into the pending set",
		}, byChannel),
		Delivered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_total",
			Help:      "Messages emitted to the observer stream",
		}, byChannel),
		Replayed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_replayed_total",
			Help:      "Messages re-emitted from the pending set on initialize",
		}, byChannel),
		Duplicates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_duplicate_total",
			Help:      "Deliveries suppressed by the deduplication window",
		}, byChannel),
		Acked: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_acked_total",
			Help:      "Acknowledgments recorded",
		}, byChannel),
		GCRemoved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_gc_removed_total",
			Help:      "Pending entries reclaimed by garbage collection",
		}, byChannel),
		DecodeFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Persisted or delivered records dropped because decoding failed",
		}, byChannel),
		storage: newStorageHook(f),
	}
}

// Nop returns a metric set backed by a private registry. Useful for tests
// and callers that do not expose metrics.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Storage returns the hook to plug into pebblestore.Options.Metrics.
func (m *Metrics) Storage() *StorageHook { return m.storage }

// StorageHook implements the storage layer's MetricsHook.
type StorageHook struct {
	writeSeconds  prometheus.Histogram
	readSeconds   prometheus.Histogram
	commitSeconds prometheus.Histogram
	commitBytes   prometheus.Histogram
}

func newStorageHook(f promauto.Factory) *StorageHook {
	latency := []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1}
	return &StorageHook{
		writeSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_write_seconds",
			Help:      "Latency of single-key writes",
			Buckets:   latency,
		}),
		readSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_read_seconds",
			Help:      "Latency of single-key reads",
			Buckets:   latency,
		}),
		commitSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_batch_commit_seconds",
			Help:      "Latency of batch commits",
			Buckets:   latency,
		}),
		commitBytes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_batch_commit_bytes",
			Help:      "Size of committed batches",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}),
	}
}

// ObserveWrite implements pebblestore.MetricsHook.
func (h *StorageHook) ObserveWrite(elapsed time.Duration, _ int) {
	h.writeSeconds.Observe(elapsed.Seconds())
}

// ObserveRead implements pebblestore.MetricsHook.
func (h *StorageHook) ObserveRead(elapsed time.Duration, _ int) {
	h.readSeconds.Observe(elapsed.Seconds())
}

// ObserveBatchCommit implements pebblestore.MetricsHook.
func (h *StorageHook) ObserveBatchCommit(elapsed time.Duration, bytes int) {
	h.commitSeconds.Observe(elapsed.Seconds())
	h.commitBytes.Observe(float64(bytes))
}
