package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-wide counters/histograms/gauges an embedding
// application can scrape. A Document does not construct these itself;
// callers build one Metrics per process (registering the same metric name
// twice panics) and attach it with Document.WithMetrics (DocOptions has no
// metrics field).
type Metrics struct {
	ChangesCommitted    prometheus.Counter
	CommitDuration      prometheus.Histogram
	OpsApplied          prometheus.Counter
	ImportBytes         prometheus.Counter
	ImportDuration      prometheus.Histogram
	PendingOps          prometheus.Gauge
	CheckoutCount       prometheus.Counter
	UndoCount           prometheus.Counter
	RedoCount           prometheus.Counter
	EncodeErrors        prometheus.Counter
	ChecksumMismatches  prometheus.Counter
	OplogSizeBytes      prometheus.Gauge
	ActiveSubscriptions prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		ChangesCommitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loro_changes_committed_total",
			Help: "Total number of Changes committed locally.",
		}),
		CommitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "loro_commit_duration_seconds",
			Help:    "Time taken to commit a pending transaction.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 10),
		}),
		OpsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loro_ops_applied_total",
			Help: "Total number of ops applied, local or remote.",
		}),
		ImportBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loro_import_bytes_total",
			Help: "Total number of bytes passed to Import.",
		}),
		ImportDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "loro_import_duration_seconds",
			Help:    "Time taken to decode and integrate an import.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 10),
		}),
		PendingOps: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "loro_pending_ops",
			Help: "Number of changes currently buffered awaiting dependencies.",
		}),
		CheckoutCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loro_checkouts_total",
			Help: "Total number of checkout calls.",
		}),
		UndoCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loro_undo_total",
			Help: "Total number of undo calls.",
		}),
		RedoCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loro_redo_total",
			Help: "Total number of redo calls.",
		}),
		EncodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loro_encode_errors_total",
			Help: "Total number of encode/decode failures.",
		}),
		ChecksumMismatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loro_checksum_mismatches_total",
			Help: "Total number of xxHash32 checksum mismatches detected on import.",
		}),
		OplogSizeBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "loro_oplog_size_bytes",
			Help: "Size in bytes of the encoded OpLog in the most recent fast-snapshot export.",
		}),
		ActiveSubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "loro_active_subscriptions",
			Help: "Number of active event subscriptions across all scopes.",
		}),
	}
}
