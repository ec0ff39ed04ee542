package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StorageServerRecorder is the Prometheus-backed implementation of the
// storage server's metrics interface (pkg/metrics.StorageServerMetrics).
type StorageServerRecorder struct {
	replicationQueueDepth   prometheus.Gauge
	replicationFailuresTotal prometheus.Counter
	writeLockedTotal        prometheus.Counter
}

// NewStorageServerRecorder registers the storage server's gauges/counters
// against reg. Call only when metrics.IsEnabled() is true.
func NewStorageServerRecorder(reg prometheus.Registerer) *StorageServerRecorder {
	return &StorageServerRecorder{
		replicationQueueDepth: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "dnfs_ss_replication_queue_depth",
			Help: "Number of pending replication jobs queued to the backup.",
		}),
		replicationFailuresTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dnfs_ss_replication_failures_total",
			Help: "Total replication jobs that exhausted their retry budget.",
		}),
		writeLockedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dnfs_ss_write_locked_total",
			Help: "Total WRITE requests rejected because the target sentence was already locked.",
		}),
	}
}

func (r *StorageServerRecorder) SetReplicationQueueDepth(n int) {
	r.replicationQueueDepth.Set(float64(n))
}

func (r *StorageServerRecorder) RecordReplicationFailure() { r.replicationFailuresTotal.Inc() }

func (r *StorageServerRecorder) RecordWriteLocked() { r.writeLockedTotal.Inc() }
