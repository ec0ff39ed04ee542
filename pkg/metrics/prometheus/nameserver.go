package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NameServerRecorder is the Prometheus-backed implementation of the name
// server's metrics interface (pkg/metrics.NameServerMetrics), registered
// against a caller-supplied registry via promauto.With.
type NameServerRecorder struct {
	sessionsActive       prometheus.Gauge
	storageServersOnline prometheus.Gauge
	requestsTotal        *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
}

// NewNameServerRecorder registers the name server's gauges/counters against
// reg. Call only when metrics.IsEnabled() is true.
func NewNameServerRecorder(reg prometheus.Registerer) *NameServerRecorder {
	return &NameServerRecorder{
		sessionsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "dnfs_ns_sessions_active",
			Help: "Number of clients currently logged in.",
		}),
		storageServersOnline: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "dnfs_ns_storage_servers_online",
			Help: "Number of storage servers currently considered alive.",
		}),
		requestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dnfs_ns_requests_total",
			Help: "Total client requests handled by the name server, by operation and outcome.",
		}, []string{"op", "status"}),
		requestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dnfs_ns_request_duration_seconds",
			Help:    "Name server request handling latency, by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

func (r *NameServerRecorder) SetSessionsActive(n int) { r.sessionsActive.Set(float64(n)) }

func (r *NameServerRecorder) SetStorageServersOnline(n int) {
	r.storageServersOnline.Set(float64(n))
}

func (r *NameServerRecorder) ObserveRequest(op, status string, d time.Duration) {
	r.requestsTotal.WithLabelValues(op, status).Inc()
	r.requestDuration.WithLabelValues(op).Observe(d.Seconds())
}
