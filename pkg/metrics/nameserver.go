package metrics

import "time"

// NameServerMetrics records the name server's own gauges/counters: active
// client sessions, SS cluster membership, and per-request outcomes. A nil
// *NameServerMetrics is valid and every method becomes a no-op, so callers
// never branch on whether metrics are enabled.
type NameServerMetrics struct {
	impl nameServerMetricsImpl
}

// nameServerMetricsImpl is satisfied by pkg/metrics/prometheus's concrete
// recorder; the indirection keeps this package free of a direct prometheus
// import requirement for callers that only need the no-op path.
type nameServerMetricsImpl interface {
	SetSessionsActive(n int)
	SetStorageServersOnline(n int)
	ObserveRequest(op string, status string, d time.Duration)
}

// NewNameServerMetrics wraps a concrete recorder. Passing nil yields a
// fully functional no-op NameServerMetrics.
func NewNameServerMetrics(impl nameServerMetricsImpl) *NameServerMetrics {
	return &NameServerMetrics{impl: impl}
}

func (m *NameServerMetrics) SetSessionsActive(n int) {
	if m == nil || m.impl == nil {
		return
	}
	m.impl.SetSessionsActive(n)
}

func (m *NameServerMetrics) SetStorageServersOnline(n int) {
	if m == nil || m.impl == nil {
		return
	}
	m.impl.SetStorageServersOnline(n)
}

func (m *NameServerMetrics) ObserveRequest(op, status string, d time.Duration) {
	if m == nil || m.impl == nil {
		return
	}
	m.impl.ObserveRequest(op, status, d)
}
