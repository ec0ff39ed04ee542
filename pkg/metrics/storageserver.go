package metrics

// StorageServerMetrics records the storage server's replication queue depth
// and sentence-lock contention. Like NameServerMetrics, a nil pointer is a
// valid no-op recorder.
type StorageServerMetrics struct {
	impl storageServerMetricsImpl
}

type storageServerMetricsImpl interface {
	SetReplicationQueueDepth(n int)
	RecordReplicationFailure()
	RecordWriteLocked()
}

// NewStorageServerMetrics wraps a concrete recorder. Passing nil yields a
// fully functional no-op StorageServerMetrics.
func NewStorageServerMetrics(impl storageServerMetricsImpl) *StorageServerMetrics {
	return &StorageServerMetrics{impl: impl}
}

func (m *StorageServerMetrics) SetReplicationQueueDepth(n int) {
	if m == nil || m.impl == nil {
		return
	}
	m.impl.SetReplicationQueueDepth(n)
}

func (m *StorageServerMetrics) RecordReplicationFailure() {
	if m == nil || m.impl == nil {
		return
	}
	m.impl.RecordReplicationFailure()
}

// RecordWriteLocked counts a WRITE_LOCKED response — contention on a
// sentence's fine-grain lock (spec.md §4.3).
func (m *StorageServerMetrics) RecordWriteLocked() {
	if m == nil || m.impl == nil {
		return
	}
	m.impl.RecordWriteLocked()
}
