package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNilRecordersAreNoOps(t *testing.T) {
	var ns *NameServerMetrics
	var ss *StorageServerMetrics

	assert.NotPanics(t, func() {
		ns.SetSessionsActive(3)
		ns.SetStorageServersOnline(2)
		ns.ObserveRequest("VIEW", "ok", time.Millisecond)
		ss.SetReplicationQueueDepth(1)
		ss.RecordReplicationFailure()
		ss.RecordWriteLocked()
	})
}

func TestInitRegistryEnablesMetrics(t *testing.T) {
	assert.False(t, IsEnabled())
	reg := InitRegistry()
	assert.NotNil(t, reg)
	assert.True(t, IsEnabled())
	assert.Same(t, reg, GetRegistry())
}
