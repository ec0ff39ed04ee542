package nameserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFirstSSHasNoBackup(t *testing.T) {
	r := NewRing(nil)
	res := r.Register("127.0.0.1", 9001, 9101)
	assert.False(t, res.MustRecover)

	info, ok := r.Get(res.SSID)
	require.True(t, ok)
	assert.False(t, info.HasBackup)
}

func TestRegisterSecondSSFormsBackupRing(t *testing.T) {
	r := NewRing(nil)
	res0 := r.Register("127.0.0.1", 9001, 9101)
	res1 := r.Register("127.0.0.1", 9002, 9102)

	info0, _ := r.Get(res0.SSID)
	info1, _ := r.Get(res1.SSID)

	// Ring order is [ss0, ss1]; each node's backup is its ring predecessor.
	require.True(t, info0.HasBackup)
	assert.Equal(t, res1.SSID, info0.BackupSSID)
	require.True(t, info1.HasBackup)
	assert.Equal(t, res0.SSID, info1.BackupSSID)
}

func TestReconnectFromSameAddrReusesID(t *testing.T) {
	r := NewRing(nil)
	first := r.Register("127.0.0.1", 9001, 9101)
	assert.False(t, first.MustRecover)

	second := r.Register("127.0.0.1", 9001, 9201)
	assert.Equal(t, first.SSID, second.SSID)
	assert.True(t, second.MustRecover)

	info, _ := r.Get(second.SSID)
	assert.Equal(t, uint32(9201), info.ReplPort)
}

func TestRegisterMarksAffectedNodesPendingFullSync(t *testing.T) {
	r := NewRing(nil)
	res0 := r.Register("127.0.0.1", 9001, 9101)
	res1 := r.Register("127.0.0.1", 9002, 9102)

	assert.Contains(t, res1.NewlyPending, res0.SSID)
	assert.Contains(t, res1.NewlyPending, res1.SSID)

	r.ClearPendingFullSync(res0.SSID)
	info, _ := r.Get(res0.SSID)
	assert.False(t, info.PendingFullSync)
}

func TestTwoNodeRingAssignsFirstNodeABackup(t *testing.T) {
	r := NewRing(nil)
	res0 := r.Register("127.0.0.1", 9001, 9101)
	r.Register("127.0.0.1", 9002, 9102)

	info0, _ := r.Get(res0.SSID)
	assert.True(t, info0.HasBackup)
}

func TestMarkOfflineAfterHeartbeatTimeout(t *testing.T) {
	r := NewRing(nil)
	res := r.Register("127.0.0.1", 9001, 9101)

	info := r.byID[res.SSID]
	info.LastHeartbeat = time.Now().Add(-1 * time.Hour)

	offlined := r.MarkOffline(15 * time.Second)
	assert.Equal(t, []uint32{res.SSID}, offlined)

	got, _ := r.Get(res.SSID)
	assert.False(t, got.Online)
}

func TestHeartbeatRefreshesKnownSS(t *testing.T) {
	r := NewRing(nil)
	res := r.Register("127.0.0.1", 9001, 9101)
	assert.True(t, r.Heartbeat(res.SSID))
	assert.False(t, r.Heartbeat(99999))
}

func TestIncrementFileCountNeverGoesNegative(t *testing.T) {
	r := NewRing(nil)
	res := r.Register("127.0.0.1", 9001, 9101)
	r.IncrementFileCount(res.SSID, -5)

	info, _ := r.Get(res.SSID)
	assert.Equal(t, 0, info.FileCount)
}
