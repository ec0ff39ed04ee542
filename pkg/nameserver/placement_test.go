package nameserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectForPlacementPicksLeastLoaded(t *testing.T) {
	r := NewRing(nil)
	res0 := r.Register("127.0.0.1", 9001, 9101)
	res1 := r.Register("127.0.0.1", 9002, 9102)
	r.IncrementFileCount(res0.SSID, 3)
	r.IncrementFileCount(res1.SSID, 1)

	best, ok := SelectForPlacement(r)
	require.True(t, ok)
	assert.Equal(t, res1.SSID, best.SSID)
}

func TestSelectForPlacementExcludesSyncingSS(t *testing.T) {
	r := NewRing(nil)
	res0 := r.Register("127.0.0.1", 9001, 9101)
	r.Register("127.0.0.1", 9002, 9102)
	r.IncrementFileCount(res0.SSID, 0)

	// The reconnect path marks a node syncing; simulate that directly.
	r.mu.Lock()
	r.byID[res0.SSID].Syncing = true
	r.mu.Unlock()

	best, ok := SelectForPlacement(r)
	require.True(t, ok)
	assert.NotEqual(t, res0.SSID, best.SSID)
}

func TestSelectForPlacementFailsWithNoOnlineSS(t *testing.T) {
	r := NewRing(nil)
	_, ok := SelectForPlacement(r)
	assert.False(t, ok)
}
