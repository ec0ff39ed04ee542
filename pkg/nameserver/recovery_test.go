package nameserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindBackupHolderLocatesRingPredecessor(t *testing.T) {
	ring := NewRing(nil)
	res0 := ring.Register("10.0.0.1", 9001, 9101)
	res1 := ring.Register("10.0.0.1", 9002, 9102)

	o := NewRecoveryOrchestrator(ring, nil)
	holder, ok := o.findBackupHolder(res0.SSID)
	require.True(t, ok)
	assert.Equal(t, res1.SSID, holder.SSID)
}

func TestFindBackupHolderReportsMissingForSoleNode(t *testing.T) {
	ring := NewRing(nil)
	res0 := ring.Register("10.0.0.1", 9001, 9101)

	o := NewRecoveryOrchestrator(ring, nil)
	_, ok := o.findBackupHolder(res0.SSID)
	assert.False(t, ok)
}
