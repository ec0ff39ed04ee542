package storageserver

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnfs-project/dnfs/internal/wire"
)

func TestApplyReplicatedFileUpsertsAsBackup(t *testing.T) {
	st := newTestStore(t)
	msg := &wire.ReplicateFile{Filename: "a.txt", Owner: "alice", Data: []byte("One.")}
	require.NoError(t, st.ApplyReplicatedFile(msg))

	info, err := st.GetInfo("a.txt")
	require.NoError(t, err)
	assert.True(t, info.IsBackup)
	assert.Equal(t, uint64(4), info.Size)

	content, err := st.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "One.", string(content))
}

func TestApplyReplicatedFileDeleteRemovesLocalCopy(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.ApplyReplicatedFile(&wire.ReplicateFile{Filename: "a.txt", Data: []byte("X.")}))
	require.NoError(t, st.ApplyReplicatedFile(&wire.ReplicateFile{Filename: "a.txt", Deleted: true}))
	assert.False(t, st.Exists("a.txt"))
}

// TestReplicationWorkerUpdatesBackupOverTheWire runs a fake backup SS on a
// loopback listener and verifies the worker pushes a REPLICATE_FILE and
// waits for the ACK_OK before returning.
func TestReplicationWorkerUpdatesBackupOverTheWire(t *testing.T) {
	backup := newTestStore(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		typ, payload, err := wire.ReadMessage(conn)
		require.NoError(t, err)
		require.Equal(t, wire.TypeReplicateFile, typ)
		msg, err := wire.DecodeReplicateFile(payload)
		require.NoError(t, err)
		require.NoError(t, backup.ApplyReplicatedFile(msg))
		ack := &wire.AckOK{Message: "ok"}
		require.NoError(t, wire.WriteMessage(conn, wire.TypeAckOK, ack.Marshal()))
	}()

	primary := newTestStore(t)
	require.NoError(t, primary.CreateFile("a.txt", "alice"))
	writeFileContent(t, primary, "a.txt", "One.")
	require.NoError(t, primary.recomputeMetadata("a.txt"))

	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	portNum, err := strconv.ParseUint(portStr, 10, 32)
	require.NoError(t, err)
	port := uint32(portNum)

	target := func() (string, uint32, bool) { return "127.0.0.1", port, true }
	worker := NewReplicationWorker(primary, target, nil, 5, 8, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go worker.Run(ctx)

	worker.EnqueueUpdate("a.txt")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for replication")
	}

	info, err := backup.GetInfo("a.txt")
	require.NoError(t, err)
	assert.True(t, info.IsBackup)
}
