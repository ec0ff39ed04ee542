package storageserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnfs-project/dnfs/internal/wire"
)

func startTestServer(t *testing.T) (net.Conn, *Store) {
	t.Helper()
	st := newTestStore(t)
	srv := NewServer(st, nil, nil, nil, nil, 0)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.ServeDataPlane(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, st
}

func TestServerReadRoundTrip(t *testing.T) {
	conn, st := startTestServer(t)
	require.NoError(t, st.CreateFile("a.txt", "alice"))
	writeFileContent(t, st, "a.txt", "Hello there.")

	req := &wire.ReadReq{Filename: "a.txt"}
	require.NoError(t, wire.WriteMessage(conn, wire.TypeReadReq, req.Marshal()))

	var collected []byte
	for {
		typ, payload, err := wire.ReadMessage(conn)
		require.NoError(t, err)
		require.Equal(t, wire.TypeContentChunk, typ)
		chunk, err := wire.DecodeContentChunk(payload)
		require.NoError(t, err)
		collected = append(collected, chunk.Data...)
		if chunk.IsFinal {
			break
		}
	}
	assert.Equal(t, "Hello there.", string(collected))
}

func TestServerReadMissingFileReturnsFileNotFound(t *testing.T) {
	conn, _ := startTestServer(t)
	req := &wire.ReadReq{Filename: "missing.txt"}
	require.NoError(t, wire.WriteMessage(conn, wire.TypeReadReq, req.Marshal()))

	typ, _, err := wire.ReadMessage(conn)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeFileNotFound, typ)
}

func TestServerWriteTransactionEndToEnd(t *testing.T) {
	conn, st := startTestServer(t)
	require.NoError(t, st.CreateFile("a.txt", "alice"))
	writeFileContent(t, st, "a.txt", "One. Two.")

	start := &wire.WriteStart{Filename: "a.txt", SentenceNum: 0}
	require.NoError(t, wire.WriteMessage(conn, wire.TypeWriteStart, start.Marshal()))

	typ, _, err := wire.ReadMessage(conn)
	require.NoError(t, err)
	require.Equal(t, wire.TypeWriteOK, typ)

	data := &wire.WriteData{WordIndex: 0, Content: "Hi"}
	require.NoError(t, wire.WriteMessage(conn, wire.TypeWriteData, data.Marshal()))

	etirw := &wire.WriteETIRW{}
	require.NoError(t, wire.WriteMessage(conn, wire.TypeWriteETIRW, etirw.Marshal()))

	typ, _, err = wire.ReadMessage(conn)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeGenericOK, typ)

	content, err := st.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hi One. Two.", string(content))
}

func TestServerWriteLockedWhenSentenceBusy(t *testing.T) {
	conn, st := startTestServer(t)
	require.NoError(t, st.CreateFile("a.txt", "alice"))
	writeFileContent(t, st, "a.txt", "One.")

	tx, err := StartWrite(st, nil, "a.txt", 0)
	require.NoError(t, err)
	defer tx.Abort()

	start := &wire.WriteStart{Filename: "a.txt", SentenceNum: 0}
	require.NoError(t, wire.WriteMessage(conn, wire.TypeWriteStart, start.Marshal()))

	typ, _, err := wire.ReadMessage(conn)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeWriteLocked, typ)
}

func TestServerUndoEndToEnd(t *testing.T) {
	conn, st := startTestServer(t)
	require.NoError(t, st.CreateFile("a.txt", "alice"))
	writeFileContent(t, st, "a.txt", "X.")
	require.NoError(t, st.recomputeMetadata("a.txt"))

	tx, err := StartWrite(st, nil, "a.txt", 0)
	require.NoError(t, err)
	require.NoError(t, tx.ApplyWordData(0, "Y"))
	require.NoError(t, tx.Commit())

	req := &wire.UndoReq{Filename: "a.txt"}
	require.NoError(t, wire.WriteMessage(conn, wire.TypeUndoReq, req.Marshal()))

	typ, _, err := wire.ReadMessage(conn)
	require.NoError(t, err)
	require.Equal(t, wire.TypeGenericOK, typ)

	content, err := st.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "X.", string(content))
}

func TestServerStreamEmitsWordsThenEnd(t *testing.T) {
	conn, st := startTestServer(t)
	require.NoError(t, st.CreateFile("a.txt", "alice"))
	writeFileContent(t, st, "a.txt", "Hi.")

	req := &wire.StreamReq{Filename: "a.txt"}
	require.NoError(t, wire.WriteMessage(conn, wire.TypeStreamReq, req.Marshal()))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	typ, payload, err := wire.ReadMessage(conn)
	require.NoError(t, err)
	require.Equal(t, wire.TypeStreamWord, typ)
	w1, err := wire.DecodeStreamWord(payload)
	require.NoError(t, err)
	assert.Equal(t, "Hi", w1.Word)

	typ, payload, err = wire.ReadMessage(conn)
	require.NoError(t, err)
	require.Equal(t, wire.TypeStreamWord, typ)
	w2, err := wire.DecodeStreamWord(payload)
	require.NoError(t, err)
	assert.Equal(t, ".", w2.Word)

	typ, _, err = wire.ReadMessage(conn)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeStreamEnd, typ)
}
