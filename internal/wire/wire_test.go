package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := (&Login{Username: "alice"}).Marshal()
	require.NoError(t, WriteMessage(&buf, TypeLogin, payload))

	typ, got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, TypeLogin, typ)

	msg, err := DecodeLogin(got)
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.Username)
}

func TestReadMessageGracefulClose(t *testing.T) {
	_, _, err := ReadMessage(bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadMessageShortHeaderIsError(t *testing.T) {
	_, _, err := ReadMessage(bytes.NewReader([]byte{1, 2, 3}))
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestReadMessagePayloadTooLarge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, TypeGenericOK, nil))
	raw := buf.Bytes()
	// Corrupt the payload-length field to exceed MaxPayloadBytes.
	raw[4], raw[5], raw[6], raw[7] = 0xff, 0xff, 0xff, 0x7f
	_, _, err := ReadMessage(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestWriteMessagePayloadTooLarge(t *testing.T) {
	var buf bytes.Buffer
	err := WriteMessage(&buf, TypeGenericOK, make([]byte, MaxPayloadBytes+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestStringTruncationKeepsNulTerminator(t *testing.T) {
	long := bytes.Repeat([]byte("x"), MaxUsernameLen+10)
	e := newEncoder()
	e.putString(string(long), MaxUsernameLen)
	b := e.bytes()
	require.Len(t, b, MaxUsernameLen)
	assert.Equal(t, byte(0), b[MaxUsernameLen-1])

	d := newDecoder(b)
	s, err := d.getString(MaxUsernameLen)
	require.NoError(t, err)
	assert.Len(t, s, MaxUsernameLen-1)
}

func TestViewResRoundTrip(t *testing.T) {
	orig := &ViewRes{Entries: []ViewEntry{
		{Filename: "notes.txt", Owned: true, Size: 42, ModifiedUnix: 1000},
		{Filename: "shared.txt", Owned: false, Size: 7, ModifiedUnix: 2000},
	}}
	got, err := DecodeViewRes(orig.Marshal())
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestInfoResRoundTrip(t *testing.T) {
	orig := &InfoRes{
		Filename: "a.txt", Owner: "bob", Size: 10, Words: 3, Chars: 10,
		ModifiedUnix: 100, AccessUnix: 200, IsBackup: true,
		PrimarySSID: 1, BackupSSID: 2,
	}
	got, err := DecodeInfoRes(orig.Marshal())
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestResolveRoundTrip(t *testing.T) {
	orig := &Resolve{Op: ResolveCheckpoint, Filename: "a.txt", Tag: "v1"}
	got, err := DecodeResolve(orig.Marshal())
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestWriteDataRoundTrip(t *testing.T) {
	orig := &WriteData{WordIndex: 3, Content: "hello."}
	got, err := DecodeWriteData(orig.Marshal())
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestContentChunkRoundTrip(t *testing.T) {
	orig := &ContentChunk{Data: []byte("the quick brown fox"), IsFinal: true}
	got, err := DecodeContentChunk(orig.Marshal())
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestReplicateFileRoundTrip(t *testing.T) {
	orig := &ReplicateFile{Filename: "a.txt", Owner: "bob", Deleted: false, Data: []byte("content")}
	got, err := DecodeReplicateFile(orig.Marshal())
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestRegisterAckRoundTrip(t *testing.T) {
	orig := &RegisterAck{SSID: 7, MustRecover: true, BackupIP: "10.0.0.2", BackupReplPort: 9001}
	got, err := DecodeRegisterAck(orig.Marshal())
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestFileListRoundTrip(t *testing.T) {
	orig := &FileList{Files: []FileOwner{{Filename: "a.txt", Owner: "bob"}, {Filename: "b.txt", Owner: "amy"}}}
	got, err := DecodeFileList(orig.Marshal())
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestAccessGrantRoundTrip(t *testing.T) {
	orig := &AccessGrant{Filename: "a.txt", TargetUser: "bob", Perms: PermRead | PermWrite, FromRequest: true}
	got, err := DecodeAccessGrant(orig.Marshal())
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestGetBytesRejectsOversizedLength(t *testing.T) {
	e := newEncoder()
	e.putU32(MaxPayloadBytes + 1)
	d := newDecoder(e.bytes())
	_, err := d.getBytes()
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}
