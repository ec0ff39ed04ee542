// Package wire implements the DNFS length-prefixed binary framing protocol.
//
// Every message on every TCP connection (client<->NS, client<->SS, NS<->SS,
// SS<->SS) is a fixed 8-byte header {Type uint32, PayloadLen uint32},
// little-endian, followed by exactly PayloadLen bytes of a type-determined
// payload. Readers and writers use blocking full-length reads; a short read
// is an error, and a read that returns 0 bytes is a graceful peer close.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// Size limits for fixed-width fields. These bound every payload so a
// malformed or hostile peer cannot force an unbounded allocation.
const (
	MaxUsernameLen  = 64
	MaxFilenameLen  = 256
	MaxTagLen       = 64
	MaxMessageLen   = 4096            // human-readable error/status text
	MaxChunkLen     = 64 * 1024       // READ/STREAM/VIEWCHECKPOINT chunk payload
	MaxWordLen      = 4096            // a single WRITE_DATA word/content fragment
	MaxExecContent  = 4 * 1024 * 1024 // EXEC_GET_CONTENT file body ceiling
	MaxPayloadBytes = 8 * 1024 * 1024 // hard ceiling on any single payload
	headerLen       = 8
)

// Type identifies a message's payload layout. Values are stable across the
// whole protocol; the same Type is reused verbatim by every role that sends
// or receives that exact payload shape (e.g. DeleteFile is sent both NS->SS
// and SS->SS during replication).
type Type uint32

const (
	_ Type = iota

	// Client <-> NS session and directory operations.
	TypeLogin
	TypeLoginOK
	TypeLoginFail
	TypeView
	TypeViewRes
	TypeCreate
	TypeDelete
	TypeInfo
	TypeInfoRes
	TypeResolve // READ/STREAM/WRITE/UNDO/CHECKPOINT-family resolution request
	TypeSSLoc   // response carrying an SS endpoint to dial directly
	TypeListUsers
	TypeListUsersRes
	TypeAccessAdd
	TypeAccessRem
	TypeExec
	TypeExecRes
	TypeFolderCmd
	TypeFolderRes
	TypeReqAccess
	TypeViewReqAccess
	TypeViewReqAccessRes
	TypeGrantReqAccess
	TypeGenericOK
	TypeGenericFail

	// Client <-> SS data-plane operations.
	TypeReadReq
	TypeStreamReq
	TypeWriteStart
	TypeWriteOK
	TypeWriteLocked
	TypeWriteData
	TypeWriteETIRW
	TypeUndoReq
	TypeCheckpointCreate
	TypeRevert
	TypeViewCheckpoint
	TypeListCheckpoints
	TypeListCheckpointsRes
	TypeContentChunk // READ_CONTENT / VIEWCHECKPOINT chunk
	TypeStreamWord
	TypeStreamEnd
	TypeFileNotFound

	// NS <-> SS control plane.
	TypeRegister
	TypeRegisterAck
	TypeHeartbeat
	TypeCreateFile
	TypeDeleteFile
	TypeGetInfo
	TypeFileInfoRes
	TypeExecGetContent
	TypeExecContent
	TypeAckOK
	TypeAckFail
	TypeSyncFromBackup
	TypeSyncToPrimary
	TypeReReplicateAll
	TypeUpdateBackup
	TypeRecoverySyncDone // SS -> NS: a recovery sync this SS drove has finished

	// SS <-> SS replication and recovery.
	TypeReplicateFile
	TypeStartRecovery
	TypeFileList
	TypeRecoveryComplete
)

var ErrShortRead = errors.New("wire: short read (peer closed mid-message)")
var ErrPayloadTooLarge = errors.New("wire: payload exceeds maximum size")

// Header is the fixed 8-byte frame prefix.
type Header struct {
	Type       Type
	PayloadLen uint32
}

// ReadMessage blocks for a full frame: header then exactly PayloadLen bytes.
// A zero-length read at any point is treated as a graceful peer close and
// reported as io.EOF so callers can distinguish it from a malformed frame.
func ReadMessage(r io.Reader) (Type, []byte, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil, io.EOF
		}
		return 0, nil, fmt.Errorf("wire: read header: %w", ErrShortRead)
	}

	t := Type(binary.LittleEndian.Uint32(hdr[0:4]))
	n := binary.LittleEndian.Uint32(hdr[4:8])
	if n > MaxPayloadBytes {
		return 0, nil, ErrPayloadTooLarge
	}

	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.EOF) {
				return 0, nil, io.EOF
			}
			return 0, nil, fmt.Errorf("wire: read payload: %w", ErrShortRead)
		}
	}
	return t, payload, nil
}

// WriteMessage writes a full frame: header then payload, as one logical
// write sequence. The caller's payload must already be fully encoded.
func WriteMessage(w io.Writer, t Type, payload []byte) error {
	if len(payload) > MaxPayloadBytes {
		return ErrPayloadTooLarge
	}
	var hdr [headerLen]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(t))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// SetDeadlines applies matching read/write deadlines to a net.Conn; used by
// acceptors that must poll a shutdown flag (spec.md §5) rather than block
// forever in accept/recv.
func SetDeadlines(c net.Conn, d time.Duration) error {
	if d <= 0 {
		return c.SetDeadline(time.Time{})
	}
	return c.SetDeadline(time.Now().Add(d))
}
