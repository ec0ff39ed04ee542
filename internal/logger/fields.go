package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across all three DNFS roles
// (name server, storage server, client). Use these keys consistently so log
// aggregation and querying can correlate a request across role boundaries.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // correlation id for a client operation end-to-end
	KeySpanID  = "span_id"  // correlation id for one NS/SS leg of that operation

	// ========================================================================
	// Protocol & Operation
	// ========================================================================
	KeyRole      = "role"      // process role: name-server, storage-server, client
	KeyOperation = "operation" // VIEW, CREATE, DELETE, READ, WRITE, UNDO, CHECKPOINT, EXEC, ...
	KeyMsgType   = "msg_type"  // wire.Type of the message being handled

	// ========================================================================
	// Directory / File Identity
	// ========================================================================
	KeyFilename = "filename" // owner+filename key shared by NS and SS
	KeyOwner    = "owner"    // file owner's username
	KeyUsername = "username" // acting username (may differ from owner for shared files)
	KeyTag      = "tag"      // checkpoint tag

	// ========================================================================
	// File Content Metrics
	// ========================================================================
	KeySize         = "size"          // file size in bytes
	KeyWords        = "words"         // word count
	KeyChars        = "chars"         // character count
	KeySentenceNum  = "sentence_num"  // sentence index within a WRITE transaction
	KeyBytesWritten = "bytes_written" // bytes applied by a WRITE/REPLICATE

	// ========================================================================
	// Ring / Storage Server Identity
	// ========================================================================
	KeySSID        = "ssid"        // storage server id
	KeyPeerSSID    = "peer_ssid"   // the other party in a recovery/replication exchange
	KeyBackupSSID  = "backup_ssid" // id of the SS holding a node's backups
	KeyRingOrder   = "ring_order"  // position in the registration-ordered ring
	KeyFileCount   = "file_count"  // load-balancing file count used by placement

	// ========================================================================
	// Network Identity
	// ========================================================================
	KeyClientIP   = "client_ip"   // peer IP address
	KeyClientPort = "client_port" // SS client/NS port
	KeyReplPort   = "repl_port"   // SS replication port

	// ========================================================================
	// Session & Connection
	// ========================================================================
	KeySessionUser = "session_user" // username bound to a client session
	KeyConnKind    = "conn_kind"    // client, ns-control, replication

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyAttempt    = "attempt"     // retry attempt number
	KeyMaxRetries = "max_retries" // maximum retry attempts
	KeyQueueDepth = "queue_depth" // replication queue depth

	// ========================================================================
	// Recovery / Replication
	// ========================================================================
	KeyMustRecover = "must_recover" // whether REGISTER_ACK flagged recovery
	KeyIsBackup    = "is_backup"    // whether the local copy is a backup replica
	KeyFilesSynced = "files_synced" // count of files moved in a recovery sync
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for the end-to-end correlation id.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for one leg's correlation id.
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// Role returns a slog.Attr for the process role (name-server, storage-server, client).
func Role(r string) slog.Attr { return slog.String(KeyRole, r) }

// Operation returns a slog.Attr for the directory/data-plane operation name.
func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }

// Filename returns a slog.Attr for the owner+filename key.
func Filename(name string) slog.Attr { return slog.String(KeyFilename, name) }

// Owner returns a slog.Attr for a file's owner username.
func Owner(owner string) slog.Attr { return slog.String(KeyOwner, owner) }

// Username returns a slog.Attr for the acting username.
func Username(name string) slog.Attr { return slog.String(KeyUsername, name) }

// Tag returns a slog.Attr for a checkpoint tag.
func Tag(tag string) slog.Attr { return slog.String(KeyTag, tag) }

// Size returns a slog.Attr for a file size in bytes.
func Size(s uint64) slog.Attr { return slog.Uint64(KeySize, s) }

// Words returns a slog.Attr for a word count.
func Words(n uint64) slog.Attr { return slog.Uint64(KeyWords, n) }

// Chars returns a slog.Attr for a character count.
func Chars(n uint64) slog.Attr { return slog.Uint64(KeyChars, n) }

// SentenceNum returns a slog.Attr for a WRITE transaction's sentence index.
func SentenceNum(n int) slog.Attr { return slog.Int(KeySentenceNum, n) }

// BytesWritten returns a slog.Attr for bytes applied by a write/replicate.
func BytesWritten(n int) slog.Attr { return slog.Int(KeyBytesWritten, n) }

// SSID returns a slog.Attr for a storage server id.
func SSID(id uint32) slog.Attr { return slog.Any(KeySSID, id) }

// PeerSSID returns a slog.Attr for the other party in a recovery/replication exchange.
func PeerSSID(id uint32) slog.Attr { return slog.Any(KeyPeerSSID, id) }

// BackupSSID returns a slog.Attr for the id holding a node's backups.
func BackupSSID(id uint32) slog.Attr { return slog.Any(KeyBackupSSID, id) }

// RingOrder returns a slog.Attr for a ring position.
func RingOrder(n int64) slog.Attr { return slog.Int64(KeyRingOrder, n) }

// FileCount returns a slog.Attr for a placement load-balancing count.
func FileCount(n int) slog.Attr { return slog.Int(KeyFileCount, n) }

// ClientIP returns a slog.Attr for a peer IP address.
func ClientIP(addr string) slog.Attr { return slog.String(KeyClientIP, addr) }

// ClientPort returns a slog.Attr for an SS client/NS port.
func ClientPort(port uint32) slog.Attr { return slog.Any(KeyClientPort, port) }

// ReplPort returns a slog.Attr for an SS replication port.
func ReplPort(port uint32) slog.Attr { return slog.Any(KeyReplPort, port) }

// SessionUser returns a slog.Attr for the username bound to a client session.
func SessionUser(name string) slog.Attr { return slog.String(KeySessionUser, name) }

// ConnKind returns a slog.Attr identifying which of the three connection kinds logged this line.
func ConnKind(kind string) slog.Attr { return slog.String(KeyConnKind, kind) }

// DurationMs returns a slog.Attr for operation duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error, or a zero Attr for a nil error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }

// MaxRetries returns a slog.Attr for the maximum retry attempts.
func MaxRetries(n int) slog.Attr { return slog.Int(KeyMaxRetries, n) }

// QueueDepth returns a slog.Attr for the replication queue depth.
func QueueDepth(n int) slog.Attr { return slog.Int(KeyQueueDepth, n) }

// MustRecover returns a slog.Attr for whether REGISTER_ACK flagged recovery.
func MustRecover(b bool) slog.Attr { return slog.Bool(KeyMustRecover, b) }

// IsBackup returns a slog.Attr for whether a local copy is a backup replica.
func IsBackup(b bool) slog.Attr { return slog.Bool(KeyIsBackup, b) }

// FilesSynced returns a slog.Attr for the count of files moved in a recovery sync.
func FilesSynced(n int) slog.Attr { return slog.Int(KeyFilesSynced, n) }
