package storageserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/dnfs-project/dnfs/internal/logger"
	"github.com/dnfs-project/dnfs/internal/wire"
	"github.com/dnfs-project/dnfs/pkg/metrics"
)

// Server ties a Store to the network: the client/NS-facing data port, the
// replication port, and the background threads spec.md §5 calls for (here
// counted per connection type rather than literally 5 OS threads, since
// Go's accept-loop-plus-goroutine-per-connection model is the idiomatic
// equivalent).
type Server struct {
	Store   *Store
	Repl    *ReplicationWorker
	Backup  *BackupConfig
	Logger  *slog.Logger
	Metrics *metrics.StorageServerMetrics

	// NS is the control connection back to the name server, used to report
	// RECOVERY_SYNC_DONE once a sync this SS drove finishes (spec.md §4.4
	// step 3). Set by the caller after NSClient.Register returns, since this
	// SS's own id isn't known until then.
	NS *NSClient

	AcceptPollInterval time.Duration
}

// NewServer wires a Store, replication worker, backup target, logger, and
// metrics recorder into a Server ready to accept connections. Call
// SetNSClient once the NS control connection is registered.
func NewServer(store *Store, repl *ReplicationWorker, backup *BackupConfig, logger *slog.Logger, m *metrics.StorageServerMetrics, acceptPoll time.Duration) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{Store: store, Repl: repl, Backup: backup, Logger: logger, Metrics: m, AcceptPollInterval: acceptPoll}
}

// SetNSClient attaches the registered NS control connection so data-plane
// handlers (recovery completion) can report back to the NS.
func (s *Server) SetNSClient(ns *NSClient) { s.NS = ns }

// ServeDataPlane accepts client connections on ln until ctx is cancelled,
// polling the shutdown signal between accepts via a short deadline
// (spec.md §5).
func (s *Server) ServeDataPlane(ctx context.Context, ln net.Listener) error {
	return s.acceptLoop(ctx, ln, s.handleDataConn)
}

// ServeReplication accepts SS->SS replication and recovery connections on
// ln until ctx is cancelled.
func (s *Server) ServeReplication(ctx context.Context, ln net.Listener) error {
	return s.acceptLoop(ctx, ln, s.handleReplicationConn)
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, handle func(context.Context, net.Conn)) error {
	type tcpListener interface {
		SetDeadline(time.Time) error
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if tl, ok := ln.(tcpListener); ok && s.AcceptPollInterval > 0 {
			_ = tl.SetDeadline(time.Now().Add(s.AcceptPollInterval))
		}
		conn, err := ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go handle(ctx, conn)
	}
}

func (s *Server) handleDataConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		typ, payload, err := wire.ReadMessage(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.Logger.Debug("data connection read error", "error", err)
			}
			return
		}
		if !s.dispatchDataMessage(conn, typ, payload) {
			return
		}
	}
}

// dispatchDataMessage handles one client<->SS message and reports whether
// the connection should stay open for further requests.
func (s *Server) dispatchDataMessage(conn net.Conn, typ wire.Type, payload []byte) bool {
	switch typ {
	case wire.TypeReadReq:
		s.handleRead(conn, payload)
	case wire.TypeStreamReq:
		s.handleStream(conn, payload)
	case wire.TypeWriteStart:
		s.handleWrite(conn, payload)
	case wire.TypeUndoReq:
		s.handleUndo(conn, payload)
	case wire.TypeCheckpointCreate:
		s.handleCheckpoint(conn, payload)
	case wire.TypeRevert:
		s.handleRevert(conn, payload)
	case wire.TypeViewCheckpoint:
		s.handleViewCheckpoint(conn, payload)
	case wire.TypeListCheckpoints:
		s.handleListCheckpoints(conn, payload)
	case wire.TypeCreateFile:
		s.handleCreateFile(conn, payload)
	case wire.TypeDeleteFile:
		s.handleDeleteFile(conn, payload)
	case wire.TypeGetInfo:
		s.handleGetInfo(conn, payload)
	case wire.TypeExecGetContent:
		s.handleExecGetContent(conn, payload)
	case wire.TypeUpdateBackup:
		s.handleUpdateBackup(payload)
	case wire.TypeSyncFromBackup:
		s.handleSyncFromBackup(payload)
	case wire.TypeSyncToPrimary:
		s.handleSyncToPrimary(payload)
	case wire.TypeReReplicateAll:
		s.handleReReplicateAll()
	default:
		s.sendGenericFail(conn, "malformed command")
	}
	return true
}

// handleCreateFile, handleDeleteFile, handleGetInfo, and
// handleExecGetContent answer the NS's directory-operation requests on the
// same client/NS port a client's data-plane requests arrive on (spec.md
// §6: each SS exposes one "client/NS port" shared by both roles).
func (s *Server) handleCreateFile(conn net.Conn, payload []byte) {
	req, err := wire.DecodeFileOwner(payload)
	if err != nil {
		s.sendAckFail(conn, err.Error())
		return
	}
	if err := s.Store.CreateFile(req.Filename, req.Owner); err != nil {
		s.sendAckFail(conn, err.Error())
		return
	}
	s.sendAckOK(conn, "created")
}

func (s *Server) handleDeleteFile(conn net.Conn, payload []byte) {
	req, err := wire.DecodeFileOwner(payload)
	if err != nil {
		s.sendAckFail(conn, err.Error())
		return
	}
	if err := s.Store.DeleteFile(req.Filename); err != nil {
		s.sendAckFail(conn, err.Error())
		return
	}
	if s.Repl != nil {
		s.Repl.EnqueueDelete(req.Filename)
	}
	s.sendAckOK(conn, "deleted")
}

func (s *Server) handleGetInfo(conn net.Conn, payload []byte) {
	req, err := wire.DecodeFileOwner(payload)
	if err != nil {
		s.sendAckFail(conn, err.Error())
		return
	}
	m, err := s.Store.GetInfo(req.Filename)
	if err != nil {
		s.sendAckFail(conn, err.Error())
		return
	}
	res := &wire.FileInfoRes{Size: m.Size, Words: m.Words, Chars: m.Chars, ModifiedUnix: m.ModifiedUnix, AccessUnix: m.AccessUnix}
	_ = wire.WriteMessage(conn, wire.TypeFileInfoRes, res.Marshal())
}

func (s *Server) handleExecGetContent(conn net.Conn, payload []byte) {
	req, err := wire.DecodeFileOwner(payload)
	if err != nil {
		s.sendAckFail(conn, err.Error())
		return
	}
	content, err := s.Store.ReadFile(req.Filename)
	if err != nil {
		s.sendAckFail(conn, err.Error())
		return
	}
	res := &wire.ExecContent{Data: content}
	_ = wire.WriteMessage(conn, wire.TypeExecContent, res.Marshal())
}

func (s *Server) sendAckOK(conn net.Conn, msg string) {
	ok := &wire.AckOK{Message: msg}
	_ = wire.WriteMessage(conn, wire.TypeAckOK, ok.Marshal())
}

func (s *Server) sendAckFail(conn net.Conn, msg string) {
	fail := &wire.AckFail{Message: msg}
	_ = wire.WriteMessage(conn, wire.TypeAckFail, fail.Marshal())
}

// handleUpdateBackup and handleReReplicateAll carry no reply: spec.md §9
// design note (c) mandates no ACK on this async control path (an ACK is
// sent only on the separate request/response paths above). Both trigger a
// full scan of locally-owned (non-backup) files onto the replication
// queue so a newly assigned backup catches up (spec.md §4.4).
func (s *Server) handleUpdateBackup(payload []byte) {
	ep, err := wire.DecodeSSEndpoint(payload)
	if err != nil {
		s.Logger.Warn("malformed UPDATE_BACKUP", "error", err)
		return
	}
	if s.Backup != nil {
		s.Backup.Set(ep.IP, ep.ReplPort)
	}
	s.enqueueFullResync()
}

func (s *Server) handleReReplicateAll() {
	s.enqueueFullResync()
}

func (s *Server) enqueueFullResync() {
	if s.Repl == nil {
		return
	}
	s.Store.meta.Range(func(m Metadata) bool {
		if !m.IsBackup {
			s.Repl.EnqueueUpdate(m.Filename)
		}
		return true
	})
}

// handleSyncFromBackup is the recovery trigger received by the SS holding
// a reconnecting peer's backup copies: it dials the peer's replication
// port and drives the primary-recovering sender path (spec.md §4.4).
func (s *Server) handleSyncFromBackup(payload []byte) {
	ep, err := wire.DecodeSSEndpoint(payload)
	if err != nil {
		s.Logger.Warn("malformed SYNC_FROM_BACKUP", "error", err)
		return
	}
	go func() {
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", ep.IP, ep.ReplPort), 10*time.Second)
		if err != nil {
			s.Logger.Error("sync-from-backup: dial peer failed", logger.PeerSSID(ep.SSID), logger.Err(err))
			return
		}
		defer conn.Close()
		include := func(m Metadata) bool { return m.IsBackup }
		if err := s.Store.RunRecoverySender(conn, ep.SSID, true, include); err != nil {
			s.Logger.Error("sync-from-backup: recovery send failed", logger.PeerSSID(ep.SSID), logger.Err(err))
			return
		}
		if s.NS != nil {
			if err := s.NS.NotifyRecoverySyncDone(ep.SSID); err != nil {
				s.Logger.Error("sync-from-backup: notify NS failed", logger.PeerSSID(ep.SSID), logger.Err(err))
			}
		}
	}()
}

// handleSyncToPrimary is informational: the reconnecting SS is told which
// peer currently holds its backups, but the actual transfer arrives
// passively on the replication port (handleReplicationConn's
// TypeStartRecovery case), so there is nothing further to drive here.
func (s *Server) handleSyncToPrimary(payload []byte) {
	ep, err := wire.DecodeSSEndpoint(payload)
	if err != nil {
		s.Logger.Warn("malformed SYNC_TO_PRIMARY", "error", err)
		return
	}
	s.Logger.Info("awaiting recovery sync from backup holder", "holder_ssid", ep.SSID, "holder_ip", ep.IP)
}

func (s *Server) sendGenericFail(conn net.Conn, msg string) {
	fail := &wire.GenericFail{Message: msg}
	_ = wire.WriteMessage(conn, wire.TypeGenericFail, fail.Marshal())
}

func (s *Server) handleRead(conn net.Conn, payload []byte) {
	req, err := wire.DecodeReadReq(payload)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	content, err := s.Store.ReadFile(req.Filename)
	if err != nil {
		s.sendFileNotFoundOrFail(conn, err)
		return
	}
	s.streamChunks(conn, content)
}

func (s *Server) sendFileNotFoundOrFail(conn net.Conn, err error) {
	if errors.Is(err, ErrFileNotFound) {
		fnf := &wire.FileNotFound{}
		_ = wire.WriteMessage(conn, wire.TypeFileNotFound, fnf.Marshal())
		return
	}
	s.sendGenericFail(conn, err.Error())
}

func (s *Server) streamChunks(conn net.Conn, content []byte) {
	const chunkSize = 32 * 1024
	if len(content) == 0 {
		chunk := &wire.ContentChunk{Data: nil, IsFinal: true}
		_ = wire.WriteMessage(conn, wire.TypeContentChunk, chunk.Marshal())
		return
	}
	for off := 0; off < len(content); off += chunkSize {
		end := off + chunkSize
		if end > len(content) {
			end = len(content)
		}
		chunk := &wire.ContentChunk{Data: content[off:end], IsFinal: end == len(content)}
		if err := wire.WriteMessage(conn, wire.TypeContentChunk, chunk.Marshal()); err != nil {
			return
		}
	}
}

func (s *Server) handleStream(conn net.Conn, payload []byte) {
	req, err := wire.DecodeStreamReq(payload)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	words, err := s.Store.StreamWords(req.Filename)
	if err != nil {
		s.sendFileNotFoundOrFail(conn, err)
		return
	}
	for _, w := range words {
		msg := &wire.StreamWord{Word: w}
		if err := wire.WriteMessage(conn, wire.TypeStreamWord, msg.Marshal()); err != nil {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	end := &wire.StreamEnd{}
	_ = wire.WriteMessage(conn, wire.TypeStreamEnd, end.Marshal())
}

func (s *Server) handleWrite(conn net.Conn, payload []byte) {
	start, err := wire.DecodeWriteStart(payload)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	if !s.Store.Exists(start.Filename) {
		s.sendFileNotFoundOrFail(conn, ErrFileNotFound)
		return
	}

	tx, err := StartWrite(s.Store, s.Repl, start.Filename, int(start.SentenceNum))
	if err != nil {
		if errors.Is(err, ErrWriteLocked) {
			if s.Metrics != nil {
				s.Metrics.RecordWriteLocked()
			}
			locked := &wire.WriteLocked{Message: "sentence is locked"}
			_ = wire.WriteMessage(conn, wire.TypeWriteLocked, locked.Marshal())
			return
		}
		s.sendGenericFail(conn, err.Error())
		return
	}

	ok := &wire.WriteOK{Message: "ready"}
	if err := wire.WriteMessage(conn, wire.TypeWriteOK, ok.Marshal()); err != nil {
		tx.Abort()
		return
	}

	for {
		typ, payload, err := wire.ReadMessage(conn)
		if err != nil {
			tx.Abort()
			return
		}
		switch typ {
		case wire.TypeWriteData:
			wd, err := wire.DecodeWriteData(payload)
			if err != nil {
				s.sendGenericFail(conn, err.Error())
				continue
			}
			if err := tx.ApplyWordData(int(wd.WordIndex), wd.Content); err != nil {
				s.sendGenericFail(conn, err.Error())
			}
		case wire.TypeWriteETIRW:
			if err := tx.Commit(); err != nil {
				s.sendGenericFail(conn, err.Error())
				return
			}
			ok := &wire.GenericOK{Message: "committed"}
			_ = wire.WriteMessage(conn, wire.TypeGenericOK, ok.Marshal())
			return
		default:
			tx.Abort()
			return
		}
	}
}

func (s *Server) handleUndo(conn net.Conn, payload []byte) {
	req, err := wire.DecodeUndoReq(payload)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	if err := s.Store.Undo(req.Filename, s.Repl); err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	ok := &wire.GenericOK{Message: "undone"}
	_ = wire.WriteMessage(conn, wire.TypeGenericOK, ok.Marshal())
}

func (s *Server) handleCheckpoint(conn net.Conn, payload []byte) {
	req, err := wire.DecodeCheckpointTag(payload)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	if err := s.Store.Checkpoint(req.Filename, req.Tag); err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	ok := &wire.GenericOK{Message: "checkpoint created"}
	_ = wire.WriteMessage(conn, wire.TypeGenericOK, ok.Marshal())
}

func (s *Server) handleRevert(conn net.Conn, payload []byte) {
	req, err := wire.DecodeCheckpointTag(payload)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	if err := s.Store.Revert(req.Filename, req.Tag, s.Repl); err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	ok := &wire.GenericOK{Message: "reverted"}
	_ = wire.WriteMessage(conn, wire.TypeGenericOK, ok.Marshal())
}

func (s *Server) handleViewCheckpoint(conn net.Conn, payload []byte) {
	req, err := wire.DecodeCheckpointTag(payload)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	content, err := s.Store.ViewCheckpoint(req.Filename, req.Tag)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	s.streamChunks(conn, content)
}

func (s *Server) handleListCheckpoints(conn net.Conn, payload []byte) {
	req, err := wire.DecodeFilenameOnly(payload)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	entries, err := s.Store.ListCheckpoints(req.Filename)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	res := &wire.ListCheckpointsRes{}
	for _, e := range entries {
		res.Entries = append(res.Entries, wire.CheckpointEntry{Tag: e.Tag, Size: e.Size, ModifiedUnix: e.ModifiedUnix})
	}
	_ = wire.WriteMessage(conn, wire.TypeListCheckpointsRes, res.Marshal())
}

func (s *Server) handleReplicationConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	typ, payload, err := wire.ReadMessage(conn)
	if err != nil {
		return
	}
	switch typ {
	case wire.TypeReplicateFile:
		msg, err := wire.DecodeReplicateFile(payload)
		if err != nil {
			return
		}
		if err := s.Store.ApplyReplicatedFile(msg); err != nil {
			fail := &wire.AckFail{Message: err.Error()}
			_ = wire.WriteMessage(conn, wire.TypeAckFail, fail.Marshal())
			return
		}
		ok := &wire.AckOK{Message: "applied"}
		_ = wire.WriteMessage(conn, wire.TypeAckOK, ok.Marshal())
	case wire.TypeStartRecovery:
		start, err := wire.DecodeStartRecovery(payload)
		if err != nil {
			return
		}
		if err := RunRecoveryReceiver(s.Store, conn, start, s.Logger); err != nil {
			s.Logger.Warn("recovery session failed", "error", err)
		}
	default:
		s.Logger.Warn("unexpected message on replication port", "type", typ)
	}
}

// RunPeriodicCheckpoint saves the metadata table every interval until ctx
// is cancelled (spec.md §4.3's periodic metadata checkpoint thread).
func (s *Server) RunPeriodicCheckpoint(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := s.Store.SaveMetadata(); err != nil {
				s.Logger.Error("final metadata save failed", "error", err)
			}
			return
		case <-ticker.C:
			if err := s.Store.SaveMetadata(); err != nil {
				s.Logger.Error("periodic metadata save failed", "error", err)
			}
		}
	}
}
