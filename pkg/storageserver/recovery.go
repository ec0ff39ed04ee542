package storageserver

import (
	"fmt"
	"log/slog"
	"net"
	"os"

	dnfslog "github.com/dnfs-project/dnfs/internal/logger"
	"github.com/dnfs-project/dnfs/internal/wire"
)

// ResetAll wipes every file, undo slot, and metadata record. Called by a
// recovering primary before it accepts a full resync from its backup
// (spec.md §4.4: "primary deletes stale files/metadata first").
func (s *Store) ResetAll() error {
	var names []string
	s.meta.Range(func(m Metadata) bool {
		names = append(names, m.Filename)
		return true
	})
	for _, name := range names {
		_ = os.Remove(s.filePath(name))
		_ = os.Remove(s.undoPath(name))
		s.meta.Delete(name)
		s.locks.Forget(name)
	}
	return s.SaveMetadata()
}

// RunRecoverySender drives the sending half of a full-sync recovery
// session over conn: it announces itself, lists the files matching
// include, streams each one with an ACK round trip, then signals
// completion (spec.md §4.4's primary-recovering and backup-restoring
// paths are both this same conversation run in either direction).
func (s *Store) RunRecoverySender(conn net.Conn, peerSSID uint32, primaryRecovering bool, include func(Metadata) bool) error {
	start := &wire.StartRecovery{PeerSSID: peerSSID, PrimaryRecovering: primaryRecovering}
	if err := wire.WriteMessage(conn, wire.TypeStartRecovery, start.Marshal()); err != nil {
		return err
	}

	var files []wire.FileOwner
	s.meta.Range(func(m Metadata) bool {
		if include == nil || include(m) {
			files = append(files, wire.FileOwner{Filename: m.Filename, Owner: m.Owner})
		}
		return true
	})

	list := &wire.FileList{Files: files}
	if err := wire.WriteMessage(conn, wire.TypeFileList, list.Marshal()); err != nil {
		return err
	}

	for _, fo := range files {
		fl := s.locks.Get(fo.Filename)
		fl.Coarse.RLock()
		content, err := os.ReadFile(s.filePath(fo.Filename))
		fl.Coarse.RUnlock()
		if err != nil {
			return fmt.Errorf("storageserver: recovery read %s: %w", fo.Filename, err)
		}
		rf := &wire.ReplicateFile{Filename: fo.Filename, Owner: fo.Owner, Data: content}
		if err := wire.WriteMessage(conn, wire.TypeReplicateFile, rf.Marshal()); err != nil {
			return err
		}
		if err := awaitAck(conn); err != nil {
			return fmt.Errorf("storageserver: recovery ack for %s: %w", fo.Filename, err)
		}
	}

	complete := &wire.RecoveryComplete{SSID: peerSSID, FileCount: uint32(len(files))}
	if err := wire.WriteMessage(conn, wire.TypeRecoveryComplete, complete.Marshal()); err != nil {
		return err
	}
	return awaitAck(conn)
}

// RunRecoveryReceiver drives the receiving half: it reads the StartRecovery
// handshake (already decoded by the caller's dispatcher, passed as start),
// the file list, then each ReplicateFile message, applying every file with
// asBackup controlling the IsBackup flag persisted locally. If start says
// this node is the primary being restored, local state is wiped first.
func RunRecoveryReceiver(store *Store, conn net.Conn, start *wire.StartRecovery, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if start.PrimaryRecovering {
		if err := store.ResetAll(); err != nil {
			return fmt.Errorf("storageserver: reset before recovery: %w", err)
		}
	}
	asBackup := !start.PrimaryRecovering

	typ, payload, err := wire.ReadMessage(conn)
	if err != nil {
		return err
	}
	if typ != wire.TypeFileList {
		return fmt.Errorf("storageserver: expected FILE_LIST, got type %d", typ)
	}
	list, err := wire.DecodeFileList(payload)
	if err != nil {
		return err
	}

	received := 0
	for range list.Files {
		typ, payload, err := wire.ReadMessage(conn)
		if err != nil {
			return err
		}
		if typ != wire.TypeReplicateFile {
			return fmt.Errorf("storageserver: expected REPLICATE_FILE, got type %d", typ)
		}
		rf, err := wire.DecodeReplicateFile(payload)
		if err != nil {
			return err
		}
		rf.Deleted = false
		if err := store.applyRecoveredFile(rf, asBackup); err != nil {
			logger.Warn("recovery: failed to apply file, continuing", dnfslog.Filename(rf.Filename), dnfslog.Err(err))
		} else {
			received++
		}
		ack := &wire.AckOK{Message: "applied"}
		if err := wire.WriteMessage(conn, wire.TypeAckOK, ack.Marshal()); err != nil {
			return err
		}
	}

	typ, payload, err = wire.ReadMessage(conn)
	if err != nil {
		return err
	}
	if typ != wire.TypeRecoveryComplete {
		return fmt.Errorf("storageserver: expected RECOVERY_COMPLETE, got type %d", typ)
	}
	if _, err := wire.DecodeRecoveryComplete(payload); err != nil {
		return err
	}
	logger.Info("recovery stream complete", dnfslog.FilesSynced(received))

	ack := &wire.AckOK{Message: "recovery complete"}
	return wire.WriteMessage(conn, wire.TypeAckOK, ack.Marshal())
}

func (s *Store) applyRecoveredFile(rf *wire.ReplicateFile, asBackup bool) error {
	if err := s.ApplyReplicatedFile(rf); err != nil {
		return err
	}
	if !asBackup {
		s.meta.Update(rf.Filename, func(m *Metadata) { m.IsBackup = false })
	}
	return nil
}
