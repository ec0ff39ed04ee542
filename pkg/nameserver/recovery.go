package nameserver

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/dnfs-project/dnfs/internal/logger"
	"github.com/dnfs-project/dnfs/internal/wire"
)

// ssDialTimeout bounds every NS-initiated control dial to an SS's
// client/NS port (spec.md §6).
const ssDialTimeout = 10 * time.Second

// RecoveryOrchestrator drives the NS side of ring-membership changes: after
// Ring.Register recomputes backup assignments, it tells every affected SS
// to update its backup target and re-replicate, and — for a reconnecting SS
// — tells the SS holding its backups to push them back (spec.md §4.3/§4.4).
type RecoveryOrchestrator struct {
	Ring   *Ring
	Logger *slog.Logger
}

func NewRecoveryOrchestrator(ring *Ring, logger *slog.Logger) *RecoveryOrchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecoveryOrchestrator{Ring: ring, Logger: logger}
}

// NotifyRingChange sends UPDATE_BACKUP to every SS in changed, pointing it
// at its newly computed backup neighbor, and RE_REPLICATE_ALL so the new
// backup receives a full resync (spec.md §4.2/§4.4). Clears PendingFullSync
// once dispatched, whether or not the dial succeeds (a down SS will receive
// the current state on its next REGISTER).
func (o *RecoveryOrchestrator) NotifyRingChange(changed []uint32) {
	for _, id := range changed {
		info, ok := o.Ring.Get(id)
		if !ok {
			continue
		}
		o.sendUpdateBackup(info)
		o.sendReReplicateAll(info)
		o.Ring.ClearPendingFullSync(id)
	}
}

// HandleReconnect runs the recovery handshake for an SS that reconnected
// with MustRecover set: SYNC_TO_PRIMARY tells it who holds its backups
// (informational only), and SYNC_FROM_BACKUP tells that holder to actively
// push them back (spec.md §4.4).
func (o *RecoveryOrchestrator) HandleReconnect(reconnected SSInfo) {
	holder, ok := o.findBackupHolder(reconnected.SSID)
	if !ok {
		o.Logger.Warn("reconnect recovery: no backup holder found", logger.SSID(reconnected.SSID))
		o.Ring.ClearSyncing(reconnected.SSID)
		return
	}

	o.Ring.MarkSyncing(holder.SSID)

	o.send(reconnected, wire.TypeSyncToPrimary, &wire.SSEndpoint{
		SSID: holder.SSID, IP: holder.IP, ReplPort: holder.ReplPort,
	})
	o.send(holder, wire.TypeSyncFromBackup, &wire.SSEndpoint{
		SSID: reconnected.SSID, IP: reconnected.IP, ReplPort: reconnected.ReplPort,
	})
}

// findBackupHolder returns the SS recorded as id's backup target (id's
// BackupSSID): the node that holds id's backup copies.
func (o *RecoveryOrchestrator) findBackupHolder(id uint32) (SSInfo, bool) {
	info, ok := o.Ring.Get(id)
	if !ok || !info.HasBackup {
		return SSInfo{}, false
	}
	return o.Ring.Get(info.BackupSSID)
}

func (o *RecoveryOrchestrator) sendUpdateBackup(info SSInfo) {
	if !info.HasBackup {
		return
	}
	backup, ok := o.Ring.Get(info.BackupSSID)
	if !ok {
		return
	}
	o.send(info, wire.TypeUpdateBackup, &wire.SSEndpoint{
		SSID: backup.SSID, IP: backup.IP, ReplPort: backup.ReplPort,
	})
}

func (o *RecoveryOrchestrator) sendReReplicateAll(info SSInfo) {
	msg := &wire.ReReplicateAll{}
	o.send(info, wire.TypeReReplicateAll, msg)
}

type marshaler interface{ Marshal() []byte }

func (o *RecoveryOrchestrator) send(target SSInfo, typ wire.Type, msg marshaler) {
	addr := target.ClientAddr()
	conn, err := net.DialTimeout("tcp", addr, ssDialTimeout)
	if err != nil {
		o.Logger.Error("recovery: dial SS failed", logger.SSID(target.SSID), "addr", addr, logger.Err(err))
		return
	}
	defer conn.Close()
	if err := wire.WriteMessage(conn, typ, msg.Marshal()); err != nil {
		o.Logger.Error("recovery: send failed", logger.SSID(target.SSID), "type", typ, logger.Err(err))
	}
}

// DialCreateFile asks owner's new file to be created on the given SS,
// returning an error on any AckFail (spec.md §4.1: CREATE's SS-side step).
func DialCreateFile(addr, filename, owner string) error {
	conn, err := net.DialTimeout("tcp", addr, ssDialTimeout)
	if err != nil {
		return fmt.Errorf("dial ss: %w", err)
	}
	defer conn.Close()
	req := &wire.FileOwner{Filename: filename, Owner: owner}
	if err := wire.WriteMessage(conn, wire.TypeCreateFile, req.Marshal()); err != nil {
		return err
	}
	typ, payload, err := wire.ReadMessage(conn)
	if err != nil {
		return err
	}
	return ackToError(typ, payload)
}

// DialDeleteFile asks the owning SS to remove filename.
func DialDeleteFile(addr, filename, owner string) error {
	conn, err := net.DialTimeout("tcp", addr, ssDialTimeout)
	if err != nil {
		return fmt.Errorf("dial ss: %w", err)
	}
	defer conn.Close()
	req := &wire.FileOwner{Filename: filename, Owner: owner}
	if err := wire.WriteMessage(conn, wire.TypeDeleteFile, req.Marshal()); err != nil {
		return err
	}
	typ, payload, err := wire.ReadMessage(conn)
	if err != nil {
		return err
	}
	return ackToError(typ, payload)
}

// DialGetInfo fetches a file's size/word/char/time metadata from its owning
// SS (INFO's SS-side step).
func DialGetInfo(addr, filename, owner string) (*wire.FileInfoRes, error) {
	conn, err := net.DialTimeout("tcp", addr, ssDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial ss: %w", err)
	}
	defer conn.Close()
	req := &wire.FileOwner{Filename: filename, Owner: owner}
	if err := wire.WriteMessage(conn, wire.TypeGetInfo, req.Marshal()); err != nil {
		return nil, err
	}
	typ, payload, err := wire.ReadMessage(conn)
	if err != nil {
		return nil, err
	}
	if typ == wire.TypeAckFail {
		fail, _ := wire.DecodeAckFail(payload)
		return nil, fmt.Errorf("%s", fail.Message)
	}
	if typ != wire.TypeFileInfoRes {
		return nil, fmt.Errorf("unexpected response type %d", typ)
	}
	return wire.DecodeFileInfoRes(payload)
}

// DialExecGetContent fetches a file's full content from its owning SS for
// EXEC (spec.md §12).
func DialExecGetContent(addr, filename, owner string) ([]byte, error) {
	conn, err := net.DialTimeout("tcp", addr, ssDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial ss: %w", err)
	}
	defer conn.Close()
	req := &wire.FileOwner{Filename: filename, Owner: owner}
	if err := wire.WriteMessage(conn, wire.TypeExecGetContent, req.Marshal()); err != nil {
		return nil, err
	}
	typ, payload, err := wire.ReadMessage(conn)
	if err != nil {
		return nil, err
	}
	if typ == wire.TypeAckFail {
		fail, _ := wire.DecodeAckFail(payload)
		return nil, fmt.Errorf("%s", fail.Message)
	}
	if typ != wire.TypeExecContent {
		return nil, fmt.Errorf("unexpected response type %d", typ)
	}
	content, err := wire.DecodeExecContent(payload)
	if err != nil {
		return nil, err
	}
	return content.Data, nil
}

func ackToError(typ wire.Type, payload []byte) error {
	switch typ {
	case wire.TypeAckOK:
		return nil
	case wire.TypeAckFail:
		fail, err := wire.DecodeAckFail(payload)
		if err != nil {
			return err
		}
		return fmt.Errorf("%s", fail.Message)
	default:
		return fmt.Errorf("unexpected response type %d", typ)
	}
}
