package storageserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/dnfs-project/dnfs/internal/wire"
)

// NSClient is the storage server's outbound connection to the name
// server's control port: it carries REGISTER once at startup and then the
// periodic HEARTBEAT stream, plus any RECOVERY_SYNC_DONE notifications, on
// the same long-lived connection (spec.md §4.1: "the SS->NS heartbeat
// stream" is one of the few non request/response exchanges on the wire).
type NSClient struct {
	NSAddr       string
	MyIP         string
	MyClientPort uint32
	MyReplPort   uint32
	Logger       *slog.Logger

	writeMu sync.Mutex
	conn    net.Conn
}

// Register dials the NS control port, sends REGISTER, and returns the
// decoded REGISTER_ACK. The connection is kept open for RunHeartbeat.
func (c *NSClient) Register(ctx context.Context) (*wire.RegisterAck, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.NSAddr)
	if err != nil {
		return nil, fmt.Errorf("nsclient: dial %s: %w", c.NSAddr, err)
	}

	reg := &wire.Register{IP: c.MyIP, ClientPort: c.MyClientPort, ReplPort: c.MyReplPort}
	if err := wire.WriteMessage(conn, wire.TypeRegister, reg.Marshal()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("nsclient: send REGISTER: %w", err)
	}

	typ, payload, err := wire.ReadMessage(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("nsclient: read REGISTER_ACK: %w", err)
	}
	if typ != wire.TypeRegisterAck {
		conn.Close()
		return nil, fmt.Errorf("nsclient: expected REGISTER_ACK, got type %d", typ)
	}
	ack, err := wire.DecodeRegisterAck(payload)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.conn = conn
	return ack, nil
}

// RunHeartbeat sends a HEARTBEAT message every interval on the connection
// opened by Register, until ctx is cancelled or the connection breaks.
// Callers should re-Register on return to rejoin the cluster (spec.md §4.2:
// a lost heartbeat stream eventually marks this SS offline at the NS).
func (c *NSClient) RunHeartbeat(ctx context.Context, ssid uint32, interval time.Duration) error {
	if c.conn == nil {
		return fmt.Errorf("nsclient: not registered")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	hb := &wire.Heartbeat{SSID: ssid}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.writeMu.Lock()
			err := wire.WriteMessage(c.conn, wire.TypeHeartbeat, hb.Marshal())
			c.writeMu.Unlock()
			if err != nil {
				return fmt.Errorf("nsclient: send heartbeat: %w", err)
			}
		}
	}
}

// NotifyRecoverySyncDone tells the NS that a recovery sync this SS drove
// against peerSSID has finished, so the NS can clear Syncing for both
// parties (spec.md §4.4 step 3). Safe to call concurrently with
// RunHeartbeat: both share the writeMu guard around the one control
// connection.
func (c *NSClient) NotifyRecoverySyncDone(peerSSID uint32) error {
	if c.conn == nil {
		return fmt.Errorf("nsclient: not registered")
	}
	msg := &wire.RecoverySyncDone{PeerSSID: peerSSID}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wire.WriteMessage(c.conn, wire.TypeRecoverySyncDone, msg.Marshal())
}

// Close closes the underlying control connection.
func (c *NSClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
