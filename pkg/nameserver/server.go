package nameserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/dnfs-project/dnfs/internal/logger"
	"github.com/dnfs-project/dnfs/internal/wire"
)

// Server ties a Directory to the network: the client-facing accept loop,
// the SS registration/control accept loop, and the heartbeat monitor
// (spec.md §5: "the NS runs three long-lived threads (client acceptor, SS
// acceptor, heartbeat monitor) and one thread per client connection and per
// SS connection").
type Server struct {
	Dir    *Directory
	Logger *slog.Logger

	AcceptPollInterval time.Duration
	HeartbeatTimeout   time.Duration
}

func NewServer(dir *Directory, logger *slog.Logger, acceptPoll, heartbeatTimeout time.Duration) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{Dir: dir, Logger: logger, AcceptPollInterval: acceptPoll, HeartbeatTimeout: heartbeatTimeout}
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, handle func(context.Context, net.Conn)) error {
	type tcpListener interface{ SetDeadline(time.Time) error }
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

// ServeClients accepts client connections until ctx is cancelled.
func (s *Server) ServeClients(ctx context.Context, ln net.Listener) error {
	return s.acceptLoop(ctx, ln, s.handleClientConn)
}

// ServeStorageServers accepts SS registration/heartbeat connections until
// ctx is cancelled.
func (s *Server) ServeStorageServers(ctx context.Context, ln net.Listener) error {
	return s.acceptLoop(ctx, ln, s.handleSSConn)
}

// RunHeartbeatMonitor wakes every HeartbeatTimeout and marks overdue SSs
// offline (spec.md §4.2: "a dedicated thread wakes every HEARTBEAT_TIMEOUT
// seconds").
func (s *Server) RunHeartbeatMonitor(ctx context.Context) {
	ticker := time.NewTicker(s.HeartbeatTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range s.Dir.Ring.MarkOffline(s.HeartbeatTimeout) {
				s.Logger.Warn("storage server heartbeat timeout, marking offline", logger.SSID(id))
			}
		}
	}
}

func (s *Server) handleClientConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	typ, payload, err := wire.ReadMessage(conn)
	if err != nil {
		return
	}
	if typ != wire.TypeLogin {
		s.sendGenericFail(conn, "expected LOGIN")
		return
	}
	login, err := wire.DecodeLogin(payload)
	if err != nil {
		return
	}
	if err := s.Dir.Login(login.Username); err != nil {
		fail := &wire.LoginFail{Reason: err.Error()}
		_ = wire.WriteMessage(conn, wire.TypeLoginFail, fail.Marshal())
		return
	}
	defer s.Dir.Logout(login.Username)

	ok := &wire.GenericOK{Message: "welcome"}
	if err := wire.WriteMessage(conn, wire.TypeLoginOK, ok.Marshal()); err != nil {
		return
	}

	sess := NewSession(login.Username)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		typ, payload, err := wire.ReadMessage(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.Logger.Debug("client connection read error", "error", err, "user", sess.Username)
			}
			return
		}
		if !s.dispatchClientMessage(conn, sess, typ, payload) {
			return
		}
	}
}

func (s *Server) dispatchClientMessage(conn net.Conn, sess *Session, typ wire.Type, payload []byte) bool {
	switch typ {
	case wire.TypeView:
		s.handleView(conn, sess, payload)
	case wire.TypeCreate:
		s.handleCreate(conn, sess, payload)
	case wire.TypeDelete:
		s.handleDelete(conn, sess, payload)
	case wire.TypeInfo:
		s.handleInfo(conn, sess, payload)
	case wire.TypeResolve:
		s.handleResolve(conn, sess, payload)
	case wire.TypeListUsers:
		s.handleListUsers(conn)
	case wire.TypeAccessAdd:
		s.handleAccessAdd(conn, sess, payload)
	case wire.TypeAccessRem:
		s.handleAccessRem(conn, sess, payload)
	case wire.TypeExec:
		s.handleExec(conn, sess, payload)
	case wire.TypeFolderCmd:
		s.handleFolderCmd(conn, sess, payload)
	case wire.TypeReqAccess:
		s.handleReqAccess(conn, sess, payload)
	case wire.TypeViewReqAccess:
		s.handleViewReqAccess(conn, sess)
	case wire.TypeGrantReqAccess:
		s.handleGrantReqAccess(conn, sess, payload)
	default:
		s.sendGenericFail(conn, "malformed command")
	}
	return true
}

func (s *Server) sendGenericOK(conn net.Conn, msg string) {
	ok := &wire.GenericOK{Message: msg}
	_ = wire.WriteMessage(conn, wire.TypeGenericOK, ok.Marshal())
}

func (s *Server) sendGenericFail(conn net.Conn, msg string) {
	fail := &wire.GenericFail{Message: msg}
	_ = wire.WriteMessage(conn, wire.TypeGenericFail, fail.Marshal())
}

func (s *Server) handleView(conn net.Conn, sess *Session, payload []byte) {
	req, err := wire.DecodeView(payload)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	includeShared := req.Flags&wire.ViewFlagAll != 0
	long := req.Flags&wire.ViewFlagLong != 0
	entries, err := s.Dir.View(sess.Username, includeShared, long)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	res := &wire.ViewRes{Entries: entries}
	_ = wire.WriteMessage(conn, wire.TypeViewRes, res.Marshal())
}

func (s *Server) handleCreate(conn net.Conn, sess *Session, payload []byte) {
	req, err := wire.DecodeFilenameOnly(payload)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	if err := s.Dir.Create(sess.Username, req.Filename); err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	_ = sess.Tree.AddFileStub(req.Filename)
	s.sendGenericOK(conn, "created")
}

func (s *Server) handleDelete(conn net.Conn, sess *Session, payload []byte) {
	req, err := wire.DecodeFilenameOnly(payload)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	if err := s.Dir.Delete(sess.Username, req.Filename); err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	sess.Tree.RemoveFileStub(req.Filename)
	s.sendGenericOK(conn, "deleted")
}

func (s *Server) handleInfo(conn net.Conn, sess *Session, payload []byte) {
	req, err := wire.DecodeFilenameOnly(payload)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	info, err := s.Dir.Info(sess.Username, req.Filename)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	_ = wire.WriteMessage(conn, wire.TypeInfoRes, info.Marshal())
}

func (s *Server) handleResolve(conn net.Conn, sess *Session, payload []byte) {
	req, err := wire.DecodeResolve(payload)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	loc, err := s.Dir.Resolve(sess.Username, req.Op, req.Filename)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	_ = wire.WriteMessage(conn, wire.TypeSSLoc, loc.Marshal())
}

func (s *Server) handleListUsers(conn net.Conn) {
	res := &wire.ListUsersRes{Users: s.Dir.ListUsers()}
	_ = wire.WriteMessage(conn, wire.TypeListUsersRes, res.Marshal())
}

func (s *Server) handleAccessAdd(conn net.Conn, sess *Session, payload []byte) {
	req, err := wire.DecodeAccessGrant(payload)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	if err := s.Dir.AccessAdd(sess.Username, req.Filename, req.TargetUser, req.Perms, req.FromRequest); err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	s.sendGenericOK(conn, "granted")
}

func (s *Server) handleAccessRem(conn net.Conn, sess *Session, payload []byte) {
	req, err := wire.DecodeAccessRem(payload)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	if err := s.Dir.AccessRem(sess.Username, req.Filename, req.TargetUser); err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	s.sendGenericOK(conn, "revoked")
}

func (s *Server) handleExec(conn net.Conn, sess *Session, payload []byte) {
	req, err := wire.DecodeFilenameOnly(payload)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	out, err := s.Dir.Exec(sess.Username, req.Filename)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	res := &wire.ExecRes{Output: out}
	_ = wire.WriteMessage(conn, wire.TypeExecRes, res.Marshal())
}

func (s *Server) handleReqAccess(conn net.Conn, sess *Session, payload []byte) {
	req, err := wire.DecodeFilenameOnly(payload)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	if err := s.Dir.ReqAccess(sess.Username, req.Filename); err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	s.sendGenericOK(conn, "requested")
}

func (s *Server) handleViewReqAccess(conn net.Conn, sess *Session) {
	reqs := s.Dir.ViewReqAccess(sess.Username)
	res := &wire.ViewReqAccessRes{}
	for _, r := range reqs {
		res.Requests = append(res.Requests, wire.ReqEntry{Requester: r.Requester, Filename: r.Filename})
	}
	_ = wire.WriteMessage(conn, wire.TypeViewReqAccessRes, res.Marshal())
}

func (s *Server) handleGrantReqAccess(conn net.Conn, sess *Session, payload []byte) {
	req, err := wire.DecodeAccessGrant(payload)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	if err := s.Dir.GrantReqAccess(sess.Username, req.Filename, req.TargetUser, req.Perms); err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	s.sendGenericOK(conn, "granted")
}

func (s *Server) handleFolderCmd(conn net.Conn, sess *Session, payload []byte) {
	req, err := wire.DecodeFolderCmd(payload)
	if err != nil {
		s.sendGenericFail(conn, err.Error())
		return
	}
	switch req.Op {
	case wire.FolderCreate:
		if err := sess.Tree.CreateFolder(req.Name); err != nil {
			s.sendGenericFail(conn, err.Error())
			return
		}
		s.sendGenericOK(conn, "created")
	case wire.FolderView:
		entries, err := sess.Tree.View(req.Path)
		if err != nil {
			s.sendGenericFail(conn, err.Error())
			return
		}
		res := &wire.FolderRes{}
		for _, e := range entries {
			res.Entries = append(res.Entries, wire.FolderEntry{Name: e.Name, Kind: uint8(e.Kind)})
		}
		_ = wire.WriteMessage(conn, wire.TypeFolderRes, res.Marshal())
	case wire.FolderMove:
		if err := sess.Tree.Move(req.Name, req.Path); err != nil {
			s.sendGenericFail(conn, err.Error())
			return
		}
		s.sendGenericOK(conn, "moved")
	case wire.FolderUpMove:
		if err := sess.Tree.UpMove(req.Name); err != nil {
			s.sendGenericFail(conn, err.Error())
			return
		}
		s.sendGenericOK(conn, "moved")
	case wire.FolderOpen:
		if err := sess.Tree.Open(req.Name, req.CreateIf); err != nil {
			s.sendGenericFail(conn, err.Error())
			return
		}
		s.sendGenericOK(conn, "opened")
	case wire.FolderOpenParent:
		if err := sess.Tree.OpenParent(); err != nil {
			s.sendGenericFail(conn, err.Error())
			return
		}
		s.sendGenericOK(conn, "opened")
	default:
		s.sendGenericFail(conn, "unknown folder op")
	}
}

// handleSSConn processes one storage server's control connection: a
// REGISTER followed by a HEARTBEAT stream (spec.md §4.1: "the SS->NS
// heartbeat stream" is one of the protocol's long-lived exceptions to
// strict request/response).
func (s *Server) handleSSConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	typ, payload, err := wire.ReadMessage(conn)
	if err != nil {
		return
	}
	if typ != wire.TypeRegister {
		return
	}
	reg, err := wire.DecodeRegister(payload)
	if err != nil {
		return
	}

	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	ip := reg.IP
	if ip == "" {
		ip = host
	}

	result := s.Dir.Ring.Register(ip, reg.ClientPort, reg.ReplPort)
	s.Logger.Info("storage server registered", logger.SSID(result.SSID), logger.ClientIP(ip), logger.ClientPort(reg.ClientPort), logger.MustRecover(result.MustRecover))

	ack := &wire.RegisterAck{SSID: result.SSID, MustRecover: result.MustRecover}
	if info, ok := s.Dir.Ring.Get(result.SSID); ok && info.HasBackup {
		if backup, ok := s.Dir.Ring.Get(info.BackupSSID); ok {
			ack.BackupIP = backup.IP
			ack.BackupReplPort = backup.ReplPort
		}
	}
	if err := wire.WriteMessage(conn, wire.TypeRegisterAck, ack.Marshal()); err != nil {
		return
	}

	s.Dir.Recovery.NotifyRingChange(result.NewlyPending)
	if result.MustRecover {
		if info, ok := s.Dir.Ring.Get(result.SSID); ok {
			s.Dir.Recovery.HandleReconnect(info)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		typ, payload, err := wire.ReadMessage(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.Logger.Debug("ss control connection read error", logger.Err(err), logger.SSID(result.SSID))
			}
			return
		}
		switch typ {
		case wire.TypeHeartbeat:
			hb, err := wire.DecodeHeartbeat(payload)
			if err != nil {
				continue
			}
			s.Dir.Ring.Heartbeat(hb.SSID)
		case wire.TypeRecoverySyncDone:
			done, err := wire.DecodeRecoverySyncDone(payload)
			if err != nil {
				continue
			}
			s.Logger.Info("recovery sync done", logger.SSID(result.SSID), logger.PeerSSID(done.PeerSSID))
			s.Dir.Ring.ClearSyncing(result.SSID)
			s.Dir.Ring.ClearSyncing(done.PeerSSID)
		default:
			continue
		}
	}
}
