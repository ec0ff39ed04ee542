package wire

// Register is sent by an SS on startup to join the cluster. The NS replies
// with RegisterAck carrying the SS's stable id (reused across reconnects by
// ip+port per spec.md §4.2/§4.3) and whether it must run recovery.
type Register struct {
	IP         string
	ClientPort uint32
	ReplPort   uint32
}

func (m *Register) Marshal() []byte {
	e := newEncoder()
	e.putString(m.IP, 64)
	e.putU32(m.ClientPort)
	e.putU32(m.ReplPort)
	return e.bytes()
}

func DecodeRegister(b []byte) (*Register, error) {
	d := newDecoder(b)
	ip, err := d.getString(64)
	if err != nil {
		return nil, err
	}
	cp, err := d.getU32()
	if err != nil {
		return nil, err
	}
	rp, err := d.getU32()
	if err != nil {
		return nil, err
	}
	return &Register{IP: ip, ClientPort: cp, ReplPort: rp}, nil
}

type RegisterAck struct {
	SSID           uint32
	MustRecover    bool
	BackupIP       string
	BackupReplPort uint32
}

func (m *RegisterAck) Marshal() []byte {
	e := newEncoder()
	e.putU32(m.SSID)
	e.putBool(m.MustRecover)
	e.putString(m.BackupIP, 64)
	e.putU32(m.BackupReplPort)
	return e.bytes()
}

func DecodeRegisterAck(b []byte) (*RegisterAck, error) {
	d := newDecoder(b)
	id, err := d.getU32()
	if err != nil {
		return nil, err
	}
	recover, err := d.getBool()
	if err != nil {
		return nil, err
	}
	ip, err := d.getString(64)
	if err != nil {
		return nil, err
	}
	port, err := d.getU32()
	if err != nil {
		return nil, err
	}
	return &RegisterAck{SSID: id, MustRecover: recover, BackupIP: ip, BackupReplPort: port}, nil
}

// Heartbeat is sent periodically by an SS to the NS (spec.md §4.2: 5s
// interval, 15s timeout).
type Heartbeat struct{ SSID uint32 }

func (m *Heartbeat) Marshal() []byte {
	e := newEncoder()
	e.putU32(m.SSID)
	return e.bytes()
}

func DecodeHeartbeat(b []byte) (*Heartbeat, error) {
	d := newDecoder(b)
	id, err := d.getU32()
	if err != nil {
		return nil, err
	}
	return &Heartbeat{SSID: id}, nil
}

// FileOwner identifies a file by owner+filename, the NS's and SS's shared
// key (spec.md §4.2: file map keyed owner+filename). It backs CreateFile,
// DeleteFile, and GetInfo requests sent from NS to SS.
type FileOwner struct {
	Filename string
	Owner    string
}

func (m *FileOwner) Marshal() []byte {
	e := newEncoder()
	e.putString(m.Filename, MaxFilenameLen)
	e.putString(m.Owner, MaxUsernameLen)
	return e.bytes()
}

func DecodeFileOwner(b []byte) (*FileOwner, error) {
	d := newDecoder(b)
	f, err := d.getString(MaxFilenameLen)
	if err != nil {
		return nil, err
	}
	o, err := d.getString(MaxUsernameLen)
	if err != nil {
		return nil, err
	}
	return &FileOwner{Filename: f, Owner: o}, nil
}

// FileInfoRes answers GetInfo with the SS's local metadata record.
type FileInfoRes struct {
	Size         uint64
	Words        uint64
	Chars        uint64
	ModifiedUnix int64
	AccessUnix   int64
}

func (m *FileInfoRes) Marshal() []byte {
	e := newEncoder()
	e.putU64(m.Size)
	e.putU64(m.Words)
	e.putU64(m.Chars)
	e.putI64(m.ModifiedUnix)
	e.putI64(m.AccessUnix)
	return e.bytes()
}

func DecodeFileInfoRes(b []byte) (*FileInfoRes, error) {
	d := newDecoder(b)
	r := &FileInfoRes{}
	var err error
	if r.Size, err = d.getU64(); err != nil {
		return nil, err
	}
	if r.Words, err = d.getU64(); err != nil {
		return nil, err
	}
	if r.Chars, err = d.getU64(); err != nil {
		return nil, err
	}
	if r.ModifiedUnix, err = d.getI64(); err != nil {
		return nil, err
	}
	if r.AccessUnix, err = d.getI64(); err != nil {
		return nil, err
	}
	return r, nil
}

// ExecContent carries a whole file body back to the NS for EXEC (spec.md
// §12: combined stdout+stderr is produced by the NS after fetching content).
type ExecContent struct{ Data []byte }

func (m *ExecContent) Marshal() []byte {
	e := newEncoder()
	e.putBytes(m.Data)
	return e.bytes()
}

func DecodeExecContent(b []byte) (*ExecContent, error) {
	d := newDecoder(b)
	data, err := d.getBytes()
	if err != nil {
		return nil, err
	}
	return &ExecContent{Data: data}, nil
}

// AckOK / AckFail close out NS<->SS and SS<->SS control exchanges that carry
// no further payload (CreateFile/DeleteFile acks, replication acks).
type AckOK struct{ Message string }

func (m *AckOK) Marshal() []byte {
	e := newEncoder()
	e.putString(m.Message, MaxMessageLen)
	return e.bytes()
}

func DecodeAckOK(b []byte) (*AckOK, error) {
	d := newDecoder(b)
	msg, err := d.getString(MaxMessageLen)
	if err != nil {
		return nil, err
	}
	return &AckOK{Message: msg}, nil
}

type AckFail struct{ Message string }

func (m *AckFail) Marshal() []byte {
	e := newEncoder()
	e.putString(m.Message, MaxMessageLen)
	return e.bytes()
}

func DecodeAckFail(b []byte) (*AckFail, error) {
	d := newDecoder(b)
	msg, err := d.getString(MaxMessageLen)
	if err != nil {
		return nil, err
	}
	return &AckFail{Message: msg}, nil
}

// SSEndpoint identifies a peer SS by id, ip and replication port. It backs
// SyncFromBackup, SyncToPrimary, and UpdateBackup — all recovery/backup-ring
// maintenance messages the NS sends an SS when its role or ring neighbor
// changes (spec.md §4.3: recovery state machine).
type SSEndpoint struct {
	SSID     uint32
	IP       string
	ReplPort uint32
}

func (m *SSEndpoint) Marshal() []byte {
	e := newEncoder()
	e.putU32(m.SSID)
	e.putString(m.IP, 64)
	e.putU32(m.ReplPort)
	return e.bytes()
}

func DecodeSSEndpoint(b []byte) (*SSEndpoint, error) {
	d := newDecoder(b)
	id, err := d.getU32()
	if err != nil {
		return nil, err
	}
	ip, err := d.getString(64)
	if err != nil {
		return nil, err
	}
	port, err := d.getU32()
	if err != nil {
		return nil, err
	}
	return &SSEndpoint{SSID: id, IP: ip, ReplPort: port}, nil
}

// ReReplicateAll asks an SS to push every owned file to its current backup
// from scratch, used after a backup-ring reshuffle (spec.md §4.3).
type ReReplicateAll struct{}

func (m *ReReplicateAll) Marshal() []byte { return nil }

func DecodeReReplicateAll(b []byte) (*ReReplicateAll, error) { return &ReReplicateAll{}, nil }

// RecoverySyncDone is sent SS -> NS over the control connection when a
// recovery sync this SS drove (as either the reconnecting primary or the
// backup holder pushing files back) has finished. PeerSSID is the id of the
// other party in that sync; the NS clears Syncing for both ids on receipt
// (spec.md §4.4 step 3).
type RecoverySyncDone struct{ PeerSSID uint32 }

func (m *RecoverySyncDone) Marshal() []byte {
	e := newEncoder()
	e.putU32(m.PeerSSID)
	return e.bytes()
}

func DecodeRecoverySyncDone(b []byte) (*RecoverySyncDone, error) {
	d := newDecoder(b)
	id, err := d.getU32()
	if err != nil {
		return nil, err
	}
	return &RecoverySyncDone{PeerSSID: id}, nil
}
