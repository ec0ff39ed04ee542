package wire

// ReplicateFile is the SS->SS replication message: a primary pushes a
// file's full content (whole-file replication per spec.md §1 Non-goals —
// no delta/diff protocol) to its backup whenever a WRITE, UNDO, REVERT, or
// DELETE commits.
type ReplicateFile struct {
	Filename string
	Owner    string
	Deleted  bool // true for a replicated DELETE; Data is empty in that case
	Data     []byte
}

func (m *ReplicateFile) Marshal() []byte {
	e := newEncoder()
	e.putString(m.Filename, MaxFilenameLen)
	e.putString(m.Owner, MaxUsernameLen)
	e.putBool(m.Deleted)
	e.putBytes(m.Data)
	return e.bytes()
}

func DecodeReplicateFile(b []byte) (*ReplicateFile, error) {
	d := newDecoder(b)
	f, err := d.getString(MaxFilenameLen)
	if err != nil {
		return nil, err
	}
	o, err := d.getString(MaxUsernameLen)
	if err != nil {
		return nil, err
	}
	del, err := d.getBool()
	if err != nil {
		return nil, err
	}
	data, err := d.getBytes()
	if err != nil {
		return nil, err
	}
	return &ReplicateFile{Filename: f, Owner: o, Deleted: del, Data: data}, nil
}

// StartRecovery opens an SS->SS recovery stream on the peer's replication
// port; the SS driving the sync sends it, and PeerSSID names the recipient.
// PrimaryRecovering is true when the recipient is the failed primary
// rejoining (its local files are reset and replaced by the held copies) and
// false when the recipient is a backup being refilled from the primary
// (spec.md §4.3).
type StartRecovery struct {
	PeerSSID       uint32
	PeerIP         string
	PeerReplPort   uint32
	PrimaryRecovering bool
}

func (m *StartRecovery) Marshal() []byte {
	e := newEncoder()
	e.putU32(m.PeerSSID)
	e.putString(m.PeerIP, 64)
	e.putU32(m.PeerReplPort)
	e.putBool(m.PrimaryRecovering)
	return e.bytes()
}

func DecodeStartRecovery(b []byte) (*StartRecovery, error) {
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
	pr, err := d.getBool()
	if err != nil {
		return nil, err
	}
	return &StartRecovery{PeerSSID: id, PeerIP: ip, PeerReplPort: port, PrimaryRecovering: pr}, nil
}

// FileList enumerates the filenames (with owners) a recovering SS should
// expect to receive, sent ahead of the ReplicateFile stream so the receiver
// can detect a short transfer.
type FileList struct {
	Files []FileOwner
}

func (m *FileList) Marshal() []byte {
	e := newEncoder()
	e.putU32(uint32(len(m.Files)))
	for _, f := range m.Files {
		e.putString(f.Filename, MaxFilenameLen)
		e.putString(f.Owner, MaxUsernameLen)
	}
	return e.bytes()
}

func DecodeFileList(b []byte) (*FileList, error) {
	d := newDecoder(b)
	n, err := d.getU32()
	if err != nil {
		return nil, err
	}
	out := make([]FileOwner, 0, n)
	for i := uint32(0); i < n; i++ {
		name, err := d.getString(MaxFilenameLen)
		if err != nil {
			return nil, err
		}
		owner, err := d.getString(MaxUsernameLen)
		if err != nil {
			return nil, err
		}
		out = append(out, FileOwner{Filename: name, Owner: owner})
	}
	return &FileList{Files: out}, nil
}

// RecoveryComplete closes out an SS->SS recovery stream; the receiver
// answers it with an ACK. The NS learns of the finished sync separately,
// from the RecoverySyncDone message on the driving SS's control connection.
type RecoveryComplete struct {
	SSID      uint32
	FileCount uint32
}

func (m *RecoveryComplete) Marshal() []byte {
	e := newEncoder()
	e.putU32(m.SSID)
	e.putU32(m.FileCount)
	return e.bytes()
}

func DecodeRecoveryComplete(b []byte) (*RecoveryComplete, error) {
	d := newDecoder(b)
	id, err := d.getU32()
	if err != nil {
		return nil, err
	}
	n, err := d.getU32()
	if err != nil {
		return nil, err
	}
	return &RecoveryComplete{SSID: id, FileCount: n}, nil
}
