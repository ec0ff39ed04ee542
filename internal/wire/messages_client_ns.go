package wire

// Resolve operations identify which SS-bound operation a Resolve request is
// for; the NS uses this to pick the right routing policy (§4.2: checkpoint
// routing may try primary then backup "by design", while plain reads prefer
// primary-then-backup too, but writes/undo never fall back to a backup).
type ResolveOp uint8

const (
	ResolveRead ResolveOp = iota
	ResolveStream
	ResolveWrite
	ResolveUndo
	ResolveCheckpoint
)

// FolderOp enumerates the session folder-tree commands (spec.md §4.2).
type FolderOp uint8

const (
	FolderCreate FolderOp = iota
	FolderView
	FolderMove
	FolderUpMove
	FolderOpen
	FolderOpenParent
)

// Login is sent by a client immediately after connecting to the NS.
type Login struct {
	Username string
}

func (m *Login) Marshal() []byte {
	e := newEncoder()
	e.putString(m.Username, MaxUsernameLen)
	return e.bytes()
}

func DecodeLogin(b []byte) (*Login, error) {
	d := newDecoder(b)
	u, err := d.getString(MaxUsernameLen)
	if err != nil {
		return nil, err
	}
	return &Login{Username: u}, nil
}

// LoginFail carries the reason a LOGIN was rejected (spec.md §7: "user
// already active").
type LoginFail struct{ Reason string }

func (m *LoginFail) Marshal() []byte {
	e := newEncoder()
	e.putString(m.Reason, MaxMessageLen)
	return e.bytes()
}

func DecodeLoginFail(b []byte) (*LoginFail, error) {
	d := newDecoder(b)
	r, err := d.getString(MaxMessageLen)
	if err != nil {
		return nil, err
	}
	return &LoginFail{Reason: r}, nil
}

// View flag bits for the VIEW [-a|-l|-al] command.
const (
	ViewFlagAll   uint8 = 1 << 0 // -a: include accessible-but-not-owned files
	ViewFlagLong  uint8 = 1 << 1 // -l: include size/modified time
)

type View struct{ Flags uint8 }

func (m *View) Marshal() []byte {
	e := newEncoder()
	e.putU8(m.Flags)
	return e.bytes()
}

func DecodeView(b []byte) (*View, error) {
	d := newDecoder(b)
	f, err := d.getU8()
	if err != nil {
		return nil, err
	}
	return &View{Flags: f}, nil
}

type ViewEntry struct {
	Filename     string
	Owned        bool
	Size         uint64
	ModifiedUnix int64
}

type ViewRes struct{ Entries []ViewEntry }

func (m *ViewRes) Marshal() []byte {
	e := newEncoder()
	e.putU32(uint32(len(m.Entries)))
	for _, ent := range m.Entries {
		e.putString(ent.Filename, MaxFilenameLen)
		e.putBool(ent.Owned)
		e.putU64(ent.Size)
		e.putI64(ent.ModifiedUnix)
	}
	return e.bytes()
}

func DecodeViewRes(b []byte) (*ViewRes, error) {
	d := newDecoder(b)
	n, err := d.getU32()
	if err != nil {
		return nil, err
	}
	out := make([]ViewEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		name, err := d.getString(MaxFilenameLen)
		if err != nil {
			return nil, err
		}
		owned, err := d.getBool()
		if err != nil {
			return nil, err
		}
		size, err := d.getU64()
		if err != nil {
			return nil, err
		}
		mod, err := d.getI64()
		if err != nil {
			return nil, err
		}
		out = append(out, ViewEntry{Filename: name, Owned: owned, Size: size, ModifiedUnix: mod})
	}
	return &ViewRes{Entries: out}, nil
}

// FilenameOnly covers CREATE, DELETE, INFO, EXEC, REQACCESS, and
// LISTCHECKPOINTS requests, which carry only a filename.
type FilenameOnly struct{ Filename string }

func (m *FilenameOnly) Marshal() []byte {
	e := newEncoder()
	e.putString(m.Filename, MaxFilenameLen)
	return e.bytes()
}

func DecodeFilenameOnly(b []byte) (*FilenameOnly, error) {
	d := newDecoder(b)
	f, err := d.getString(MaxFilenameLen)
	if err != nil {
		return nil, err
	}
	return &FilenameOnly{Filename: f}, nil
}

// InfoRes answers INFO with the full metadata record (spec.md §3/§4.3).
type InfoRes struct {
	Filename     string
	Owner        string
	Size         uint64
	Words        uint64
	Chars        uint64
	ModifiedUnix int64
	AccessUnix   int64
	IsBackup     bool
	PrimarySSID  uint32
	BackupSSID   uint32
}

func (m *InfoRes) Marshal() []byte {
	e := newEncoder()
	e.putString(m.Filename, MaxFilenameLen)
	e.putString(m.Owner, MaxUsernameLen)
	e.putU64(m.Size)
	e.putU64(m.Words)
	e.putU64(m.Chars)
	e.putI64(m.ModifiedUnix)
	e.putI64(m.AccessUnix)
	e.putBool(m.IsBackup)
	e.putU32(m.PrimarySSID)
	e.putU32(m.BackupSSID)
	return e.bytes()
}

func DecodeInfoRes(b []byte) (*InfoRes, error) {
	d := newDecoder(b)
	r := &InfoRes{}
	var err error
	if r.Filename, err = d.getString(MaxFilenameLen); err != nil {
		return nil, err
	}
	if r.Owner, err = d.getString(MaxUsernameLen); err != nil {
		return nil, err
	}
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
	if r.IsBackup, err = d.getBool(); err != nil {
		return nil, err
	}
	if r.PrimarySSID, err = d.getU32(); err != nil {
		return nil, err
	}
	if r.BackupSSID, err = d.getU32(); err != nil {
		return nil, err
	}
	return r, nil
}

// Resolve asks the NS to authorize and locate the SS that should serve a
// file-data operation. Tag is only meaningful for CHECKPOINT-family ops.
type Resolve struct {
	Op       ResolveOp
	Filename string
	Tag      string
}

func (m *Resolve) Marshal() []byte {
	e := newEncoder()
	e.putU8(uint8(m.Op))
	e.putString(m.Filename, MaxFilenameLen)
	e.putString(m.Tag, MaxTagLen)
	return e.bytes()
}

func DecodeResolve(b []byte) (*Resolve, error) {
	d := newDecoder(b)
	op, err := d.getU8()
	if err != nil {
		return nil, err
	}
	f, err := d.getString(MaxFilenameLen)
	if err != nil {
		return nil, err
	}
	tag, err := d.getString(MaxTagLen)
	if err != nil {
		return nil, err
	}
	return &Resolve{Op: ResolveOp(op), Filename: f, Tag: tag}, nil
}

// SSLoc points the client at the SS that should serve its next connection.
type SSLoc struct {
	IP   string
	Port uint32
}

func (m *SSLoc) Marshal() []byte {
	e := newEncoder()
	e.putString(m.IP, 64)
	e.putU32(m.Port)
	return e.bytes()
}

func DecodeSSLoc(b []byte) (*SSLoc, error) {
	d := newDecoder(b)
	ip, err := d.getString(64)
	if err != nil {
		return nil, err
	}
	port, err := d.getU32()
	if err != nil {
		return nil, err
	}
	return &SSLoc{IP: ip, Port: port}, nil
}

type UserEntry struct {
	Username string
	Active   bool
}

type ListUsersRes struct{ Users []UserEntry }

func (m *ListUsersRes) Marshal() []byte {
	e := newEncoder()
	e.putU32(uint32(len(m.Users)))
	for _, u := range m.Users {
		e.putString(u.Username, MaxUsernameLen)
		e.putBool(u.Active)
	}
	return e.bytes()
}

func DecodeListUsersRes(b []byte) (*ListUsersRes, error) {
	d := newDecoder(b)
	n, err := d.getU32()
	if err != nil {
		return nil, err
	}
	out := make([]UserEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		name, err := d.getString(MaxUsernameLen)
		if err != nil {
			return nil, err
		}
		active, err := d.getBool()
		if err != nil {
			return nil, err
		}
		out = append(out, UserEntry{Username: name, Active: active})
	}
	return &ListUsersRes{Users: out}, nil
}

// Permission flag bits, matching the access table's {r,w,o} character set
// (spec.md §9 design note (b): character-set semantics, not substring match).
const (
	PermRead  uint8 = 1 << 0
	PermWrite uint8 = 1 << 1
	PermOwner uint8 = 1 << 2
)

// AccessGrant covers ADDACCESS and GRANTACCESS. FromRequest is set when the
// grant originates from GRANTACCESS, which also removes the matching pending
// access request as a side effect (spec.md §4.2).
type AccessGrant struct {
	Filename    string
	TargetUser  string
	Perms       uint8
	FromRequest bool
}

func (m *AccessGrant) Marshal() []byte {
	e := newEncoder()
	e.putString(m.Filename, MaxFilenameLen)
	e.putString(m.TargetUser, MaxUsernameLen)
	e.putU8(m.Perms)
	e.putBool(m.FromRequest)
	return e.bytes()
}

func DecodeAccessGrant(b []byte) (*AccessGrant, error) {
	d := newDecoder(b)
	f, err := d.getString(MaxFilenameLen)
	if err != nil {
		return nil, err
	}
	u, err := d.getString(MaxUsernameLen)
	if err != nil {
		return nil, err
	}
	p, err := d.getU8()
	if err != nil {
		return nil, err
	}
	fr, err := d.getBool()
	if err != nil {
		return nil, err
	}
	return &AccessGrant{Filename: f, TargetUser: u, Perms: p, FromRequest: fr}, nil
}

// AccessRem is REMACCESS: remove the target user's access entry on a file.
type AccessRem struct {
	Filename   string
	TargetUser string
}

func (m *AccessRem) Marshal() []byte {
	e := newEncoder()
	e.putString(m.Filename, MaxFilenameLen)
	e.putString(m.TargetUser, MaxUsernameLen)
	return e.bytes()
}

func DecodeAccessRem(b []byte) (*AccessRem, error) {
	d := newDecoder(b)
	f, err := d.getString(MaxFilenameLen)
	if err != nil {
		return nil, err
	}
	u, err := d.getString(MaxUsernameLen)
	if err != nil {
		return nil, err
	}
	return &AccessRem{Filename: f, TargetUser: u}, nil
}

// ExecRes carries EXEC's combined stdout+stderr output back to the client.
type ExecRes struct{ Output []byte }

func (m *ExecRes) Marshal() []byte {
	e := newEncoder()
	e.putBytes(m.Output)
	return e.bytes()
}

func DecodeExecRes(b []byte) (*ExecRes, error) {
	d := newDecoder(b)
	out, err := d.getBytes()
	if err != nil {
		return nil, err
	}
	return &ExecRes{Output: out}, nil
}

// FolderCmd drives the per-session folder tree: CREATEFOLDER, VIEWFOLDER,
// MOVE, UPMOVE, OPEN [-c], OPENPARENT.
type FolderCmd struct {
	Op       FolderOp
	Name     string // folder or file name argument
	Path     string // VIEWFOLDER's optional relative path; MOVE's target dir
	CreateIf bool   // OPEN -c
}

func (m *FolderCmd) Marshal() []byte {
	e := newEncoder()
	e.putU8(uint8(m.Op))
	e.putString(m.Name, MaxFilenameLen)
	e.putString(m.Path, MaxFilenameLen)
	e.putBool(m.CreateIf)
	return e.bytes()
}

func DecodeFolderCmd(b []byte) (*FolderCmd, error) {
	d := newDecoder(b)
	op, err := d.getU8()
	if err != nil {
		return nil, err
	}
	name, err := d.getString(MaxFilenameLen)
	if err != nil {
		return nil, err
	}
	path, err := d.getString(MaxFilenameLen)
	if err != nil {
		return nil, err
	}
	cf, err := d.getBool()
	if err != nil {
		return nil, err
	}
	return &FolderCmd{Op: FolderOp(op), Name: name, Path: path, CreateIf: cf}, nil
}

type FolderEntry struct {
	Name string
	Kind uint8 // 0=root, 1=folder, 2=file-stub
}

type FolderRes struct{ Entries []FolderEntry }

func (m *FolderRes) Marshal() []byte {
	e := newEncoder()
	e.putU32(uint32(len(m.Entries)))
	for _, ent := range m.Entries {
		e.putString(ent.Name, MaxFilenameLen)
		e.putU8(ent.Kind)
	}
	return e.bytes()
}

func DecodeFolderRes(b []byte) (*FolderRes, error) {
	d := newDecoder(b)
	n, err := d.getU32()
	if err != nil {
		return nil, err
	}
	out := make([]FolderEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		name, err := d.getString(MaxFilenameLen)
		if err != nil {
			return nil, err
		}
		kind, err := d.getU8()
		if err != nil {
			return nil, err
		}
		out = append(out, FolderEntry{Name: name, Kind: kind})
	}
	return &FolderRes{Entries: out}, nil
}

type ReqEntry struct {
	Requester string
	Filename  string
}

type ViewReqAccessRes struct{ Requests []ReqEntry }

func (m *ViewReqAccessRes) Marshal() []byte {
	e := newEncoder()
	e.putU32(uint32(len(m.Requests)))
	for _, r := range m.Requests {
		e.putString(r.Requester, MaxUsernameLen)
		e.putString(r.Filename, MaxFilenameLen)
	}
	return e.bytes()
}

func DecodeViewReqAccessRes(b []byte) (*ViewReqAccessRes, error) {
	d := newDecoder(b)
	n, err := d.getU32()
	if err != nil {
		return nil, err
	}
	out := make([]ReqEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		requester, err := d.getString(MaxUsernameLen)
		if err != nil {
			return nil, err
		}
		filename, err := d.getString(MaxFilenameLen)
		if err != nil {
			return nil, err
		}
		out = append(out, ReqEntry{Requester: requester, Filename: filename})
	}
	return &ViewReqAccessRes{Requests: out}, nil
}

// GenericOK / GenericFail close out any request/response exchange that
// doesn't carry a more specific payload (spec.md §4.1, §7).
type GenericOK struct{ Message string }

func (m *GenericOK) Marshal() []byte {
	e := newEncoder()
	e.putString(m.Message, MaxMessageLen)
	return e.bytes()
}

func DecodeGenericOK(b []byte) (*GenericOK, error) {
	d := newDecoder(b)
	msg, err := d.getString(MaxMessageLen)
	if err != nil {
		return nil, err
	}
	return &GenericOK{Message: msg}, nil
}

type GenericFail struct{ Message string }

func (m *GenericFail) Marshal() []byte {
	e := newEncoder()
	e.putString(m.Message, MaxMessageLen)
	return e.bytes()
}

func DecodeGenericFail(b []byte) (*GenericFail, error) {
	d := newDecoder(b)
	msg, err := d.getString(MaxMessageLen)
	if err != nil {
		return nil, err
	}
	return &GenericFail{Message: msg}, nil
}
