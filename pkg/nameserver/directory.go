package nameserver

import (
	"fmt"
	"log/slog"

	"github.com/dnfs-project/dnfs/internal/wire"
	"github.com/dnfs-project/dnfs/pkg/metrics"
)

// Directory is the name server's full in-memory directory: user registry,
// access table, file map, SS ring, resolution cache, and pending access
// requests, wired together the way spec.md §4.2 describes the NS's
// responsibilities. It is safe for concurrent use; each component owns its
// own locking.
type Directory struct {
	Users     *UserRegistry
	Access    *AccessTable
	Files     *FileMap
	Ring      *Ring
	Cache     *ResolutionCache
	Requests  *RequestList
	Recovery  *RecoveryOrchestrator
	Logger    *slog.Logger
	Metrics   *metrics.NameServerMetrics
}

// NewDirectory constructs a Directory from its already-opened components.
func NewDirectory(users *UserRegistry, access *AccessTable, files *FileMap, ring *Ring, cache *ResolutionCache, requests *RequestList, logger *slog.Logger, m *metrics.NameServerMetrics) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		Users: users, Access: access, Files: files, Ring: ring, Cache: cache,
		Requests: requests, Recovery: NewRecoveryOrchestrator(ring, logger),
		Logger: logger, Metrics: m,
	}
}

// Login activates username's session.
func (d *Directory) Login(username string) error {
	return d.Users.Login(username)
}

// Logout clears username's session.
func (d *Directory) Logout(username string) {
	_ = d.Users.Logout(username)
}

// resolveOwner returns filename's owning record, preferring requester's own
// record and falling back to a global search for shared files (spec.md
// §4.2: "VIEW and access checks resolve owner ... by a global filename
// search fallback").
func (d *Directory) resolveOwner(requester, filename string) (FileRecord, bool) {
	if rec, ok := d.Files.Get(requester, filename); ok {
		return rec, true
	}
	return d.Files.FindOwner(filename)
}

// checkPerm verifies requester holds every right asked for on filename
// (read when needRead is set, write when needWrite is set), honoring
// owner-implies-rw.
func (d *Directory) checkPerm(requester, filename string, needRead, needWrite bool) error {
	p, ok := d.Access.Get(requester, filename)
	if !ok {
		return ErrAccessDenied
	}
	if needRead && !p.HasRead() {
		return ErrAccessDenied
	}
	if needWrite && !p.HasWrite() {
		return ErrAccessDenied
	}
	return nil
}

// View lists filenames visible to requester: always the owned set; with
// includeShared, every filename accessible via the access table as well
// (spec.md §4.2, VIEW -a). long requests size/modified time per file by
// dialing the owning SS.
func (d *Directory) View(requester string, includeShared, long bool) ([]wire.ViewEntry, error) {
	perms := d.Access.ListForUser(requester)
	var out []wire.ViewEntry
	for filename, p := range perms {
		owned := p.HasOwner()
		if !owned && !includeShared {
			continue
		}
		entry := wire.ViewEntry{Filename: filename, Owned: owned}
		if long {
			rec, ok := d.resolveOwner(requester, filename)
			if ok {
				if ssinfo, ok := d.Ring.Get(rec.PrimarySSID); ok {
					if info, err := DialGetInfo(ssinfo.ClientAddr(), filename, rec.Owner); err == nil {
						entry.Size = info.Size
						entry.ModifiedUnix = info.ModifiedUnix
					}
				}
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// Create places a new file on the least-loaded eligible SS, registers it in
// the file map with owner=creator and rwo access, and records a backup
// target if the ring currently has one (spec.md §4.2/§3).
func (d *Directory) Create(owner, filename string) error {
	if _, ok := d.Files.Get(owner, filename); ok {
		return ErrFileAlreadyExists
	}
	ss, ok := SelectForPlacement(d.Ring)
	if !ok {
		return ErrNoStorageServer
	}
	if err := DialCreateFile(ss.ClientAddr(), filename, owner); err != nil {
		return fmt.Errorf("create on ss %d: %w", ss.SSID, err)
	}
	rec := FileRecord{Filename: filename, Owner: owner, PrimarySSID: ss.SSID}
	if ss.HasBackup {
		rec.SetBackup(ss.BackupSSID)
	}
	if err := d.Files.Put(rec); err != nil {
		return err
	}
	d.Ring.IncrementFileCount(ss.SSID, 1)
	if err := d.Access.Grant(owner, filename, PermRead|PermWrite|PermOwner); err != nil {
		return err
	}
	d.Cache.Put(rec)
	return nil
}

// Delete removes filename from owner's namespace: deletes it on its primary
// SS, drops the file map entry, revokes the owner's own access entry (not
// every user's — spec.md §9 design note (a)), and decrements load.
func (d *Directory) Delete(owner, filename string) error {
	rec, ok := d.Files.Get(owner, filename)
	if !ok {
		return ErrFileNotFound
	}
	ss, ok := d.Ring.Get(rec.PrimarySSID)
	if !ok {
		return ErrStorageServerDown
	}
	if err := DialDeleteFile(ss.ClientAddr(), filename, owner); err != nil {
		return fmt.Errorf("delete on ss %d: %w", ss.SSID, err)
	}
	d.Files.Delete(owner, filename)
	d.Cache.Invalidate(owner, filename)
	_ = d.Access.Revoke(owner, filename)
	d.Ring.IncrementFileCount(rec.PrimarySSID, -1)
	return nil
}

// Info fetches a file's full metadata. Requires w (spec.md §4.2: "INFO
// requires w").
func (d *Directory) Info(requester, filename string) (*wire.InfoRes, error) {
	rec, ok := d.resolveOwner(requester, filename)
	if !ok {
		return nil, ErrFileNotFound
	}
	if err := d.checkPerm(requester, filename, false, true); err != nil {
		return nil, err
	}
	ss, ok := d.Ring.Get(rec.PrimarySSID)
	if !ok {
		return nil, ErrStorageServerDown
	}
	m, err := DialGetInfo(ss.ClientAddr(), filename, rec.Owner)
	if err != nil {
		return nil, ErrStorageServerDown
	}
	return &wire.InfoRes{
		Filename: filename, Owner: rec.Owner, Size: m.Size, Words: m.Words, Chars: m.Chars,
		ModifiedUnix: m.ModifiedUnix, AccessUnix: m.AccessUnix,
		PrimarySSID: rec.PrimarySSID, BackupSSID: rec.BackupSSID,
	}, nil
}

// Resolve authorizes and locates the SS that should serve a
// READ/STREAM/WRITE/UNDO/CHECKPOINT-family operation (spec.md §4.2: "SS
// resolution for a file"). It consults the LRU cache first, then the file
// map, preferring an online primary and falling back to backup for
// read-like ops; CHECKPOINT-family ops may also try primary then backup.
func (d *Directory) Resolve(requester string, op wire.ResolveOp, filename string) (wire.SSLoc, error) {
	needRead := op == wire.ResolveRead || op == wire.ResolveStream || op == wire.ResolveCheckpoint
	needWrite := op == wire.ResolveWrite || op == wire.ResolveUndo
	if err := d.checkPerm(requester, filename, needRead, needWrite); err != nil {
		return wire.SSLoc{}, err
	}

	rec, ok := d.Cache.Get(requester, filename)
	if !ok {
		rec, ok = d.resolveOwner(requester, filename)
		if !ok {
			return wire.SSLoc{}, ErrFileNotFound
		}
		d.Cache.Put(rec)
	}

	allowBackupFallback := op == wire.ResolveRead || op == wire.ResolveStream || op == wire.ResolveCheckpoint

	if primary, ok := d.Ring.Get(rec.PrimarySSID); ok && primary.Online {
		return wire.SSLoc{IP: primary.IP, Port: primary.ClientPort}, nil
	}
	if allowBackupFallback && rec.HasBackup {
		if backup, ok := d.Ring.Get(rec.BackupSSID); ok && backup.Online {
			return wire.SSLoc{IP: backup.IP, Port: backup.ClientPort}, nil
		}
	}
	return wire.SSLoc{}, ErrStorageServerDown
}

// AccessAdd grants perms to target on filename; owner-only (ADDACCESS).
func (d *Directory) AccessAdd(owner, filename, target string, perms uint8, fromRequest bool) error {
	if _, ok := d.Files.Get(owner, filename); !ok {
		return ErrFileNotFound
	}
	if !d.Users.Exists(target) {
		return ErrUnknownUser
	}
	p := Perm(perms)
	if p == 0 {
		return ErrInvalidPermFlag
	}
	if err := d.Access.Grant(target, filename, p); err != nil {
		return err
	}
	if fromRequest {
		d.Requests.RemoveMatching(target, filename)
	}
	return nil
}

// AccessRem revokes target's access to filename; owner-only (REMACCESS).
func (d *Directory) AccessRem(owner, filename, target string) error {
	if _, ok := d.Files.Get(owner, filename); !ok {
		return ErrFileNotFound
	}
	return d.Access.Revoke(target, filename)
}

// ReqAccess records a pending access request (REQACCESS).
func (d *Directory) ReqAccess(requester, filename string) error {
	if _, ok := d.resolveOwner(requester, filename); !ok {
		return ErrFileNotFound
	}
	return d.Requests.Add(AccessRequest{Requester: requester, Filename: filename})
}

// ViewReqAccess lists pending requests for files owner owns (VIEWREQS).
func (d *Directory) ViewReqAccess(owner string) []AccessRequest {
	owned := make(map[string]bool)
	for filename, p := range d.Access.ListForUser(owner) {
		if p.HasOwner() {
			owned[filename] = true
		}
	}
	return d.Requests.ForOwnedFilenames(owned)
}

// GrantReqAccess grants perms to requester on filename and clears the
// pending request (GRANTACCESS).
func (d *Directory) GrantReqAccess(owner, filename, requester string, perms uint8) error {
	return d.AccessAdd(owner, filename, requester, perms, true)
}

// ListUsers returns every known user and session state (LIST).
func (d *Directory) ListUsers() []wire.UserEntry {
	recs := d.Users.List()
	out := make([]wire.UserEntry, 0, len(recs))
	for _, u := range recs {
		out = append(out, wire.UserEntry{Username: u.Username, Active: u.Active})
	}
	return out
}

// Exec fetches filename's content from its owning SS and runs it with bash,
// returning the combined stdout+stderr (spec.md §4.3/SPEC_FULL §12).
// Requires r. The actual temp-file handling and bash invocation live in
// exec.go.
func (d *Directory) Exec(requester, filename string) ([]byte, error) {
	rec, ok := d.resolveOwner(requester, filename)
	if !ok {
		return nil, ErrFileNotFound
	}
	if err := d.checkPerm(requester, filename, true, false); err != nil {
		return nil, err
	}
	ss, ok := d.Ring.Get(rec.PrimarySSID)
	if !ok {
		return nil, ErrStorageServerDown
	}
	content, err := DialExecGetContent(ss.ClientAddr(), filename, rec.Owner)
	if err != nil {
		return nil, ErrStorageServerDown
	}
	return runExecScript(content)
}
