package nameserver

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dnfs-project/dnfs/internal/wire"
	"github.com/dnfs-project/dnfs/pkg/containers/dhash"
)

// Perm is a bitset over the access table's {r,w,o} character set (spec.md
// §9 design note (b): the corrected semantics check individual
// characters, not a substring match against the literal word "owner").
type Perm uint8

const (
	PermRead  = Perm(wire.PermRead)
	PermWrite = Perm(wire.PermWrite)
	PermOwner = Perm(wire.PermOwner)
)

// HasRead and HasWrite account for spec.md §3's invariant that owner (o)
// implies both r and w.
func (p Perm) HasRead() bool  { return p&PermRead != 0 || p&PermOwner != 0 }
func (p Perm) HasWrite() bool { return p&PermWrite != 0 || p&PermOwner != 0 }
func (p Perm) HasOwner() bool { return p&PermOwner != 0 }

func (p Perm) String() string {
	var sb strings.Builder
	if p&PermRead != 0 {
		sb.WriteByte('r')
	}
	if p&PermWrite != 0 {
		sb.WriteByte('w')
	}
	if p&PermOwner != 0 {
		sb.WriteByte('o')
	}
	return sb.String()
}

func parsePerm(s string) Perm {
	var p Perm
	for _, c := range s {
		switch c {
		case 'r':
			p |= PermRead
		case 'w':
			p |= PermWrite
		case 'o':
			p |= PermOwner
		}
	}
	return p
}

// AccessTable is the name server's user->filename->permission map,
// double-hashed as spec.md §4.5 describes (one dhash.Table of inner
// dhash.Tables, guarded by a single mutex since the whole structure
// changes together rarely and infrequently enough not to need sharding).
// Each user's inner table is also persisted as one plain-text file of
// "filename|perms" lines under dataDir (spec.md §4.2/§6).
type AccessTable struct {
	mu      sync.Mutex
	outer   *dhash.Table
	dataDir string
	maxLoad float64
}

// NewAccessTable constructs an empty table sized per the given capacity
// and load factor (spec.md §4.5: exceeding the load factor is an explicit
// "table too full" error, not a silent resize).
func NewAccessTable(dataDir string, capacity int, maxLoad float64) *AccessTable {
	return &AccessTable{
		outer:   dhash.New(capacity, maxLoad),
		dataDir: dataDir,
		maxLoad: maxLoad,
	}
}

// LoadAll reads every per-user file under dataDir, reconstituting the
// in-memory table (called once at startup).
func (a *AccessTable) LoadAll() error {
	entries, err := os.ReadDir(a.dataDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("nameserver: read %s: %w", a.dataDir, err)
	}
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		if err := a.loadUserFile(ent.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (a *AccessTable) loadUserFile(username string) error {
	f, err := os.Open(filepath.Join(a.dataDir, username))
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		parts := strings.SplitN(line, "|", 2)
		if len(parts) != 2 {
			continue
		}
		a.setLocked(username, parts[0], parsePerm(parts[1]))
	}
	return sc.Err()
}

// innerTableFor returns (creating if necessary) the inner dhash.Table for
// username. Caller must hold a.mu.
func (a *AccessTable) innerTableFor(username string) (*dhash.Table, error) {
	if v, ok := a.outer.Get(username); ok {
		return v.(*dhash.Table), nil
	}
	inner := dhash.New(64, a.maxLoad)
	if err := a.outer.Put(username, inner); err != nil {
		return nil, ErrTableTooFull
	}
	return inner, nil
}

func (a *AccessTable) setLocked(username, filename string, p Perm) {
	inner, err := a.innerTableFor(username)
	if err != nil {
		return
	}
	_ = inner.Put(filename, p)
}

// Grant sets username's permission on filename, replacing any existing
// entry (CREATE's initial rwo grant, and ADDACCESS/GRANTACCESS's r/rw
// grant — spec.md §4.2).
func (a *AccessTable) Grant(username, filename string, p Perm) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	inner, err := a.innerTableFor(username)
	if err != nil {
		return err
	}
	if err := inner.Put(filename, p); err != nil {
		return ErrTableTooFull
	}
	return a.persistUserLocked(username)
}

// Revoke removes username's entry for filename (REMACCESS, and DELETE's
// owner-only revoke — spec.md §9 design note (a): only the owner's own
// entry is removed, never every user's entry for that filename).
func (a *AccessTable) Revoke(username, filename string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.outer.Get(username)
	if !ok {
		return nil
	}
	inner := v.(*dhash.Table)
	inner.Delete(filename)
	return a.persistUserLocked(username)
}

// Get returns username's permission set on filename.
func (a *AccessTable) Get(username, filename string) (Perm, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.outer.Get(username)
	if !ok {
		return 0, false
	}
	inner := v.(*dhash.Table)
	p, ok := inner.Get(filename)
	if !ok {
		return 0, false
	}
	return p.(Perm), true
}

// ListForUser returns every filename username has any access to, along
// with the permission string, for the VIEW -a flag.
func (a *AccessTable) ListForUser(username string) map[string]Perm {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]Perm)
	v, ok := a.outer.Get(username)
	if !ok {
		return out
	}
	inner := v.(*dhash.Table)
	inner.Range(func(filename string, value any) bool {
		out[filename] = value.(Perm)
		return true
	})
	return out
}

func (a *AccessTable) persistUserLocked(username string) error {
	if a.dataDir == "" {
		return nil
	}
	if err := os.MkdirAll(a.dataDir, 0o755); err != nil {
		return err
	}
	v, ok := a.outer.Get(username)
	if !ok {
		return nil
	}
	inner := v.(*dhash.Table)

	path := filepath.Join(a.dataDir, username)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	inner.Range(func(filename string, value any) bool {
		fmt.Fprintf(w, "%s|%s\n", filename, value.(Perm).String())
		return true
	})
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
