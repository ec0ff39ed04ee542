package nameserver

import (
	"testing"

	"github.com/dnfs-project/dnfs/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	users, err := NewUserRegistry("")
	require.NoError(t, err)
	access := NewAccessTable("", 16, 0.5)
	files := NewFileMap(8, 0.5)
	ring := NewRing(nil)
	cache := NewResolutionCache(8)
	requests := NewRequestList(nil)
	return NewDirectory(users, access, files, ring, cache, requests, nil, nil)
}

func TestResolveDeniesWithoutPermission(t *testing.T) {
	d := newTestDirectory(t)
	_, err := d.Resolve("alice", wire.ResolveRead, "notes.txt")
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestResolveFallsBackToBackupWhenPrimaryOffline(t *testing.T) {
	d := newTestDirectory(t)
	res0 := d.Ring.Register("10.0.0.1", 9001, 9101)
	res1 := d.Ring.Register("10.0.0.1", 9002, 9102)

	rec := FileRecord{Filename: "d.txt", Owner: "alice", PrimarySSID: res0.SSID}
	rec.SetBackup(res1.SSID)
	require.NoError(t, d.Files.Put(rec))
	require.NoError(t, d.Access.Grant("alice", "d.txt", PermOwner))

	// Primary goes offline (heartbeat timeout).
	d.Ring.mu.Lock()
	d.Ring.byID[res0.SSID].Online = false
	d.Ring.mu.Unlock()

	loc, err := d.Resolve("alice", wire.ResolveRead, "d.txt")
	require.NoError(t, err)
	info1, _ := d.Ring.Get(res1.SSID)
	assert.Equal(t, info1.ClientPort, loc.Port)
}

func TestResolveWriteDoesNotFallBackToBackup(t *testing.T) {
	// spec.md §4.2: only read-like ops fall back to backup on primary-down.
	d := newTestDirectory(t)
	res0 := d.Ring.Register("10.0.0.1", 9001, 9101)
	res1 := d.Ring.Register("10.0.0.1", 9002, 9102)

	rec := FileRecord{Filename: "d.txt", Owner: "alice", PrimarySSID: res0.SSID}
	rec.SetBackup(res1.SSID)
	require.NoError(t, d.Files.Put(rec))
	require.NoError(t, d.Access.Grant("alice", "d.txt", PermOwner))

	d.Ring.mu.Lock()
	d.Ring.byID[res0.SSID].Online = false
	d.Ring.mu.Unlock()

	_, err := d.Resolve("alice", wire.ResolveWrite, "d.txt")
	assert.ErrorIs(t, err, ErrStorageServerDown)
}

func TestResolveUsesResolutionCacheOnHit(t *testing.T) {
	d := newTestDirectory(t)
	res0 := d.Ring.Register("10.0.0.1", 9001, 9101)
	require.NoError(t, d.Access.Grant("alice", "d.txt", PermOwner))

	// Populate the cache directly with a record the file map doesn't have,
	// proving Resolve consults the cache before the file map.
	d.Cache.Put(FileRecord{Filename: "d.txt", Owner: "alice", PrimarySSID: res0.SSID})

	loc, err := d.Resolve("alice", wire.ResolveRead, "d.txt")
	require.NoError(t, err)
	info0, _ := d.Ring.Get(res0.SSID)
	assert.Equal(t, info0.ClientPort, loc.Port)
}

func TestAccessAddRequiresKnownTargetUser(t *testing.T) {
	d := newTestDirectory(t)
	require.NoError(t, d.Access.Grant("alice", "a.txt", PermOwner))
	require.NoError(t, d.Files.Put(FileRecord{Filename: "a.txt", Owner: "alice"}))

	err := d.AccessAdd("alice", "a.txt", "bob", uint8(PermRead), false)
	assert.ErrorIs(t, err, ErrUnknownUser)

	require.NoError(t, d.Users.Login("bob"))
	require.NoError(t, d.AccessAdd("alice", "a.txt", "bob", uint8(PermRead), false))

	p, ok := d.Access.Get("bob", "a.txt")
	require.True(t, ok)
	assert.True(t, p.HasRead())
}

func TestGrantReqAccessClearsThePendingRequest(t *testing.T) {
	d := newTestDirectory(t)
	require.NoError(t, d.Files.Put(FileRecord{Filename: "a.txt", Owner: "alice"}))
	require.NoError(t, d.Access.Grant("alice", "a.txt", PermOwner))
	require.NoError(t, d.Users.Login("bob"))
	require.NoError(t, d.ReqAccess("bob", "a.txt"))

	reqs := d.ViewReqAccess("alice")
	require.Len(t, reqs, 1)

	require.NoError(t, d.GrantReqAccess("alice", "a.txt", "bob", uint8(PermRead)))
	assert.Empty(t, d.ViewReqAccess("alice"))
}

func TestViewListsOwnedAndSharedFiles(t *testing.T) {
	d := newTestDirectory(t)
	require.NoError(t, d.Access.Grant("alice", "mine.txt", PermOwner))
	require.NoError(t, d.Access.Grant("alice", "shared.txt", PermRead))

	owned, err := d.View("alice", false, false)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "mine.txt", owned[0].Filename)

	all, err := d.View("alice", true, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
