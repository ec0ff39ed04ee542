package nameserver

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnerTokenImpliesReadAndWrite(t *testing.T) {
	assert.True(t, PermOwner.HasRead())
	assert.True(t, PermOwner.HasWrite())
	assert.False(t, PermRead.HasWrite())
	assert.False(t, PermWrite.HasRead())
}

func TestGrantAndRevokeRoundTrip(t *testing.T) {
	tbl := NewAccessTable(t.TempDir(), 16, 0.5)

	require.NoError(t, tbl.Grant("alice", "notes.txt", PermOwner))
	p, ok := tbl.Get("alice", "notes.txt")
	require.True(t, ok)
	assert.True(t, p.HasOwner())

	require.NoError(t, tbl.Revoke("alice", "notes.txt"))
	_, ok = tbl.Get("alice", "notes.txt")
	assert.False(t, ok)
}

func TestRevokeOnlyRemovesThatUsersEntry(t *testing.T) {
	// spec.md §9 design note (a): DELETE revokes only the owner's own
	// entry, never every user's access to that filename.
	tbl := NewAccessTable(t.TempDir(), 16, 0.5)
	require.NoError(t, tbl.Grant("alice", "shared.txt", PermOwner))
	require.NoError(t, tbl.Grant("bob", "shared.txt", PermRead))

	require.NoError(t, tbl.Revoke("alice", "shared.txt"))

	_, ok := tbl.Get("alice", "shared.txt")
	assert.False(t, ok)
	p, ok := tbl.Get("bob", "shared.txt")
	require.True(t, ok)
	assert.True(t, p.HasRead())
}

func TestPersistAndReloadFromDisk(t *testing.T) {
	dir := t.TempDir()
	tbl := NewAccessTable(dir, 16, 0.5)
	require.NoError(t, tbl.Grant("alice", "a.txt", Perm(PermRead|PermWrite|PermOwner)))
	require.NoError(t, tbl.Grant("alice", "b.txt", Perm(PermRead|PermWrite)))

	reloaded := NewAccessTable(dir, 16, 0.5)
	require.NoError(t, reloaded.LoadAll())

	p, ok := reloaded.Get("alice", "a.txt")
	require.True(t, ok)
	assert.Equal(t, "rwo", p.String())

	p, ok = reloaded.Get("alice", "b.txt")
	require.True(t, ok)
	assert.Equal(t, "rw", p.String())
}

func TestListForUserReturnsEveryGrant(t *testing.T) {
	tbl := NewAccessTable(t.TempDir(), 16, 0.5)
	require.NoError(t, tbl.Grant("alice", "a.txt", PermOwner))
	require.NoError(t, tbl.Grant("alice", "b.txt", PermRead))

	got := tbl.ListForUser("alice")
	assert.Len(t, got, 2)
	assert.True(t, got["a.txt"].HasOwner())
	assert.True(t, got["b.txt"].HasRead())
}

func TestParsePermIgnoresUnknownCharacters(t *testing.T) {
	// spec.md §9 design note (b): character-set semantics over {r,w,o},
	// not a substring match against the literal word "owner".
	assert.Equal(t, PermRead, parsePerm("rxyz"))
	assert.Equal(t, Perm(0), parsePerm("xyz"))
}

func TestAccessTableLoadAllIgnoresMissingDir(t *testing.T) {
	tbl := NewAccessTable(filepath.Join(t.TempDir(), "does-not-exist"), 16, 0.5)
	assert.NoError(t, tbl.LoadAll())
}
