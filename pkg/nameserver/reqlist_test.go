package nameserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestListAddIgnoresExactDuplicate(t *testing.T) {
	l := NewRequestList(nil)
	req := AccessRequest{Requester: "bob", Filename: "notes.txt"}
	require.NoError(t, l.Add(req))
	require.NoError(t, l.Add(req))

	got := l.ForOwnedFilenames(map[string]bool{"notes.txt": true})
	assert.Len(t, got, 1)
}

func TestRequestListRemoveMatching(t *testing.T) {
	l := NewRequestList(nil)
	require.NoError(t, l.Add(AccessRequest{Requester: "bob", Filename: "notes.txt"}))

	assert.True(t, l.RemoveMatching("bob", "notes.txt"))
	assert.False(t, l.RemoveMatching("bob", "notes.txt"))
}

func TestRequestListForOwnedFilenamesFiltersByOwner(t *testing.T) {
	l := NewRequestList(nil)
	require.NoError(t, l.Add(AccessRequest{Requester: "bob", Filename: "alice-notes.txt"}))
	require.NoError(t, l.Add(AccessRequest{Requester: "carol", Filename: "bob-diary.txt"}))

	got := l.ForOwnedFilenames(map[string]bool{"alice-notes.txt": true})
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].Requester)
}
