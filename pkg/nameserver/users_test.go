package nameserver

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginActivatesUnseenUser(t *testing.T) {
	r, err := NewUserRegistry(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)

	require.NoError(t, r.Login("alice"))
	assert.True(t, r.Exists("alice"))
}

func TestSecondConcurrentLoginFails(t *testing.T) {
	r, err := NewUserRegistry(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)

	require.NoError(t, r.Login("alice"))
	assert.ErrorIs(t, r.Login("alice"), ErrUserAlreadyActive)
}

func TestLogoutThenLoginSucceeds(t *testing.T) {
	r, err := NewUserRegistry(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)

	require.NoError(t, r.Login("alice"))
	require.NoError(t, r.Logout("alice"))
	assert.NoError(t, r.Login("alice"))
}

func TestRestartReloadsEveryEntryAsInactive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")
	r, err := NewUserRegistry(path)
	require.NoError(t, err)
	require.NoError(t, r.Login("alice"))

	r2, err := NewUserRegistry(path)
	require.NoError(t, err)
	assert.True(t, r2.Exists("alice"))
	// No session survives a restart, so a fresh LOGIN must succeed.
	assert.NoError(t, r2.Login("alice"))
}

func TestListReturnsEveryKnownUser(t *testing.T) {
	r, err := NewUserRegistry(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	require.NoError(t, r.Login("alice"))
	require.NoError(t, r.Login("bob"))
	require.NoError(t, r.Logout("bob"))

	names := map[string]bool{}
	for _, u := range r.List() {
		names[u.Username] = u.Active
	}
	assert.Equal(t, map[string]bool{"alice": true, "bob": false}, names)
}
