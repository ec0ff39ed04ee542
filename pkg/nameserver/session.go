package nameserver

import "github.com/google/uuid"

// Session is the NS's per-connection state: the authenticated username and
// that connection's private folder tree (spec.md §3's "Session" entity —
// "created on LOGIN, destroyed on disconnect; never shared"). ID exists
// only for log correlation, never for lookup or persistence.
type Session struct {
	ID       string
	Username string
	Tree     *FolderTree
}

// NewSession constructs a session for an authenticated username.
func NewSession(username string) *Session {
	return &Session{ID: uuid.NewString(), Username: username, Tree: NewFolderTree()}
}
