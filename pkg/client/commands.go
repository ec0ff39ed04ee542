package client

import (
	"fmt"

	"github.com/dnfs-project/dnfs/internal/wire"
)

// View lists the caller's files (VIEW [-a] [-l]).
func (c *Client) View(includeShared, long bool) ([]wire.ViewEntry, error) {
	var flags uint8
	if includeShared {
		flags |= wire.ViewFlagAll
	}
	if long {
		flags |= wire.ViewFlagLong
	}
	req := &wire.View{Flags: flags}
	typ, payload, err := c.nsRequest(wire.TypeView, req.Marshal())
	if err != nil {
		return nil, err
	}
	if typ != wire.TypeViewRes {
		return nil, errFromGenericFail(payload)
	}
	res, err := wire.DecodeViewRes(payload)
	if err != nil {
		return nil, err
	}
	return res.Entries, nil
}

// Create creates a new empty file (CREATE).
func (c *Client) Create(filename string) (string, error) {
	req := &wire.FilenameOnly{Filename: filename}
	return c.expectOK(wire.TypeCreate, req.Marshal())
}

// Delete removes a file the caller owns (DELETE).
func (c *Client) Delete(filename string) (string, error) {
	req := &wire.FilenameOnly{Filename: filename}
	return c.expectOK(wire.TypeDelete, req.Marshal())
}

// Info fetches a file's metadata (INFO).
func (c *Client) Info(filename string) (*wire.InfoRes, error) {
	req := &wire.FilenameOnly{Filename: filename}
	typ, payload, err := c.nsRequest(wire.TypeInfo, req.Marshal())
	if err != nil {
		return nil, err
	}
	if typ != wire.TypeInfoRes {
		return nil, errFromGenericFail(payload)
	}
	return wire.DecodeInfoRes(payload)
}

// resolve asks the NS to authorize op against filename and locate the SS
// that should serve it.
func (c *Client) resolve(op wire.ResolveOp, filename, tag string) (wire.SSLoc, error) {
	req := &wire.Resolve{Op: op, Filename: filename, Tag: tag}
	typ, payload, err := c.nsRequest(wire.TypeResolve, req.Marshal())
	if err != nil {
		return wire.SSLoc{}, err
	}
	if typ != wire.TypeSSLoc {
		return wire.SSLoc{}, errFromGenericFail(payload)
	}
	loc, err := wire.DecodeSSLoc(payload)
	if err != nil {
		return wire.SSLoc{}, err
	}
	return *loc, nil
}

// ListUsers lists every known user (LIST).
func (c *Client) ListUsers() ([]wire.UserEntry, error) {
	typ, payload, err := c.nsRequest(wire.TypeListUsers, nil)
	if err != nil {
		return nil, err
	}
	if typ != wire.TypeListUsersRes {
		return nil, errFromGenericFail(payload)
	}
	res, err := wire.DecodeListUsersRes(payload)
	if err != nil {
		return nil, err
	}
	return res.Users, nil
}

// AccessAdd grants perms (a subset of "rwo") to target on filename
// (ADDACCESS).
func (c *Client) AccessAdd(filename, target string, perms uint8) (string, error) {
	req := &wire.AccessGrant{Filename: filename, TargetUser: target, Perms: perms}
	return c.expectOK(wire.TypeAccessAdd, req.Marshal())
}

// AccessRem revokes target's access to filename (REMACCESS).
func (c *Client) AccessRem(filename, target string) (string, error) {
	req := &wire.AccessRem{Filename: filename, TargetUser: target}
	return c.expectOK(wire.TypeAccessRem, req.Marshal())
}

// Exec fetches filename and runs it with bash on the name server, returning
// combined stdout+stderr (EXEC).
func (c *Client) Exec(filename string) ([]byte, error) {
	req := &wire.FilenameOnly{Filename: filename}
	typ, payload, err := c.nsRequest(wire.TypeExec, req.Marshal())
	if err != nil {
		return nil, err
	}
	if typ != wire.TypeExecRes {
		return nil, errFromGenericFail(payload)
	}
	res, err := wire.DecodeExecRes(payload)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}

// ReqAccess files a pending access request against filename's owner
// (REQACCESS).
func (c *Client) ReqAccess(filename string) (string, error) {
	req := &wire.FilenameOnly{Filename: filename}
	return c.expectOK(wire.TypeReqAccess, req.Marshal())
}

// ViewReqAccess lists pending requests against files the caller owns
// (VIEWREQS).
func (c *Client) ViewReqAccess() ([]wire.ReqEntry, error) {
	typ, payload, err := c.nsRequest(wire.TypeViewReqAccess, nil)
	if err != nil {
		return nil, err
	}
	if typ != wire.TypeViewReqAccessRes {
		return nil, errFromGenericFail(payload)
	}
	res, err := wire.DecodeViewReqAccessRes(payload)
	if err != nil {
		return nil, err
	}
	return res.Requests, nil
}

// GrantReqAccess grants perms to requester and clears the pending request
// (GRANTACCESS).
func (c *Client) GrantReqAccess(filename, requester string, perms uint8) (string, error) {
	req := &wire.AccessGrant{Filename: filename, TargetUser: requester, Perms: perms, FromRequest: true}
	return c.expectOK(wire.TypeGrantReqAccess, req.Marshal())
}

// folderCmd issues one FOLDER_CMD request and decodes a FOLDER_RES or
// GENERIC_OK/FAIL response.
func (c *Client) folderCmd(op wire.FolderOp, name, path string, createIf bool) (*wire.FolderRes, string, error) {
	req := &wire.FolderCmd{Op: op, Name: name, Path: path, CreateIf: createIf}
	typ, payload, err := c.nsRequest(wire.TypeFolderCmd, req.Marshal())
	if err != nil {
		return nil, "", err
	}
	switch typ {
	case wire.TypeFolderRes:
		res, err := wire.DecodeFolderRes(payload)
		return res, "", err
	case wire.TypeGenericOK:
		ok, _ := wire.DecodeGenericOK(payload)
		msg := ""
		if ok != nil {
			msg = ok.Message
		}
		return nil, msg, nil
	default:
		return nil, "", errFromGenericFail(payload)
	}
}

// CreateFolder creates a subfolder in the current session directory
// (CREATEFOLDER).
func (c *Client) CreateFolder(name string) (string, error) {
	_, msg, err := c.folderCmd(wire.FolderCreate, name, "", false)
	return msg, err
}

// ViewFolder lists the contents of path relative to the current session
// directory ("" means the current directory) (VIEWFOLDER).
func (c *Client) ViewFolder(path string) ([]wire.FolderEntry, error) {
	res, _, err := c.folderCmd(wire.FolderView, "", path, false)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("unexpected response")
	}
	return res.Entries, nil
}

// Move relocates file name into subfolder dir (MOVE).
func (c *Client) Move(name, dir string) (string, error) {
	_, msg, err := c.folderCmd(wire.FolderMove, name, dir, false)
	return msg, err
}

// UpMove relocates file name up one folder level (UPMOVE).
func (c *Client) UpMove(name string) (string, error) {
	_, msg, err := c.folderCmd(wire.FolderUpMove, name, "", false)
	return msg, err
}

// Open changes the session's current folder to the child folder name,
// creating that folder first when createIfMissing is set (OPEN [-c]).
func (c *Client) Open(name string, createIfMissing bool) (string, error) {
	_, msg, err := c.folderCmd(wire.FolderOpen, name, "", createIfMissing)
	return msg, err
}

// OpenParent moves the session's current folder up one level (OPENPARENT).
func (c *Client) OpenParent() (string, error) {
	_, msg, err := c.folderCmd(wire.FolderOpenParent, "", "", false)
	return msg, err
}
