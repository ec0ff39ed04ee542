package nameserver

import "errors"

// Sentinel errors surfaced to the client/SS connection handlers, which
// translate them into the wire error taxonomy of spec.md §7.
var (
	ErrUserAlreadyActive   = errors.New("user already active")
	ErrUnknownUser         = errors.New("unknown user")
	ErrAccessDenied        = errors.New("Access Denied")
	ErrFileNotFound        = errors.New("File not found")
	ErrFileAlreadyExists   = errors.New("you already have a file with this name")
	ErrNoStorageServer     = errors.New("no storage server available")
	ErrStorageServerDown   = errors.New("file not found or storage server offline")
	ErrTableTooFull        = errors.New("table too full")
	ErrReservedFolderName  = errors.New("ROOT is a reserved folder name")
	ErrFolderNameCollision = errors.New("a folder or file with that name already exists here")
	ErrFolderNotFound      = errors.New("folder not found (use -c)")
	ErrUpmoveFromRoot      = errors.New("cannot upmove out of ROOT")
	ErrInvalidPermFlag     = errors.New("invalid permission flag")
)
