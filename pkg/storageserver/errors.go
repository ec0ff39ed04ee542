package storageserver

import "errors"

// Sentinel errors surfaced to connection handlers, which translate them
// into the wire error taxonomy of spec.md §7.
var (
	ErrFileNotFound          = errors.New("File not found")
	ErrFileAlreadyExists     = errors.New("you already have a file with this name")
	ErrWriteLocked           = errors.New("sentence is locked by another write")
	ErrInvalidSentenceIndex  = errors.New("invalid sentence index")
	ErrWordIndexOutOfRange   = errors.New("invalid word index")
	ErrNoUndoHistory         = errors.New("No undo history")
	ErrCheckpointExists      = errors.New("checkpoint already exists")
	ErrCheckpointNotFound    = errors.New("checkpoint not found")
	ErrWriteInProgress       = errors.New("Cannot delete file - WRITE operation in progress")
	ErrSwapAlreadyOpen       = errors.New("a WRITE is already in progress for this file")
)
