package storageserver

import (
	"os"
)

// Undo swaps files/F with undo/F via a three-way rename so the operation
// is idempotent with period two: undoing twice in a row restores the file
// that was current before the first undo (spec.md §4.3/§8). It fails with
// ErrNoUndoHistory if no undo slot exists for filename.
func (s *Store) Undo(filename string, repl Replicator) error {
	if !s.Exists(filename) {
		return ErrFileNotFound
	}
	undoPath := s.undoPath(filename)
	if _, err := os.Stat(undoPath); err != nil {
		if os.IsNotExist(err) {
			return ErrNoUndoHistory
		}
		return err
	}

	fl := s.locks.Get(filename)
	fl.Coarse.Lock()
	defer fl.Coarse.Unlock()

	filePath := s.filePath(filename)
	tmpPath := filePath + ".undo-swap-tmp"

	if err := os.Rename(filePath, tmpPath); err != nil {
		return err
	}
	if err := os.Rename(undoPath, filePath); err != nil {
		_ = os.Rename(tmpPath, filePath)
		return err
	}
	if err := os.Rename(tmpPath, undoPath); err != nil {
		return err
	}

	if err := s.recomputeMetadata(filename); err != nil {
		return err
	}
	if repl != nil {
		repl.EnqueueUpdate(filename)
	}
	return nil
}
