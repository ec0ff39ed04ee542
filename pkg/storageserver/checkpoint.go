package storageserver

import (
	"os"
	"path/filepath"
	"strings"
)

// CheckpointEntry describes one saved checkpoint, as returned by
// LISTCHECKPOINTS (spec.md §6).
type CheckpointEntry struct {
	Tag          string
	Size         uint64
	ModifiedUnix int64
}

// Checkpoint snapshots filename's current content under tag. It fails if a
// checkpoint with that tag already exists (spec.md §4.3: checkpoint names
// are unique per file).
func (s *Store) Checkpoint(filename, tag string) error {
	if !s.Exists(filename) {
		return ErrFileNotFound
	}
	dst := s.checkpointPath(filename, tag)
	if _, err := os.Stat(dst); err == nil {
		return ErrCheckpointExists
	} else if !os.IsNotExist(err) {
		return err
	}

	fl := s.locks.Get(filename)
	fl.Coarse.RLock()
	defer fl.Coarse.RUnlock()

	return copyFile(s.filePath(filename), dst)
}

// Revert restores filename's content from the checkpoint tagged tag. The
// file's pre-revert content is pushed into the undo slot first, so a
// REVERT can itself be undone (spec.md §4.3).
func (s *Store) Revert(filename, tag string, repl Replicator) error {
	if !s.Exists(filename) {
		return ErrFileNotFound
	}
	src := s.checkpointPath(filename, tag)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return ErrCheckpointNotFound
		}
		return err
	}

	fl := s.locks.Get(filename)
	fl.Coarse.Lock()
	defer fl.Coarse.Unlock()

	filePath := s.filePath(filename)
	if err := copyFile(filePath, s.undoPath(filename)); err != nil {
		return err
	}
	if err := copyFile(src, filePath); err != nil {
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

// ViewCheckpoint returns a checkpoint's raw content, for streaming back to
// the client with the same chunked framing as READ.
func (s *Store) ViewCheckpoint(filename, tag string) ([]byte, error) {
	if !s.Exists(filename) {
		return nil, ErrFileNotFound
	}
	src := s.checkpointPath(filename, tag)

	fl := s.locks.Get(filename)
	fl.Coarse.RLock()
	defer fl.Coarse.RUnlock()

	content, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCheckpointNotFound
		}
		return nil, err
	}
	return content, nil
}

// readDirNamesUnsorted lists dir's entry names in raw directory-read order.
// os.ReadDir always sorts by filename; Readdirnames does not, which is what
// spec.md §9 notes the original relies on for checkpoint listing order.
func readDirNamesUnsorted(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Readdirnames(-1)
}

// ListCheckpointNames returns the tags of every checkpoint saved for
// filename, in directory-read order (spec.md §9 notes the original does
// not sort these).
func (s *Store) ListCheckpointNames(filename string) ([]string, error) {
	names, err := readDirNamesUnsorted(filepath.Join(s.dataDir, checkpointsSubdir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	prefix := filename + "_"
	var tags []string
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			tags = append(tags, strings.TrimPrefix(name, prefix))
		}
	}
	return tags, nil
}

// ListCheckpoints returns full entries (tag, size, modified time) for
// every checkpoint saved for filename, in the same directory-read order as
// ListCheckpointNames.
func (s *Store) ListCheckpoints(filename string) ([]CheckpointEntry, error) {
	dir := filepath.Join(s.dataDir, checkpointsSubdir)
	names, err := readDirNamesUnsorted(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	prefix := filename + "_"
	var out []CheckpointEntry
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || info.IsDir() {
			continue
		}
		out = append(out, CheckpointEntry{
			Tag:          strings.TrimPrefix(name, prefix),
			Size:         uint64(info.Size()),
			ModifiedUnix: info.ModTime().Unix(),
		})
	}
	return out, nil
}
