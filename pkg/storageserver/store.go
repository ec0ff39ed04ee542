package storageserver

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Store is the storage server's on-disk file engine: it owns the data
// directory layout (files/, swap/, undo/, checkpoints/), the metadata
// table, and the per-file lock map. Every file operation in this package
// hangs off a *Store.
type Store struct {
	dataDir string
	meta    *MetadataTable
	locks   *LockMap
}

const (
	filesSubdir       = "files"
	swapSubdir        = "swap"
	undoSubdir        = "undo"
	checkpointsSubdir = "checkpoints"
	metadataFile      = "metadata.db"
)

// NewStore creates the data directory layout under dataDir (if missing)
// and returns an empty Store. Call Load to populate it from a prior run.
func NewStore(dataDir string) (*Store, error) {
	for _, sub := range []string{filesSubdir, swapSubdir, undoSubdir, checkpointsSubdir} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("storageserver: create %s: %w", sub, err)
		}
	}
	return &Store{
		dataDir: dataDir,
		meta:    NewMetadataTable(),
		locks:   NewLockMap(),
	}, nil
}

// Metadata exposes the store's metadata table.
func (s *Store) Metadata() *MetadataTable { return s.meta }

// Locks exposes the store's file lock map.
func (s *Store) Locks() *LockMap { return s.locks }

// Load reads the persisted metadata table from disk.
func (s *Store) Load() error {
	return s.meta.Load(filepath.Join(s.dataDir, metadataFile))
}

// SaveMetadata atomically snapshots the metadata table to disk. Called
// after every mutating operation and by the periodic checkpoint thread
// (spec.md §4.3).
func (s *Store) SaveMetadata() error {
	return s.meta.Save(filepath.Join(s.dataDir, metadataFile))
}

func (s *Store) filePath(filename string) string {
	return filepath.Join(s.dataDir, filesSubdir, filename)
}

func (s *Store) undoPath(filename string) string {
	return filepath.Join(s.dataDir, undoSubdir, filename)
}

func (s *Store) swapPath(filename string, sentenceNum int) string {
	return filepath.Join(s.dataDir, swapSubdir, filename+"_swap_"+strconv.Itoa(sentenceNum))
}

func (s *Store) checkpointPath(filename, tag string) string {
	return filepath.Join(s.dataDir, checkpointsSubdir, filename+"_"+tag)
}

// hasSwapfile reports whether any in-flight WRITE swapfile exists for
// filename, by globbing <filename>_swap_* candidates in the swap directory.
func (s *Store) hasSwapfile(filename string) (bool, error) {
	matches, err := filepath.Glob(filepath.Join(s.dataDir, swapSubdir, filename+"_swap_*"))
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

// Exists reports whether filename has a metadata record (the engine's
// source of truth for file existence, not a stat call).
func (s *Store) Exists(filename string) bool {
	_, ok := s.meta.Get(filename)
	return ok
}

// CreateFile creates an empty file owned by owner. It fails with
// ErrFileAlreadyExists if the file already has metadata.
func (s *Store) CreateFile(filename, owner string) error {
	if s.Exists(filename) {
		return ErrFileAlreadyExists
	}
	fl := s.locks.Get(filename)
	fl.Coarse.Lock()
	defer fl.Coarse.Unlock()

	if err := os.WriteFile(s.filePath(filename), nil, 0o644); err != nil {
		return fmt.Errorf("storageserver: create %s: %w", filename, err)
	}
	now := time.Now().Unix()
	s.meta.Put(Metadata{
		Filename:     filename,
		Owner:        owner,
		ModifiedUnix: now,
		AccessUnix:   now,
	})
	return s.SaveMetadata()
}

// DeleteFile removes filename's content, undo slot, and all checkpoints,
// refusing while a WRITE transaction is in flight for it (spec.md §4.3).
func (s *Store) DeleteFile(filename string) error {
	if ok, err := s.hasSwapfile(filename); err != nil {
		return err
	} else if ok {
		return ErrWriteInProgress
	}

	fl := s.locks.Get(filename)
	fl.Coarse.Lock()
	defer fl.Coarse.Unlock()

	if !s.Exists(filename) {
		return ErrFileNotFound
	}

	_ = os.Remove(s.filePath(filename))
	_ = os.Remove(s.undoPath(filename))
	if checkpoints, err := s.ListCheckpointNames(filename); err == nil {
		for _, tag := range checkpoints {
			_ = os.Remove(s.checkpointPath(filename, tag))
		}
	}

	s.meta.Delete(filename)
	s.locks.Forget(filename)
	return s.SaveMetadata()
}

// GetInfo returns a copy of filename's metadata.
func (s *Store) GetInfo(filename string) (Metadata, error) {
	m, ok := s.meta.Get(filename)
	if !ok {
		return Metadata{}, ErrFileNotFound
	}
	return m, nil
}

// touchAccess updates filename's access time in the metadata table without
// touching the filesystem (spec.md §4.3: access time is tracked in
// metadata, not via stat).
func (s *Store) touchAccess(filename string) {
	s.meta.Update(filename, func(m *Metadata) {
		m.AccessUnix = time.Now().Unix()
	})
}

// recomputeMetadata recounts size/words/chars for filename's current
// on-disk content and persists the updated record plus the whole table.
func (s *Store) recomputeMetadata(filename string) error {
	content, err := os.ReadFile(s.filePath(filename))
	if err != nil {
		return err
	}
	sentences := SplitSentences(string(content))
	var words uint64
	for _, sent := range sentences {
		words += uint64(len(SplitWords(sent)))
	}
	now := time.Now().Unix()
	s.meta.Update(filename, func(m *Metadata) {
		m.Size = uint64(len(content))
		m.Words = words
		m.Chars = uint64(len([]rune(string(content))))
		m.ModifiedUnix = now
	})
	return s.SaveMetadata()
}
