package nameserver

import (
	"hash/fnv"
	"sync"

	"github.com/dnfs-project/dnfs/pkg/containers/dhash"
)

const fileMapShards = 256

// FileRecord is the name server's per-file routing entry: which SS holds
// the primary copy, which holds the backup (if any), and who owns it
// (spec.md §3, keyed by (owner, filename)).
type FileRecord struct {
	Filename    string
	Owner       string
	PrimarySSID uint32
	BackupSSID  uint32
	HasBackup   bool
}

type fileMapShard struct {
	mu    sync.RWMutex
	table *dhash.Table
}

// FileMap is the name server's owner+filename -> FileRecord directory,
// sharded into 256 buckets each with its own mutex plus a separate count
// mutex (spec.md §4.5), since this is the hottest table in the system —
// every READ/STREAM/WRITE/UNDO/CHECKPOINT resolves through it on a cache
// miss.
type FileMap struct {
	shards   [fileMapShards]fileMapShard
	capacity int
	maxLoad  float64

	countMu sync.Mutex
	count   int64
}

// NewFileMap constructs an empty file map; each shard's inner dhash.Table
// is allocated lazily on first use.
func NewFileMap(capacityPerShard int, maxLoad float64) *FileMap {
	if capacityPerShard < 4 {
		capacityPerShard = 4
	}
	return &FileMap{capacity: capacityPerShard, maxLoad: maxLoad}
}

func fileMapKey(owner, filename string) string { return owner + ":" + filename }

func (m *FileMap) shardFor(key string) *fileMapShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &m.shards[h.Sum32()%fileMapShards]
}

func (s *fileMapShard) ensure(capacity int, maxLoad float64) *dhash.Table {
	if s.table == nil {
		s.table = dhash.New(capacity, maxLoad)
	}
	return s.table
}

// Put inserts or overwrites rec, keyed by (rec.Owner, rec.Filename).
func (m *FileMap) Put(rec FileRecord) error {
	key := fileMapKey(rec.Owner, rec.Filename)
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.ensure(m.capacity, m.maxLoad)
	_, existed := t.Get(key)
	if err := t.Put(key, rec); err != nil {
		return ErrTableTooFull
	}
	if !existed {
		m.countMu.Lock()
		m.count++
		m.countMu.Unlock()
	}
	return nil
}

// Get looks up (owner, filename) directly.
func (m *FileMap) Get(owner, filename string) (FileRecord, bool) {
	key := fileMapKey(owner, filename)
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.table == nil {
		return FileRecord{}, false
	}
	v, ok := s.table.Get(key)
	if !ok {
		return FileRecord{}, false
	}
	return v.(FileRecord), true
}

// Delete removes (owner, filename).
func (m *FileMap) Delete(owner, filename string) {
	key := fileMapKey(owner, filename)
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table == nil {
		return
	}
	if s.table.Delete(key) {
		m.countMu.Lock()
		m.count--
		m.countMu.Unlock()
	}
}

// FindOwner is the fallback lookup for shared files: scan every shard for
// any record with the given filename, returning the first match (spec.md
// §3: "VIEW and access checks resolve owner ... by a global filename
// search fallback"). O(n) in file count; only used off the LRU/primary-key
// fast path.
func (m *FileMap) FindOwner(filename string) (FileRecord, bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		if s.table != nil {
			var found FileRecord
			var ok bool
			s.table.Range(func(_ string, value any) bool {
				rec := value.(FileRecord)
				if rec.Filename == filename {
					found, ok = rec, true
					return false
				}
				return true
			})
			s.mu.RUnlock()
			if ok {
				return found, true
			}
			continue
		}
		s.mu.RUnlock()
	}
	return FileRecord{}, false
}

// SearchBySSAndFilename finds the record whose primary or backup SS id
// matches ssid and whose filename matches, used during SS re-registration
// when owner metadata may have been lost (spec.md §4.2).
func (m *FileMap) SearchBySSAndFilename(ssid uint32, filename string) (FileRecord, bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		if s.table != nil {
			var found FileRecord
			var ok bool
			s.table.Range(func(_ string, value any) bool {
				rec := value.(FileRecord)
				if rec.Filename == filename && (rec.PrimarySSID == ssid || (rec.HasBackup && rec.BackupSSID == ssid)) {
					found, ok = rec, true
					return false
				}
				return true
			})
			s.mu.RUnlock()
			if ok {
				return found, true
			}
			continue
		}
		s.mu.RUnlock()
	}
	return FileRecord{}, false
}

// Range applies fn to every record and writes back each record fn reports
// as changed. fn receives the current record and returns the updated one
// plus whether it changed; Range holds each shard's lock only while
// iterating that shard.
func (m *FileMap) Range(fn func(FileRecord) (FileRecord, bool)) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		if s.table != nil {
			var updates []FileRecord
			s.table.Range(func(key string, value any) bool {
				rec := value.(FileRecord)
				if updated, changed := fn(rec); changed {
					updates = append(updates, updated)
				}
				return true
			})
			for _, u := range updates {
				_ = s.table.Put(fileMapKey(u.Owner, u.Filename), u)
			}
		}
		s.mu.Unlock()
	}
}

// Len returns the total number of file records across all shards.
func (m *FileMap) Len() int {
	m.countMu.Lock()
	defer m.countMu.Unlock()
	return int(m.count)
}

// SetBackup sets rec's backup id and flag, used when CREATE
// immediately needs to update a record after ring membership changes
// (spec.md §3's file-record mutation invariant: "mutated only when SS
// membership changes a file's backup id").
func (rec *FileRecord) SetBackup(ssid uint32) {
	rec.BackupSSID = ssid
	rec.HasBackup = true
}

// ClearBackup marks rec as having no backup (single-node ring).
func (rec *FileRecord) ClearBackup() {
	rec.BackupSSID = 0
	rec.HasBackup = false
}
