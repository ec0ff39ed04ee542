package storageserver

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// metadataBuckets is the outer bucket count of the metadata table: a
// power-of-two close to the 1024 named in spec.md §4.3, each bucket
// guarded by its own mutex with a lazily allocated inner map.
const metadataBuckets = 1024

// Metadata is the per-file bookkeeping record the storage server persists
// alongside file content (spec.md §3, §4.3).
type Metadata struct {
	Filename     string
	Owner        string
	Size         uint64
	Words        uint64
	Chars        uint64
	ModifiedUnix int64
	AccessUnix   int64
	IsBackup     bool
}

type metadataBucket struct {
	mu    sync.Mutex
	inner map[string]*Metadata
}

// MetadataTable is the storage server's in-memory metadata store: a
// sharded hash table with one mutex per outer bucket so unrelated files
// never contend on the same lock, plus a lazily allocated inner map per
// bucket (spec.md §4.3's "nested hash table").
type MetadataTable struct {
	buckets [metadataBuckets]metadataBucket
	count   int64
}

// NewMetadataTable constructs an empty metadata table.
func NewMetadataTable() *MetadataTable {
	return &MetadataTable{}
}

func (t *MetadataTable) bucketFor(filename string) *metadataBucket {
	h := fnv.New32a()
	_, _ = h.Write([]byte(filename))
	return &t.buckets[h.Sum32()%metadataBuckets]
}

// Get returns a copy of the metadata for filename, so callers can read
// without holding any table lock.
func (t *MetadataTable) Get(filename string) (Metadata, bool) {
	b := t.bucketFor(filename)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inner == nil {
		return Metadata{}, false
	}
	m, ok := b.inner[filename]
	if !ok {
		return Metadata{}, false
	}
	return *m, true
}

// Put inserts or overwrites the metadata record for meta.Filename.
func (t *MetadataTable) Put(meta Metadata) {
	b := t.bucketFor(meta.Filename)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inner == nil {
		b.inner = make(map[string]*Metadata)
	}
	cp := meta
	if _, existed := b.inner[meta.Filename]; !existed {
		atomic.AddInt64(&t.count, 1)
	}
	b.inner[meta.Filename] = &cp
}

// Delete removes the metadata record for filename, if present.
func (t *MetadataTable) Delete(filename string) bool {
	b := t.bucketFor(filename)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inner == nil {
		return false
	}
	if _, ok := b.inner[filename]; !ok {
		return false
	}
	delete(b.inner, filename)
	atomic.AddInt64(&t.count, -1)
	return true
}

// Update applies fn to a copy of filename's metadata and stores the
// result, returning false if no record exists.
func (t *MetadataTable) Update(filename string, fn func(*Metadata)) bool {
	b := t.bucketFor(filename)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inner == nil {
		return false
	}
	m, ok := b.inner[filename]
	if !ok {
		return false
	}
	fn(m)
	return true
}

// Len returns the total number of metadata records across all buckets.
func (t *MetadataTable) Len() int {
	return int(atomic.LoadInt64(&t.count))
}

// Range calls fn for every record in unspecified order, skipping any bucket
// while another goroutine has it locked is not required here since Range
// takes each bucket's lock in turn.
func (t *MetadataTable) Range(fn func(Metadata) bool) {
	for i := range t.buckets {
		b := &t.buckets[i]
		b.mu.Lock()
		entries := make([]Metadata, 0, len(b.inner))
		for _, m := range b.inner {
			entries = append(entries, *m)
		}
		b.mu.Unlock()
		for _, m := range entries {
			if !fn(m) {
				return
			}
		}
	}
}

// Save takes every bucket's lock in order, snapshots the table, and writes
// it to path in the on-disk layout mandated by spec.md §4.3:
//
//	[count:u32]{[name_len:u32][name][owner_len:u32][owner][size:u64][words:u64][chars:u64][modified:i64][access:i64][is_backup:u8]}*
func (t *MetadataTable) Save(path string) error {
	for i := range t.buckets {
		t.buckets[i].mu.Lock()
	}
	defer func() {
		for i := range t.buckets {
			t.buckets[i].mu.Unlock()
		}
	}()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("storageserver: create metadata snapshot: %w", err)
	}
	w := bufio.NewWriter(f)

	var count uint32
	for i := range t.buckets {
		count += uint32(len(t.buckets[i].inner))
	}
	if err := binary.Write(w, binary.LittleEndian, count); err != nil {
		_ = f.Close()
		return err
	}
	for i := range t.buckets {
		for _, m := range t.buckets[i].inner {
			if err := writeMetadataRecord(w, m); err != nil {
				_ = f.Close()
				return err
			}
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func writeMetadataRecord(w io.Writer, m *Metadata) error {
	if err := writeLenPrefixed(w, m.Filename); err != nil {
		return err
	}
	if err := writeLenPrefixed(w, m.Owner); err != nil {
		return err
	}
	var isBackup uint8
	if m.IsBackup {
		isBackup = 1
	}
	for _, v := range []any{m.Size, m.Words, m.Chars, m.ModifiedUnix, m.AccessUnix, isBackup} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func writeLenPrefixed(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readLenPrefixed(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// Load replaces the table's contents with the records found at path. A
// missing file is not an error (a fresh storage server has no metadata
// yet); a truncated or corrupt file is logged by the caller and treated as
// best-effort — Load returns the error so the caller can decide.
func (t *MetadataTable) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	for i := range t.buckets {
		t.buckets[i].inner = nil
	}
	atomic.StoreInt64(&t.count, 0)

	for i := uint32(0); i < count; i++ {
		m, err := readMetadataRecord(r)
		if err != nil {
			return fmt.Errorf("storageserver: metadata record %d/%d: %w", i+1, count, err)
		}
		t.Put(*m)
	}
	return nil
}

func readMetadataRecord(r io.Reader) (*Metadata, error) {
	name, err := readLenPrefixed(r)
	if err != nil {
		return nil, err
	}
	owner, err := readLenPrefixed(r)
	if err != nil {
		return nil, err
	}
	m := &Metadata{Filename: name, Owner: owner}
	var isBackup uint8
	fields := []any{&m.Size, &m.Words, &m.Chars, &m.ModifiedUnix, &m.AccessUnix, &isBackup}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return nil, err
		}
	}
	m.IsBackup = isBackup != 0
	return m, nil
}
