// Package dhash implements an open-addressed hash table using double
// hashing with tombstones.
//
// It backs the name server's access table and file map (spec.md §4.2/§4.5):
// both are keyed by composite strings ("owner:filename" for the file map,
// "filename:user" for the access table) and neither needs ordered iteration,
// so a flat open-addressed table avoids the pointer-chasing of a bucket
// list while keeping the double-hashing probe sequence described by the
// spec's GLOSSARY entry for the access table.
package dhash

import (
	"errors"
	"hash/fnv"
)

// ErrTableFull is returned by Put when the table's load factor has reached
// its configured ceiling and growing would require a caller-driven resize
// (Resize). The table never silently resizes itself mid-probe, since a
// resize invalidates every other goroutine's in-flight probe sequence.
var ErrTableFull = errors.New("dhash: table full at configured load factor")

const (
	stateEmpty uint8 = iota
	stateOccupied
	stateTombstone
)

type slot struct {
	key   string
	value any
	state uint8
}

// Table is a double-hashed open-addressing map from string to any. It is
// not safe for concurrent use; callers guard it with an external
// sync.RWMutex, same as the rest of this package's containers.
type Table struct {
	slots       []slot
	count       int    // occupied, excludes tombstones
	tombstones  int
	maxLoad     float64 // resize/reject threshold, e.g. 0.5
}

// New creates a Table with the given initial capacity (rounded up to the
// next power of two, minimum 8) and load-factor ceiling.
func New(capacity int, maxLoad float64) *Table {
	size := 8
	for size < capacity {
		size *= 2
	}
	if maxLoad <= 0 || maxLoad >= 1 {
		maxLoad = 0.5
	}
	return &Table{slots: make([]slot, size), maxLoad: maxLoad}
}

func primaryHash(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}

// secondaryHash is djb2; must never return 0, since a zero step would
// degenerate double hashing into linear probing of a single slot.
func secondaryHash(key string) uint64 {
	var h uint64 = 5381
	for i := 0; i < len(key); i++ {
		h = ((h << 5) + h) + uint64(key[i])
	}
	if h%2 == 0 {
		h++
	}
	return h
}

func (t *Table) probe(key string) (idx int, step uint64) {
	n := uint64(len(t.slots))
	idx = int(primaryHash(key) % n)
	step = secondaryHash(key) % n
	if step == 0 {
		step = 1
	}
	return idx, step
}

// find returns the slot index holding key, and ok=true if present. It skips
// tombstones during the probe but treats an empty slot as the end of the
// probe sequence for this key.
func (t *Table) find(key string) (int, bool) {
	n := len(t.slots)
	idx, step := t.probe(key)
	for i := 0; i < n; i++ {
		s := &t.slots[idx]
		if s.state == stateEmpty {
			return -1, false
		}
		if s.state == stateOccupied && s.key == key {
			return idx, true
		}
		idx = (idx + int(step)) % n
	}
	return -1, false
}

// Get looks up key.
func (t *Table) Get(key string) (any, bool) {
	idx, ok := t.find(key)
	if !ok {
		return nil, false
	}
	return t.slots[idx].value, true
}

// Put inserts or updates key's value. It returns ErrTableFull if key is new
// and the table is at its load-factor ceiling; the caller should Resize and
// retry (spec.md's access table and file map grow rarely, so this is a cold
// path, not a hot one).
func (t *Table) Put(key string, value any) error {
	if idx, ok := t.find(key); ok {
		t.slots[idx].value = value
		return nil
	}

	load := float64(t.count+t.tombstones+1) / float64(len(t.slots))
	if load > t.maxLoad {
		return ErrTableFull
	}

	n := len(t.slots)
	idx, step := t.probe(key)
	for i := 0; i < n; i++ {
		s := &t.slots[idx]
		if s.state != stateOccupied {
			wasTombstone := s.state == stateTombstone
			*s = slot{key: key, value: value, state: stateOccupied}
			t.count++
			if wasTombstone {
				t.tombstones--
			}
			return nil
		}
		idx = (idx + int(step)) % n
	}
	return ErrTableFull
}

// Delete removes key, leaving a tombstone behind so later probes for other
// keys that collided with it still terminate correctly.
func (t *Table) Delete(key string) bool {
	idx, ok := t.find(key)
	if !ok {
		return false
	}
	t.slots[idx] = slot{state: stateTombstone}
	t.count--
	t.tombstones++
	return true
}

// Len returns the number of live (non-tombstone) entries.
func (t *Table) Len() int { return t.count }

// Resize rebuilds the table at newCapacity (rounded up to the next power of
// two), discarding tombstones. Callers hit ErrTableFull from Put and decide
// when to pay for a resize; tables are sized generously up front, so
// rehashing is rare and caller-driven.
func (t *Table) Resize(newCapacity int) {
	size := 8
	for size < newCapacity {
		size *= 2
	}
	old := t.slots
	t.slots = make([]slot, size)
	t.count = 0
	t.tombstones = 0
	for _, s := range old {
		if s.state == stateOccupied {
			_ = t.Put(s.key, s.value)
		}
	}
}

// Range calls fn for every live entry. Iteration order is unspecified.
func (t *Table) Range(fn func(key string, value any) bool) {
	for _, s := range t.slots {
		if s.state == stateOccupied {
			if !fn(s.key, s.value) {
				return
			}
		}
	}
}
