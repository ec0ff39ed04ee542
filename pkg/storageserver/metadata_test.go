package storageserver

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataTablePutGetDelete(t *testing.T) {
	tbl := NewMetadataTable()
	tbl.Put(Metadata{Filename: "a.txt", Owner: "alice", Size: 10})

	got, ok := tbl.Get("a.txt")
	require.True(t, ok)
	assert.Equal(t, "alice", got.Owner)
	assert.Equal(t, uint64(10), got.Size)
	assert.Equal(t, 1, tbl.Len())

	assert.True(t, tbl.Delete("a.txt"))
	_, ok = tbl.Get("a.txt")
	assert.False(t, ok)
	assert.Equal(t, 0, tbl.Len())
}

func TestMetadataTableGetReturnsCopy(t *testing.T) {
	tbl := NewMetadataTable()
	tbl.Put(Metadata{Filename: "a.txt", Size: 1})
	got, _ := tbl.Get("a.txt")
	got.Size = 999
	reread, _ := tbl.Get("a.txt")
	assert.Equal(t, uint64(1), reread.Size)
}

func TestMetadataTableUpdate(t *testing.T) {
	tbl := NewMetadataTable()
	tbl.Put(Metadata{Filename: "a.txt", Size: 1})
	ok := tbl.Update("a.txt", func(m *Metadata) { m.Size = 42 })
	assert.True(t, ok)
	got, _ := tbl.Get("a.txt")
	assert.Equal(t, uint64(42), got.Size)

	assert.False(t, tbl.Update("missing.txt", func(m *Metadata) {}))
}

func TestMetadataTableSaveLoadRoundTrip(t *testing.T) {
	tbl := NewMetadataTable()
	tbl.Put(Metadata{Filename: "a.txt", Owner: "alice", Size: 10, Words: 2, Chars: 10, ModifiedUnix: 100, AccessUnix: 200})
	tbl.Put(Metadata{Filename: "b.txt", Owner: "bob", Size: 0, IsBackup: true})

	path := filepath.Join(t.TempDir(), "metadata.db")
	require.NoError(t, tbl.Save(path))

	loaded := NewMetadataTable()
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, 2, loaded.Len())

	a, ok := loaded.Get("a.txt")
	require.True(t, ok)
	assert.Equal(t, "alice", a.Owner)
	assert.Equal(t, uint64(10), a.Size)
	assert.Equal(t, int64(100), a.ModifiedUnix)
	assert.False(t, a.IsBackup)

	b, ok := loaded.Get("b.txt")
	require.True(t, ok)
	assert.True(t, b.IsBackup)
}

func TestMetadataTableLoadMissingFileIsNotError(t *testing.T) {
	tbl := NewMetadataTable()
	err := tbl.Load(filepath.Join(t.TempDir(), "does-not-exist.db"))
	assert.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
}

func TestMetadataTableRange(t *testing.T) {
	tbl := NewMetadataTable()
	tbl.Put(Metadata{Filename: "a.txt"})
	tbl.Put(Metadata{Filename: "b.txt"})

	seen := map[string]bool{}
	tbl.Range(func(m Metadata) bool {
		seen[m.Filename] = true
		return true
	})
	assert.True(t, seen["a.txt"])
	assert.True(t, seen["b.txt"])
}
