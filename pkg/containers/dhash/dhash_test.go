package dhash

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetDelete(t *testing.T) {
	tbl := New(8, 0.5)
	require.NoError(t, tbl.Put("alice:notes.txt", 1))
	require.NoError(t, tbl.Put("bob:diary.txt", 2))

	v, ok := tbl.Get("alice:notes.txt")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	assert.True(t, tbl.Delete("alice:notes.txt"))
	_, ok = tbl.Get("alice:notes.txt")
	assert.False(t, ok)

	v, ok = tbl.Get("bob:diary.txt")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestPutUpdatesExistingKey(t *testing.T) {
	tbl := New(8, 0.5)
	require.NoError(t, tbl.Put("k", 1))
	require.NoError(t, tbl.Put("k", 2))
	assert.Equal(t, 1, tbl.Len())
	v, _ := tbl.Get("k")
	assert.Equal(t, 2, v)
}

func TestTombstoneDoesNotBreakLaterProbes(t *testing.T) {
	tbl := New(8, 0.9)
	keys := []string{"a", "b", "c", "d", "e"}
	for _, k := range keys {
		require.NoError(t, tbl.Put(k, k))
	}
	require.True(t, tbl.Delete("a"))
	for _, k := range keys[1:] {
		v, ok := tbl.Get(k)
		require.True(t, ok, "key %s should still be reachable after a tombstone", k)
		assert.Equal(t, k, v)
	}
}

func TestPutReturnsErrTableFullAtLoadFactor(t *testing.T) {
	tbl := New(8, 0.5)
	// capacity rounds to 8; load factor 0.5 permits ~4 entries before full.
	var err error
	for i := 0; i < 8; i++ {
		err = tbl.Put(fmt.Sprintf("key-%d", i), i)
		if err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, ErrTableFull)
}

func TestResizeRehashesAllLiveEntries(t *testing.T) {
	tbl := New(8, 0.6)
	for i := 0; i < 4; i++ {
		require.NoError(t, tbl.Put(fmt.Sprintf("key-%d", i), i))
	}
	tbl.Delete("key-0")
	tbl.Resize(32)

	for i := 1; i < 4; i++ {
		v, ok := tbl.Get(fmt.Sprintf("key-%d", i))
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := tbl.Get("key-0")
	assert.False(t, ok)
	assert.Equal(t, 3, tbl.Len())
}

func TestRangeVisitsAllLiveEntries(t *testing.T) {
	tbl := New(8, 0.5)
	want := map[string]int{"a": 1, "b": 2, "c": 3}
	for k, v := range want {
		require.NoError(t, tbl.Put(k, v))
	}
	got := map[string]int{}
	tbl.Range(func(k string, v any) bool {
		got[k] = v.(int)
		return true
	})
	assert.Equal(t, want, got)
}

func TestSecondaryHashNeverZero(t *testing.T) {
	for _, k := range []string{"", "a", "even", "zz", "collision-candidate"} {
		assert.NotEqual(t, uint64(0), secondaryHash(k))
	}
}
