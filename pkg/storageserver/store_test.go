package storageserver

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return st
}

func writeFileContent(t *testing.T, st *Store, filename, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(st.filePath(filename), []byte(content), 0o644))
}

func TestCreateFileThenExists(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateFile("a.txt", "alice"))
	assert.True(t, st.Exists("a.txt"))

	err := st.CreateFile("a.txt", "alice")
	assert.ErrorIs(t, err, ErrFileAlreadyExists)
}

func TestReadRoundTrip(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateFile("a.txt", "alice"))
	writeFileContent(t, st, "a.txt", "One. Two.")

	content, err := st.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "One. Two.", string(content))

	info, err := st.GetInfo("a.txt")
	require.NoError(t, err)
	assert.Greater(t, info.AccessUnix, int64(0))
}

// TestWriteSentenceLockContention mirrors spec.md §8: two WRITEs racing for
// the same sentence produce exactly one WRITE_LOCKED and leave no
// swapfile behind once both transactions conclude.
func TestWriteSentenceLockContention(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateFile("a.txt", "alice"))
	writeFileContent(t, st, "a.txt", "One. Two.")

	tx1, err := StartWrite(st, nil, "a.txt", 0)
	require.NoError(t, err)

	_, err = StartWrite(st, nil, "a.txt", 0)
	assert.ErrorIs(t, err, ErrWriteLocked)

	tx1.Abort()
	ok, err := st.hasSwapfile("a.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteCommitAppliesWordSplice(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateFile("a.txt", "alice"))
	writeFileContent(t, st, "a.txt", "One. Two.")

	tx, err := StartWrite(st, nil, "a.txt", 0)
	require.NoError(t, err)
	require.NoError(t, tx.ApplyWordData(0, "Hi"))
	require.NoError(t, tx.Commit())

	content, err := st.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hi One. Two.", string(content))

	ok, err := st.hasSwapfile("a.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteAppendNewSentence(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateFile("a.txt", "alice"))
	writeFileContent(t, st, "a.txt", "One.")

	tx, err := StartWrite(st, nil, "a.txt", 1)
	require.NoError(t, err)
	require.NoError(t, tx.ApplyWordData(0, "Two"))
	require.NoError(t, tx.ApplyWordData(1, "."))
	require.NoError(t, tx.Commit())

	content, err := st.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "One.Two.", string(content))
}

func TestStartWriteRejectsSentenceBeyondEnd(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateFile("a.txt", "alice"))
	writeFileContent(t, st, "a.txt", "One.")

	_, err := StartWrite(st, nil, "a.txt", 5)
	assert.ErrorIs(t, err, ErrInvalidSentenceIndex)
}

// TestUndoChainIsIdempotentWithPeriodTwo mirrors spec.md §8: X -> Y -> X ->
// Y as successive undos alternate between the two most recent states.
func TestUndoChainIsIdempotentWithPeriodTwo(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateFile("a.txt", "alice"))
	writeFileContent(t, st, "a.txt", "X.")

	tx, err := StartWrite(st, nil, "a.txt", 0)
	require.NoError(t, err)
	require.NoError(t, tx.ApplyWordData(0, "Y"))
	require.NoError(t, tx.Commit())

	content, _ := st.ReadFile("a.txt")
	assert.Equal(t, "Y.", string(content))

	require.NoError(t, st.Undo("a.txt", nil))
	content, _ = st.ReadFile("a.txt")
	assert.Equal(t, "X.", string(content))

	require.NoError(t, st.Undo("a.txt", nil))
	content, _ = st.ReadFile("a.txt")
	assert.Equal(t, "Y.", string(content))
}

func TestUndoWithoutHistoryFails(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateFile("a.txt", "alice"))
	err := st.Undo("a.txt", nil)
	assert.ErrorIs(t, err, ErrNoUndoHistory)
}

func TestCheckpointRevertAndUndoChain(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateFile("a.txt", "alice"))
	writeFileContent(t, st, "a.txt", "X.")

	require.NoError(t, st.Checkpoint("a.txt", "v1"))
	assert.ErrorIs(t, st.Checkpoint("a.txt", "v1"), ErrCheckpointExists)

	tx, err := StartWrite(st, nil, "a.txt", 0)
	require.NoError(t, err)
	require.NoError(t, tx.ApplyWordData(0, "Y"))
	require.NoError(t, tx.Commit())

	content, _ := st.ReadFile("a.txt")
	assert.Equal(t, "Y.", string(content))

	require.NoError(t, st.Revert("a.txt", "v1", nil))
	content, _ = st.ReadFile("a.txt")
	assert.Equal(t, "X.", string(content))

	require.NoError(t, st.Undo("a.txt", nil))
	content, _ = st.ReadFile("a.txt")
	assert.Equal(t, "Y.", string(content))
}

func TestListCheckpointsEnumeratesSavedTags(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateFile("a.txt", "alice"))
	require.NoError(t, st.Checkpoint("a.txt", "v1"))
	require.NoError(t, st.Checkpoint("a.txt", "v2"))

	entries, err := st.ListCheckpoints("a.txt")
	require.NoError(t, err)
	tags := map[string]bool{}
	for _, e := range entries {
		tags[e.Tag] = true
	}
	assert.True(t, tags["v1"])
	assert.True(t, tags["v2"])
}

func TestDeleteBlockedWhileWriteInProgress(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateFile("a.txt", "alice"))
	writeFileContent(t, st, "a.txt", "One.")

	tx, err := StartWrite(st, nil, "a.txt", 0)
	require.NoError(t, err)
	defer tx.Abort()

	err = st.DeleteFile("a.txt")
	assert.ErrorIs(t, err, ErrWriteInProgress)
}

func TestDeleteRemovesFileUndoAndCheckpoints(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateFile("a.txt", "alice"))
	require.NoError(t, st.Checkpoint("a.txt", "v1"))

	require.NoError(t, st.DeleteFile("a.txt"))
	assert.False(t, st.Exists("a.txt"))

	_, err := st.ReadFile("a.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)
}
