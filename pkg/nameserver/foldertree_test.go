package nameserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFolderRejectsReservedRootName(t *testing.T) {
	tr := NewFolderTree()
	assert.ErrorIs(t, tr.CreateFolder(rootName), ErrReservedFolderName)
}

func TestCreateFolderRejectsNameCollision(t *testing.T) {
	tr := NewFolderTree()
	require.NoError(t, tr.CreateFolder("docs"))
	assert.ErrorIs(t, tr.CreateFolder("docs"), ErrFolderNameCollision)
}

func TestOpenMissingFolderFailsWithoutCreateFlag(t *testing.T) {
	tr := NewFolderTree()
	assert.ErrorIs(t, tr.Open("docs", false), ErrFolderNotFound)
}

func TestOpenWithCreateFlagCreatesAndEnters(t *testing.T) {
	tr := NewFolderTree()
	require.NoError(t, tr.Open("docs", true))

	entries, err := tr.View("..")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "docs", entries[0].Name)
}

func TestOpenParentFromRootFails(t *testing.T) {
	tr := NewFolderTree()
	assert.ErrorIs(t, tr.OpenParent(), ErrUpmoveFromRoot)
}

func TestUpMoveOutOfRootFails(t *testing.T) {
	tr := NewFolderTree()
	require.NoError(t, tr.AddFileStub("a.txt"))
	assert.ErrorIs(t, tr.UpMove("a.txt"), ErrUpmoveFromRoot)
}

func TestMoveRelocatesFileStub(t *testing.T) {
	tr := NewFolderTree()
	require.NoError(t, tr.CreateFolder("docs"))
	require.NoError(t, tr.AddFileStub("a.txt"))

	require.NoError(t, tr.Move("a.txt", "docs"))

	entries, err := tr.View("")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "docs", entries[0].Name)

	require.NoError(t, tr.Open("docs", false))
	entries, err = tr.View("")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.txt", entries[0].Name)
}

func TestUpMoveRestoresFileToParent(t *testing.T) {
	tr := NewFolderTree()
	require.NoError(t, tr.Open("docs", true))
	require.NoError(t, tr.AddFileStub("a.txt"))

	require.NoError(t, tr.UpMove("a.txt"))

	entries, err := tr.View("")
	require.NoError(t, err)
	assert.Len(t, entries, 0)

	require.NoError(t, tr.OpenParent())
	entries, err = tr.View("")
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestViewFolderPathNavigatesRelativeToCwd(t *testing.T) {
	tr := NewFolderTree()
	require.NoError(t, tr.CreateFolder("a"))
	require.NoError(t, tr.Open("a", false))
	require.NoError(t, tr.CreateFolder("b"))

	entries, err := tr.View("b")
	require.NoError(t, err)
	assert.Len(t, entries, 0)

	_, err = tr.View("nonexistent")
	assert.ErrorIs(t, err, ErrFolderNotFound)
}
