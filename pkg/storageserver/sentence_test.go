package storageserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentencesBasic(t *testing.T) {
	got := SplitSentences("One. Two. Three.")
	assert.Equal(t, []string{"One.", " Two.", " Three."}, got)
	assert.True(t, LastEndsWithDelimiter(got))
}

func TestSplitSentencesTrailingFragmentTrimsLeadingWhitespace(t *testing.T) {
	got := SplitSentences("One.  trailing words")
	require.Len(t, got, 2)
	assert.Equal(t, "One.", got[0])
	assert.Equal(t, "trailing words", got[1])
	assert.False(t, LastEndsWithDelimiter(got))
}

func TestSplitSentencesEmptyFile(t *testing.T) {
	got := SplitSentences("")
	assert.Nil(t, got)
	assert.True(t, LastEndsWithDelimiter(got))
}

func TestSplitWordsTreatsDelimiterAsOwnWord(t *testing.T) {
	assert.Equal(t, []string{"One", "."}, SplitWords("One."))
	assert.Equal(t, []string{"end", "."}, SplitWords("end."))
	assert.Equal(t, []string{"Hi", "there", "!"}, SplitWords("Hi there!"))
}

func TestJoinWordsNoSpaceBeforeDelimiter(t *testing.T) {
	assert.Equal(t, "One.", JoinWords([]string{"One", "."}))
	assert.Equal(t, "Hi One.", JoinWords([]string{"Hi", "One", "."}))
}

func TestSpliceWordsInsertsAndShifts(t *testing.T) {
	words := []string{"One", "."}
	spliced, err := SpliceWords(words, 0, []string{"Hi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi", "One", "."}, spliced)
}

func TestSpliceWordsOutOfRange(t *testing.T) {
	_, err := SpliceWords([]string{"One", "."}, 5, []string{"x"})
	assert.ErrorIs(t, err, ErrWordIndexOutOfRange)
}

func TestEditSentencePreservesLeadingWhitespace(t *testing.T) {
	edited, err := EditSentence(" Three.", 0, []string{"New"})
	require.NoError(t, err)
	assert.Equal(t, " New Three.", edited)
}

// TestConcurrentSentenceEditConvergence mirrors the end-to-end scenario in
// spec.md §8: two independent WRITEs against different sentences of
// "One. Two. Three." converge to "Hi One. Two. New Three." regardless of
// commit order, because each edit only ever touches its own sentence text
// and sentences are reassembled with no separator.
func TestConcurrentSentenceEditConvergence(t *testing.T) {
	original := "One. Two. Three."
	sentences := SplitSentences(original)
	require.Equal(t, []string{"One.", " Two.", " Three."}, sentences)

	s0, err := EditSentence(sentences[0], 0, []string{"Hi"})
	require.NoError(t, err)
	s2, err := EditSentence(sentences[2], 0, []string{"New"})
	require.NoError(t, err)

	finalSentences := []string{s0, sentences[1], s2}
	assert.Equal(t, "Hi One. Two. New Three.", JoinSentences(finalSentences))
}

func TestJoinSentencesRoundTripsUnmodifiedContent(t *testing.T) {
	original := "One. Two. Three."
	assert.Equal(t, original, JoinSentences(SplitSentences(original)))
}
