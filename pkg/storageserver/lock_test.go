package storageserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockMapGetIsLazyAndStable(t *testing.T) {
	lm := NewLockMap()
	a := lm.Get("f.txt")
	b := lm.Get("f.txt")
	assert.Same(t, a, b)
}

func TestTryLockSentenceRejectsSecondLocker(t *testing.T) {
	fl := &FileLock{}
	assert.True(t, fl.TryLockSentence(0))
	assert.False(t, fl.TryLockSentence(0))
	fl.UnlockSentence(0)
	assert.True(t, fl.TryLockSentence(0))
}

func TestTryLockSentenceIndependentSentences(t *testing.T) {
	fl := &FileLock{}
	assert.True(t, fl.TryLockSentence(0))
	assert.True(t, fl.TryLockSentence(1))
	assert.False(t, fl.TryLockSentence(0))
}

func TestLockMapForgetAllocatesFresh(t *testing.T) {
	lm := NewLockMap()
	a := lm.Get("f.txt")
	lm.Forget("f.txt")
	b := lm.Get("f.txt")
	assert.NotSame(t, a, b)
}
