package lru

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPromotesToFront(t *testing.T) {
	c := New(2)
	c.Put("a", 1)
	c.Put("b", 2)

	_, ok := c.Get("a")
	require.True(t, ok)

	_, evicted := c.Put("c", 3)
	assert.True(t, evicted)

	_, ok = c.Get("b")
	assert.False(t, ok, "b should have been evicted as least-recently-used")

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestPutExistingKeyUpdatesValueWithoutEviction(t *testing.T) {
	c := New(1)
	c.Put("a", 1)
	_, evicted := c.Put("a", 2)
	assert.False(t, evicted)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestEvictionIsStrictlyLRU(t *testing.T) {
	c := New(3)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)
	c.Get("a")
	c.Get("b")

	evictedKey, evicted := c.Put("d", 4)
	assert.True(t, evicted)
	assert.Equal(t, "c", evictedKey)
}

func TestRemove(t *testing.T) {
	c := New(2)
	c.Put("a", 1)
	c.Remove("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestNewPanicsOnNonPositiveCapacity(t *testing.T) {
	assert.Panics(t, func() { New(0) })
}
