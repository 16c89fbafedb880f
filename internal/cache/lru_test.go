package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	// "b" is now least recently used
	c.Set("c", 3)
	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	now = now.Add(2 * time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("k1", "v")
	c.Set("k2", "v")
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, c.CleanExpired())
	assert.Equal(t, 0, c.Size())
}

func TestLRUCache_DeleteAndPurge(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	assert.Equal(t, 1, c.Size())

	assert.Equal(t, 1, c.Purge())
	assert.Equal(t, 0, c.Size())
	c.Set("c", 3)
	assert.Equal(t, 1, c.Size())
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager()
	m.Register("lru", NewLRUCache[int](1, time.Second))
	m.Stop()

	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()
}
