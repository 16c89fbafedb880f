package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingCleaner struct{ n int }

func (c *countingCleaner) CleanExpired() int {
	c.n++
	return c.n
}

func TestManager_CleanNow(t *testing.T) {
	m := NewManager()
	short := NewLRUCache[string](4, time.Millisecond)
	short.Set("a", "x")
	short.Set("b", "y")
	long := NewLRUCache[string](4, time.Hour)
	long.Set("a", "x")

	m.Register("short", short)
	m.Register("long", long)
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, map[string]int{"short": 2, "long": 0}, m.CleanNow())
	assert.Equal(t, 0, short.Size())
	assert.Equal(t, 1, long.Size())
}

func TestManager_RegisterReplaces(t *testing.T) {
	m := NewManager()
	first, second := &countingCleaner{}, &countingCleaner{}
	m.Register("c", first)
	m.Register("c", second)

	m.CleanNow()
	assert.Equal(t, 0, first.n)
	assert.Equal(t, 1, second.n)
}

func TestManager_StartStop(t *testing.T) {
	m := NewManager()
	m.Stop()

	c := NewLRUCache[int](4, time.Millisecond)
	c.Set("a", 1)
	m.Register("c", c)

	m.StartCleanup(2 * time.Millisecond)
	m.StartCleanup(2 * time.Millisecond)
	assert.Eventually(t, func() bool { return c.Size() == 0 }, time.Second, 5*time.Millisecond)

	m.Stop()
	m.Stop()
}
