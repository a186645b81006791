package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetSetAndExpiry(t *testing.T) {
	c := New[string](50 * time.Millisecond)
	defer c.Close()

	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("k", "v")
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	time.Sleep(80 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry must expire after the TTL")
}

func TestInvalidate(t *testing.T) {
	c := New[int](time.Minute)
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)

	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)

	c.InvalidateAll()
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestStatsCounters(t *testing.T) {
	c := New[int](time.Minute)
	defer c.Close()

	c.Get("missing")
	c.Set("k", 7)
	c.Get("k")
	c.Get("k")

	stats := c.GetStats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int](time.Minute)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c.Set("shared", n)
			c.Get("shared")
			c.Invalidate("other")
		}(i)
	}
	wg.Wait()

	_, ok := c.Get("shared")
	assert.True(t, ok)
}
