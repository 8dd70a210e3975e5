package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProbeCache(t *testing.T) {
	c := NewProbeCache(time.Minute, 2)
	defer c.Stop()

	_, ok := c.Get("media:a.txt")
	assert.False(t, ok)

	c.Set("media:a.txt", false)
	c.Set("media:docs/b.bin", true)

	binary, ok := c.Get("media:docs/b.bin")
	assert.True(t, ok)
	assert.True(t, binary)

	// full cache evicts one entry
	c.Set("media:c.txt", false)
	assert.Equal(t, 2, c.Len())

	c.InvalidatePrefix("media:")
	assert.Equal(t, 0, c.Len())
}

func TestProbeCacheExpiry(t *testing.T) {
	c := NewProbeCache(time.Millisecond, 10)
	defer c.Stop()

	c.Set("k", true)
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)

	c.performCleanup()
	assert.Equal(t, 0, c.Len())
}

func TestNilProbeCache(t *testing.T) {
	var c *ProbeCache
	c.Set("k", true)
	c.Invalidate("k")
	c.InvalidatePrefix("")
	c.Stop()
	_, ok := c.Get("k")
	assert.False(t, ok)
}
