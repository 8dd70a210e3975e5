package core

import (
	"strings"
	"sync"
	"time"

	"github.com/ebogdum/mediasource/metrics"
)

// ProbeEntry is a cached binary classification with expiration
type ProbeEntry struct {
	Binary    bool
	ExpiresAt time.Time
}

// IsExpired checks if the cache entry has expired
func (e *ProbeEntry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// ProbeCache remembers binary probe results per key so listings do not
// re-read every file on each request.
type ProbeCache struct {
	cache    map[string]*ProbeEntry
	mu       sync.RWMutex
	ttl      time.Duration
	maxSize  int
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewProbeCache creates a probe cache with the specified TTL and max size
func NewProbeCache(ttl time.Duration, maxSize int) *ProbeCache {
	cache := &ProbeCache{
		cache:    make(map[string]*ProbeEntry),
		ttl:      ttl,
		maxSize:  maxSize,
		stopChan: make(chan struct{}),
	}

	// Start background cleanup goroutine
	go cache.cleanupExpiredEntries()

	return cache
}

// Get retrieves a probe result from the cache
func (c *ProbeCache) Get(key string) (binary bool, ok bool) {
	if c == nil {
		return false, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.cache[key]
	if !exists || entry.IsExpired() {
		metrics.ProbeCacheLookupsTotal.WithLabelValues("miss").Inc()
		return false, false
	}

	metrics.ProbeCacheLookupsTotal.WithLabelValues("hit").Inc()
	return entry.Binary, true
}

// Set stores a probe result in the cache
func (c *ProbeCache) Set(key string, binary bool) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache[key]; !exists && len(c.cache) >= c.maxSize {
		c.evictOneEntry()
	}

	c.cache[key] = &ProbeEntry{
		Binary:    binary,
		ExpiresAt: time.Now().Add(c.ttl),
	}
}

// Invalidate removes an entry from the cache
func (c *ProbeCache) Invalidate(key string) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, key)
}

// InvalidatePrefix removes all entries with the given key prefix
func (c *ProbeCache) InvalidatePrefix(prefix string) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.cache {
		if strings.HasPrefix(key, prefix) {
			delete(c.cache, key)
		}
	}
}

// Len returns the number of cached entries, expired ones included
func (c *ProbeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Stop terminates the cleanup goroutine
func (c *ProbeCache) Stop() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() { close(c.stopChan) })
}

// evictOneEntry removes one entry to make space (caller must hold lock)
func (c *ProbeCache) evictOneEntry() {
	now := time.Now()

	// First try to find an expired entry
	for key, entry := range c.cache {
		if now.After(entry.ExpiresAt) {
			delete(c.cache, key)
			return
		}
	}

	// Otherwise drop the entry closest to expiry
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.cache {
		if oldestKey == "" || entry.ExpiresAt.Before(oldest) {
			oldestKey, oldest = key, entry.ExpiresAt
		}
	}
	delete(c.cache, oldestKey)
}

// cleanupExpiredEntries runs periodically to clean up expired cache entries
func (c *ProbeCache) cleanupExpiredEntries() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.performCleanup()
		case <-c.stopChan:
			return
		}
	}
}

// performCleanup removes expired entries from the cache
func (c *ProbeCache) performCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.cache {
		if now.After(entry.ExpiresAt) {
			delete(c.cache, key)
		}
	}
}
