package locks

import (
	"context"
	"sync"
	"time"
)

// LocalManager provides in-process lock management for single-node deployments.
// Locks expire after the TTL so a crashed transfer cannot block its
// destination forever.
type LocalManager struct {
	mu    sync.Mutex
	ttl   time.Duration
	locks map[string]time.Time
	now   func() time.Time
}

// NewLocalManager creates a new in-memory lock manager.
func NewLocalManager(ttl time.Duration) *LocalManager {
	return &LocalManager{
		ttl:   ttlOrDefault(ttl),
		locks: make(map[string]time.Time),
		now:   time.Now,
	}
}

// Acquire acquires a lock if it is currently free or expired.
func (m *LocalManager) Acquire(ctx context.Context, key string) (bool, error) {
	select {
	case <-ctx.Done():
		observe("acquire", false, ctx.Err())
		return false, ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if expires, exists := m.locks[keyPrefix+key]; exists && now.Before(expires) {
		observe("acquire", false, nil)
		return false, nil
	}

	m.locks[keyPrefix+key] = now.Add(m.ttl)
	observe("acquire", true, nil)
	return true, nil
}

// Release releases a previously acquired lock.
func (m *LocalManager) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, keyPrefix+key)
	observe("release", true, nil)
	return nil
}

// Close clears all local locks.
func (m *LocalManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks = make(map[string]time.Time)
	return nil
}
