// Package locks guards transfer destinations so two tree transfers never
// write the same container at once.
package locks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/config"
	"github.com/ebogdum/mediasource/internal/errs"
	"github.com/ebogdum/mediasource/metrics"
)

// keyPrefix namespaces lock keys in shared stores
const keyPrefix = "mediasource:lock:"

// Manager defines the interface for transfer locking operations
type Manager interface {
	// Acquire attempts to acquire the lock for the given key
	// Returns true if the lock was acquired, false if it is already held
	Acquire(ctx context.Context, key string) (bool, error)

	// Release releases a previously acquired lock for the given key
	// Only the holder that acquired the lock can release it
	Release(ctx context.Context, key string) error

	// Close closes the lock manager and releases any resources
	Close() error
}

// New builds the lock manager selected by cfg. The "none" type returns a
// nil Manager, which disables transfer locking.
func New(cfg config.DLMConfig, logger *zap.Logger) (Manager, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "local":
		return NewLocalManager(cfg.LockTTL), nil
	case "redis":
		m, err := NewRedisManager(cfg.RedisAddr, cfg.RedisPassword, cfg.LockTTL, logger)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, errs.Newf(errs.KindInvalidInput, "unknown lock manager type %q", cfg.Type)
	}
}

func observe(operation string, acquired bool, err error) {
	status := "success"
	switch {
	case err != nil:
		status = "failure"
	case !acquired:
		status = "held"
	}
	metrics.LockOperationsTotal.WithLabelValues(operation, status).Inc()
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 30 * time.Minute
	}
	return ttl
}
