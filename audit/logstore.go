package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LogStore writes entries to the structured log and keeps the most recent
// ones in memory so they can still be listed.
type LogStore struct {
	mu        sync.Mutex
	logger    *zap.Logger
	capacity  int
	entries   []Entry
	redirects []RedirectRule
	nextID    int64
}

// NewLogStore creates a log-backed store remembering up to capacity items
// of each kind.
func NewLogStore(logger *zap.Logger, capacity int) *LogStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &LogStore{logger: logger, capacity: capacity}
}

// LogAction implements Logger.
func (s *LogStore) LogAction(ctx context.Context, entry Entry) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	if entry.Actor == "" {
		entry.Actor = ActorFrom(ctx)
	}

	s.mu.Lock()
	s.nextID++
	entry.ID = s.nextID
	s.entries = appendBounded(s.entries, entry, s.capacity)
	s.mu.Unlock()

	s.logger.Info("Media source action",
		zap.String("source", entry.Source),
		zap.String("action", entry.Action),
		zap.String("item", entry.Item),
		zap.String("actor", entry.Actor))
	return nil
}

// RecordRedirect implements RedirectRecorder.
func (s *LogStore) RecordRedirect(ctx context.Context, rule RedirectRule) error {
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.nextID++
	rule.ID = s.nextID
	s.redirects = appendBounded(s.redirects, rule, s.capacity)
	s.mu.Unlock()

	s.logger.Info("Redirect rule recorded",
		zap.String("kind", rule.Kind),
		zap.String("pattern", rule.Pattern),
		zap.String("target", rule.Target))
	return nil
}

// Recent implements Store.
func (s *LogStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return newestFirst(s.entries, limit), nil
}

// Redirects implements Store.
func (s *LogStore) Redirects(ctx context.Context, limit int) ([]RedirectRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return newestFirst(s.redirects, limit), nil
}

// Close implements Store.
func (s *LogStore) Close() error {
	return nil
}

func appendBounded[T any](items []T, item T, capacity int) []T {
	items = append(items, item)
	if len(items) > capacity {
		items = items[len(items)-capacity:]
	}
	return items
}

func newestFirst[T any](items []T, limit int) []T {
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	out := make([]T, 0, limit)
	for i := len(items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, items[i])
	}
	return out
}
