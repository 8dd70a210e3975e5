package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/audit"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "audit.sqlite3"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLogActionAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := audit.WithActor(context.Background(), "alice")

	require.NoError(t, store.LogAction(ctx, audit.Entry{Source: "media", Action: "file_create", Item: "a.txt"}))
	require.NoError(t, store.LogAction(context.Background(), audit.Entry{Source: "media", Action: "file_remove", Item: "a.txt"}))

	entries, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "file_remove", entries[0].Action)
	assert.Empty(t, entries[0].Actor)
	assert.Equal(t, "file_create", entries[1].Action)
	assert.Equal(t, "alice", entries[1].Actor)
	assert.WithinDuration(t, time.Now(), entries[1].Time, time.Minute)

	entries, err = store.Recent(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRedirects(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rule := audit.RedirectRule{Kind: "dir", Pattern: `^http:\/\/a\/old(.*)$`, Target: "http://b/new$1"}
	require.NoError(t, store.RecordRedirect(ctx, rule))

	rules, err := store.Redirects(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, rule.Pattern, rules[0].Pattern)
	assert.Equal(t, rule.Target, rules[0].Target)
	assert.NotZero(t, rules[0].ID)

	err = store.RecordRedirect(ctx, audit.RedirectRule{Kind: "symlink", Pattern: "x", Target: "y"})
	assert.Error(t, err, "kind is constrained by the schema")
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.sqlite3")

	store, err := NewSQLiteStore(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.LogAction(context.Background(), audit.Entry{Source: "media", Action: "directory_create", Item: "docs/"}))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	entries, err := store.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "docs/", entries[0].Item)
}
