package locks

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/config"
)

func TestLocalManagerAcquireRelease(t *testing.T) {
	m := NewLocalManager(time.Minute)
	ctx := context.Background()

	ok, err := m.Acquire(ctx, "transfer:media:a/")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Acquire(ctx, "transfer:media:a/")
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must see the lock held")

	require.NoError(t, m.Release(ctx, "transfer:media:a/"))

	ok, err = m.Acquire(ctx, "transfer:media:a/")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalManagerExpiry(t *testing.T) {
	m := NewLocalManager(time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now }

	ok, err := m.Acquire(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = m.Acquire(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok, "expired locks are free again")
}

func TestLocalManagerCanceledContext(t *testing.T) {
	m := NewLocalManager(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := m.Acquire(ctx, "k")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedisManager(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := NewRedisManager(mr.Addr(), "", time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	b, err := NewRedisManager(mr.Addr(), "", time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()

	ok, err := a.Acquire(ctx, "transfer:media:a/")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists(keyPrefix+"transfer:media:a/"))

	ok, err = b.Acquire(ctx, "transfer:media:a/")
	require.NoError(t, err)
	assert.False(t, ok)

	// only the owner can release
	require.NoError(t, b.Release(ctx, "transfer:media:a/"))
	assert.True(t, mr.Exists(keyPrefix+"transfer:media:a/"))

	require.NoError(t, a.Release(ctx, "transfer:media:a/"))
	assert.False(t, mr.Exists(keyPrefix+"transfer:media:a/"))

	ok, err = a.Acquire(ctx, "ttl")
	require.NoError(t, err)
	require.True(t, ok)
	mr.FastForward(2 * time.Minute)
	ok, err = b.Acquire(ctx, "ttl")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisManagerUnreachable(t *testing.T) {
	_, err := NewRedisManager("127.0.0.1:1", "", time.Minute, zap.NewNop())
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	m, err := New(config.DLMConfig{Type: "none"}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = New(config.DLMConfig{Type: "local"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LocalManager{}, m)

	_, err = New(config.DLMConfig{Type: "zookeeper"}, zap.NewNop())
	assert.Error(t, err)
}
