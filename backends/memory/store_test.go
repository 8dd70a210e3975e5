package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebogdum/mediasource/backends"
	"github.com/ebogdum/mediasource/internal/errs"
)

func put(t *testing.T, s *Store, key, body string) {
	t.Helper()
	require.NoError(t, s.Put(context.Background(), key, strings.NewReader(body), int64(len(body)), backends.PutOptions{ACL: "public-read"}))
}

func TestListRollsUpCommonPrefixes(t *testing.T) {
	s := New()
	for _, k := range []string{"media/", "media/a.txt", "media/b/c.txt", "media/b/d.txt", "media/e/", "other.txt"} {
		put(t, s, k, "x")
	}

	res, err := s.List(context.Background(), backends.ListOptions{Prefix: "media/", Delimiter: "/"})
	require.NoError(t, err)

	var keys []string
	for _, o := range res.Objects {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{"media/", "media/a.txt"}, keys)
	assert.Equal(t, []string{"media/b/", "media/e/"}, res.CommonPrefixes)
}

func TestListRecursiveAndMaxKeys(t *testing.T) {
	s := New()
	for _, k := range []string{"a/1", "a/2", "a/b/3"} {
		put(t, s, k, "x")
	}

	res, err := s.List(context.Background(), backends.ListOptions{Prefix: "a/"})
	require.NoError(t, err)
	assert.Len(t, res.Objects, 3)
	assert.Empty(t, res.CommonPrefixes)

	res, err = s.List(context.Background(), backends.ListOptions{Prefix: "a/", MaxKeys: 1})
	require.NoError(t, err)
	assert.Len(t, res.Objects, 1)
}

func TestGetRangeAndNotFound(t *testing.T) {
	s := New()
	put(t, s, "f.txt", "hello world")

	obj, err := s.Get(context.Background(), "f.txt", backends.GetOptions{Offset: 6, Length: 3})
	require.NoError(t, err)
	defer obj.Close()
	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "wor", string(data))
	assert.Equal(t, int64(11), obj.Info.Size)

	_, err = s.Get(context.Background(), "missing", backends.GetOptions{})
	assert.True(t, errs.IsNotFound(err))
}

func TestCopyDeleteMatchingAndExists(t *testing.T) {
	s := New()
	put(t, s, "src/a", "1")
	put(t, s, "src/b/c", "2")

	require.NoError(t, s.Copy(context.Background(), "src/a", "dst/a", backends.PutOptions{ACL: "private"}))
	data, ok := s.Content("dst/a")
	require.True(t, ok)
	assert.Equal(t, "1", string(data))
	assert.Equal(t, "private", s.ACL("dst/a"))

	err := s.Copy(context.Background(), "src/missing", "dst/x", backends.PutOptions{})
	assert.True(t, errs.IsNotFound(err))

	n, err := s.DeleteMatching(context.Background(), "src/")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	exists, err := s.Exists(context.Background(), "src/a")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, []string{"dst/a"}, s.Keys())
}

func TestFaultInjection(t *testing.T) {
	s := New()
	boom := errs.Wrap(errs.KindBackendFailure, "injected", errors.New("boom"))

	s.Fail("put", "bad.txt", boom)
	assert.ErrorIs(t, s.Put(context.Background(), "bad.txt", strings.NewReader("x"), 1, backends.PutOptions{}), boom)
	assert.NoError(t, s.Put(context.Background(), "good.txt", strings.NewReader("x"), 1, backends.PutOptions{}))

	s.Fail("list", "", boom)
	_, err := s.List(context.Background(), backends.ListOptions{Prefix: "anything/"})
	assert.ErrorIs(t, err, boom)

	s.Heal()
	_, err = s.List(context.Background(), backends.ListOptions{})
	assert.NoError(t, err)
}

func TestPutRejectsEmptyKey(t *testing.T) {
	err := New().Put(context.Background(), "", strings.NewReader(""), 0, backends.PutOptions{})
	assert.True(t, errs.IsInvalidInput(err))
}
