package core

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/backends/memory"
	"github.com/ebogdum/mediasource/config"
	"github.com/ebogdum/mediasource/internal/errs"
)

func ids(entries []ListingEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestGetContainerListOrder(t *testing.T) {
	src, store, _ := newTestSource(t, "media", config.SourceConfig{})
	seed(t, store, map[string]string{
		"b.txt":   "b",
		"A.txt":   "a",
		"c/":      "",
		"B/x.txt": "x",
		"a/y.txt": "y",
	})

	entries, err := src.GetContainerList(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/", "B/", "c/", "A.txt", "b.txt"}, ids(entries))

	assert.Equal(t, KindDir, entries[0].Kind)
	assert.False(t, entries[0].Leaf)
	assert.Equal(t, "a", entries[0].Text)
	assert.Equal(t, KindFile, entries[3].Kind)
	assert.True(t, entries[3].Leaf)
	assert.Equal(t, "txt", entries[3].Extension)
	assert.Equal(t, "http://mysite.s3.amazonaws.com/A.txt", entries[3].URL)
}

func TestGetContainerListSkipsSelf(t *testing.T) {
	src, store, _ := newTestSource(t, "media", config.SourceConfig{})
	seed(t, store, map[string]string{
		"docs/":      "",
		"docs/a.txt": "a",
		"docs/sub/":  "",
	})

	for _, path := range []string{"docs/", "/docs/"} {
		t.Run(path, func(t *testing.T) {
			entries, err := src.GetContainerList(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, []string{"docs/sub/", "docs/a.txt"}, ids(entries))

			dirs, files, err := src.children(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, []string{"docs/sub/"}, dirs)
			assert.Equal(t, []string{"docs/a.txt"}, files)
		})
	}
}

func TestGetContainerListRootInjection(t *testing.T) {
	objects := map[string]string{
		"media/":          "",
		"media/x.txt":     "x",
		"media/sub/y.txt": "y",
		"other.txt":       "o",
	}

	rooted, rootedStore, _ := newTestSource(t, "rooted", config.SourceConfig{BaseDir: "media"})
	seed(t, rootedStore, objects)
	plain, plainStore, _ := newTestSource(t, "plain", config.SourceConfig{})
	seed(t, plainStore, objects)

	ctx := context.Background()
	fromRoot, err := rooted.GetContainerList(ctx, "")
	require.NoError(t, err)
	fromPrefix, err := plain.GetContainerList(ctx, "media/")
	require.NoError(t, err)

	assert.Equal(t, []string{"media/sub/", "media/x.txt"}, ids(fromRoot))
	assert.Equal(t, ids(fromPrefix), ids(fromRoot))
}

func TestGetContainerListProbes(t *testing.T) {
	probes := NewProbeCache(time.Minute, 100)
	defer probes.Stop()

	store := memory.New()
	src := NewSource("media", config.SourceConfig{}, store, nil, probes, zap.NewNop())
	seed(t, store, map[string]string{
		"notes.txt": "plain text notes",
		"blob.bin":  "\x00\x01\x02",
		"empty.txt": "",
	})

	ctx := context.Background()
	entries, err := src.GetContainerList(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	byID := make(map[string]ListingEntry)
	for _, e := range entries {
		byID[e.ID] = e
	}
	require.NotNil(t, byID["notes.txt"].Binary)
	assert.False(t, *byID["notes.txt"].Binary)
	assert.True(t, *byID["notes.txt"].Editable)
	assert.True(t, *byID["blob.bin"].Binary)
	assert.False(t, *byID["blob.bin"].Editable)
	assert.False(t, *byID["empty.txt"].Binary)

	// cached results survive a failing backend
	store.Fail("get", "", errors.New("unavailable"))
	entries, err = src.GetContainerList(ctx, "")
	require.NoError(t, err)
	for _, e := range entries {
		if e.ID == "notes.txt" {
			assert.False(t, *e.Binary)
		}
	}
}

func TestIsBinaryFailedProbe(t *testing.T) {
	probes := NewProbeCache(time.Minute, 100)
	defer probes.Stop()

	store := memory.New()
	src := NewSource("media", config.SourceConfig{}, store, nil, probes, zap.NewNop())
	seed(t, store, map[string]string{"a.txt": "text"})

	store.Fail("get", "a.txt", errors.New("unavailable"))
	assert.True(t, src.isBinary(context.Background(), "a.txt"))
	assert.Equal(t, 0, probes.Len(), "failed probes are not cached")

	store.Heal()
	assert.False(t, src.isBinary(context.Background(), "a.txt"))
	assert.Equal(t, 1, probes.Len())
}

func TestGetContainerListProbeDisabled(t *testing.T) {
	src, store, _ := newTestSource(t, "media", config.SourceConfig{ProbeBinary: boolPtr(false)})
	seed(t, store, map[string]string{"a.txt": "a"})

	entries, err := src.GetContainerList(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].Binary)
	assert.Nil(t, entries[0].Editable)
}

func TestGetContainerListTooltipsAndActions(t *testing.T) {
	src, store, _ := newTestSource(t, "media", config.SourceConfig{})
	seed(t, store, map[string]string{
		"pic.png":  "not really a png",
		"docs/":    "",
		"read.txt": "r",
	})

	entries, err := src.GetContainerList(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, []string{"docs/", "pic.png", "read.txt"}, ids(entries))

	assert.Equal(t, `<img src="http://mysite.s3.amazonaws.com/pic.png" alt="pic.png" />`, entries[1].Tooltip)
	assert.Empty(t, entries[2].Tooltip)
	assert.Equal(t, []string{"directory_create", "directory_update", "file_upload", "file_create", "directory_remove"}, entries[0].Actions)
	assert.Equal(t, []string{"file_view", "file_update", "file_remove"}, entries[1].Actions)

	viewOnly := WithPermissions(context.Background(), func(action string) bool { return action == "file_view" })
	entries, err = src.GetContainerList(viewOnly, "")
	require.NoError(t, err)
	assert.Empty(t, entries[0].Actions)
	assert.Equal(t, []string{"file_view"}, entries[1].Actions)
}

func TestDirectoryActionsWithoutFolderCopy(t *testing.T) {
	src, _, _ := newTestSource(t, "media", config.SourceConfig{AllowFolderCopy: boolPtr(false)})
	assert.Equal(t, []string{"directory_create", "file_upload", "file_create", "directory_remove"}, src.directoryActions(context.Background()))
}

func TestListErrors(t *testing.T) {
	src, store, _ := newTestSource(t, "media", config.SourceConfig{})
	store.Fail("list", "", errors.New("connection reset"))

	files, dirs := src.ListDirectory(context.Background(), "docs/")
	assert.Empty(t, files)
	assert.Empty(t, dirs)
	assert.False(t, src.HasErrors(), "ListDirectory only logs")

	_, err := src.GetContainerList(context.Background(), "docs/")
	require.Error(t, err)
	assert.True(t, errs.IsBackendFailure(err))
	assert.True(t, src.HasErrors())
}

func TestListDirectory(t *testing.T) {
	src, store, _ := newTestSource(t, "media", config.SourceConfig{})
	seed(t, store, map[string]string{
		"docs/a.txt":     "a",
		"docs/sub/b.txt": "b",
	})

	files, dirs := src.ListDirectory(context.Background(), "/docs/")
	assert.Equal(t, []string{"docs/a.txt"}, files)
	assert.Equal(t, []string{"docs/sub/"}, dirs)
}

func pngBytes(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.String()
}

func TestGetObjectsInContainer(t *testing.T) {
	src, store, _ := newTestSource(t, "media", config.SourceConfig{
		ThumbnailURL:     "/thumb",
		AllowedFileTypes: []string{"png", "txt"},
	})
	seed(t, store, map[string]string{
		"gallery/pic.png":    pngBytes(t, 20, 10),
		"gallery/notes.txt":  "n",
		"gallery/skip.pdf":   "p",
		"gallery/.DS_Store":  "x",
		"gallery/sub/in.png": pngBytes(t, 1, 1),
	})

	thumbs, err := src.GetObjectsInContainer(context.Background(), "gallery/")
	require.NoError(t, err)
	require.Len(t, thumbs, 2)

	notes, pic := thumbs[0], thumbs[1]
	assert.Equal(t, "notes.txt", notes.Name)
	assert.False(t, notes.Preview)
	assert.Equal(t, "/assets/images/nopreview.jpg", notes.Thumb)
	assert.Equal(t, 100, notes.ThumbWidth)
	assert.Equal(t, 80, notes.ThumbHeight)

	assert.Equal(t, "pic.png", pic.Name)
	assert.True(t, pic.Preview)
	assert.Equal(t, 20, pic.ImageWidth)
	assert.Equal(t, 10, pic.ImageHeight)
	assert.Equal(t, 20, pic.ThumbWidth)
	assert.Equal(t, 10, pic.ThumbHeight)
	assert.Equal(t, "http://mysite.s3.amazonaws.com/gallery/pic.png", pic.Image)
	assert.True(t, strings.HasPrefix(pic.Thumb, "/thumb?"))
	assert.Contains(t, pic.Thumb, "w=20")
	assert.Contains(t, pic.Thumb, "h=10")
	assert.Contains(t, pic.Thumb, "f=png")
}

func TestGetObjectsInContainerUndecodableImage(t *testing.T) {
	src, store, _ := newTestSource(t, "media", config.SourceConfig{})
	seed(t, store, map[string]string{"broken.jpg": "garbage"})

	thumbs, err := src.GetObjectsInContainer(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, thumbs, 1)

	assert.True(t, thumbs[0].Preview)
	assert.Equal(t, 400, thumbs[0].ImageWidth)
	assert.Equal(t, 100, thumbs[0].ThumbWidth)
	assert.Equal(t, thumbs[0].URL, thumbs[0].Thumb, "no thumbnail service configured")
}
