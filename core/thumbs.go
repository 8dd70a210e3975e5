package core

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/backends"
	"github.com/ebogdum/mediasource/internal/pathutil"
)

// Largest preview the thumbnail grid displays.
const (
	maxPreviewWidth  = 800
	maxPreviewHeight = 600
)

// ThumbEntry is one file of the thumbnail grid.
type ThumbEntry struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	URL          string   `json:"url"`
	PathRelative string   `json:"path_relative"`
	Extension    string   `json:"extension"`
	Thumb        string   `json:"thumb"`
	ThumbWidth   int      `json:"thumb_width"`
	ThumbHeight  int      `json:"thumb_height"`
	Image        string   `json:"image"`
	ImageWidth   int      `json:"image_width"`
	ImageHeight  int      `json:"image_height"`
	Preview      bool     `json:"preview"`
	Actions      []string `json:"actions"`
}

// GetObjectsInContainer lists the files of path prepared for a thumbnail
// view, ordered case-insensitively by name.
func (s *Source) GetObjectsInContainer(ctx context.Context, path string) ([]ThumbEntry, error) {
	path = s.listPrefix(path)

	files, _, err := s.list(ctx, path)
	if err != nil {
		return nil, s.fail(ctx, "container_objects", "path", err)
	}

	entries := make([]ThumbEntry, 0, len(files))
	for _, key := range files {
		if key == path {
			continue
		}
		name := pathutil.Base(key)
		if s.cfg.Skips(name) {
			continue
		}
		ext := pathutil.Extension(key)
		if !s.cfg.AllowsFileType(ext) {
			continue
		}
		entries = append(entries, s.thumbEntry(ctx, key, name, ext))
	}

	sortThumbs(entries)
	return entries, nil
}

func (s *Source) thumbEntry(ctx context.Context, key, name, ext string) ThumbEntry {
	u := s.FileURL(key)
	entry := ThumbEntry{
		ID:           key,
		Name:         name,
		URL:          u,
		PathRelative: key,
		Extension:    ext,
		Actions:      s.fileActions(ctx),
	}

	if !s.cfg.IsImage(ext) {
		entry.Thumb = s.cfg.NoPreviewURL
		entry.Image = s.cfg.NoPreviewURL
		entry.ThumbWidth, entry.ImageWidth = s.cfg.ThumbWidth, s.cfg.ThumbWidth
		entry.ThumbHeight, entry.ImageHeight = s.cfg.ThumbHeight, s.cfg.ThumbHeight
		return entry
	}

	previewWidth, previewHeight := s.cfg.ImageWidth, s.cfg.ImageHeight
	imageWidth, imageHeight := previewWidth, previewHeight
	if size, ok := s.imageSize(ctx, key); ok {
		imageWidth, imageHeight = size.Width, size.Height
		previewWidth = min(size.Width, maxPreviewWidth)
		previewHeight = min(size.Height, maxPreviewHeight)
	}

	thumbWidth := min(s.cfg.ThumbWidth, previewWidth)
	thumbHeight := min(s.cfg.ThumbHeight, previewHeight)

	entry.Thumb = s.thumbURL(u, thumbWidth, thumbHeight)
	entry.ThumbWidth, entry.ThumbHeight = thumbWidth, thumbHeight
	entry.Image = u
	entry.ImageWidth, entry.ImageHeight = imageWidth, imageHeight
	entry.Preview = true
	return entry
}

// imageSize decodes the dimensions of an image object.
func (s *Source) imageSize(ctx context.Context, key string) (image.Config, bool) {
	obj, err := s.store.Get(ctx, key, backends.GetOptions{})
	if err != nil {
		s.logger.Debug("Failed to fetch image", zap.String("key", key), zap.Error(err))
		return image.Config{}, false
	}
	defer obj.Close()

	cfg, _, err := image.DecodeConfig(obj)
	if err != nil {
		s.logger.Debug("Failed to decode image", zap.String("key", key), zap.Error(err))
		return image.Config{}, false
	}
	return cfg, true
}

func (s *Source) thumbURL(src string, w, h int) string {
	if s.cfg.ThumbnailURL == "" {
		return src
	}
	q := url.Values{}
	q.Set("src", src)
	q.Set("w", strconv.Itoa(w))
	q.Set("h", strconv.Itoa(h))
	q.Set("f", s.cfg.ThumbnailType)
	q.Set("q", strconv.Itoa(s.cfg.ThumbnailQuality))
	return s.cfg.ThumbnailURL + "?" + q.Encode()
}

func sortThumbs(entries []ThumbEntry) {
	sortByName(entries, func(e ThumbEntry) (string, string) { return e.Name, e.ID })
}
