package core

import (
	"context"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ebogdum/mediasource/backends"
	"github.com/ebogdum/mediasource/internal/errs"
	"github.com/ebogdum/mediasource/internal/pathutil"
)

// EntryKind tells files and folders apart.
type EntryKind string

const (
	KindFile EntryKind = "file"
	KindDir  EntryKind = "dir"
)

// ListingEntry is one node of a folder listing.
type ListingEntry struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	Kind         EntryKind `json:"kind"`
	Leaf         bool      `json:"leaf"`
	Path         string    `json:"path"`
	PathRelative string    `json:"path_relative"`
	URL          string    `json:"url,omitempty"`
	EncodedURL   string    `json:"encoded_url,omitempty"`
	Extension    string    `json:"extension,omitempty"`
	Binary       *bool     `json:"binary,omitempty"`
	Editable     *bool     `json:"editable,omitempty"`
	Tooltip      string    `json:"tooltip,omitempty"`
	Actions      []string  `json:"actions"`
}

// list runs one delimiter listing and splits it into file and folder keys.
func (s *Source) list(ctx context.Context, prefix string) (files, dirs []string, err error) {
	res, err := s.store.List(ctx, backends.ListOptions{
		Prefix:    strings.TrimLeft(prefix, pathutil.Delimiter),
		Delimiter: pathutil.Delimiter,
	})
	if err != nil {
		return nil, nil, errs.Ensure(err, errs.KindBackendFailure, "failed to list "+prefix)
	}

	files = make([]string, 0, len(res.Objects))
	for _, obj := range res.Objects {
		files = append(files, obj.Key)
	}
	return files, res.CommonPrefixes, nil
}

// ListDirectory returns the file and folder keys directly under prefix.
// Backend errors are logged and produce two empty slices.
func (s *Source) ListDirectory(ctx context.Context, prefix string) (files, dirs []string) {
	files, dirs, err := s.list(ctx, prefix)
	if err != nil {
		s.logger.Warn("Failed to list directory",
			zap.String("prefix", prefix),
			zap.Error(err))
		return []string{}, []string{}
	}
	return files, dirs
}

// GetContainerList lists the folders and then the files under path, each
// block ordered case-insensitively by name. The root path lists the base
// directory.
func (s *Source) GetContainerList(ctx context.Context, path string) ([]ListingEntry, error) {
	path = s.listPrefix(path)

	files, dirs, err := s.list(ctx, path)
	if err != nil {
		return nil, s.fail(ctx, "container_list", "path", err)
	}

	directories := make([]ListingEntry, 0, len(dirs))
	for _, key := range dirs {
		if key == path {
			continue
		}
		directories = append(directories, ListingEntry{
			ID:           key,
			Text:         pathutil.Base(key),
			Kind:         KindDir,
			Leaf:         false,
			Path:         key,
			PathRelative: key,
			Actions:      s.directoryActions(ctx),
		})
	}

	entries := make([]ListingEntry, 0, len(files))
	for _, key := range files {
		if key == path {
			continue
		}
		entries = append(entries, s.fileEntry(ctx, key))
	}
	s.probeEntries(ctx, entries)

	sortEntries(directories)
	sortEntries(entries)
	return append(directories, entries...), nil
}

func (s *Source) fileEntry(ctx context.Context, key string) ListingEntry {
	name := pathutil.Base(key)
	ext := pathutil.Extension(key)
	url := s.FileURL(key)

	entry := ListingEntry{
		ID:           key,
		Text:         name,
		Kind:         KindFile,
		Leaf:         true,
		Path:         key,
		PathRelative: url,
		URL:          url,
		EncodedURL:   pathutil.EncodeURL(key, s.cfg.URL),
		Extension:    ext,
		Actions:      s.fileActions(ctx),
	}
	if !s.cfg.HideTooltips && s.cfg.IsImage(ext) {
		entry.Tooltip = `<img src="` + url + `" alt="` + name + `" />`
	}
	return entry
}

// probeEntries fills the binary classification of every file entry.
func (s *Source) probeEntries(ctx context.Context, entries []ListingEntry) {
	if !s.cfg.BinaryProbeEnabled() || len(entries) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(s.probeWorkers)
	for i := range entries {
		g.Go(func() error {
			binary := s.isBinary(ctx, entries[i].ID)
			editable := !binary
			entries[i].Binary = &binary
			entries[i].Editable = &editable
			return nil
		})
	}
	_ = g.Wait()
}

// isBinary samples the head of key. Unreadable files count as binary and
// are not cached.
func (s *Source) isBinary(ctx context.Context, key string) bool {
	cacheKey := s.name + ":" + key
	if binary, ok := s.probes.Get(cacheKey); ok {
		return binary
	}

	obj, err := s.store.Get(ctx, key, backends.GetOptions{Length: probeSize})
	if err != nil {
		s.logger.Debug("Binary probe failed",
			zap.String("key", key),
			zap.Error(err))
		return true
	}
	defer obj.Close()

	sample, err := io.ReadAll(io.LimitReader(obj, probeSize))
	if err != nil {
		s.logger.Debug("Binary probe read failed",
			zap.String("key", key),
			zap.Error(err))
		return true
	}

	binary := IsBinarySample(sample)
	s.probes.Set(cacheKey, binary)
	return binary
}

func (s *Source) directoryActions(ctx context.Context) []string {
	candidates := []string{"directory_create"}
	if s.cfg.FolderCopyAllowed() {
		candidates = append(candidates, "directory_update")
	}
	candidates = append(candidates, "file_upload", "file_create", "directory_remove")
	return permitted(ctx, candidates)
}

func (s *Source) fileActions(ctx context.Context) []string {
	return permitted(ctx, []string{"file_view", "file_update", "file_remove"})
}

func permitted(ctx context.Context, candidates []string) []string {
	actions := make([]string, 0, len(candidates))
	for _, action := range candidates {
		if hasPermission(ctx, action) {
			actions = append(actions, action)
		}
	}
	return actions
}

func sortEntries(entries []ListingEntry) {
	sortByName(entries, func(e ListingEntry) (string, string) { return e.Text, e.ID })
}

// sortByName orders items by upper-cased name, then by key.
func sortByName[T any](items []T, name func(T) (string, string)) {
	sort.SliceStable(items, func(i, j int) bool {
		ni, ki := name(items[i])
		nj, kj := name(items[j])
		if a, b := strings.ToUpper(ni), strings.ToUpper(nj); a != b {
			return a < b
		}
		return ki < kj
	})
}

// children lists the folders and files under path like GetContainerList
// without building entries or probing content.
func (s *Source) children(ctx context.Context, path string) (dirs, files []string, err error) {
	path = s.listPrefix(path)

	fileKeys, dirKeys, err := s.list(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	keep := func(keys []string) []string {
		out := make([]string, 0, len(keys))
		for _, key := range keys {
			if key != path {
				out = append(out, key)
			}
		}
		sortByName(out, func(key string) (string, string) { return pathutil.Base(key), key })
		return out
	}
	return keep(dirKeys), keep(fileKeys), nil
}
