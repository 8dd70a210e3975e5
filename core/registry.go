package core

import (
	"context"
	"sort"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/audit"
	"github.com/ebogdum/mediasource/backends"
	"github.com/ebogdum/mediasource/backends/localfs"
	"github.com/ebogdum/mediasource/backends/memory"
	"github.com/ebogdum/mediasource/backends/minio"
	"github.com/ebogdum/mediasource/backends/s3"
	"github.com/ebogdum/mediasource/config"
	"github.com/ebogdum/mediasource/internal/errs"
)

// OpenStorage connects the driver selected by cfg.Type and wraps it with
// metrics.
func OpenStorage(ctx context.Context, cfg config.SourceConfig, logger *zap.Logger) (backends.Storage, error) {
	var (
		store backends.Storage
		err   error
	)

	switch cfg.Type {
	case config.SourceTypeS3:
		var a *s3.S3Adapter
		if a, err = s3.NewS3Adapter(cfg, logger); err == nil {
			store = a
		}
	case config.SourceTypeMinio:
		var d *minio.Driver
		if d, err = minio.New(ctx, cfg, logger); err == nil {
			store = d
		}
	case config.SourceTypeLocalFS:
		var a *localfs.LocalFSAdapter
		if a, err = localfs.NewLocalFSAdapter(cfg.RootPath, logger); err == nil {
			store = a
		}
	case config.SourceTypeMemory:
		store = memory.New()
	default:
		return nil, errs.Newf(errs.KindInvalidInput, "unknown source type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	return backends.Instrument(store, cfg.Type), nil
}

// SourceInfo is the displayable description of a source.
type SourceInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Bucket      string `json:"bucket,omitempty"`
	URL         string `json:"url"`
	BaseDir     string `json:"base_dir,omitempty"`
	RootPath    string `json:"root_path,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	AccessKey   string `json:"access_key,omitempty"`
}

// Registry holds the configured sources by name.
type Registry struct {
	sources map[string]*Source
}

// NewRegistry opens every source of cfg. Sources opened before a failure
// are closed again.
func NewRegistry(ctx context.Context, cfg config.AppConfig, auditLog audit.Logger, probes *ProbeCache, logger *zap.Logger) (*Registry, error) {
	r := &Registry{sources: make(map[string]*Source, len(cfg.Sources))}

	for name, sc := range cfg.Sources {
		store, err := OpenStorage(ctx, sc, logger.With(zap.String("source", name)))
		if err != nil {
			_ = r.Close()
			return nil, errs.Ensure(err, errs.KindBackendFailure, "failed to open source "+name)
		}
		r.sources[name] = NewSource(name, sc, store, auditLog, probes, logger,
			WithWorkers(cfg.Transfer.Workers),
			WithProbeWorkers(cfg.Transfer.ProbeWorkers),
			WithMaxDepth(cfg.Transfer.MaxDepth))
	}

	return r, nil
}

// Add registers a source, replacing any with the same name.
func (r *Registry) Add(s *Source) {
	if r.sources == nil {
		r.sources = make(map[string]*Source)
	}
	r.sources[s.Name()] = s
}

// Get returns the named source.
func (r *Registry) Get(name string) (*Source, error) {
	s, ok := r.sources[name]
	if !ok {
		return nil, errs.Newf(errs.KindNotFound, "source %q is not configured", name)
	}
	return s, nil
}

// Names returns the source names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info describes the named source with its credentials masked.
func (r *Registry) Info(name string) (SourceInfo, error) {
	s, err := r.Get(name)
	if err != nil {
		return SourceInfo{}, err
	}

	c := s.Config().Redacted()
	return SourceInfo{
		Name:        name,
		Type:        c.Type,
		Description: c.Description,
		Bucket:      c.Bucket,
		URL:         c.URL,
		BaseDir:     c.BaseDir,
		RootPath:    c.RootPath,
		Endpoint:    c.Endpoint,
		AccessKey:   c.AccessKey,
	}, nil
}

// Close closes every source driver.
func (r *Registry) Close() error {
	var result *multierror.Error
	for _, s := range r.sources {
		if err := s.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
