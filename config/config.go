// Package config provides configuration management for mediasource.
// It handles loading and validating configuration from YAML/JSON files and
// environment variables.
package config

import (
	"strings"
	"time"
)

// Source driver types
const (
	SourceTypeS3      = "s3"
	SourceTypeMinio   = "minio"
	SourceTypeLocalFS = "localfs"
	SourceTypeMemory  = "memory"
)

// AppConfig represents the complete application configuration
type AppConfig struct {
	Server   ServerConfig            `koanf:"server"`
	Auth     AuthConfig              `koanf:"auth"`
	Log      LogConfig               `koanf:"log"`
	Metrics  MetricsConfig           `koanf:"metrics"`
	Sources  map[string]SourceConfig `koanf:"sources"`
	Transfer TransferConfig          `koanf:"transfer"`
	Audit    AuditConfig             `koanf:"audit"`
	DLM      DLMConfig               `koanf:"dlm"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	ListenAddr        string        `koanf:"listen_addr"`
	CertFile          string        `koanf:"cert_file"`
	KeyFile           string        `koanf:"key_file"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	TransferRateLimit float64       `koanf:"transfer_rate_limit"` // transfer requests per second
	TransferBurst     int           `koanf:"transfer_burst"`
}

// AuthConfig holds API key configuration. Keys in APIKeys may perform every
// action; keys in ReadOnlyKeys may only list and view.
type AuthConfig struct {
	APIKeys      []string `koanf:"api_keys"`
	ReadOnlyKeys []string `koanf:"read_only_keys"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig holds metrics server configuration. When ListenAddr is
// empty metrics are only served on the API router.
type MetricsConfig struct {
	ListenAddr string `koanf:"listen_addr"`
}

// TransferConfig tunes the tree transfer engine and listing probes
type TransferConfig struct {
	Workers        int           `koanf:"workers"`
	MaxDepth       int           `koanf:"max_depth"`
	ProbeWorkers   int           `koanf:"probe_workers"`
	ProbeCacheTTL  time.Duration `koanf:"probe_cache_ttl"`
	ProbeCacheSize int           `koanf:"probe_cache_size"`
}

// AuditConfig selects where audit entries and redirect rules are written
type AuditConfig struct {
	Type       string `koanf:"type"` // "log", "sqlite" or "postgres"
	SQLitePath string `koanf:"sqlite_path"`
	DSN        string `koanf:"dsn"`
}

// DLMConfig holds lock manager configuration for transfer destinations
type DLMConfig struct {
	Type          string        `koanf:"type"` // "none", "local" or "redis"
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	LockTTL       time.Duration `koanf:"lock_ttl"`
}

// SourceConfig configures one media source: a driver bound to a bucket (or
// local root) plus the presentation options of its listings.
type SourceConfig struct {
	Type        string `koanf:"type"`
	Description string `koanf:"description"`

	// Driver settings
	Endpoint             string `koanf:"endpoint"`
	Region               string `koanf:"region"`
	AccessKey            string `koanf:"access_key"`
	SecretKey            string `koanf:"secret_key"`
	UseSSL               bool   `koanf:"use_ssl"`
	Bucket               string `koanf:"bucket"`
	ServerSideEncryption string `koanf:"server_side_encryption"`
	RootPath             string `koanf:"root_path"`

	// Key layout
	BaseDir string `koanf:"base_dir"`
	URL     string `koanf:"url"`
	ACL     string `koanf:"acl"`

	// Listing presentation
	AllowedFileTypes []string `koanf:"allowed_file_types"`
	ImageExtensions  []string `koanf:"image_extensions"`
	SkipFiles        []string `koanf:"skip_files"`
	HideTooltips     bool     `koanf:"hide_tooltips"`
	ProbeBinary      *bool    `koanf:"probe_binary"`
	DateFormat       string   `koanf:"date_format"`
	TimeFormat       string   `koanf:"time_format"`

	// Thumbnails
	ThumbnailType    string `koanf:"thumbnail_type"`
	ThumbnailQuality int    `koanf:"thumbnail_quality"`
	ThumbnailURL     string `koanf:"thumbnail_url"`
	NoPreviewURL     string `koanf:"no_preview_url"`
	ThumbWidth       int    `koanf:"thumb_width"`
	ThumbHeight      int    `koanf:"thumb_height"`
	ImageWidth       int    `koanf:"image_width"`
	ImageHeight      int    `koanf:"image_height"`

	// Capabilities
	AllowFolderCopy *bool `koanf:"allow_folder_copy"`

	// Uploads
	UploadMaxSize   int64    `koanf:"upload_max_size"`
	UploadFileTypes []string `koanf:"upload_file_types"`
}

// FolderCopyAllowed reports whether folder rename, copy and move are enabled.
func (c SourceConfig) FolderCopyAllowed() bool {
	return c.AllowFolderCopy == nil || *c.AllowFolderCopy
}

// BinaryProbeEnabled reports whether listings sample files to decide
// whether they are editable.
func (c SourceConfig) BinaryProbeEnabled() bool {
	return c.ProbeBinary == nil || *c.ProbeBinary
}

// IsImage reports whether ext is one of the configured image extensions.
func (c SourceConfig) IsImage(ext string) bool {
	return containsFold(c.ImageExtensions, ext)
}

// Skips reports whether a basename is hidden from thumbnail listings.
func (c SourceConfig) Skips(name string) bool {
	if name == "." || name == ".." {
		return true
	}
	for _, s := range c.SkipFiles {
		if s == name {
			return true
		}
	}
	return false
}

// AllowsFileType reports whether ext passes the allowed file type filter.
func (c SourceConfig) AllowsFileType(ext string) bool {
	return len(c.AllowedFileTypes) == 0 || containsFold(c.AllowedFileTypes, ext)
}

// AllowsUpload reports whether an upload with this extension is accepted.
func (c SourceConfig) AllowsUpload(ext string) bool {
	if ext == "" {
		return false
	}
	return len(c.UploadFileTypes) == 0 || containsFold(c.UploadFileTypes, ext)
}

// Redacted returns a copy safe for display.
func (c SourceConfig) Redacted() SourceConfig {
	c.AccessKey = mask(c.AccessKey)
	c.SecretKey = mask(c.SecretKey)
	return c
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), v) {
			return true
		}
	}
	return false
}

// mask hides all but the first characters of a secret
func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) > 8 {
		return secret[:4] + "****"
	}
	return "****"
}

// MaskDSN masks the credentials of a database DSN for display
func MaskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	if len(dsn) > 20 {
		return dsn[:10] + "***" + dsn[len(dsn)-7:]
	}
	return "***"
}
