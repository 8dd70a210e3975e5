package config

import "time"

// DefaultAppConfig returns an AppConfig struct with sensible default values
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			ListenAddr:        ":8080",
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      5 * time.Minute,
			RequestTimeout:    5 * time.Minute,
			TransferRateLimit: 1,
			TransferBurst:     2,
		},
		Auth: AuthConfig{
			APIKeys: []string{},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			ListenAddr: "",
		},
		Sources: map[string]SourceConfig{},
		Transfer: TransferConfig{
			Workers:        4,
			MaxDepth:       100,
			ProbeWorkers:   8,
			ProbeCacheTTL:  5 * time.Minute,
			ProbeCacheSize: 10000,
		},
		Audit: AuditConfig{
			Type:       "log",
			SQLitePath: "./mediasource.sqlite3",
		},
		DLM: DLMConfig{
			Type:      "local",
			RedisAddr: "localhost:6379",
			LockTTL:   30 * time.Minute,
		},
	}
}

// DefaultSourceConfig holds the per-source defaults applied by WithDefaults
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		Region:           "us-east-1",
		ACL:              "public-read",
		URL:              "http://mysite.s3.amazonaws.com/",
		ImageExtensions:  []string{"jpg", "jpeg", "png", "gif"},
		SkipFiles:        []string{".svn", ".git", "_notes", "nbproject", ".idea", ".DS_Store"},
		DateFormat:       "2006-01-02",
		TimeFormat:       "15:04:05",
		ThumbnailType:    "png",
		ThumbnailQuality: 90,
		NoPreviewURL:     "/assets/images/nopreview.jpg",
		ThumbWidth:       100,
		ThumbHeight:      80,
		ImageWidth:       400,
		ImageHeight:      300,
		UploadMaxSize:    1 << 20,
	}
}

// WithDefaults fills every unset field of c from DefaultSourceConfig
func (c SourceConfig) WithDefaults() SourceConfig {
	d := DefaultSourceConfig()

	if c.Region == "" {
		c.Region = d.Region
	}
	if c.ACL == "" {
		c.ACL = d.ACL
	}
	if c.URL == "" {
		c.URL = d.URL
	}
	if c.ImageExtensions == nil {
		c.ImageExtensions = d.ImageExtensions
	}
	if c.SkipFiles == nil {
		c.SkipFiles = d.SkipFiles
	}
	if c.DateFormat == "" {
		c.DateFormat = d.DateFormat
	}
	if c.TimeFormat == "" {
		c.TimeFormat = d.TimeFormat
	}
	if c.ThumbnailType == "" {
		c.ThumbnailType = d.ThumbnailType
	}
	if c.ThumbnailQuality == 0 {
		c.ThumbnailQuality = d.ThumbnailQuality
	}
	if c.NoPreviewURL == "" {
		c.NoPreviewURL = d.NoPreviewURL
	}
	if c.ThumbWidth == 0 {
		c.ThumbWidth = d.ThumbWidth
	}
	if c.ThumbHeight == 0 {
		c.ThumbHeight = d.ThumbHeight
	}
	if c.ImageWidth == 0 {
		c.ImageWidth = d.ImageWidth
	}
	if c.ImageHeight == 0 {
		c.ImageHeight = d.ImageHeight
	}
	if c.UploadMaxSize == 0 {
		c.UploadMaxSize = d.UploadMaxSize
	}

	return c
}
