package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by the loader.
// Nested keys are separated by a double underscore, so
// MEDIASOURCE_SOURCES__MEDIA__BUCKET sets sources.media.bucket.
const EnvPrefix = "MEDIASOURCE_"

// LoadConfig loads configuration from multiple sources with strict priority:
// 1. Environment variables (highest priority)
// 2. Config file (mediasource.yaml, mediasource.yml or mediasource.json)
// 3. Defaults (lowest priority)
func LoadConfig() (AppConfig, error) {
	return LoadConfigFromFile("")
}

// LoadConfigFromFile loads configuration from multiple sources with a specific config file:
// 1. Environment variables (highest priority)
// 2. Specified config file or default config files
// 3. Defaults (lowest priority)
func LoadConfigFromFile(configFilePath string) (AppConfig, error) {
	k := koanf.New(".")

	// Load default configuration first
	defaultCfg := DefaultAppConfig()
	if err := k.Load(structs.Provider(defaultCfg, "koanf"), nil); err != nil {
		return AppConfig{}, fmt.Errorf("failed to load default config: %w", err)
	}

	// Load from config file
	if configFilePath != "" {
		if _, err := os.Stat(configFilePath); err != nil {
			return AppConfig{}, fmt.Errorf("specified config file %s not found: %w", configFilePath, err)
		}
		if err := k.Load(file.Provider(configFilePath), parserFor(configFilePath)); err != nil {
			return AppConfig{}, fmt.Errorf("failed to load config file %s: %w", configFilePath, err)
		}
	} else {
		configFiles := []string{"mediasource.yaml", "mediasource.yml", "mediasource.json"}
		for _, configFile := range configFiles {
			if _, err := os.Stat(configFile); err == nil {
				if err := k.Load(file.Provider(configFile), parserFor(configFile)); err != nil {
					return AppConfig{}, fmt.Errorf("failed to load config file %s: %w", configFile, err)
				}
				break
			}
		}
	}

	// Load environment variables with MEDIASOURCE_ prefix
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return AppConfig{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for name, src := range cfg.Sources {
		cfg.Sources[name] = src.WithDefaults()
	}

	if err := ValidateConfig(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func parserFor(path string) koanf.Parser {
	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return yaml.Parser()
	case strings.HasSuffix(path, ".json"):
		return json.Parser()
	}
	return yaml.Parser()
}

// ValidateConfig validates that required configuration fields are set
func ValidateConfig(cfg *AppConfig) error {
	if cfg.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}

	if len(cfg.Sources) == 0 {
		return fmt.Errorf("at least one entry under sources is required")
	}

	for name, src := range cfg.Sources {
		if err := validateSource(name, src); err != nil {
			return err
		}
	}

	switch cfg.Audit.Type {
	case "log":
	case "sqlite":
		if cfg.Audit.SQLitePath == "" {
			return fmt.Errorf("audit.sqlite_path is required for sqlite audit store")
		}
	case "postgres":
		if cfg.Audit.DSN == "" {
			return fmt.Errorf("audit.dsn is required for postgres audit store")
		}
	default:
		return fmt.Errorf("unsupported audit.type %q", cfg.Audit.Type)
	}

	switch cfg.DLM.Type {
	case "none", "local":
	case "redis":
		if cfg.DLM.RedisAddr == "" {
			return fmt.Errorf("dlm.redis_addr is required for redis lock manager")
		}
	default:
		return fmt.Errorf("unsupported dlm.type %q", cfg.DLM.Type)
	}

	if cfg.Transfer.Workers < 1 {
		return fmt.Errorf("transfer.workers must be at least 1")
	}
	if cfg.Transfer.MaxDepth < 1 {
		return fmt.Errorf("transfer.max_depth must be at least 1")
	}

	return nil
}

func validateSource(name string, src SourceConfig) error {
	switch src.Type {
	case SourceTypeS3, SourceTypeMinio:
		if src.Bucket == "" {
			return fmt.Errorf("sources.%s.bucket is required for %s sources", name, src.Type)
		}
		if src.Type == SourceTypeMinio && src.Endpoint == "" {
			return fmt.Errorf("sources.%s.endpoint is required for minio sources", name)
		}
	case SourceTypeLocalFS:
		if src.RootPath == "" {
			return fmt.Errorf("sources.%s.root_path is required for localfs sources", name)
		}
	case SourceTypeMemory:
	default:
		return fmt.Errorf("sources.%s.type %q is not supported", name, src.Type)
	}

	if src.UploadMaxSize < 0 {
		return fmt.Errorf("sources.%s.upload_max_size cannot be negative", name)
	}

	return nil
}
