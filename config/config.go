package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Cache match modes
const (
	MatchExact     = "exact"
	MatchSubstring = "substring"
)

// Config holds all configuration for the application
type Config struct {
	Server ServerConfig
	Remote RemoteConfig
	Images ImagesConfig
	Export ExportConfig
	Cache  CacheConfig
	Log    LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RemoteConfig holds configuration of the remote POD query service
type RemoteConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	Timeout            time.Duration `mapstructure:"timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	ResultLimit        int           `mapstructure:"result_limit"`
	RateLimit          float64       `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	Burst              int           `mapstructure:"burst"`
	Concurrency        int           `mapstructure:"concurrency"` // per-product enrichment queries in flight, 0 = unlimited
}

// ImagesConfig holds configuration of the product picture host
type ImagesConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	Concurrency int           `mapstructure:"concurrency"` // 0 = probe everything at once
}

// ExportConfig holds configuration of the export writer
type ExportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// CacheConfig holds configuration of the export cache lookup
type CacheConfig struct {
	Match string `mapstructure:"match"` // "exact" or "substring"
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/podexport/")

	// PODEXPORT_IMAGES_BASE_URL -> images.base_url
	v.SetEnvPrefix("PODEXPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values. Every key needs a default
// so that AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("remote.base_url", "https://data.mingle.io")
	v.SetDefault("remote.timeout", "30s")
	v.SetDefault("remote.insecure_skip_verify", false)
	v.SetDefault("remote.result_limit", 100)
	v.SetDefault("remote.rate_limit", 0)
	v.SetDefault("remote.burst", 10)
	v.SetDefault("remote.concurrency", 0)

	v.SetDefault("images.base_url", "")
	v.SetDefault("images.idle_timeout", "2000ms")
	v.SetDefault("images.concurrency", 0)

	v.SetDefault("export.output_dir", "")

	v.SetDefault("cache.match", MatchExact)

	v.SetDefault("log.level", "info")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Images.BaseURL == "" {
		return fmt.Errorf("picture host is required (set PODEXPORT_IMAGES_BASE_URL)")
	}

	if config.Export.OutputDir == "" {
		return fmt.Errorf("output directory is required (set PODEXPORT_EXPORT_OUTPUT_DIR)")
	}

	if config.Remote.BaseURL == "" {
		return fmt.Errorf("remote base URL must not be empty")
	}

	if config.Remote.ResultLimit <= 0 {
		return fmt.Errorf("remote result limit must be positive, got: %d", config.Remote.ResultLimit)
	}

	if config.Remote.RateLimit < 0 {
		return fmt.Errorf("remote rate limit must not be negative, got: %v", config.Remote.RateLimit)
	}

	if config.Remote.Concurrency < 0 || config.Images.Concurrency < 0 {
		return fmt.Errorf("concurrency limits must not be negative")
	}

	if config.Cache.Match != MatchExact && config.Cache.Match != MatchSubstring {
		return fmt.Errorf("cache match must be 'exact' or 'substring', got: %s", config.Cache.Match)
	}

	return nil
}
