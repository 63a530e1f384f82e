// Package config provides configuration management for smoothstreamd using Viper.
// Values come from defaults, an optional YAML file and SMOOTHSTREAMD_ environment variables.
package config

import (
	"errors"
	"fmt"
	"github.com/spf13/viper"
	"net"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SMOOTHSTREAMD"

// Default configuration values.
const (
	defaultHost            = "127.0.0.1"
	defaultMaxQueued       = 100
	defaultShutdownTimeout = 10 * time.Second
	defaultRemoteTimeout   = 20 * time.Second
	defaultEpisodesPath    = "./videos/episodes"
	defaultVideoListPath   = "./data/videoList_original.rmdj"
	defaultPatchedListPath = "./data/videoList.rmdj"
	defaultLogMaxSizeMB    = 10
	defaultLogMaxBackups   = 5
	defaultLogMaxAgeDays   = 30
	defaultServiceName     = "smoothstreamd"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Paths     PathsConfig     `mapstructure:"paths" yaml:"paths"`
	Catalog   CatalogConfig   `mapstructure:"catalog" yaml:"catalog"`
	Remote    RemoteConfig    `mapstructure:"remote" yaml:"remote"`
	Subtitles SubtitlesConfig `mapstructure:"subtitles" yaml:"subtitles"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	// Port 0 asks the OS for a free port.
	Port int `mapstructure:"port" yaml:"port"`
	// MaxThreads bounds how many requests are handled at once.
	MaxThreads int `mapstructure:"max_threads" yaml:"max_threads"`
	// MaxQueued bounds how many requests may wait for a free worker.
	MaxQueued int `mapstructure:"max_queued" yaml:"max_queued"`
	// OfflineMode answers 406 instead of proxying when no local copy exists.
	OfflineMode bool `mapstructure:"offline_mode" yaml:"offline_mode"`
	// RateLimit is a requests-per-second ceiling. Zero disables it.
	RateLimit       float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	Metrics         bool          `mapstructure:"metrics" yaml:"metrics"`
}

// PathsConfig locates the on-disk inputs.
type PathsConfig struct {
	Episodes         string `mapstructure:"episodes" yaml:"episodes"`
	VideoList        string `mapstructure:"video_list" yaml:"video_list"`
	PatchedVideoList string `mapstructure:"patched_video_list" yaml:"patched_video_list"`
}

// CatalogConfig controls catalog patching on startup.
type CatalogConfig struct {
	Patch bool `mapstructure:"patch" yaml:"patch"`
}

// RemoteConfig configures the origin client.
type RemoteConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SubtitlesConfig holds the global subtitle rewrite toggles.
type SubtitlesConfig struct {
	ClosedCaptioning bool `mapstructure:"closed_captioning" yaml:"closed_captioning"`
	MusicNotes       bool `mapstructure:"music_notes" yaml:"music_notes"`
	EpisodeTitles    bool `mapstructure:"episode_titles" yaml:"episode_titles"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Example: SMOOTHSTREAMD_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	return LoadWith(viper.New(), configPath)
}

// LoadWith is Load over a caller-provided Viper instance, so CLI flags bound to v take part.
func LoadWith(v *viper.Viper, configPath string) (*Config, error) {
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("smoothstreamd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file is fine; defaults and env vars still apply.
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", defaultHost)
	v.SetDefault("server.port", 0)
	v.SetDefault("server.max_threads", DefaultMaxThreads())
	v.SetDefault("server.max_queued", defaultMaxQueued)
	v.SetDefault("server.offline_mode", false)
	v.SetDefault("server.rate_limit", 0.0)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.metrics", true)

	v.SetDefault("paths.episodes", defaultEpisodesPath)
	v.SetDefault("paths.video_list", defaultVideoListPath)
	v.SetDefault("paths.patched_video_list", defaultPatchedListPath)

	v.SetDefault("catalog.patch", true)

	v.SetDefault("remote.timeout", defaultRemoteTimeout)

	v.SetDefault("subtitles.closed_captioning", false)
	v.SetDefault("subtitles.music_notes", true)
	v.SetDefault("subtitles.episode_titles", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", defaultLogMaxSizeMB)
	v.SetDefault("logging.max_backups", defaultLogMaxBackups)
	v.SetDefault("logging.max_age_days", defaultLogMaxAgeDays)
	v.SetDefault("logging.compress", true)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.service_name", defaultServiceName)
}

// DefaultMaxThreads is the worker pool size used when none is configured.
func DefaultMaxThreads() int {
	return max(runtime.NumCPU(), 2)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 0 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 0 and %d", maxPort)
	}
	if c.Server.MaxThreads < 1 {
		return fmt.Errorf("server.max_threads must be at least 1")
	}
	if c.Server.MaxQueued < 0 {
		return fmt.Errorf("server.max_queued must not be negative")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative")
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("remote.timeout must be positive")
	}
	if c.Paths.Episodes == "" {
		return fmt.Errorf("paths.episodes is required")
	}
	if c.Paths.VideoList == "" {
		return fmt.Errorf("paths.video_list is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return fmt.Errorf("telemetry.service_name is required when telemetry is enabled")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
