// Package config provides configuration loading and validation for hlsthumbd.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all service-level configuration for hlsthumbd.
type Config struct {
	Logging LoggingConfig  `mapstructure:"logging"`
	FFmpeg  FFmpegConfig   `mapstructure:"ffmpeg"`
	Streams []StreamConfig `mapstructure:"streams"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// FFmpegConfig holds the frame extractor's ffmpeg binary configuration.
type FFmpegConfig struct {
	BinaryPath     string   `mapstructure:"binary_path"` // empty = auto-detect
	Timeout        Duration `mapstructure:"timeout"`     // per-extraction bound (ffmpegTimeout)
	UsePlaceholder bool     `mapstructure:"use_placeholder"`
}

// StreamConfig is the on-disk/env representation of one generator's
// configuration surface, as enumerated in the core's external interface.
// It is translated into generator.Options at startup; it deliberately
// mirrors that surface field-for-field rather than adding service-level
// concepts to it.
type StreamConfig struct {
	PlaylistURL string `mapstructure:"playlist_url"`

	OutputDir string `mapstructure:"output_dir"`
	TempDir   string `mapstructure:"temp_dir"`

	// Interval and TargetThumbnailCount are mutually exclusive; nil means unset.
	Interval              *float64 `mapstructure:"interval"`
	TargetThumbnailCount  *int     `mapstructure:"target_thumbnail_count"`
	InitialThumbnailCount *int     `mapstructure:"initial_thumbnail_count"`

	Width  *int `mapstructure:"width"`
	Height *int `mapstructure:"height"`

	ExpireTime  Duration `mapstructure:"expire_time"`
	NeverDelete bool     `mapstructure:"never_delete"`

	IgnorePlaylist404  bool `mapstructure:"ignore_playlist404"`
	PlaylistRetryCount int  `mapstructure:"playlist_retry_count"` // -1 = unlimited

	OutputNamePrefix string `mapstructure:"output_name_prefix"`
	ManifestFileName string `mapstructure:"manifest_file_name"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and are
// prefixed with HLSTHUMB_, using underscores for nesting, e.g.
// HLSTHUMB_LOGGING_LEVEL=debug.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("hlsthumbd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/hlsthumbd")
		v.AddConfigPath("$HOME/.hlsthumbd")
	}

	v.SetEnvPrefix("HLSTHUMB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
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
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", "")

	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.timeout", "30s")
	v.SetDefault("ffmpeg.use_placeholder", false)
}

// Validate checks the service-level configuration for errors. Per-stream
// validation (ConfigurationError per the core's error taxonomy) happens
// when a StreamConfig is translated into generator.Options, not here.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}
	for i, s := range c.Streams {
		if s.PlaylistURL == "" {
			return fmt.Errorf("streams[%d].playlist_url is required", i)
		}
	}
	return nil
}
