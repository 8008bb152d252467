// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/audiocards/internal/transcript"
)

// Static errors for configuration validation.
var (
	// ErrInvalidPort is returned when PORT is outside 1-65535.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrInvalidMaxBody is returned when MAX_BODY_MB is not positive.
	ErrInvalidMaxBody = errors.New("config: MAX_BODY_MB must be positive")
	// ErrS3RegionRequired is returned when S3_BUCKET is set without S3_REGION.
	ErrS3RegionRequired = errors.New("config: S3_REGION is required when S3_BUCKET is set")
	// ErrInvalidRetention is returned for a negative ARTIFACT_TTL, or a
	// CLEANUP_INTERVAL that is not positive while retention is on.
	ErrInvalidRetention = errors.New("config: ARTIFACT_TTL must not be negative and CLEANUP_INTERVAL must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port      int `env:"PORT, default=8080" json:"port"`
	MaxBodyMB int `env:"MAX_BODY_MB, default=200" json:"max_body_mb"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/audiocards" json:"temp_dir"`

	// Retention of finished jobs and their artifacts; a zero TTL keeps them forever
	ArtifactTTL     time.Duration `env:"ARTIFACT_TTL, default=24h" json:"artifact_ttl"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL, default=10m" json:"cleanup_interval"`

	// Tool settings
	FFmpegPath string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`

	// Processing defaults, used when a request leaves them out
	DefaultTargetLUFS float64 `env:"DEFAULT_TARGET_LUFS, default=-18" json:"default_target_lufs"`
	DefaultPeakDBTP   float64 `env:"DEFAULT_PEAK_DBTP, default=-3" json:"default_peak_dbtp"`
	DefaultSuffix     string  `env:"DEFAULT_SUFFIX, default=Theme-Part-User" json:"default_suffix"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// MaxBodyBytes returns the request body limit in bytes.
func (c *Config) MaxBodyBytes() int64 {
	return int64(c.MaxBodyMB) << 20
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	return LoadFrom(context.Background(), envconfig.OsLookuper())
}

// LoadFrom reads configuration from lookuper, which lets tests supply a map
// instead of the process environment.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and the consistency of the S3 settings.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.MaxBodyMB <= 0 {
		return ErrInvalidMaxBody
	}
	if c.ArtifactTTL < 0 || (c.ArtifactTTL > 0 && c.CleanupInterval <= 0) {
		return ErrInvalidRetention
	}
	if err := transcript.CheckSuffix(c.DefaultSuffix); err != nil {
		return fmt.Errorf("config: DEFAULT_SUFFIX: %w", err)
	}
	if c.S3Bucket != "" && c.S3Region == "" {
		return ErrS3RegionRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo is NewLogger writing to w.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, MaxBodyMB: %d, TempDir: %s, ArtifactTTL: %s, CleanupInterval: %s, FFmpegPath: %s, DefaultTargetLUFS: %g, DefaultPeakDBTP: %g, DefaultSuffix: %s, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, AWSAccessKeyID: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.MaxBodyMB,
		c.TempDir,
		c.ArtifactTTL,
		c.CleanupInterval,
		c.FFmpegPath,
		c.DefaultTargetLUFS,
		c.DefaultPeakDBTP,
		c.DefaultSuffix,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		mask(c.AWSAccessKeyID),
		c.LogFormat,
		c.LogLevel,
	)
}

// mask hides a secret, keeping only whether it is set.
func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
