// Package bootstrap provides dependency initialization for the audio card
// server and command line tool.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/audiocards/internal/codec"
	"github.com/maauso/audiocards/internal/config"
	"github.com/maauso/audiocards/internal/ffmpeg"
	"github.com/maauso/audiocards/internal/job"
	"github.com/maauso/audiocards/internal/loudness"
	"github.com/maauso/audiocards/internal/metrics"
	"github.com/maauso/audiocards/internal/pipeline"
	"github.com/maauso/audiocards/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	JobService *job.Service
	Metrics    *metrics.Metrics
	Storage    storage.Storage
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	processor := NewProcessor(cfg.FFmpegPath, cfg.TempDir, logger)
	m := metrics.NewMetrics()

	svc := job.NewService(
		job.NewMemoryRepository(),
		processor,
		store,
		job.WithMetrics(m),
		job.WithServiceLogger(logger),
		job.WithDefaultSuffix(cfg.DefaultSuffix),
	)

	return &Dependencies{
		JobService: svc,
		Metrics:    m,
		Storage:    store,
	}, nil
}

// NewProcessor wires the ffmpeg codec and loudness normalizer into a pipeline.
// Intermediate files are written below tempDir.
func NewProcessor(ffmpegPath, tempDir string, logger *slog.Logger) *pipeline.Processor {
	runner := ffmpeg.NewRunner(ffmpegPath)
	logger.Debug("ffmpeg configured", slog.String("path", runner.Path()))

	return pipeline.New(
		codec.NewFFmpegCodec(runner, tempDir),
		loudness.NewFFmpegNormalizer(runner, tempDir),
		pipeline.WithLogger(logger),
	)
}

// DefaultTarget returns the loudness target configured in cfg.
func DefaultTarget(cfg *config.Config) (loudness.Target, error) {
	t := loudness.Target{
		IntegratedLUFS: cfg.DefaultTargetLUFS,
		TruePeakDBTP:   cfg.DefaultPeakDBTP,
	}
	if err := t.Validate(); err != nil {
		return loudness.Target{}, fmt.Errorf("default target: %w", err)
	}
	return t, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("endpoint", cfg.S3Endpoint),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", localStore.TempDir()),
	)
	return localStore, nil
}
