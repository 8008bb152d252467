// Package main provides the entry point for the audio card API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maauso/audiocards/internal/bootstrap"
	"github.com/maauso/audiocards/internal/config"
	"github.com/maauso/audiocards/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting audiocards API",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("temp_dir", cfg.TempDir),
		slog.String("ffmpeg_path", cfg.FFmpegPath),
		slog.Int("max_body_mb", cfg.MaxBodyMB),
		slog.Duration("artifact_ttl", cfg.ArtifactTTL),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)

	target, err := bootstrap.DefaultTarget(cfg)
	if err != nil {
		return err
	}

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(context.Background(), cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	// Prune finished jobs and their artifacts in the background
	retentionCtx, stopRetention := context.WithCancel(context.Background())
	defer stopRetention()
	if cfg.ArtifactTTL > 0 {
		go deps.JobService.RunRetention(retentionCtx, cfg.CleanupInterval, cfg.ArtifactTTL)
	}

	// Initialize HTTP handlers and router
	handlers := server.NewHandlers(deps.JobService, logger, server.WithDefaultTarget(target))
	routerCfg := server.DefaultConfig()
	routerCfg.MaxBodyBytes = cfg.MaxBodyBytes()
	routerCfg.Metrics = deps.Metrics
	router := server.NewRouter(handlers, logger, routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second, // Large base64 uploads
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopRetention()
	logger.Info("shutting down server...")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	// Stop running jobs so their ffmpeg processes exit
	if err := deps.JobService.Shutdown(ctx); err != nil {
		logger.Warn("jobs still running at exit", slog.String("error", err.Error()))
	}

	logger.Info("server stopped gracefully")
	return nil
}
