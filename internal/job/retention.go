package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Prune removes jobs that finished more than ttl ago, together with their
// temporary artifacts, and returns how many were removed. Queued and running
// jobs are never pruned. A job whose artifact cannot be removed stays in the
// repository so a later sweep retries it.
func (s *Service) Prune(ctx context.Context, ttl time.Duration) (int, error) {
	jobs, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-ttl)
	removed := 0
	var errs []error
	for _, j := range jobs {
		if !j.IsTerminal() || j.CompletedAt.After(cutoff) {
			continue
		}
		if j.Output.Path != "" {
			if err := s.storage.CleanupTemp(ctx, []string{j.Output.Path}); err != nil {
				errs = append(errs, fmt.Errorf("job %s: %w", j.ID, err))
				continue
			}
		}
		if err := s.repo.Delete(ctx, j.ID); err != nil && !errors.Is(err, ErrJobNotFound) {
			errs = append(errs, fmt.Errorf("job %s: %w", j.ID, err))
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("pruned finished jobs",
			slog.Int("count", removed),
			slog.Duration("ttl", ttl),
		)
	}
	return removed, errors.Join(errs...)
}

// RunRetention calls Prune every interval until ctx is done.
func (s *Service) RunRetention(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("job retention started",
		slog.Duration("ttl", ttl),
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Prune(ctx, ttl); err != nil {
				s.logger.Warn("failed to prune jobs", slog.String("error", err.Error()))
			}
		}
	}
}
