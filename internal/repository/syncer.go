package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/zpx01/video-scraper/internal/domain"
)

// pipelineJobs is the subset of *pipeline.Pipeline the Syncer needs. Defined
// here rather than importing the pipeline package directly to keep
// repository dependency-free of pipeline internals.
type pipelineJobs interface {
	Jobs() []*domain.ScrapeJob
}

// Syncer periodically mirrors a Pipeline's in-memory job list into a
// JobRepository so job history survives process restarts (§13). The
// Pipeline itself stays the single source of truth while it is running;
// the Syncer only ever writes what the Pipeline already reports.
type Syncer struct {
	pipeline pipelineJobs
	repo     JobRepository
	interval time.Duration
	logger   *slog.Logger
}

// NewSyncer creates a Syncer that mirrors p's jobs into repo every interval.
func NewSyncer(p pipelineJobs, repo JobRepository, interval time.Duration, logger *slog.Logger) *Syncer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Syncer{pipeline: p, repo: repo, interval: interval, logger: logger}
}

// Run blocks, syncing on each tick until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.syncOnce(context.Background())
			return
		case <-ticker.C:
			s.syncOnce(ctx)
		}
	}
}

func (s *Syncer) syncOnce(ctx context.Context) {
	for _, job := range s.pipeline.Jobs() {
		err := s.repo.Update(ctx, job)
		if errors.Is(err, domain.ErrJobNotFound) {
			err = s.repo.Create(ctx, job)
		}
		if err != nil {
			s.logger.Warn("syncer: failed to persist job", "job_id", job.ID, "error", err)
		}
	}
}
