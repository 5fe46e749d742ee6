// Package worker reconciles the durable job repository against the
// in-memory Pipeline after a restart: any job the repository still shows as
// pending (submitted but never picked up, e.g. the process crashed mid-run)
// is re-admitted to the Pipeline. Adapted from the teacher's poll-loop
// worker.Pool, generalized from a dequeue-and-process loop to a
// reconciliation loop since the Pipeline itself now owns job execution.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/zpx01/video-scraper/internal/domain"
	"github.com/zpx01/video-scraper/internal/pipeline"
	"github.com/zpx01/video-scraper/internal/repository"
)

// ErrShutdownTimeout is returned when the reconciler doesn't stop within
// timeout.
var ErrShutdownTimeout = errors.New("worker pool shutdown timed out")

// Pool periodically reconciles repository.JobRepository against a running
// Pipeline.
type Pool struct {
	pollInterval time.Duration
	jobRepo      repository.JobRepository
	pipeline     *pipeline.Pipeline
	logger       *slog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Config holds reconciler configuration.
type Config struct {
	PollInterval time.Duration
}

// NewPool creates a new reconciliation pool.
func NewPool(cfg Config, jobRepo repository.JobRepository, p *pipeline.Pipeline, logger *slog.Logger) *Pool {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		pollInterval: cfg.PollInterval,
		jobRepo:      jobRepo,
		pipeline:     p,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches the reconciliation loop.
func (p *Pool) Start() {
	p.logger.Info("starting job reconciler", "poll_interval", p.pollInterval)
	p.wg.Add(1)
	go p.loop()
}

// Stop gracefully stops the reconciler.
func (p *Pool) Stop(timeout time.Duration) error {
	p.logger.Info("stopping job reconciler")
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("job reconciler stopped gracefully")
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

func (p *Pool) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.reconcile()
		}
	}
}

// reconcile re-admits any repository job still marked Pending into the
// Pipeline. This only matters across process restarts: within a single
// process lifetime the Pipeline's own worker pool drains its channel
// immediately, so a job never sits idle long enough to need recovery.
func (p *Pool) reconcile() {
	jobs, err := p.jobRepo.List(p.ctx, 100, 0)
	if err != nil {
		p.logger.Error("reconciler: failed to list jobs", "error", err)
		return
	}

	for _, job := range jobs {
		if job.Status != domain.JobStatusPending {
			continue
		}
		if _, ok := p.pipeline.GetJob(job.ID); ok {
			continue
		}
		p.logger.Info("reconciler: re-admitting orphaned pending job", "job_id", job.ID, "source_url", job.SourceURL)
		if _, err := p.pipeline.AddURL(p.ctx, job.SourceURL); err != nil {
			p.logger.Warn("reconciler: failed to re-admit job", "job_id", job.ID, "error", err)
		}
	}
}
