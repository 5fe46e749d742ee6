// Package repository provides optional durable persistence for ScrapeJob
// history, independent of the Pipeline's own in-memory bookkeeping (§13 —
// the original implementation keeps jobs in-process only; a durable job
// history is a supplemented feature for operators restarting the service).
package repository

import (
	"context"

	"github.com/zpx01/video-scraper/internal/domain"
)

// JobRepository persists ScrapeJob records for querying across restarts.
type JobRepository interface {
	// Create inserts a new job record.
	Create(ctx context.Context, job *domain.ScrapeJob) error

	// Update overwrites an existing job record by ID.
	Update(ctx context.Context, job *domain.ScrapeJob) error

	// Get retrieves a job by ID.
	Get(ctx context.Context, id domain.JobID) (*domain.ScrapeJob, error)

	// List returns jobs ordered by creation time, most recent first.
	List(ctx context.Context, limit, offset int) ([]*domain.ScrapeJob, error)

	// Stats aggregates status counts across every stored job.
	Stats(ctx context.Context) (domain.PipelineStats, error)
}
