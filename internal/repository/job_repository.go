package repository

import (
	"context"
	"sync"

	"github.com/zpx01/video-scraper/internal/domain"
)

// InMemoryJobRepository implements JobRepository using in-memory storage,
// adapted from the teacher's InMemoryJobRepository (same RWMutex-guarded
// map shape, generalized from the retry-queue Job model to ScrapeJob).
type InMemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[domain.JobID]*domain.ScrapeJob
	// order preserves insertion order for List's most-recent-first paging.
	order []domain.JobID
}

// NewInMemoryJobRepository creates a new in-memory job repository.
func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		jobs: make(map[domain.JobID]*domain.ScrapeJob),
	}
}

// Create inserts job, returning domain.ErrDuplicateJob if its ID is
// already present.
func (r *InMemoryJobRepository) Create(ctx context.Context, job *domain.ScrapeJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return domain.ErrDuplicateJob
	}
	r.jobs[job.ID] = job
	r.order = append(r.order, job.ID)
	return nil
}

// Update overwrites job's stored record.
func (r *InMemoryJobRepository) Update(ctx context.Context, job *domain.ScrapeJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; !ok {
		return domain.ErrJobNotFound
	}
	r.jobs[job.ID] = job
	return nil
}

// Get retrieves a job by ID.
func (r *InMemoryJobRepository) Get(ctx context.Context, id domain.JobID) (*domain.ScrapeJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

// List returns jobs most-recently-created first, applying limit/offset.
func (r *InMemoryJobRepository) List(ctx context.Context, limit, offset int) ([]*domain.ScrapeJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.ScrapeJob, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		if job, ok := r.jobs[r.order[i]]; ok {
			result = append(result, job)
		}
	}

	if offset >= len(result) {
		return []*domain.ScrapeJob{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

// Stats aggregates status counts across every stored job.
func (r *InMemoryJobRepository) Stats(ctx context.Context) (domain.PipelineStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats domain.PipelineStats
	for _, job := range r.jobs {
		stats.TotalJobs++
		stats.BytesDownloaded += job.BytesDownloaded
		switch job.Status {
		case domain.JobStatusPending:
			stats.PendingJobs++
		case domain.JobStatusExtracting, domain.JobStatusDownloading, domain.JobStatusUploading:
			stats.ActiveJobs++
		case domain.JobStatusCompleted:
			stats.CompletedJobs++
		case domain.JobStatusFailed:
			stats.FailedJobs++
		case domain.JobStatusCancelled:
			stats.CancelledJobs++
		}
	}
	return stats, nil
}

// Clear removes all jobs (useful for testing).
func (r *InMemoryJobRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = make(map[domain.JobID]*domain.ScrapeJob)
	r.order = nil
}
