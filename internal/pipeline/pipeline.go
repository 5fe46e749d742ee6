// Package pipeline orchestrates the Fetcher, Extractor, and Downloader
// through a bounded-concurrency extract→filter→download→upload workflow
// (§4.4).
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/zpx01/video-scraper/internal/domain"
)

// workChannelCapacity bounds the pipeline's job-admission channel (§4.4,
// §5). A full channel blocks the producer.
const workChannelCapacity = 10000

// videoExtractor is the subset of *extractor.Extractor the pipeline needs.
type videoExtractor interface {
	ExtractFromHTML(body []byte, baseURL string) ([]domain.VideoInfo, error)
}

// pageFetcher is the subset of *fetcher.Fetcher the pipeline needs for the
// extraction stage.
type pageFetcher interface {
	Get(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error)
}

// downloaderBackend is the subset of *downloader.Downloader the pipeline
// needs.
type downloaderBackend interface {
	Download(ctx context.Context, sourceURL, outputPath string) (domain.DownloadResult, error)
}

// AddURLResult reports the per-URL outcome of AddURLs (§4.4).
type AddURLResult struct {
	URL string
	Job *domain.ScrapeJob
	Err error
}

// Pipeline accepts source URLs, dedupes them, and stages them through
// extract→filter→download→upload under a concurrency cap, aggregating stats
// (§4.4).
type Pipeline struct {
	cfg        domain.ScraperConfig
	storageCfg domain.StorageConfig
	fetcher    pageFetcher
	extractor  videoExtractor
	downloader downloaderBackend
	storage    domain.StorageBackend
	logger     *slog.Logger

	seenMu sync.RWMutex
	seen   map[string]struct{}

	jobsMu sync.RWMutex
	jobs   []*domain.ScrapeJob
	byID   map[domain.JobID]*domain.ScrapeJob

	statsMu sync.RWMutex
	stats   domain.PipelineStats

	workCh    chan *domain.ScrapeJob
	closeOnce sync.Once
	running   atomic.Bool
}

// New builds a Pipeline. The concurrency Run is given and the Downloader's
// own semaphore (sized from cfg.MaxConcurrentDownloads) can disagree; when
// they do, the Downloader's semaphore wins, since it is the authoritative
// cap regardless of how wide the pipeline's worker pool is configured
// (§5, §9).
func New(
	cfg domain.ScraperConfig,
	storageCfg domain.StorageConfig,
	f pageFetcher,
	ex videoExtractor,
	dl downloaderBackend,
	store domain.StorageBackend,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:        cfg,
		storageCfg: storageCfg,
		fetcher:    f,
		extractor:  ex,
		downloader: dl,
		storage:    store,
		logger:     logger,
		seen:       make(map[string]struct{}),
		byID:       make(map[domain.JobID]*domain.ScrapeJob),
		workCh:     make(chan *domain.ScrapeJob, workChannelCapacity),
	}
}

// AddURL admits a new job for url (§4.4 step-by-step):
//  1. reject duplicates under a read lock on the seen set
//  2. construct a fresh ScrapeJob
//  3. insert into the seen set and jobs list under write locks
//  4. bump total_jobs/pending_jobs
//  5. enqueue onto the bounded work channel, blocking the caller if full
func (p *Pipeline) AddURL(ctx context.Context, rawURL string) (*domain.ScrapeJob, error) {
	return p.AddURLWithFilter(ctx, rawURL, nil)
}

// AddURLWithFilter is AddURL with a per-job VideoFilter override (§6). A nil
// filter falls back to whatever filter Run was started with.
func (p *Pipeline) AddURLWithFilter(ctx context.Context, rawURL string, filter *domain.VideoFilter) (*domain.ScrapeJob, error) {
	p.seenMu.RLock()
	_, exists := p.seen[rawURL]
	p.seenMu.RUnlock()
	if exists {
		return nil, domain.NewScraperError(domain.KindDuplicate, "AddURL", domain.ErrDuplicateJob)
	}

	job := domain.NewScrapeJob(rawURL)
	job.Filter = filter

	p.seenMu.Lock()
	if _, exists := p.seen[rawURL]; exists {
		p.seenMu.Unlock()
		return nil, domain.NewScraperError(domain.KindDuplicate, "AddURL", domain.ErrDuplicateJob)
	}
	p.seen[rawURL] = struct{}{}
	p.seenMu.Unlock()

	p.jobsMu.Lock()
	p.jobs = append(p.jobs, job)
	p.byID[job.ID] = job
	p.jobsMu.Unlock()

	p.statsMu.Lock()
	p.stats.TotalJobs++
	p.stats.PendingJobs++
	p.statsMu.Unlock()

	select {
	case p.workCh <- job:
	case <-ctx.Done():
		return job, ctx.Err()
	}
	return job, nil
}

// AddURLs calls AddURL per entry, reporting partial success (§4.4).
func (p *Pipeline) AddURLs(ctx context.Context, urls []string) []AddURLResult {
	results := make([]AddURLResult, len(urls))
	for i, u := range urls {
		job, err := p.AddURL(ctx, u)
		results[i] = AddURLResult{URL: u, Job: job, Err: err}
	}
	return results
}

// Run drains the work channel with a fixed-size goroutine pool of width
// concurrency, processing each job through process_job, applying filter to
// candidate selection when non-nil. Run blocks until the channel is closed
// (via Stop) and every in-flight job finishes (§4.4).
func (p *Pipeline) Run(ctx context.Context, concurrency int, filter *domain.VideoFilter) error {
	if concurrency < 1 {
		concurrency = 1
	}
	p.running.Store(true)
	defer p.running.Store(false)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.worker(ctx, workerID, filter)
		}(i)
	}
	wg.Wait()
	return nil
}

func (p *Pipeline) worker(ctx context.Context, id int, filter *domain.VideoFilter) {
	logger := p.logger.With("worker_id", id)
	for {
		select {
		case job, ok := <-p.workCh:
			if !ok {
				return
			}
			jobFilter := filter
			if job.Filter != nil {
				jobFilter = job.Filter
			}
			p.processJob(ctx, logger, job, jobFilter)
		case <-ctx.Done():
			return
		}
	}
}

// Stop sets running=false and closes the work channel; in-flight jobs
// finish, unprocessed jobs remain Pending (§4.4).
func (p *Pipeline) Stop() {
	p.running.Store(false)
	p.closeOnce.Do(func() {
		close(p.workCh)
	})
}

// IsRunning reports whether Run is currently draining the work channel.
func (p *Pipeline) IsRunning() bool {
	return p.running.Load()
}

// Stats returns a snapshot of the current aggregate counters (§3).
func (p *Pipeline) Stats() domain.PipelineStats {
	p.statsMu.RLock()
	defer p.statsMu.RUnlock()
	return p.stats
}

// Jobs returns a snapshot of every job the pipeline has ever admitted.
func (p *Pipeline) Jobs() []*domain.ScrapeJob {
	p.jobsMu.RLock()
	defer p.jobsMu.RUnlock()
	out := make([]*domain.ScrapeJob, len(p.jobs))
	copy(out, p.jobs)
	return out
}

// GetJob looks up a single job by ID.
func (p *Pipeline) GetJob(id domain.JobID) (*domain.ScrapeJob, bool) {
	p.jobsMu.RLock()
	defer p.jobsMu.RUnlock()
	job, ok := p.byID[id]
	return job, ok
}

// processJob runs the full state machine for one job (§4.4).
func (p *Pipeline) processJob(ctx context.Context, logger *slog.Logger, job *domain.ScrapeJob, filter *domain.VideoFilter) {
	logger = logger.With("job_id", job.ID, "source_url", job.SourceURL)

	p.statsMu.Lock()
	p.stats.PendingJobs--
	p.stats.ActiveJobs++
	p.statsMu.Unlock()

	// A panic inside one job fails that job and leaves the worker running.
	defer func() {
		if rec := recover(); rec != nil {
			p.failJob(logger, job, fmt.Sprintf("panic: %v", rec))
		}
	}()

	job.MarkExtracting()

	videos, err := p.extractVideos(ctx, job.SourceURL)
	if err != nil {
		p.failJob(logger, job, err.Error())
		return
	}
	if len(videos) == 0 {
		p.failJob(logger, job, domain.ErrNoVideosFound.Error())
		return
	}

	p.statsMu.Lock()
	p.stats.VideosExtracted += int64(len(videos))
	p.statsMu.Unlock()

	candidate, ok := selectCandidate(videos, filter)
	if !ok {
		p.failJob(logger, job, domain.ErrNoFilterMatch.Error())
		return
	}

	format := candidate.Format
	if format == "" {
		format = "mp4"
	}
	outputPath := filepath.Join(p.storageCfg.LocalPath, fmt.Sprintf("%s.%s", job.ID, format))
	storageKey := p.storageCfg.KeyPrefix + filepath.Base(outputPath)
	job.MarkDownloading(candidate.URL, outputPath, storageKey)

	result, err := p.downloader.Download(ctx, candidate.URL, outputPath)
	if err != nil {
		p.failJob(logger, job, err.Error())
		return
	}

	job.MarkUploading(result.SizeBytes)
	if p.storage != nil {
		if _, err := p.storage.PutFile(ctx, storageKey, outputPath); err != nil {
			p.failJob(logger, job, err.Error())
			return
		}
	}

	job.MarkCompleted()
	p.statsMu.Lock()
	p.stats.ActiveJobs--
	p.stats.CompletedJobs++
	p.stats.BytesDownloaded += result.SizeBytes
	p.statsMu.Unlock()

	logger.Info("job completed", "bytes", result.SizeBytes, "resumed", result.Resumed)
}

func (p *Pipeline) failJob(logger *slog.Logger, job *domain.ScrapeJob, message string) {
	job.MarkFailed(message)
	p.statsMu.Lock()
	p.stats.ActiveJobs--
	p.stats.FailedJobs++
	p.statsMu.Unlock()
	logger.Warn("job failed", "error", message)
}

func selectCandidate(videos []domain.VideoInfo, filter *domain.VideoFilter) (domain.VideoInfo, bool) {
	if filter == nil {
		return videos[0], true
	}
	for _, v := range videos {
		if filter.Matches(v) {
			return v, true
		}
	}
	return domain.VideoInfo{}, false
}

// extractVideos fetches the source page and runs it through the extractor.
func (p *Pipeline) extractVideos(ctx context.Context, sourceURL string) ([]domain.VideoInfo, error) {
	resp, err := p.fetcher.Get(ctx, sourceURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.NewScraperError(domain.KindExtraction, "extractVideos",
			fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, sourceURL))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewScraperError(domain.KindExtraction, "extractVideos", err)
	}
	return p.extractor.ExtractFromHTML(body, sourceURL)
}
