package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/zpx01/video-scraper/internal/domain"
	"github.com/zpx01/video-scraper/internal/downloader"
	"github.com/zpx01/video-scraper/internal/extractor"
	"github.com/zpx01/video-scraper/internal/fetcher"
	"github.com/zpx01/video-scraper/internal/pipeline"
	"github.com/zpx01/video-scraper/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	cfg := domain.DefaultScraperConfig()
	storageCfg := domain.DefaultStorageConfig()
	storageCfg.LocalPath = t.TempDir()

	f, err := fetcher.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	ex := extractor.New()
	dl := downloader.New(f, cfg)
	return pipeline.New(cfg, storageCfg, f, ex, dl, nil, testLogger())
}

func TestPool_Reconcile_ReAdmitsOrphanedPendingJob(t *testing.T) {
	repo := repository.NewInMemoryJobRepository()
	p := newTestPipeline(t)

	orphan := domain.NewScrapeJob("https://example.com/orphan")
	if err := repo.Create(context.Background(), orphan); err != nil {
		t.Fatal(err)
	}

	pool := NewPool(Config{PollInterval: 10 * time.Millisecond}, repo, p, testLogger())
	pool.reconcile()

	// Re-admission goes through Pipeline.AddURL, so the pipeline holds a
	// fresh job for the orphan's source URL.
	readmitted := false
	for _, j := range p.Jobs() {
		if j.SourceURL == orphan.SourceURL {
			readmitted = true
		}
	}
	if !readmitted {
		t.Fatal("expected orphaned pending job to be re-admitted to the pipeline")
	}
}

func TestPool_Reconcile_SkipsAlreadyAdmittedJobs(t *testing.T) {
	repo := repository.NewInMemoryJobRepository()
	p := newTestPipeline(t)

	job, err := p.AddURL(context.Background(), "https://example.com/already-admitted")
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	pool := NewPool(Config{}, repo, p, testLogger())
	pool.reconcile()

	stats := p.Stats()
	if stats.TotalJobs != 1 {
		t.Fatalf("total_jobs = %d, want 1 (no duplicate re-admission)", stats.TotalJobs)
	}
}

func TestPool_Reconcile_SkipsNonPendingJobs(t *testing.T) {
	repo := repository.NewInMemoryJobRepository()
	p := newTestPipeline(t)

	completed := domain.NewScrapeJob("https://example.com/done")
	completed.MarkExtracting()
	completed.MarkDownloading("https://example.com/v.mp4", "/tmp/out.mp4", "videos/out.mp4")
	completed.MarkUploading(5)
	completed.MarkCompleted()
	if err := repo.Create(context.Background(), completed); err != nil {
		t.Fatal(err)
	}

	pool := NewPool(Config{}, repo, p, testLogger())
	pool.reconcile()

	if _, ok := p.GetJob(completed.ID); ok {
		t.Fatal("completed jobs should not be re-admitted")
	}
}

func TestPool_StartStop(t *testing.T) {
	repo := repository.NewInMemoryJobRepository()
	p := newTestPipeline(t)

	pool := NewPool(Config{PollInterval: 5 * time.Millisecond}, repo, p, testLogger())
	pool.Start()

	if err := pool.Stop(time.Second); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}
