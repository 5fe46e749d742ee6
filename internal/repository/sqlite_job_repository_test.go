package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/zpx01/video-scraper/internal/domain"
)

func newTestSQLiteRepo(t *testing.T) *SQLiteJobRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.db")
	repo, err := NewSQLiteJobRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteJobRepository_CreateAndGet(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	job := domain.NewScrapeJob("https://example.com/page-1")
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.SourceURL != job.SourceURL {
		t.Errorf("SourceURL = %q, want %q", got.SourceURL, job.SourceURL)
	}
	if got.Status != domain.JobStatusPending {
		t.Errorf("Status = %v, want pending", got.Status)
	}
}

func TestSQLiteJobRepository_Get_NotFound(t *testing.T) {
	repo := newTestSQLiteRepo(t)

	_, err := repo.Get(context.Background(), domain.JobID("nonexistent"))
	if err != domain.ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestSQLiteJobRepository_UpdateRoundTripsOptionalFields(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	job := domain.NewScrapeJob("https://example.com/page-1")
	if err := repo.Create(ctx, job); err != nil {
		t.Fatal(err)
	}

	job.MarkExtracting()
	job.MarkDownloading("https://example.com/v.mp4", "/tmp/out.mp4", "videos/out.mp4")
	job.MarkUploading(1024)
	job.MarkCompleted()

	if err := repo.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := repo.Get(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.JobStatusCompleted {
		t.Errorf("Status = %v, want completed", got.Status)
	}
	if got.VideoURL != "https://example.com/v.mp4" {
		t.Errorf("VideoURL = %q", got.VideoURL)
	}
	if got.BytesDownloaded != 1024 {
		t.Errorf("BytesDownloaded = %d, want 1024", got.BytesDownloaded)
	}
	if got.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
}

func TestSQLiteJobRepository_Update_NotFound(t *testing.T) {
	repo := newTestSQLiteRepo(t)

	job := domain.NewScrapeJob("https://example.com/missing")
	if err := repo.Update(context.Background(), job); err != domain.ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestSQLiteJobRepository_ListOrdersByCreatedAtDesc(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	var ids []domain.JobID
	for i := 0; i < 3; i++ {
		job := domain.NewScrapeJob("https://example.com/page")
		if err := repo.Create(ctx, job); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, job.ID)
	}

	jobs, err := repo.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != ids[2] || jobs[2].ID != ids[0] {
		t.Errorf("expected newest job first and oldest last, got %v, %v, %v", jobs[0].ID, jobs[1].ID, jobs[2].ID)
	}
}

func TestSQLiteJobRepository_Stats(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	pending := domain.NewScrapeJob("https://example.com/pending")
	repo.Create(ctx, pending)

	failed := domain.NewScrapeJob("https://example.com/failed")
	failed.MarkFailed("no videos found")
	repo.Create(ctx, failed)

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalJobs != 2 {
		t.Errorf("TotalJobs = %d, want 2", stats.TotalJobs)
	}
	if stats.PendingJobs != 1 {
		t.Errorf("PendingJobs = %d, want 1", stats.PendingJobs)
	}
	if stats.FailedJobs != 1 {
		t.Errorf("FailedJobs = %d, want 1", stats.FailedJobs)
	}
}
