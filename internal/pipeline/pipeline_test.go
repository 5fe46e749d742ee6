package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/zpx01/video-scraper/internal/domain"
	"github.com/zpx01/video-scraper/internal/downloader"
	"github.com/zpx01/video-scraper/internal/extractor"
	"github.com/zpx01/video-scraper/internal/fetcher"
)

// fakeStorage is an in-memory domain.StorageBackend for pipeline tests.
type fakeStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{files: make(map[string][]byte)}
}

func (s *fakeStorage) Put(ctx context.Context, key string, r io.Reader) (domain.ObjectMetadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.ObjectMetadata{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = data
	return domain.ObjectMetadata{Key: key, SizeBytes: int64(len(data))}, nil
}

func (s *fakeStorage) PutFile(ctx context.Context, key, path string) (domain.ObjectMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ObjectMetadata{}, err
	}
	return s.Put(ctx, key, bytes.NewReader(data))
}

func (s *fakeStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return io.NopCloser(bytes.NewReader(s.files[key])), nil
}

func (s *fakeStorage) GetFile(ctx context.Context, key, path string) error {
	r, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *fakeStorage) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[key]
	return ok, nil
}

func (s *fakeStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, key)
	return nil
}

func (s *fakeStorage) List(ctx context.Context, prefix string) ([]domain.ObjectMetadata, error) {
	return nil, nil
}

func (s *fakeStorage) Metadata(ctx context.Context, key string) (domain.ObjectMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.files[key]
	return domain.ObjectMetadata{Key: key, SizeBytes: int64(len(data))}, nil
}

func (s *fakeStorage) BackendType() string { return "fake" }

func (s *fakeStorage) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[key]
	return ok
}

func newTestPipeline(t *testing.T, srv *httptest.Server, storageDir string) (*Pipeline, *fakeStorage) {
	t.Helper()
	cfg := domain.DefaultScraperConfig()
	cfg.RateLimitPerSecond = 1000
	cfg.MaxRetries = 2
	cfg.RetryDelayMs = 5
	cfg.EnableResume = false

	storageCfg := domain.DefaultStorageConfig()
	storageCfg.LocalPath = storageDir
	storageCfg.KeyPrefix = "videos/"

	f, err := fetcher.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	ex := extractor.New()
	dl := downloader.New(f, cfg)
	store := newFakeStorage()

	p := New(cfg, storageCfg, f, ex, dl, store, nil)
	return p, store
}

const pageWithVideo = `<html><body>
<video src="/clip.mp4"></video>
</body></html>`

// pageWithTypedVideo carries a format on its only candidate, so a format
// filter can accept or reject it.
const pageWithTypedVideo = `<html><body>
<video><source src="/clip.mp4" type="mp4"></video>
</body></html>`

func newVideoServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pageWithVideo))
	})
	mux.HandleFunc("/typed-page", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pageWithTypedVideo))
	})
	mux.HandleFunc("/clip.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "5")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	})
	return httptest.NewServer(mux)
}

// TestPipeline_EndToEndCompletion exercises the full
// extract→filter→download→upload state machine for a single job.
func TestPipeline_EndToEndCompletion(t *testing.T) {
	srv := newVideoServer(t)
	defer srv.Close()

	dir := t.TempDir()
	p, store := newTestPipeline(t, srv, dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, err := p.AddURL(ctx, srv.URL+"/page")
	if err != nil {
		t.Fatalf("AddURL: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Run(ctx, 2, nil)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, _ := p.GetJob(job.ID)
		if got.IsTerminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not reach terminal state: %+v", got)
		}
		time.Sleep(5 * time.Millisecond)
	}
	p.Stop()
	wg.Wait()

	got, _ := p.GetJob(job.ID)
	if got.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s, error = %s", got.Status, got.ErrorMessage)
	}
	if !store.has(got.StorageKey) {
		t.Fatalf("expected storage to contain key %s", got.StorageKey)
	}

	stats := p.Stats()
	if stats.CompletedJobs != 1 || stats.ActiveJobs != 0 || stats.FailedJobs != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.BytesDownloaded != 5 {
		t.Fatalf("bytes downloaded = %d, want 5", stats.BytesDownloaded)
	}
}

// TestPipeline_DuplicateURLRejected exercises §8 scenario 6: a second
// AddURL for the same source is rejected without creating a second job.
func TestPipeline_DuplicateURLRejected(t *testing.T) {
	srv := newVideoServer(t)
	defer srv.Close()

	p, _ := newTestPipeline(t, srv, t.TempDir())
	ctx := context.Background()

	if _, err := p.AddURL(ctx, srv.URL+"/page"); err != nil {
		t.Fatalf("first AddURL: %v", err)
	}
	_, err := p.AddURL(ctx, srv.URL+"/page")
	if err == nil {
		t.Fatal("expected duplicate rejection")
	}
	var scraperErr *domain.ScraperError
	if !errors.As(err, &scraperErr) || scraperErr.Kind != domain.KindDuplicate {
		t.Fatalf("expected KindDuplicate, got %v", err)
	}

	stats := p.Stats()
	if stats.TotalJobs != 1 {
		t.Fatalf("total_jobs = %d, want 1", stats.TotalJobs)
	}
}

// TestPipeline_PerJobFilterOverridesRunFilter ensures a job submitted with
// its own VideoFilter (§6) is evaluated against that filter rather than
// whatever filter Run was started with.
func TestPipeline_PerJobFilterOverridesRunFilter(t *testing.T) {
	srv := newVideoServer(t)
	defer srv.Close()

	dir := t.TempDir()
	p, _ := newTestPipeline(t, srv, dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The run-wide filter rejects the page's only (mp4) candidate; the
	// per-job filter accepts it and takes precedence.
	webmOnly := domain.VideoFilter{AllowedFormats: []string{"webm"}}
	mp4OK := domain.VideoFilter{AllowedFormats: []string{"mp4"}}
	job, err := p.AddURLWithFilter(ctx, srv.URL+"/typed-page", &mp4OK)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Run(ctx, 1, &webmOnly)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, _ := p.GetJob(job.ID)
		if got.IsTerminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not reach terminal state")
		}
		time.Sleep(5 * time.Millisecond)
	}
	p.Stop()
	wg.Wait()

	got, _ := p.GetJob(job.ID)
	if got.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s, error = %s, want completed (per-job mp4 filter should override run-wide webm filter)", got.Status, got.ErrorMessage)
	}
}

// TestPipeline_NoFilterMatchFailsJob exercises the "no candidate matches
// filter" failure path.
func TestPipeline_NoFilterMatchFailsJob(t *testing.T) {
	srv := newVideoServer(t)
	defer srv.Close()

	dir := t.TempDir()
	p, _ := newTestPipeline(t, srv, dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, err := p.AddURL(ctx, srv.URL+"/typed-page")
	if err != nil {
		t.Fatal(err)
	}

	filter := domain.VideoFilter{AllowedFormats: []string{"webm"}}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Run(ctx, 1, &filter)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, _ := p.GetJob(job.ID)
		if got.IsTerminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not reach terminal state")
		}
		time.Sleep(5 * time.Millisecond)
	}
	p.Stop()
	wg.Wait()

	got, _ := p.GetJob(job.ID)
	if got.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.ErrorMessage != domain.ErrNoFilterMatch.Error() {
		t.Fatalf("error = %q", got.ErrorMessage)
	}

	stats := p.Stats()
	if stats.FailedJobs != 1 || stats.ActiveJobs != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

// TestPipeline_StopLeavesUnstartedJobsPending ensures Stop() does not touch
// jobs that never left the work channel.
func TestPipeline_StopLeavesUnstartedJobsPending(t *testing.T) {
	srv := newVideoServer(t)
	defer srv.Close()

	p, _ := newTestPipeline(t, srv, t.TempDir())
	ctx := context.Background()

	job, err := p.AddURL(ctx, srv.URL+"/page")
	if err != nil {
		t.Fatal(err)
	}
	p.Stop()

	got, _ := p.GetJob(job.ID)
	if got.Status != domain.JobStatusPending {
		t.Fatalf("status = %s, want pending (never started)", got.Status)
	}
}

func TestSelectCandidate_NilFilterPicksFirst(t *testing.T) {
	videos := []domain.VideoInfo{{URL: "a"}, {URL: "b"}}
	got, ok := selectCandidate(videos, nil)
	if !ok || got.URL != "a" {
		t.Fatalf("got %+v, ok=%v", got, ok)
	}
}

func TestSelectCandidate_NoneMatch(t *testing.T) {
	w, h := 10, 10
	videos := []domain.VideoInfo{{URL: "a", Width: &w, Height: &h}}
	filter := domain.UHDVideoFilter()
	_, ok := selectCandidate(videos, &filter)
	if ok {
		t.Fatal("expected no match")
	}
}
