package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zpx01/video-scraper/internal/domain"
	"github.com/zpx01/video-scraper/internal/downloader"
	"github.com/zpx01/video-scraper/internal/extractor"
	"github.com/zpx01/video-scraper/internal/fetcher"
	"github.com/zpx01/video-scraper/internal/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStorage struct{}

func (fakeStorage) Put(ctx context.Context, key string, r io.Reader) (domain.ObjectMetadata, error) {
	data, _ := io.ReadAll(r)
	return domain.ObjectMetadata{Key: key, SizeBytes: int64(len(data))}, nil
}
func (fakeStorage) PutFile(ctx context.Context, key, path string) (domain.ObjectMetadata, error) {
	return domain.ObjectMetadata{Key: key}, nil
}
func (fakeStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}
func (fakeStorage) GetFile(ctx context.Context, key, path string) error { return nil }
func (fakeStorage) Exists(ctx context.Context, key string) (bool, error) {
	return false, nil
}
func (fakeStorage) Delete(ctx context.Context, key string) error { return nil }
func (fakeStorage) List(ctx context.Context, prefix string) ([]domain.ObjectMetadata, error) {
	return nil, nil
}
func (fakeStorage) Metadata(ctx context.Context, key string) (domain.ObjectMetadata, error) {
	return domain.ObjectMetadata{Key: key}, nil
}
func (fakeStorage) BackendType() string { return "fake" }

func newTestJobHandler(t *testing.T) (*JobHandler, *pipeline.Pipeline) {
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
	p := pipeline.New(cfg, storageCfg, f, ex, dl, fakeStorage{}, testLogger())

	return NewJobHandler(p, testLogger()), p
}

func TestJobHandler_Submit(t *testing.T) {
	h, _ := newTestJobHandler(t)

	body := strings.NewReader(`{"source_url":"https://example.com/page"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", body)
	rr := httptest.NewRecorder()

	h.Submit(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp SubmitResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != string(domain.JobStatusPending) {
		t.Errorf("status = %q, want pending", resp.Status)
	}
}

func TestJobHandler_Submit_MissingURL(t *testing.T) {
	h, _ := newTestJobHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()

	h.Submit(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestJobHandler_Submit_Duplicate(t *testing.T) {
	h, _ := newTestJobHandler(t)

	body := `{"source_url":"https://example.com/page"}`
	req1 := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(body))
	h.Submit(httptest.NewRecorder(), req1)

	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(body))
	rr2 := httptest.NewRecorder()
	h.Submit(rr2, req2)

	if rr2.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr2.Code)
	}
}

func TestJobHandler_Get(t *testing.T) {
	h, p := newTestJobHandler(t)

	job, err := p.AddURL(context.Background(), "https://example.com/page")
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID.String(), nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("jobID", job.ID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rr := httptest.NewRecorder()
	h.Get(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp JobResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.JobID != job.ID.String() {
		t.Errorf("job_id = %q, want %q", resp.JobID, job.ID.String())
	}
}

func TestJobHandler_Status(t *testing.T) {
	h, p := newTestJobHandler(t)

	job, err := p.AddURL(context.Background(), "https://example.com/page")
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID.String()+"/status", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("jobID", job.ID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rr := httptest.NewRecorder()
	h.Status(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp StatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.JobID != job.ID.String() {
		t.Errorf("job_id = %q, want %q", resp.JobID, job.ID.String())
	}
	if resp.Status != string(domain.JobStatusPending) {
		t.Errorf("status = %q, want pending", resp.Status)
	}
}

func TestJobHandler_Get_NotFound(t *testing.T) {
	h, _ := newTestJobHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/nonexistent", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("jobID", "nonexistent")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rr := httptest.NewRecorder()
	h.Get(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestJobHandler_List(t *testing.T) {
	h, p := newTestJobHandler(t)

	p.AddURL(context.Background(), "https://example.com/1")
	p.AddURL(context.Background(), "https://example.com/2")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	rr := httptest.NewRecorder()
	h.List(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp ListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(resp.Jobs))
	}
}

func TestJobHandler_Stats(t *testing.T) {
	h, p := newTestJobHandler(t)
	p.AddURL(context.Background(), "https://example.com/1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rr := httptest.NewRecorder()
	h.Stats(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp StatsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalJobs != 1 || resp.PendingJobs != 1 {
		t.Fatalf("unexpected stats: %+v", resp)
	}
}

func TestJobHandler_Stop(t *testing.T) {
	h, p := newTestJobHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stop", nil)
	rr := httptest.NewRecorder()
	h.Stop(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if p.IsRunning() {
		t.Error("expected pipeline to be stopped")
	}
}
