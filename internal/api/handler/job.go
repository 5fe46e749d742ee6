package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zpx01/video-scraper/internal/domain"
	"github.com/zpx01/video-scraper/internal/pipeline"
)

// JobHandler handles job-related HTTP requests (§6). Adapted from the
// teacher's VideoHandler, generalized from tweet/media submission to
// scrape-job submission over the Pipeline.
type JobHandler struct {
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

// NewJobHandler creates a new job handler.
func NewJobHandler(p *pipeline.Pipeline, logger *slog.Logger) *JobHandler {
	return &JobHandler{pipeline: p, logger: logger}
}

// SubmitRequest is the JSON request body for job submission. Filter is an
// optional per-job override of the candidate-selection filter the pipeline
// was started with (§6).
type SubmitRequest struct {
	SourceURL string              `json:"source_url"`
	Filter    *domain.VideoFilter `json:"filter,omitempty"`
}

// SubmitResponse is the JSON response after submission.
type SubmitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobResponse represents a job in list/get responses.
type JobResponse struct {
	JobID           string  `json:"job_id"`
	SourceURL       string  `json:"source_url"`
	Status          string  `json:"status"`
	VideoURL        string  `json:"video_url,omitempty"`
	StorageKey      string  `json:"storage_key,omitempty"`
	Error           string  `json:"error,omitempty"`
	BytesDownloaded int64   `json:"bytes_downloaded"`
	TotalBytes      int64   `json:"total_bytes"`
	ProgressPercent float64 `json:"progress_percent"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// StatusResponse is the lightweight status-only projection returned by
// GET /api/v1/jobs/{id}/status (§6) — just enough for a poller to decide
// whether to keep waiting, without the full job record's URLs/keys.
type StatusResponse struct {
	JobID           string  `json:"job_id"`
	Status          string  `json:"status"`
	ProgressPercent float64 `json:"progress_percent"`
}

// ListResponse contains a page of job records.
type ListResponse struct {
	Jobs   []JobResponse `json:"jobs"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// StatsResponse mirrors domain.PipelineStats over the wire.
type StatsResponse struct {
	TotalJobs       int64   `json:"total_jobs"`
	PendingJobs     int64   `json:"pending_jobs"`
	ActiveJobs      int64   `json:"active_jobs"`
	CompletedJobs   int64   `json:"completed_jobs"`
	FailedJobs      int64   `json:"failed_jobs"`
	CancelledJobs   int64   `json:"cancelled_jobs"`
	BytesDownloaded int64   `json:"bytes_downloaded"`
	VideosExtracted int64   `json:"videos_extracted"`
	AvgSpeedBytesPS float64 `json:"avg_speed_bytes_per_sec"`
}

func toJobResponse(j *domain.ScrapeJob) JobResponse {
	return JobResponse{
		JobID:           j.ID.String(),
		SourceURL:       j.SourceURL,
		Status:          string(j.Status),
		VideoURL:        j.VideoURL,
		StorageKey:      j.StorageKey,
		Error:           j.ErrorMessage,
		BytesDownloaded: j.BytesDownloaded,
		TotalBytes:      j.TotalBytes,
		ProgressPercent: j.ProgressPercent(),
		CreatedAt:       j.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:       j.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Submit handles POST /api/v1/jobs.
func (h *JobHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SourceURL == "" {
		h.writeError(w, http.StatusBadRequest, "source_url is required")
		return
	}

	job, err := h.pipeline.AddURLWithFilter(r.Context(), req.SourceURL, req.Filter)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateJob) {
			h.writeError(w, http.StatusConflict, "duplicate source URL")
			return
		}
		h.logger.Error("submit failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to submit job")
		return
	}

	h.writeJSON(w, http.StatusAccepted, SubmitResponse{
		JobID:  job.ID.String(),
		Status: string(job.Status),
	})
}

// List handles GET /api/v1/jobs.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	all := h.pipeline.Jobs()
	if s := r.URL.Query().Get("status"); s != "" {
		filtered := make([]*domain.ScrapeJob, 0, len(all))
		for _, j := range all {
			if string(j.Status) == s {
				filtered = append(filtered, j)
			}
		}
		all = filtered
	}
	end := offset + limit
	if offset > len(all) {
		offset = len(all)
	}
	if end > len(all) {
		end = len(all)
	}
	page := all[offset:end]

	resp := ListResponse{Jobs: make([]JobResponse, 0, len(page)), Limit: limit, Offset: offset}
	for _, j := range page {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/jobs/{jobID}.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, ok := h.getJobByParam(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, toJobResponse(job))
}

// Status handles GET /api/v1/jobs/{jobID}/status, a lightweight projection
// for callers that only need to know when a job finishes (§6).
func (h *JobHandler) Status(w http.ResponseWriter, r *http.Request) {
	job, ok := h.getJobByParam(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, StatusResponse{
		JobID:           job.ID.String(),
		Status:          string(job.Status),
		ProgressPercent: job.ProgressPercent(),
	})
}

func (h *JobHandler) getJobByParam(w http.ResponseWriter, r *http.Request) (*domain.ScrapeJob, bool) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		h.writeError(w, http.StatusBadRequest, "missing job ID")
		return nil, false
	}

	job, ok := h.pipeline.GetJob(domain.JobID(jobID))
	if !ok {
		h.writeError(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	return job, true
}

// Stop handles POST /api/v1/stop.
func (h *JobHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.pipeline.Stop()
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

// Stats handles GET /api/v1/stats.
func (h *JobHandler) Stats(w http.ResponseWriter, r *http.Request) {
	s := h.pipeline.Stats()
	h.writeJSON(w, http.StatusOK, StatsResponse{
		TotalJobs:       s.TotalJobs,
		PendingJobs:     s.PendingJobs,
		ActiveJobs:      s.ActiveJobs,
		CompletedJobs:   s.CompletedJobs,
		FailedJobs:      s.FailedJobs,
		CancelledJobs:   s.CancelledJobs,
		BytesDownloaded: s.BytesDownloaded,
		VideosExtracted: s.VideosExtracted,
		AvgSpeedBytesPS: s.AvgSpeedBytesPerS,
	})
}

func (h *JobHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *JobHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
