package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobID is a unique identifier for a ScrapeJob, a UUIDv4 string (§6).
type JobID string

// String returns the string representation of the JobID.
func (id JobID) String() string {
	return string(id)
}

// NewJobID generates a fresh UUIDv4 job identifier.
func NewJobID() JobID {
	return JobID(uuid.NewString())
}

// JobStatus represents the current state of a ScrapeJob (§3, §4.4).
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusExtracting  JobStatus = "extracting"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusUploading   JobStatus = "uploading"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
	JobStatusCancelled   JobStatus = "cancelled"
)

// ScrapeJob is a single pipeline unit tracking one source URL from discovery
// through download and storage (§3). Transitions are monotonic forward; a
// job never reverts to an earlier status.
type ScrapeJob struct {
	ID              JobID
	SourceURL       string
	Status          JobStatus
	VideoURL        string
	OutputPath      string
	StorageKey      string
	ErrorMessage    string
	BytesDownloaded int64
	TotalBytes      int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
	Filter          *VideoFilter
}

// NewScrapeJob creates a fresh job in JobStatusPending for sourceURL.
func NewScrapeJob(sourceURL string) *ScrapeJob {
	now := time.Now()
	return &ScrapeJob{
		ID:        NewJobID(),
		SourceURL: sourceURL,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsTerminal holds for Completed, Failed, or Cancelled (§3).
func (j *ScrapeJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// ProgressPercent reports download progress, 0 when TotalBytes is unknown.
func (j *ScrapeJob) ProgressPercent() float64 {
	if j.TotalBytes <= 0 {
		return 0
	}
	return float64(j.BytesDownloaded) / float64(j.TotalBytes) * 100
}

// MarkExtracting transitions Pending -> Extracting.
func (j *ScrapeJob) MarkExtracting() {
	j.Status = JobStatusExtracting
	j.UpdatedAt = time.Now()
}

// MarkDownloading transitions Extracting -> Downloading, recording the
// selected candidate and its planned destination.
func (j *ScrapeJob) MarkDownloading(videoURL, outputPath, storageKey string) {
	j.VideoURL = videoURL
	j.OutputPath = outputPath
	j.StorageKey = storageKey
	j.Status = JobStatusDownloading
	j.UpdatedAt = time.Now()
}

// MarkUploading transitions Downloading -> Uploading after a successful
// fetch to local disk (§4.4 step 9).
func (j *ScrapeJob) MarkUploading(bytesDownloaded int64) {
	j.BytesDownloaded = bytesDownloaded
	j.Status = JobStatusUploading
	j.UpdatedAt = time.Now()
}

// MarkCompleted transitions Uploading -> Completed.
func (j *ScrapeJob) MarkCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
}

// MarkFailed transitions any non-terminal status -> Failed, recording the
// cause.
func (j *ScrapeJob) MarkFailed(errMsg string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = now
	j.CompletedAt = &now
}

// MarkCancelled transitions any non-terminal status -> Cancelled, reachable
// only via an explicit pipeline Stop() (§4.4).
func (j *ScrapeJob) MarkCancelled() {
	now := time.Now()
	j.Status = JobStatusCancelled
	j.UpdatedAt = now
	j.CompletedAt = &now
}
