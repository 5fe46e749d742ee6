package domain

import (
	"context"
	"io"
	"time"
)

// ObjectMetadata describes a stored object, returned by every StorageBackend
// operation that touches an existing key (§4.5).
type ObjectMetadata struct {
	Key          string
	SizeBytes    int64
	ContentType  string
	ETag         string
	LastModified *time.Time
}

// StorageBackend is the capability set the pipeline needs from an object
// store. Local, S3, and GCS implementations all honor idempotent puts
// (§4.5).
type StorageBackend interface {
	Put(ctx context.Context, key string, r io.Reader) (ObjectMetadata, error)
	PutFile(ctx context.Context, key, path string) (ObjectMetadata, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	GetFile(ctx context.Context, key, path string) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]ObjectMetadata, error)
	Metadata(ctx context.Context, key string) (ObjectMetadata, error)
	BackendType() string
}

// PipelineStats aggregates counters across all jobs the Pipeline has ever
// admitted (§3). Updated only through the Pipeline's own stat-mutation
// discipline (§5) — never mutated directly by callers.
type PipelineStats struct {
	TotalJobs         int64
	PendingJobs       int64
	ActiveJobs        int64
	CompletedJobs     int64
	FailedJobs        int64
	CancelledJobs     int64
	BytesDownloaded   int64
	VideosExtracted   int64
	AvgSpeedBytesPerS float64
}
