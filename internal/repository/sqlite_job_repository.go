package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zpx01/video-scraper/internal/domain"
)

// SQLiteJobRepository persists ScrapeJob records to a SQLite file so job
// history survives process restarts (§13). Grounded on the teacher's
// EventService.initSQLite (table creation, modernc.org/sqlite driver
// registration), generalized from system events to scrape jobs.
type SQLiteJobRepository struct {
	db *sql.DB
}

// NewSQLiteJobRepository opens (creating if necessary) a SQLite database at
// path and ensures the jobs table exists.
func NewSQLiteJobRepository(path string) (*SQLiteJobRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			source_url TEXT NOT NULL,
			status TEXT NOT NULL,
			video_url TEXT,
			output_path TEXT,
			storage_key TEXT,
			error_message TEXT,
			bytes_downloaded INTEGER NOT NULL DEFAULT 0,
			total_bytes INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			completed_at DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
		CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create jobs table: %w", err)
	}

	return &SQLiteJobRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *SQLiteJobRepository) Close() error {
	return r.db.Close()
}

// Create inserts a new job record.
func (r *SQLiteJobRepository) Create(ctx context.Context, job *domain.ScrapeJob) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, source_url, status, video_url, output_path, storage_key,
			error_message, bytes_downloaded, total_bytes, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.SourceURL, job.Status, job.VideoURL, job.OutputPath, job.StorageKey,
		job.ErrorMessage, job.BytesDownloaded, job.TotalBytes, job.CreatedAt, job.UpdatedAt,
		nullableTime(job.CompletedAt))
	return err
}

// Update overwrites an existing job record by ID.
func (r *SQLiteJobRepository) Update(ctx context.Context, job *domain.ScrapeJob) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET source_url=?, status=?, video_url=?, output_path=?, storage_key=?,
			error_message=?, bytes_downloaded=?, total_bytes=?, updated_at=?, completed_at=?
		WHERE id=?
	`, job.SourceURL, job.Status, job.VideoURL, job.OutputPath, job.StorageKey,
		job.ErrorMessage, job.BytesDownloaded, job.TotalBytes, job.UpdatedAt,
		nullableTime(job.CompletedAt), job.ID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// Get retrieves a job by ID.
func (r *SQLiteJobRepository) Get(ctx context.Context, id domain.JobID) (*domain.ScrapeJob, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, source_url, status, video_url, output_path, storage_key,
			error_message, bytes_downloaded, total_bytes, created_at, updated_at, completed_at
		FROM jobs WHERE id = ?
	`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrJobNotFound
	}
	return job, err
}

// List returns jobs ordered by creation time, most recent first.
func (r *SQLiteJobRepository) List(ctx context.Context, limit, offset int) ([]*domain.ScrapeJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_url, status, video_url, output_path, storage_key,
			error_message, bytes_downloaded, total_bytes, created_at, updated_at, completed_at
		FROM jobs ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.ScrapeJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats aggregates status counts across every stored job.
func (r *SQLiteJobRepository) Stats(ctx context.Context) (domain.PipelineStats, error) {
	var stats domain.PipelineStats
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*), COALESCE(SUM(bytes_downloaded), 0) FROM jobs GROUP BY status`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64
		var bytes int64
		if err := rows.Scan(&status, &count, &bytes); err != nil {
			return stats, err
		}
		stats.TotalJobs += count
		stats.BytesDownloaded += bytes
		switch domain.JobStatus(status) {
		case domain.JobStatusPending:
			stats.PendingJobs += count
		case domain.JobStatusExtracting, domain.JobStatusDownloading, domain.JobStatusUploading:
			stats.ActiveJobs += count
		case domain.JobStatusCompleted:
			stats.CompletedJobs += count
		case domain.JobStatusFailed:
			stats.FailedJobs += count
		case domain.JobStatusCancelled:
			stats.CancelledJobs += count
		}
	}
	return stats, rows.Err()
}

// rowScanner is the subset of *sql.Row/*sql.Rows scanJob needs.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*domain.ScrapeJob, error) {
	var job domain.ScrapeJob
	var videoURL, outputPath, storageKey, errMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&job.ID, &job.SourceURL, &job.Status, &videoURL, &outputPath, &storageKey,
		&errMsg, &job.BytesDownloaded, &job.TotalBytes, &job.CreatedAt, &job.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	job.VideoURL = videoURL.String
	job.OutputPath = outputPath.String
	job.StorageKey = storageKey.String
	job.ErrorMessage = errMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
