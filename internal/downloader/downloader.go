// Package downloader drives chunked or streaming fetch-to-disk with a resume
// journal and rolling hash (§4.3).
package downloader

import (
	"context"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/zpx01/video-scraper/internal/domain"
	"github.com/zpx01/video-scraper/internal/fetcher"
)

// rangeFetcher is the subset of *fetcher.Fetcher the Downloader borrows.
type rangeFetcher interface {
	Get(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error)
	GetRange(ctx context.Context, rawURL string, start, end int64) (*http.Response, error)
	GetContentLength(ctx context.Context, rawURL string) (int64, bool, error)
	SupportsRangeRequests(ctx context.Context, rawURL string) (bool, error)
}

// Downloader gates concurrent downloads behind a counting semaphore sized to
// MaxConcurrentDownloads; this is the authoritative concurrency cap even if
// a Pipeline's worker pool is configured wider (§4.3, §5, §9).
type Downloader struct {
	fetcher rangeFetcher
	cfg     domain.ScraperConfig
	sem     chan struct{}
	active  int64
}

// New builds a Downloader borrowing f for all HTTP operations.
func New(f rangeFetcher, cfg domain.ScraperConfig) *Downloader {
	capacity := cfg.MaxConcurrentDownloads
	if capacity < 1 {
		capacity = 1
	}
	return &Downloader{
		fetcher: f,
		cfg:     cfg,
		sem:     make(chan struct{}, capacity),
	}
}

// ActiveDownloads reports the number of downloads currently holding a
// semaphore permit.
func (d *Downloader) ActiveDownloads() int64 {
	return atomic.LoadInt64(&d.active)
}

// Download fetches sourceURL to outputPath, resuming from a prior journal
// when enabled and possible (§4.3).
func (d *Downloader) Download(ctx context.Context, sourceURL, outputPath string) (domain.DownloadResult, error) {
	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return domain.DownloadResult{}, ctx.Err()
	}
	atomic.AddInt64(&d.active, 1)
	defer func() {
		atomic.AddInt64(&d.active, -1)
		<-d.sem
	}()

	return d.downloadLocked(ctx, sourceURL, outputPath)
}

func (d *Downloader) downloadLocked(ctx context.Context, sourceURL, outputPath string) (domain.DownloadResult, error) {
	start := time.Now()

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return domain.DownloadResult{}, domain.NewScraperError(domain.KindIO, "Download", err)
	}

	startByte, resumed, err := d.resumeOffset(ctx, sourceURL, outputPath)
	if err != nil {
		return domain.DownloadResult{}, err
	}

	supportsRange, err := d.fetcher.SupportsRangeRequests(ctx, sourceURL)
	if err != nil {
		supportsRange = false
	}
	if resumed && !supportsRange {
		startByte, resumed = 0, false
	}

	totalBytes, totalKnown, _ := d.fetcher.GetContentLength(ctx, sourceURL)

	file, err := openForWrite(outputPath, startByte)
	if err != nil {
		return domain.DownloadResult{}, err
	}
	defer file.Close()

	h, err := reconstructHash(outputPath, startByte)
	if err != nil {
		return domain.DownloadResult{}, err
	}

	var chunksDownloaded int
	downloaded := startByte

	useChunked := supportsRange && totalKnown && d.cfg.ChunkSizeBytes > 0 && totalBytes > startByte
	if useChunked {
		chunksDownloaded, downloaded, err = d.downloadChunked(ctx, sourceURL, outputPath, file, h, downloaded, totalBytes)
	} else {
		chunksDownloaded, downloaded, err = d.downloadStreaming(ctx, sourceURL, file, h, downloaded)
	}
	if err != nil {
		return domain.DownloadResult{}, err
	}

	if d.cfg.EnableResume {
		if derr := deleteJournal(outputPath); derr != nil {
			return domain.DownloadResult{}, derr
		}
	}

	elapsed := time.Since(start).Seconds()
	var speed float64
	if elapsed > 0 {
		speed = float64(downloaded) / elapsed
	}

	return domain.DownloadResult{
		SizeBytes:           downloaded,
		SHA256Hash:          hex.EncodeToString(h.Sum(nil)),
		DurationSecs:        elapsed,
		AvgSpeedBytesPerSec: speed,
		Resumed:             resumed,
		ChunksDownloaded:    chunksDownloaded,
	}, nil
}

// resumeOffset implements §4.3's resume decision: a matching journal sets
// the start offset and resumed=true; a mismatched or absent one starts at 0.
func (d *Downloader) resumeOffset(ctx context.Context, sourceURL, outputPath string) (int64, bool, error) {
	if !d.cfg.EnableResume {
		return 0, false, nil
	}
	state, ok, err := loadJournal(outputPath)
	if err != nil {
		return 0, false, err
	}
	if !ok || state.URL != sourceURL {
		return 0, false, nil
	}
	return state.DownloadedBytes, true, nil
}

func openForWrite(outputPath string, startByte int64) (*os.File, error) {
	if startByte > 0 {
		f, err := os.OpenFile(outputPath, os.O_RDWR, 0o644)
		if err != nil {
			return nil, domain.NewScraperError(domain.KindIO, "openForWrite", err)
		}
		if _, err := f.Seek(startByte, io.SeekStart); err != nil {
			f.Close()
			return nil, domain.NewScraperError(domain.KindIO, "openForWrite", err)
		}
		return f, nil
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, domain.NewScraperError(domain.KindIO, "openForWrite", err)
	}
	return f, nil
}

// downloadChunked drives the range-request loop described in §4.3,
// persisting the journal every 10 chunks.
func (d *Downloader) downloadChunked(ctx context.Context, sourceURL, outputPath string, file *os.File, h hashWriter, downloaded, total int64) (int, int64, error) {
	chunkSize := int64(d.cfg.ChunkSizeBytes)
	chunks := 0
	var chunksCompleted []domain.ChunkRange

	for downloaded < total {
		start := downloaded
		end := downloaded + chunkSize - 1
		if end > total-1 {
			end = total - 1
		}

		resp, err := d.fetcher.GetRange(ctx, sourceURL, downloaded, end)
		if err != nil {
			return chunks, downloaded, err
		}
		n, err := copyAndHash(file, h, resp.Body)
		resp.Body.Close()
		if err != nil {
			return chunks, downloaded, domain.NewScraperError(domain.KindIO, "downloadChunked", err)
		}

		downloaded += n
		chunks++
		chunksCompleted = append(chunksCompleted, domain.ChunkRange{Start: start, End: start + n - 1})

		if chunks%10 == 0 {
			if err := saveJournal(domain.DownloadState{
				URL:             sourceURL,
				OutputPath:      outputPath,
				TotalBytes:      &total,
				DownloadedBytes: downloaded,
				ChunkSize:       d.cfg.ChunkSizeBytes,
				PartialHash:     hexHash(h),
				ChunksCompleted: chunksCompleted,
				StartedAt:       time.Now().UTC(),
			}); err != nil {
				return chunks, downloaded, err
			}
		}
	}
	return chunks, downloaded, nil
}

// downloadStreaming drives the non-chunked path: an open-ended range GET
// when resuming, otherwise a plain GET, consumed as a single stream (§4.3).
func (d *Downloader) downloadStreaming(ctx context.Context, sourceURL string, file *os.File, h hashWriter, startByte int64) (int, int64, error) {
	var resp *http.Response
	var err error
	if startByte > 0 {
		resp, err = d.fetcher.GetRange(ctx, sourceURL, startByte, -1)
	} else {
		resp, err = d.fetcher.Get(ctx, sourceURL, nil)
	}
	if err != nil {
		return 0, startByte, err
	}
	defer resp.Body.Close()

	n, err := copyAndHash(file, h, resp.Body)
	if err != nil {
		return 0, startByte, domain.NewScraperError(domain.KindIO, "downloadStreaming", err)
	}
	return 1, startByte + n, nil
}

// hashWriter is the subset of hash.Hash this file needs, kept narrow so
// tests can substitute a fake.
type hashWriter interface {
	io.Writer
	Sum(b []byte) []byte
}

func copyAndHash(file io.Writer, h hashWriter, body io.Reader) (int64, error) {
	return io.Copy(file, io.TeeReader(body, h))
}
