// Package fetcher implements the rate-limited, retrying HTTP fetch layer
// (§4.1). It is the leaf component the Extractor and Downloader both borrow.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/zpx01/video-scraper/internal/domain"
	"github.com/zpx01/video-scraper/internal/ratelimit"
)

// Fetcher issues rate-limited, retrying HTTP requests on behalf of the
// Extractor and Downloader (§4.1).
type Fetcher struct {
	client  *http.Client
	limiter *ratelimit.HostLimiter
	cfg     domain.ScraperConfig
}

// New builds a Fetcher from a ScraperConfig: pooled client, per-host
// connection caps, optional proxy, and the derived rate limiter (§4.1).
func New(cfg domain.ScraperConfig) (*Fetcher, error) {
	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSizePerHost * 4,
		MaxIdleConnsPerHost: cfg.PoolSizePerHost,
		IdleConnTimeout:     time.Duration(cfg.IdleTimeoutSecs) * time.Second,
		DisableCompression:  !cfg.EnableCompression,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 60 * time.Second,
		}).DialContext,
	}
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, domain.NewScraperError(domain.KindConfig, "fetcher.New", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.RequestTimeoutSecs) * time.Second,
		},
		limiter: ratelimit.NewHostLimiter(cfg.RateLimitPerSecond),
		cfg:     cfg,
	}, nil
}

// fixedStepBackOff reproduces the spec's literal backoff formula —
// retry_delay_ms * 2^(n-1) for attempt n, no jitter, no cap — rather than
// backoff/v4's own ExponentialBackOff curve and multiplier.
type fixedStepBackOff struct {
	baseDelay time.Duration
	attempt   int
}

func (b *fixedStepBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.baseDelay * time.Duration(1<<uint(b.attempt-1))
}

func (b *fixedStepBackOff) Reset() {
	b.attempt = 0
}

var _ backoff.BackOff = (*fixedStepBackOff)(nil)

func (f *Fetcher) newBackOff() *fixedStepBackOff {
	return &fixedStepBackOff{baseDelay: time.Duration(f.cfg.RetryDelayMs) * time.Millisecond}
}

// Get performs up to cfg.MaxRetries attempts against url, honoring the
// response classification table in §4.1.
func (f *Fetcher) Get(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	return f.do(ctx, http.MethodGet, rawURL, headers)
}

// GetRange performs a ranged GET. end < 0 means an open-ended range
// (bytes=start-) (§4.1, §6).
func (f *Fetcher) GetRange(ctx context.Context, rawURL string, start, end int64) (*http.Response, error) {
	headers := map[string]string{"Range": rangeHeader(start, end)}
	return f.do(ctx, http.MethodGet, rawURL, headers)
}

func rangeHeader(start, end int64) string {
	if end < 0 {
		return fmt.Sprintf("bytes=%d-", start)
	}
	return fmt.Sprintf("bytes=%d-%d", start, end)
}

// GetContentLength issues a HEAD and reports Content-Length when the
// response is successful and the header is present (§4.1).
func (f *Fetcher) GetContentLength(ctx context.Context, rawURL string) (int64, bool, error) {
	resp, err := f.head(ctx, rawURL)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, false, nil
	}
	if resp.ContentLength >= 0 {
		return resp.ContentLength, true, nil
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, perr := strconv.ParseInt(cl, 10, 64); perr == nil {
			return n, true, nil
		}
	}
	return 0, false, nil
}

// SupportsRangeRequests returns true iff a HEAD succeeds and Accept-Ranges is
// present and not literally "none" (§4.1).
func (f *Fetcher) SupportsRangeRequests(ctx context.Context, rawURL string) (bool, error) {
	resp, err := f.head(ctx, rawURL)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	ar := resp.Header.Get("Accept-Ranges")
	return ar != "" && ar != "none", nil
}

func (f *Fetcher) head(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, domain.NewScraperError(domain.KindTransport, "fetcher.head", err)
	}
	f.setHeaders(req, nil)
	if err := f.limiter.Wait(ctx, ratelimit.HostOf(rawURL)); err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, domain.NewScraperError(domain.KindTransport, "fetcher.head", err)
	}
	return resp, nil
}

func (f *Fetcher) setHeaders(req *http.Request, extra map[string]string) {
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if f.cfg.EnableCompression {
		req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}
}

// do performs the retry loop described in §4.1: attempt index starts at 1,
// backoff delay for attempt n is retry_delay_ms * 2^(n-1).
func (f *Fetcher) do(ctx context.Context, method, rawURL string, headers map[string]string) (*http.Response, error) {
	maxAttempts := f.cfg.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	bo := f.newBackOff()
	host := ratelimit.HostOf(rawURL)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := f.limiter.Wait(ctx, host); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
		if err != nil {
			return nil, domain.NewScraperError(domain.KindTransport, "fetcher.do", err)
		}
		f.setHeaders(req, headers)

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = err
			if attempt == maxAttempts {
				return nil, &domain.DownloadFailedError{Attempts: attempt, Message: err.Error()}
			}
			if !sleep(ctx, bo.NextBackOff()) {
				return nil, ctx.Err()
			}
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300, resp.StatusCode == http.StatusPartialContent:
			return resp, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			resp.Body.Close()
			if attempt == maxAttempts {
				return nil, domain.NewScraperError(domain.KindRateLimited, "fetcher.do",
					&domain.RateLimitedError{RetryAfterSecs: retryAfter})
			}
			if !sleep(ctx, time.Duration(retryAfter)*time.Second) {
				return nil, ctx.Err()
			}
			continue

		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return nil, domain.NewScraperError(domain.KindNotFound, "fetcher.do", domain.ErrNotFound)

		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
			resp.Body.Close()
			return nil, domain.NewScraperError(domain.KindAccessDenied, "fetcher.do", domain.ErrAccessDenied)

		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: status %d", resp.StatusCode)
			if attempt == maxAttempts {
				return nil, domain.NewScraperError(domain.KindServerError, "fetcher.do", lastErr)
			}
			if !sleep(ctx, bo.NextBackOff()) {
				return nil, ctx.Err()
			}
			continue

		default:
			resp.Body.Close()
			return nil, domain.NewScraperError(domain.KindTransport, "fetcher.do",
				fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
	}
	return nil, domain.NewScraperError(domain.KindTransport, "fetcher.do", lastErr)
}

// parseRetryAfter parses the Retry-After header as an integer seconds value,
// defaulting to 60 when absent or unparseable (§4.1, §8).
func parseRetryAfter(v string) int {
	if v == "" {
		return 60
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 60
	}
	return n
}

// sleep blocks for d or until ctx is done, returning false in the latter
// case.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// DrainAndClose discards the remainder of resp's body and closes it, freeing
// the underlying connection for reuse.
func DrainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
