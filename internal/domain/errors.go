package domain

import "errors"

// ErrorKind classifies a ScraperError into one of the semantic kinds the
// pipeline and fetcher dispatch on. Kinds are not Go types themselves —
// callers compare against the sentinel errors below with errors.Is, or
// inspect ScraperError.Kind directly.
type ErrorKind string

const (
	KindTransport    ErrorKind = "transport"
	KindRateLimited  ErrorKind = "rate_limited"
	KindNotFound     ErrorKind = "not_found"
	KindAccessDenied ErrorKind = "access_denied"
	KindServerError  ErrorKind = "server_error"
	KindExtraction   ErrorKind = "extraction"
	KindFilter       ErrorKind = "filter"
	KindDuplicate    ErrorKind = "duplicate"
	KindIO           ErrorKind = "io"
	KindConfig       ErrorKind = "config"
)

// Sentinel errors, one per taxonomy kind plus a handful of specific
// conditions the pipeline and repositories need to distinguish with
// errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrAccessDenied   = errors.New("access denied")
	ErrRateLimited    = errors.New("rate limited")
	ErrServerError    = errors.New("server error")
	ErrTransport      = errors.New("transport error")
	ErrNoVideosFound  = errors.New("no videos found")
	ErrNoFilterMatch  = errors.New("no candidate matched filter")
	ErrDuplicateJob   = errors.New("duplicate source URL")
	ErrJobNotFound    = errors.New("job not found")
	ErrUnknownBackend = errors.New("unknown storage backend")
	ErrRangeNotUsable = errors.New("server does not support range requests")
)

// ScraperError wraps an underlying error with the operation that produced it
// and the semantic kind (§7) a caller should dispatch on.
type ScraperError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *ScraperError) Error() string {
	if e.Op != "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *ScraperError) Unwrap() error {
	return e.Err
}

// NewScraperError builds a ScraperError for the given kind/operation/cause.
func NewScraperError(kind ErrorKind, op string, err error) *ScraperError {
	return &ScraperError{Kind: kind, Op: op, Err: err}
}

// RateLimitedError carries the retry-after duration reported by a 429
// response, surfaced once retries are exhausted (§4.1, §7).
type RateLimitedError struct {
	RetryAfterSecs int
}

func (e *RateLimitedError) Error() string {
	return "rate limited, retry after seconds"
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// DownloadFailedError surfaces a transport failure after retries are
// exhausted, carrying the attempt count for diagnostics (§7).
type DownloadFailedError struct {
	Attempts int
	Message  string
}

func (e *DownloadFailedError) Error() string {
	return e.Message
}

func (e *DownloadFailedError) Is(target error) bool {
	return target == ErrTransport
}
