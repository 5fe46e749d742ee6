// Package ratelimit maintains a per-host token-bucket limiter, the politeness
// gate the Fetcher awaits before issuing any outbound request (§4.1, §5).
package ratelimit

import (
	"context"
	"math"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// unknownHost is the bucket key used when a URL carries no parseable host.
const unknownHost = "unknown"

// HostLimiter maps host -> *rate.Limiter, creating buckets lazily and
// racey-safely: a concurrent create for the same host yields exactly one
// bucket (§4.1).
type HostLimiter struct {
	ratePerSecond float64
	limiters      sync.Map // string -> *rate.Limiter
}

// NewHostLimiter derives a limiter factory from a single scalar
// rate-limit-per-second config value. The quota formula is applied once per
// host the first time that host is seen (§4.1):
//   - rate >= 1.0: floor(rate) tokens/sec, minimum 1.
//   - rate <  1.0: max(1, floor(rate*60)) tokens/min.
func NewHostLimiter(ratePerSecond float64) *HostLimiter {
	return &HostLimiter{ratePerSecond: ratePerSecond}
}

// HostOf extracts the bucket key for a request URL: its host, or "unknown"
// when absent (§4.1, §8 boundary behavior).
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return unknownHost
	}
	return u.Host
}

// Wait blocks until a token is available for host's bucket, or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	return h.limiterFor(host).Wait(ctx)
}

func (h *HostLimiter) limiterFor(host string) *rate.Limiter {
	if existing, ok := h.limiters.Load(host); ok {
		return existing.(*rate.Limiter)
	}
	limit, burst := h.quota()
	created := rate.NewLimiter(limit, burst)
	actual, _ := h.limiters.LoadOrStore(host, created)
	return actual.(*rate.Limiter)
}

// quota converts the configured scalar into the (rate.Limit, burst) pair the
// golang.org/x/time/rate bucket refills at, per the §4.1 formula. Burst is
// 1, so requests are spaced 1/limit apart and no 1-second window holds more
// than the per-second quota, matching the §8 invariant.
func (h *HostLimiter) quota() (rate.Limit, int) {
	if h.ratePerSecond >= 1.0 {
		quota := int(math.Floor(h.ratePerSecond))
		if quota < 1 {
			quota = 1
		}
		return rate.Limit(quota), 1
	}
	perMinute := int(math.Max(1, math.Floor(h.ratePerSecond*60)))
	return rate.Limit(float64(perMinute) / 60.0), 1
}
