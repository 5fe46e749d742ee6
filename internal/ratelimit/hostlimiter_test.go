package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestHostOf(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://example.com/video.mp4", "example.com"},
		{"http://cdn.example.org:8080/x", "cdn.example.org:8080"},
		{"not a url \x7f", unknownHost},
		{"/relative/path", unknownHost},
	}
	for _, c := range cases {
		if got := HostOf(c.url); got != c.want {
			t.Errorf("HostOf(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestHostLimiter_InsertIfAbsent(t *testing.T) {
	hl := NewHostLimiter(10)
	a := hl.limiterFor("example.com")
	b := hl.limiterFor("example.com")
	if a != b {
		t.Fatal("expected the same limiter instance for repeated lookups of the same host")
	}
}

func TestHostLimiter_QuotaBoundaries(t *testing.T) {
	cases := []struct {
		name string
		rate float64
	}{
		{"well under one per second", 0.01},
		{"exactly one per second", 1.0},
		{"far above one per second", 1000.0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			hl := NewHostLimiter(c.rate)
			limit, burst := hl.quota()
			if limit <= 0 {
				t.Fatalf("expected a positive limit, got %v", limit)
			}
			if burst < 1 {
				t.Fatalf("expected a burst of at least 1, got %d", burst)
			}
		})
	}
}

func TestHostLimiter_WaitRespectsContext(t *testing.T) {
	hl := NewHostLimiter(0.01) // 1 request per minute (the per-minute floor), after the first burst token
	ctx := context.Background()
	if err := hl.Wait(ctx, "slow.example.com"); err != nil {
		t.Fatalf("first wait should consume the initial burst token: %v", err)
	}

	ctx2, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := hl.Wait(ctx2, "slow.example.com"); err == nil {
		t.Fatal("expected the second wait to block past the context deadline")
	}
}
