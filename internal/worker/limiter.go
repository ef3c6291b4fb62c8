package worker

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key. Embedding calls are keyed by
// provider name, document fetches by URL host.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewLimiter creates a limiter whose buckets start at requestsPerSecond.
// A rate of zero or less never blocks.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   limit,
		burst:   burst,
	}
}

// Wait blocks until key has a token or ctx is done
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.bucket(key).Wait(ctx)
}

// Allow takes a token for key without waiting
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).Allow()
}

// SetInterval limits key to one request per every. Repeating the same
// interval keeps the bucket, so its pending delay is not reset.
func (l *Limiter) SetInterval(key string, every time.Duration) {
	if every <= 0 {
		return
	}
	limit := rate.Every(every)

	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok && b.Limit() == limit && b.Burst() == 1 {
		return
	}
	l.buckets[key] = rate.NewLimiter(limit, 1)
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	return b
}

// HostKey returns the lower-cased host of rawURL, or rawURL itself when it
// has no host
func HostKey(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return strings.ToLower(parsed.Host)
}
