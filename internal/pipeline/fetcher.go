package pipeline

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/regdiff/internal/model"
	"github.com/ppiankov/regdiff/internal/util"
	"github.com/ppiankov/regdiff/internal/worker"
)

// ErrRobotsDisallowed is returned when robots.txt forbids fetching a document
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

const (
	fetchAttempts = 3
	fetchBackoff  = 500 * time.Millisecond
	maxCrawlDelay = 10 * time.Second
)

// fetchSleepFunc is overridden in tests
var fetchSleepFunc = time.Sleep

// Fetcher downloads remote document versions
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker
	hosts      *worker.Limiter // Crawl-delay per host; unlimited otherwise
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, insecureTLS bool, httpProxy, httpsProxy, noProxy string) *Fetcher {
	transport := &http.Transport{
		Proxy: util.NewProxyFunc(httpProxy, httpsProxy, noProxy),
	}
	if insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via http.insecure_tls
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxBytes:  maxBytes,
		hosts:     worker.NewLimiter(0, 1),
	}
}

// WithRobots makes the fetcher consult robots.txt before each document
func (f *Fetcher) WithRobots(checker *util.RobotsChecker) *Fetcher {
	f.robots = checker
	return f
}

// FetchResult contains the fetched document and its HTTP metadata
type FetchResult struct {
	HTML     string // Raw body; not necessarily HTML
	Meta     model.FetchMeta
	FinalURL string
}

// FetchWithRetry fetches with exponential backoff on transport errors, 5xx and 429
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	if err := f.checkRobots(ctx, rawURL); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			fetchSleepFunc(fetchBackoff << (attempt - 1))
		}

		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// Fetch retrieves the document at the given URL once
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json,application/yaml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &FetchResult{
		HTML: string(body),
		Meta: model.FetchMeta{
			StatusCode:   resp.StatusCode,
			ContentType:  resp.Header.Get("Content-Type"),
			LastModified: resp.Header.Get("Last-Modified"),
			ETag:         resp.Header.Get("ETag"),
		},
		FinalURL: resp.Request.URL.String(),
	}, nil
}

func (f *Fetcher) checkRobots(ctx context.Context, rawURL string) error {
	if f.robots == nil {
		return nil
	}

	allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("robots: %w", err)
	}
	if !allowed {
		return fmt.Errorf("%s: %w", rawURL, ErrRobotsDisallowed)
	}
	host := worker.HostKey(rawURL)
	if delay > 0 {
		f.hosts.SetInterval(host, min(delay, maxCrawlDelay))
	}
	if err := f.hosts.Wait(ctx, host); err != nil {
		return fmt.Errorf("crawl delay: %w", err)
	}
	return nil
}

// isRetryableFetchError reports transport failures, server errors and throttling
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	if strings.HasPrefix(msg, "fetch:") {
		return true
	}
	if code, ok := strings.CutPrefix(msg, "unexpected status: "); ok {
		return strings.HasPrefix(code, "5") || strings.HasPrefix(code, "429")
	}
	return false
}
