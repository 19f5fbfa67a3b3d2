package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lukemcguire/facetcrawl/result"
)

// Fetch errors.
var (
	ErrPageFetch    = errors.New("page fetch failed")
	ErrDisallowed   = errors.New("disallowed by robots.txt")
	ErrRedirectLoop = errors.New("too many redirects")
)

const (
	maxRedirects = 10
	maxBodyBytes = 8 << 20
)

// FetchError is a failed page retrieval. It matches ErrPageFetch with errors.Is.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPageFetch}
	}
	return []error{ErrPageFetch, e.Err}
}

// Category classifies the failure for reports.
func (e *FetchError) Category() result.ErrorCategory {
	switch {
	case errors.Is(e.Err, ErrRedirectLoop):
		return result.CategoryRedirectLoop
	case errors.Is(e.Err, ErrDisallowed):
		return result.CategoryDisallowed
	}
	return result.ClassifyError(e.Err, e.StatusCode)
}

// Response is a successfully fetched page.
type Response struct {
	URL        string // final URL after redirects
	StatusCode int
	Body       []byte
	RTT        time.Duration
}

// Fetcher retrieves pages. Implementations handle retry, so a returned error
// is final for that URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Response, error)
}

// HTTPFetcher is the default Fetcher: rate limited, robots.txt aware and
// retrying transient failures with exponential backoff.
type HTTPFetcher struct {
	client    *http.Client
	limiter   *AdaptiveLimiter
	robots    *RobotsChecker // nil when robots.txt is ignored
	userAgent string
	timeout   time.Duration
	retry     RetryPolicy
	logger    *slog.Logger
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher builds a fetcher from cfg. cfg is expected to carry defaults
// already (see Config.withDefaults).
func NewHTTPFetcher(cfg Config, logger *slog.Logger) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}

	limiter := NewAdaptiveLimiter(cfg.RateLimit, cfg.TargetRTT)
	if !cfg.AdaptiveRate {
		limiter.SetRate(cfg.RateLimit)
	}

	f := &HTTPFetcher{
		client: &http.Client{
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return ErrRedirectLoop
				}
				return nil
			},
		},
		limiter:   limiter,
		userAgent: cfg.UserAgent,
		timeout:   cfg.RequestTimeout,
		retry:     cfg.RetryPolicy,
		logger:    logger,
	}
	if cfg.RespectRobots {
		// Separate client for robots.txt with a shorter timeout.
		f.robots = NewRobotsChecker(&http.Client{Timeout: 5 * time.Second}, cfg.UserAgent)
	}
	return f
}

// Limiter exposes the rate limiter, e.g. for progress display.
func (f *HTTPFetcher) Limiter() *AdaptiveLimiter { return f.limiter }

// Fetch retrieves rawURL, retrying per the fetcher's RetryPolicy.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if f.robots != nil {
		allowed, err := f.robots.Allowed(ctx, rawURL)
		if err != nil {
			f.logger.Debug("robots.txt check failed, allowing", "url", rawURL, "error", err)
		}
		if !allowed {
			return nil, &FetchError{URL: rawURL, Err: ErrDisallowed}
		}
	}
	return f.fetchWithRetry(ctx, rawURL)
}

// fetchOnce performs a single GET.
func (f *HTTPFetcher) fetchOnce(ctx context.Context, rawURL string) (*Response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("rate limiter wait: %w", err)}
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		f.limiter.Throttle()
	}
	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	rtt := time.Since(start)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	f.limiter.ObserveRTT(rtt)

	return &Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       body,
		RTT:        rtt,
	}, nil
}
