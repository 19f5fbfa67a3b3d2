package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// RetryPolicy configures retry behavior for failed requests.
type RetryPolicy struct {
	MaxRetries int           // Maximum number of retries (2 = 3 total attempts)
	BaseDelay  time.Duration // Initial backoff delay (1s)
	MaxDelay   time.Duration // Maximum backoff cap (30s)
}

// DefaultRetryPolicy returns 2 retries (3 attempts), 1s base delay, 30s max delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// fetchWithRetry wraps fetchOnce with exponential backoff. It retries network
// errors, 429 and 5xx, never other 4xx or a canceled crawl.
func (f *HTTPFetcher) fetchWithRetry(ctx context.Context, rawURL string) (*Response, error) {
	policy := f.retry
	backoff := policy.BaseDelay
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w (retry aborted: %v)", lastErr, ctx.Err())
			case <-time.After(backoff):
				backoff = min(backoff*2, policy.MaxDelay)
			}
		}

		attempts = attempt + 1
		resp, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(err) {
			break
		}
		f.logger.Debug("retrying page fetch", "url", rawURL, "attempt", attempts, "error", err)
	}

	if attempts > 1 {
		return nil, fmt.Errorf("%w (after %d attempts)", lastErr, attempts)
	}
	return nil, lastErr
}

// shouldRetry reports whether a failed fetch is worth another attempt:
// network errors, HTTP 429 and HTTP 5xx are; other 4xx and robots.txt
// refusals are not.
func shouldRetry(err error) bool {
	if errors.Is(err, ErrDisallowed) || errors.Is(err, context.Canceled) {
		return false
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		switch {
		case fe.StatusCode == 429:
			return true
		case fe.StatusCode >= 500:
			return true
		case fe.StatusCode >= 400:
			return false
		}
		if fe.Err == nil {
			return false
		}
		err = fe.Err
	}

	if errors.Is(err, ErrRedirectLoop) {
		return false
	}
	return isRetryableError(err) || isRetryableNetworkError(err.Error())
}

// isRetryableNetworkError matches error text of transient conditions that do
// not surface as typed errors.
func isRetryableNetworkError(errMsg string) bool {
	retryablePatterns := []string{
		"timeout",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"no such host",
		"dns",
		"temporary failure",
		"eof",
	}

	msg := strings.ToLower(errMsg)
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// isRetryableError checks if an error type is retryable.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
