package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

type cachedRobots struct {
	data      *robotstxt.RobotsData // nil means allow all
	fetchedAt time.Time
}

// RobotsChecker fetches and caches robots.txt rules per host for one user
// agent. Lookups fail open: any fetch or parse problem allows the URL.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	cache     sync.Map // host -> *cachedRobots
	cacheTTL  time.Duration
}

// NewRobotsChecker creates a RobotsChecker that fetches with client.
func NewRobotsChecker(client *http.Client, userAgent string) *RobotsChecker {
	return &RobotsChecker{
		client:    client,
		userAgent: userAgent,
		cacheTTL:  time.Hour,
	}
}

// Allowed reports whether rawURL may be fetched. Search pages differ only in
// their query string, so the rules are matched against path and query.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) (bool, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return true, fmt.Errorf("parse URL: %w", err)
	}

	host := parsedURL.Host
	if host == "" {
		return true, nil
	}

	data, err := r.rules(ctx, parsedURL.Scheme, host)
	if data == nil {
		return true, err
	}
	return data.TestAgent(parsedURL.RequestURI(), r.userAgent), err
}

// rules returns the cached or freshly fetched rules for host.
func (r *RobotsChecker) rules(ctx context.Context, scheme, host string) (*robotstxt.RobotsData, error) {
	if cached, ok := r.cache.Load(host); ok {
		if entry, ok := cached.(*cachedRobots); ok && entry != nil && time.Since(entry.fetchedAt) < r.cacheTTL {
			return entry.data, nil
		}
		r.cache.Delete(host)
	}

	data, err := r.fetch(ctx, scheme, host)
	r.cache.Store(host, &cachedRobots{data: data, fetchedAt: time.Now()})
	return data, err
}

func (r *RobotsChecker) fetch(ctx context.Context, scheme, host string) (*robotstxt.RobotsData, error) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create robots.txt request for host %s: %w", host, err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt for host %s: %w", host, err)
	}
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	closeErr := resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("read robots.txt body for host %s: %w", host, readErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close robots.txt response body for host %s: %w", host, closeErr)
	}

	// 404 means no rules; 5xx fails open.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode >= 500 {
		return nil, nil
	}

	robots, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt for host %s: %w", host, err)
	}
	return robots, nil
}
