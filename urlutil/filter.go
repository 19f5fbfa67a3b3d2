package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// IsSameDomain checks if targetURL belongs to the same domain as baseHost.
// Subdomains are considered same-domain (e.g., spb.hh.ru matches hh.ru), which
// is how regional search hosts link back into the main one.
func IsSameDomain(targetURL string, baseHost string) bool {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	baseHost = strings.ToLower(baseHost)

	return host == baseHost || strings.HasSuffix(host, "."+baseHost)
}

// Hostname returns the host of rawURL without port, or "" if it cannot be parsed.
func Hostname(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

// IsHTTPScheme returns true if the URL has an http or https scheme.
// Returns false for empty strings, non-HTTP schemes, or unparseable URLs.
func IsHTTPScheme(rawURL string) bool {
	if rawURL == "" {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	scheme := strings.ToLower(parsed.Scheme)
	return scheme == "http" || scheme == "https"
}

// ResolveReference resolves a possibly-relative ref (a facet option href or
// pager link) against the page it was found on.
func ResolveReference(base *url.URL, ref string) (string, error) {
	if base == nil {
		return "", fmt.Errorf("resolve %q: nil base URL", ref)
	}
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse ref URL %q: %w", ref, err)
	}
	return base.ResolveReference(refURL).String(), nil
}
