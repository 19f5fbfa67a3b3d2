// Package urlutil normalizes search and listing URLs and derives the
// canonical identity used to deduplicate listings.
package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Normalize takes a raw URL string and returns a normalized version.
// Normalization includes:
// - Lowercasing the scheme and host
// - Stripping fragments (#section)
// - Stripping trailing slashes (except for root path "/")
// - Preserving query parameters, which carry facet selections on search URLs
//
// Returns an error if the input is empty or cannot be parsed as a valid URL.
func Normalize(rawURL string) (string, error) {
	parsed, err := parse(rawURL)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// CanonicalItemURL returns the identity of a listing detail page: the
// normalized URL without query string. Listing links carry per-search tracking
// parameters, so the same item reached through two facet branches differs
// only in its query.
func CanonicalItemURL(rawURL string) (string, error) {
	parsed, err := parse(rawURL)
	if err != nil {
		return "", err
	}
	parsed.RawQuery = ""
	parsed.ForceQuery = false
	return parsed.String(), nil
}

func parse(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, errors.New("cannot normalize empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("normalize URL %q: %w", rawURL, err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New("URL must have both scheme and host")
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	if parsed.Path != "/" && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}
	return parsed, nil
}
