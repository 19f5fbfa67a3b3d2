package config

import "errors"

// Validation errors returned by Config.Validate.
var (
	ErrNoStartURL          = errors.New("no start URL configured")
	ErrInvalidStartURL     = errors.New("invalid start URL: must be an absolute http or https URL")
	ErrInvalidMaxPages     = errors.New("invalid max pages: must be positive")
	ErrInvalidItemsPerPage = errors.New("invalid items per page: must be positive")
	ErrNoFacets            = errors.New("no facets configured: at least one facet is needed to split large queries")
	ErrInvalidConcurrency  = errors.New("invalid concurrency: must be positive")
	ErrInvalidRateLimit    = errors.New("invalid rate limit: must be positive")
	ErrInvalidTimeout      = errors.New("invalid request timeout: must be positive")
	ErrInvalidRetries      = errors.New("invalid max retries: must be non-negative")
	ErrInvalidFlushSize    = errors.New("invalid flush size: must be positive")
	ErrUnknownSinkKind     = errors.New("unknown sink kind: use sqlite, postgres or json")
	ErrMissingSinkPath     = errors.New("sink path is required for sqlite and json sinks")
	ErrMissingDSN          = errors.New("postgres sink requires a DSN")
)
