// Package config defines the crawl seed configuration, its defaults and the
// YAML file it can be loaded from.
package config

import (
	"net/url"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
)

// AppName names the XDG directories and the default config file.
const AppName = "facetcrawl"

// Sink kinds.
const (
	SinkSQLite   = "sqlite"
	SinkPostgres = "postgres"
	SinkJSON     = "json"
)

// Defaults.
const (
	DefaultStartURL          = "https://hh.ru/search/vacancy?area=113&clusters=true&enable_snippets=true&only_with_salary=true"
	DefaultMaxPages          = 100
	DefaultItemsPerPage      = 20
	DefaultConcurrency       = 10
	DefaultDetailConcurrency = 4
	DefaultRateLimit         = 10
	DefaultTargetRTT         = 500 * time.Millisecond
	DefaultRequestTimeout    = 15 * time.Second
	DefaultMaxRetries        = 2
	DefaultRetryBaseDelay    = 1 * time.Second
	DefaultRetryMaxDelay     = 30 * time.Second
	DefaultUserAgent         = "facetcrawl/1.0 (+https://github.com/lukemcguire/facetcrawl)"
	DefaultFlushSize         = 1000
	DefaultPGMaxConns        = 4
	DefaultDatabaseFile      = "facetcrawl.db"
)

// DefaultFacets is the split priority order used for hh.ru vacancy search.
var DefaultFacets = []string{
	"Регион",
	"Профобласть",
	"Специализация",
	"Опыт работы",
	"Отрасль компании",
	"График работы",
	"Тип занятости",
	"Сфера компании",
}

// SinkConfig selects where extracted listings go.
type SinkConfig struct {
	// Kind is one of "sqlite", "postgres" or "json".
	Kind string `yaml:"kind"`
	// Path is the SQLite database or JSON output file. "-" writes JSON to stdout.
	Path string `yaml:"path,omitempty"`
	// DSN is the PostgreSQL connection string.
	DSN       string `yaml:"dsn,omitempty"`
	MaxConns  int    `yaml:"max_conns,omitempty"`
	FlushSize int    `yaml:"flush_size"`
	// Dedup drops listings already submitted in this run.
	Dedup bool `yaml:"dedup"`
}

// Config is the seed configuration of one crawl. It is not modified after the
// crawl starts.
type Config struct {
	StartURL     string   `yaml:"start_url"`
	MaxPages     int      `yaml:"max_pages"`
	ItemsPerPage int      `yaml:"items_per_page"`
	Facets       []string `yaml:"facets"`

	Concurrency       int           `yaml:"concurrency"`
	DetailConcurrency int           `yaml:"detail_concurrency"`
	RateLimit         int           `yaml:"rate_limit"`
	AdaptiveRate      bool          `yaml:"adaptive_rate"`
	TargetRTT         time.Duration `yaml:"target_rtt"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay     time.Duration `yaml:"retry_max_delay"`
	UserAgent         string        `yaml:"user_agent"`
	RespectRobots     bool          `yaml:"respect_robots"`

	Sink SinkConfig `yaml:"sink"`
}

// NewConfig returns a Config populated with the defaults.
func NewConfig() *Config {
	return &Config{
		StartURL:          DefaultStartURL,
		MaxPages:          DefaultMaxPages,
		ItemsPerPage:      DefaultItemsPerPage,
		Facets:            slices.Clone(DefaultFacets),
		Concurrency:       DefaultConcurrency,
		DetailConcurrency: DefaultDetailConcurrency,
		RateLimit:         DefaultRateLimit,
		TargetRTT:         DefaultTargetRTT,
		RequestTimeout:    DefaultRequestTimeout,
		MaxRetries:        DefaultMaxRetries,
		RetryBaseDelay:    DefaultRetryBaseDelay,
		RetryMaxDelay:     DefaultRetryMaxDelay,
		UserAgent:         DefaultUserAgent,
		RespectRobots:     true,
		Sink: SinkConfig{
			Kind:      SinkSQLite,
			Path:      DefaultSQLitePath(),
			MaxConns:  DefaultPGMaxConns,
			FlushSize: DefaultFlushSize,
			Dedup:     true,
		},
	}
}

// XDGDataDir is where the default SQLite database lives,
// e.g. ~/.local/share/facetcrawl on Linux.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// DefaultSQLitePath is the database used when no sink path is configured.
func DefaultSQLitePath() string {
	return filepath.Join(XDGDataDir(), DefaultDatabaseFile)
}

// ResolveSinkPath sends a JSON sink with no path of its own to stdout. The
// default path names the SQLite database, so it counts as no path.
func (c *Config) ResolveSinkPath() {
	if c.Sink.Kind == SinkJSON && (c.Sink.Path == "" || c.Sink.Path == DefaultSQLitePath()) {
		c.Sink.Path = "-"
	}
}

// XDGConfigDir is searched for config.yaml, e.g. ~/.config/facetcrawl.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate returns the first problem found in c.
func (c *Config) Validate() error {
	if c.StartURL == "" {
		return ErrNoStartURL
	}
	u, err := url.Parse(c.StartURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidStartURL
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.ItemsPerPage <= 0 {
		return ErrInvalidItemsPerPage
	}
	if len(c.Facets) == 0 {
		return ErrNoFacets
	}
	if c.Concurrency <= 0 || c.DetailConcurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.RateLimit <= 0 {
		return ErrInvalidRateLimit
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxRetries < 0 {
		return ErrInvalidRetries
	}
	if c.Sink.FlushSize <= 0 {
		return ErrInvalidFlushSize
	}
	switch c.Sink.Kind {
	case SinkSQLite, SinkJSON:
		if c.Sink.Path == "" {
			return ErrMissingSinkPath
		}
	case SinkPostgres:
		if c.Sink.DSN == "" {
			return ErrMissingDSN
		}
	default:
		return ErrUnknownSinkKind
	}
	return nil
}
