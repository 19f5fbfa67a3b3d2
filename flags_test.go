package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/lukemcguire/facetcrawl/config"
)

func TestBuildConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	configPath := filepath.Join(dir, "crawl.yaml")
	content := "max_pages: 50\nconcurrency: 3\nsink:\n  kind: sqlite\n  path: file.db\n  flush_size: 10\n  dedup: true\n"
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	jsonConfigPath := filepath.Join(dir, "json.yaml")
	if err := os.WriteFile(jsonConfigPath, []byte("sink:\n  kind: json\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "file values without flags",
			args: []string{"--config", configPath},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.MaxPages != 50 || cfg.Concurrency != 3 || cfg.Sink.Path != "file.db" {
					t.Errorf("cfg = %+v", cfg)
				}
				// Flag defaults never override the file.
				if cfg.Sink.FlushSize != 10 {
					t.Errorf("FlushSize = %d, want 10", cfg.Sink.FlushSize)
				}
			},
		},
		{
			name: "flags override file",
			args: []string{"--config", configPath, "--max-pages", "20", "--rate", "5", "--timeout", "3s", "--flush-size", "500"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.MaxPages != 20 || cfg.RateLimit != 5 || cfg.RequestTimeout != 3*time.Second || cfg.Sink.FlushSize != 500 {
					t.Errorf("cfg = %+v", cfg)
				}
				if cfg.Concurrency != 3 {
					t.Errorf("Concurrency = %d, want file value 3", cfg.Concurrency)
				}
			},
		},
		{
			name: "start url argument and facets",
			args: []string{"--facet", "Опыт работы", "--facet", "Регион", "https://hh.ru/search/vacancy?area=1"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.StartURL != "https://hh.ru/search/vacancy?area=1" {
					t.Errorf("StartURL = %q", cfg.StartURL)
				}
				if !reflect.DeepEqual(cfg.Facets, []string{"Опыт работы", "Регион"}) {
					t.Errorf("Facets = %v", cfg.Facets)
				}
			},
		},
		{
			name: "json sink defaults to stdout",
			args: []string{"--sink", "json", "--no-dedup", "--no-robots"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Sink.Kind != config.SinkJSON || cfg.Sink.Path != "-" {
					t.Errorf("Sink = %+v", cfg.Sink)
				}
				if cfg.Sink.Dedup || cfg.RespectRobots {
					t.Errorf("dedup=%v robots=%v, want both off", cfg.Sink.Dedup, cfg.RespectRobots)
				}
			},
		},
		{
			name: "json sink from the file defaults to stdout",
			args: []string{"--config", jsonConfigPath},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Sink.Kind != config.SinkJSON || cfg.Sink.Path != "-" {
					t.Errorf("Sink = %+v", cfg.Sink)
				}
			},
		},
		{
			name: "json sink with explicit output",
			args: []string{"--sink", "json", "-o", "listings.json"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Sink.Path != "listings.json" {
					t.Errorf("Sink.Path = %q, want listings.json", cfg.Sink.Path)
				}
			},
		},
		{
			name: "postgres dsn",
			args: []string{"--sink", "postgres", "--dsn", "postgres://crawler@localhost/hh"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Sink.Kind != config.SinkPostgres || cfg.Sink.DSN != "postgres://crawler@localhost/hh" {
					t.Errorf("Sink = %+v", cfg.Sink)
				}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := NewRootCmd()
			if err := cmd.ParseFlags(tc.args); err != nil {
				t.Fatalf("ParseFlags() error = %v", err)
			}
			cfg, _, err := buildConfig(cmd, cmd.Flags().Args())
			if err != nil {
				t.Fatalf("buildConfig() error = %v", err)
			}
			tc.check(t, cfg)
		})
	}
}

func TestBuildConfig_MissingExplicitFile(t *testing.T) {
	cmd := NewRootCmd()
	if err := cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := buildConfig(cmd, nil); err == nil {
		t.Error("expected an error for a missing explicit config file")
	}
}

func TestCrawlerConfig(t *testing.T) {
	cfg := config.NewConfig()
	cc := crawlerConfig(cfg)

	if cc.Limits.Capacity() != config.DefaultMaxPages*config.DefaultItemsPerPage {
		t.Errorf("Capacity() = %d", cc.Limits.Capacity())
	}
	if cc.RetryPolicy.MaxRetries != config.DefaultMaxRetries || cc.RetryPolicy.BaseDelay != config.DefaultRetryBaseDelay {
		t.Errorf("RetryPolicy = %+v", cc.RetryPolicy)
	}
	if !reflect.DeepEqual(cc.Facets, config.DefaultFacets) {
		t.Errorf("Facets = %v", cc.Facets)
	}
}
