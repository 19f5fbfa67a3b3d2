package main

import (
	"github.com/spf13/cobra"

	"github.com/lukemcguire/facetcrawl/config"
)

// buildConfig loads the config file and applies the flags the user set on top
// of it. It also returns the path of the file loaded, if any.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, string, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, path, err := config.Load(configPath)
	if err != nil {
		return nil, path, err
	}

	if len(args) > 0 {
		cfg.StartURL = args[0]
	}

	flags := cmd.Flags()
	intFlags := map[string]*int{
		"max-pages":          &cfg.MaxPages,
		"items-per-page":     &cfg.ItemsPerPage,
		"concurrency":        &cfg.Concurrency,
		"detail-concurrency": &cfg.DetailConcurrency,
		"rate":               &cfg.RateLimit,
		"retries":            &cfg.MaxRetries,
		"flush-size":         &cfg.Sink.FlushSize,
	}
	for name, dst := range intFlags {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}

	if flags.Changed("facet") {
		cfg.Facets, _ = flags.GetStringSlice("facet")
	}
	if flags.Changed("adaptive-rate") {
		cfg.AdaptiveRate, _ = flags.GetBool("adaptive-rate")
	}
	if flags.Changed("timeout") {
		cfg.RequestTimeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent, _ = flags.GetString("user-agent")
	}
	if noRobots, _ := flags.GetBool("no-robots"); noRobots {
		cfg.RespectRobots = false
	}
	if flags.Changed("sink") {
		cfg.Sink.Kind, _ = flags.GetString("sink")
	}
	if flags.Changed("output") {
		cfg.Sink.Path, _ = flags.GetString("output")
	} else {
		cfg.ResolveSinkPath()
	}
	if flags.Changed("dsn") {
		cfg.Sink.DSN, _ = flags.GetString("dsn")
	}
	if noDedup, _ := flags.GetBool("no-dedup"); noDedup {
		cfg.Sink.Dedup = false
	}

	return cfg, path, nil
}
