package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lukemcguire/facetcrawl/config"
)

// errIncomplete is returned when the crawl finished but listings are believed
// missing. It maps to exit status 2.
var errIncomplete = errors.New("crawl incomplete")

// NewRootCmd creates the root command, which runs a crawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facetcrawl [start-url]",
		Short: "Collect every vacancy of an hh.ru search",
		Long: `facetcrawl fetches an hh.ru vacancy search and, whenever the result is larger
than the pages the site will list, splits it along the search facets (region,
specialization, experience, ...) until every branch can be paged through.
Vacancies are written to SQLite (default), PostgreSQL or a JSON file.

Examples:
  # Crawl the default search into ~/.local/share/facetcrawl/facetcrawl.db
  facetcrawl

  # Crawl Moscow only and write JSON to stdout
  facetcrawl --sink json -o - "https://hh.ru/search/vacancy?area=1&clusters=true"

  # Store into PostgreSQL, saving a Markdown report
  facetcrawl --sink postgres --dsn postgres://crawler@localhost/hh --report-markdown report.md`,
		Args:          cobra.MaximumNArgs(1),
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCrawlCmd,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file (default: ./"+config.LocalConfigFile+" or $XDG_CONFIG_HOME/"+config.AppName+"/"+config.XDGConfigFile+")")

	// Partitioning
	cmd.Flags().StringSlice("facet", nil, "Facet names in split priority order (repeatable)")
	cmd.Flags().Int("max-pages", config.DefaultMaxPages, "Result pages the site paginates through per query")
	cmd.Flags().Int("items-per-page", config.DefaultItemsPerPage, "Listings per result page")

	// Fetching
	cmd.Flags().Int("concurrency", config.DefaultConcurrency, "Concurrent partition and walk jobs")
	cmd.Flags().Int("detail-concurrency", config.DefaultDetailConcurrency, "Detail pages fetched at once per result page")
	cmd.Flags().Int("rate", config.DefaultRateLimit, "Requests per second")
	cmd.Flags().Bool("adaptive-rate", false, "Adjust the rate to response times")
	cmd.Flags().Duration("timeout", config.DefaultRequestTimeout, "Per-request timeout")
	cmd.Flags().Int("retries", config.DefaultMaxRetries, "Retries for transient fetch errors")
	cmd.Flags().String("user-agent", config.DefaultUserAgent, "User-Agent header")
	cmd.Flags().Bool("no-robots", false, "Ignore robots.txt")

	// Output
	cmd.Flags().String("sink", config.SinkSQLite, "Listing sink: sqlite, postgres or json")
	cmd.Flags().StringP("output", "o", "", "SQLite database or JSON file path (\"-\" for stdout)")
	cmd.Flags().String("dsn", "", "PostgreSQL connection string")
	cmd.Flags().Int("flush-size", config.DefaultFlushSize, "Records per database commit")
	cmd.Flags().Bool("no-dedup", false, "Keep listings reached through several branches")
	cmd.Flags().String("report-json", "", "Write the crawl report as JSON to this file")
	cmd.Flags().String("report-csv", "", "Write abandoned branches as CSV to this file")
	cmd.Flags().String("report-markdown", "", "Write the crawl report as Markdown to this file")
	cmd.Flags().Bool("no-tui", false, "Disable the interactive progress display")

	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	err := NewRootCmd().Execute()
	switch {
	case err == nil:
	case errors.Is(err, errIncomplete):
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
