package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/lukemcguire/facetcrawl/config"
	"github.com/lukemcguire/facetcrawl/crawler"
	"github.com/lukemcguire/facetcrawl/hh"
	"github.com/lukemcguire/facetcrawl/logging"
	"github.com/lukemcguire/facetcrawl/partition"
	"github.com/lukemcguire/facetcrawl/result"
	"github.com/lukemcguire/facetcrawl/sink"
	"github.com/lukemcguire/facetcrawl/tui"
)

// closeTimeout bounds the final flush of the sink after the crawl.
const closeTimeout = 30 * time.Second

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, path, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	logJSON, _ := cmd.Flags().GetBool("log-json")
	logger := logging.New(cmd.ErrOrStderr(), logging.Options{Verbose: verbose, JSON: logJSON})
	slog.SetDefault(logger)
	if path != "" {
		logger.Info("config loaded", "path", path)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := openSink(ctx, cfg.Sink, cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}

	report, runErr := runCrawl(ctx, cmd, cfg, out, logger)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	closeErr := out.Close(closeCtx)
	if runErr != nil {
		return errors.Join(runErr, closeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close sink: %w", closeErr)
	}
	report.RecordUnsaved(out.unsaved())

	if err := writeReports(cmd, report); err != nil {
		return err
	}
	return finish(report, logger)
}

// runCrawl runs the crawl behind the TUI when a terminal is attached and it is
// wanted, otherwise headless with a plain-text summary.
func runCrawl(ctx context.Context, cmd *cobra.Command, cfg *config.Config, out sink.Sink, logger *slog.Logger) (*result.Report, error) {
	if useTUI(cmd, cfg) {
		// The TUI owns the screen, so logs go to a file under the data directory.
		quiet := logging.New(io.Discard, logging.Options{})
		if logPath, ok := tuiLogPath(); ok {
			if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600); err == nil {
				defer func() { _ = f.Close() }()
				quiet = logging.New(f, logging.Options{})
			}
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		progressCh := make(chan crawler.CrawlEvent, 100)
		c := crawler.New(crawlerConfig(cfg), hh.Parser{}, out, progressCh, crawler.WithLogger(quiet))

		program := tea.NewProgram(tui.NewModel(ctx, cancel, c, progressCh), tea.WithOutput(cmd.OutOrStdout()))
		finalModel, err := program.Run()
		// A forced quit leaves the crawl winding down; keep its sends unblocked.
		go func() {
			for range progressCh {
			}
		}()
		if err != nil {
			return nil, fmt.Errorf("run progress display: %w", err)
		}
		model, ok := finalModel.(tui.Model)
		if !ok || model.GetReport() == nil {
			if ok && model.Err() != nil {
				return nil, model.Err()
			}
			return nil, errors.New("crawl interrupted before a report was produced")
		}
		return model.GetReport(), nil
	}

	c := crawler.New(crawlerConfig(cfg), hh.Parser{}, out, nil, crawler.WithLogger(logger))
	report, err := c.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("crawl: %w", err)
	}
	result.PrintReport(summaryWriter(cmd, cfg), report)
	return report, nil
}

// useTUI reports whether the progress display should run: not disabled,
// stdout is a terminal, and stdout does not carry the JSON output.
func useTUI(cmd *cobra.Command, cfg *config.Config) bool {
	if noTUI, _ := cmd.Flags().GetBool("no-tui"); noTUI {
		return false
	}
	if cfg.Sink.Kind == config.SinkJSON && cfg.Sink.Path == "-" {
		return false
	}
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// tuiLogPath is where logs go while the TUI holds the terminal.
func tuiLogPath() (string, bool) {
	dir := config.XDGDataDir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", false
	}
	return filepath.Join(dir, config.AppName+".log"), true
}

// summaryWriter keeps stdout clean when it carries the JSON listings.
func summaryWriter(cmd *cobra.Command, cfg *config.Config) io.Writer {
	if cfg.Sink.Kind == config.SinkJSON && cfg.Sink.Path == "-" {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}

func crawlerConfig(cfg *config.Config) crawler.Config {
	return crawler.Config{
		StartURL: cfg.StartURL,
		Facets:   cfg.Facets,
		Limits: partition.Limits{
			MaxPages:     cfg.MaxPages,
			ItemsPerPage: cfg.ItemsPerPage,
		},
		Concurrency:       cfg.Concurrency,
		DetailConcurrency: cfg.DetailConcurrency,
		RateLimit:         cfg.RateLimit,
		AdaptiveRate:      cfg.AdaptiveRate,
		TargetRTT:         cfg.TargetRTT,
		RequestTimeout:    cfg.RequestTimeout,
		RetryPolicy: crawler.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryBaseDelay,
			MaxDelay:   cfg.RetryMaxDelay,
		},
		UserAgent:     cfg.UserAgent,
		RespectRobots: cfg.RespectRobots,
	}
}

// writeReports writes the report files requested by flags.
func writeReports(cmd *cobra.Command, report *result.Report) error {
	writers := []struct {
		flag  string
		write func(io.Writer) error
	}{
		{"report-json", func(w io.Writer) error { return result.WriteJSON(w, report) }},
		{"report-csv", func(w io.Writer) error { return result.WriteCSV(w, report.Aborts) }},
		{"report-markdown", func(w io.Writer) error { return result.WriteMarkdown(w, report) }},
	}
	for _, rw := range writers {
		path, _ := cmd.Flags().GetString(rw.flag)
		if path == "" {
			continue
		}
		if err := writeFile(path, rw.write); err != nil {
			return fmt.Errorf("write %s: %w", rw.flag, err)
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // user-provided output path
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// finish logs the completion report and maps an incomplete crawl to
// errIncomplete.
func finish(report *result.Report, logger *slog.Logger) error {
	if report.Complete() {
		logger.Info("crawl complete", "emitted", report.Emitted, "max_observed", report.MaxObserved)
		return nil
	}
	level := slog.LevelInfo
	if report.LossEstimate > 0 {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "crawl incomplete",
		"emitted", report.Emitted,
		"max_observed", report.MaxObserved,
		"loss_estimate", report.LossEstimate,
		"aborts", len(report.Aborts),
		"known_loss", report.KnownLoss(),
		"unknown_aborts", report.UnknownAborts(),
		"duplicates", report.Duplicates,
		"unsaved", report.Unsaved,
		"canceled", report.Canceled,
	)
	return errIncomplete
}
