// Package crawler runs the faceted partition crawl: a bounded worker pool
// fetches result pages, the partitioner decides per query whether to walk or
// split it, and page walkers push extracted listings to a sink.
package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lukemcguire/facetcrawl/partition"
	"github.com/lukemcguire/facetcrawl/result"
	"github.com/lukemcguire/facetcrawl/sink"
	"github.com/lukemcguire/facetcrawl/urlutil"
)

// Config holds crawler configuration.
type Config struct {
	StartURL          string           // Root query
	Facets            []string         // Split priority order
	Limits            partition.Limits // Walkable page window
	Concurrency       int              // Concurrent jobs (default 10)
	DetailConcurrency int              // Detail pages per result page in flight (default 4)
	RateLimit         int              // Requests per second (default 10)
	AdaptiveRate      bool             // Let response times steer the rate
	TargetRTT         time.Duration    // Adaptive target (default 500ms)
	RequestTimeout    time.Duration    // Per-request timeout (default 15s)
	RetryPolicy       RetryPolicy
	UserAgent         string
	RespectRobots     bool
}

func (cfg Config) withDefaults() Config {
	if cfg.Limits.MaxPages <= 0 {
		cfg.Limits.MaxPages = 100
	}
	if cfg.Limits.ItemsPerPage <= 0 {
		cfg.Limits.ItemsPerPage = 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.DetailConcurrency <= 0 {
		cfg.DetailConcurrency = 4
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.TargetRTT <= 0 {
		cfg.TargetRTT = 500 * time.Millisecond
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "facetcrawl/1.0 (+https://github.com/lukemcguire/facetcrawl)"
	}
	if cfg.RetryPolicy == (RetryPolicy{}) {
		cfg.RetryPolicy = DefaultRetryPolicy()
	}
	return cfg
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger for decisions, aborts and walk failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Crawler) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f Fetcher) Option {
	return func(c *Crawler) {
		if f != nil {
			c.fetcher = f
		}
	}
}

// WithStats makes the crawl record into stats instead of fresh counters.
func WithStats(stats *partition.CrawlStats) Option {
	return func(c *Crawler) {
		if stats != nil {
			c.stats = stats
		}
	}
}

// Crawler coordinates partition and walk jobs over a worker pool.
type Crawler struct {
	cfg         Config
	fetcher     Fetcher
	parser      Parser
	out         sink.Sink
	stats       *partition.CrawlStats
	partitioner *partition.Partitioner
	walker      *PageWalker
	host        string // links outside it are not followed
	logger      *slog.Logger
	progressCh  chan<- CrawlEvent
}

// New creates a Crawler. progressCh is optional; pass nil to disable progress
// events. A non-nil channel must be drained until Run returns.
func New(cfg Config, parser Parser, out sink.Sink, progressCh chan<- CrawlEvent, opts ...Option) *Crawler {
	c := &Crawler{
		cfg:        cfg.withDefaults(),
		parser:     parser,
		out:        out,
		logger:     slog.Default(),
		progressCh: progressCh,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = NewHTTPFetcher(c.cfg, c.logger)
	}
	if c.stats == nil {
		c.stats = partition.NewCrawlStats()
	}
	c.partitioner = partition.NewPartitioner(c.cfg.Limits, c.stats)
	c.host = urlutil.Hostname(c.cfg.StartURL)
	c.walker = NewPageWalker(c.fetcher, parser, out, c.stats, c.cfg.DetailConcurrency, c.logger)
	c.walker.host = c.host
	return c
}

// Stats returns the crawl-wide counters.
func (c *Crawler) Stats() *partition.CrawlStats { return c.stats }

type jobKind int

const (
	jobPartition jobKind = iota
	jobWalk
)

type job struct {
	kind jobKind
	task partition.PartitionTask
	page *partition.SearchPage // first page of a walk, already fetched
}

type jobResult struct {
	job      job
	decision partition.Decision
	page     *partition.SearchPage
	walk     WalkResult
	canceled bool
}

// Run crawls from cfg.StartURL until every branch has been walked or
// abandoned, or ctx is canceled, and returns the report.
func (c *Crawler) Run(ctx context.Context) (*result.Report, error) {
	start := time.Now()

	startURL, err := urlutil.Normalize(c.cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("normalize start URL: %w", err)
	}
	root := partition.NewRootTask(partition.NewQuery(startURL), c.cfg.Facets)

	report := &result.Report{StartURL: startURL}

	jobs := make(chan job)
	results := make(chan jobResult, c.cfg.Concurrency)

	errGroup, groupCtx := errgroup.WithContext(ctx)
	for range c.cfg.Concurrency {
		errGroup.Go(func() error {
			for j := range jobs {
				// Always send a result; the coordinator counts them.
				results <- c.process(groupCtx, j)
			}
			return nil
		})
	}

	c.logger.Info("crawl started",
		"url", startURL,
		"facets", len(root.RemainingFacets()),
		"capacity", c.cfg.Limits.Capacity(),
		"concurrency", c.cfg.Concurrency,
	)

	queue := []job{{kind: jobPartition, task: root}}
	inFlight := 0
	done := ctx.Done()

	for len(queue) > 0 || inFlight > 0 {
		var sendCh chan<- job
		var next job
		if len(queue) > 0 {
			sendCh = jobs
			next = queue[0]
		}

		select {
		case sendCh <- next:
			queue = queue[1:]
			inFlight++
		case res := <-results:
			inFlight--
			queue = c.handle(ctx, res, queue, report)
			c.emit(res, report, len(queue)+inFlight)
		case <-done:
			done = nil
			if len(queue) > 0 {
				c.logger.Warn("crawl canceled, dropping queued jobs", "queued", len(queue), "in_flight", inFlight)
				report.Canceled = true
				queue = nil
			}
		}
	}

	close(jobs)
	if waitErr := errGroup.Wait(); waitErr != nil {
		return nil, fmt.Errorf("wait for workers: %w", waitErr)
	}
	if ctx.Err() != nil {
		report.Canceled = true
	}

	report.Emitted = c.stats.TotalEmitted()
	report.MaxObserved = c.stats.MaxObserved()
	report.LossEstimate = c.stats.LossEstimate()
	report.Duration = time.Since(start)

	attrs := []any{
		"emitted", report.Emitted,
		"max_observed", report.MaxObserved,
		"loss_estimate", report.LossEstimate,
		"duplicates", report.Duplicates,
		"aborts", len(report.Aborts),
		"duration", report.Duration.Round(time.Millisecond),
	}
	if l := c.limiter(); l != nil {
		report.Throttles = l.Throttles()
		report.FinalRate = l.CurrentRate()
		attrs = append(attrs,
			"throttles", report.Throttles,
			"rate", report.FinalRate,
			"ema_rtt", l.CurrentEMA().Round(time.Millisecond),
			"target_rtt", l.TargetRTT(),
		)
	}
	c.logger.Info("crawl finished", attrs...)
	return report, nil
}

// limiter returns the rate limiter of the fetcher, if it has one.
func (c *Crawler) limiter() *AdaptiveLimiter {
	if lf, ok := c.fetcher.(interface{ Limiter() *AdaptiveLimiter }); ok {
		return lf.Limiter()
	}
	return nil
}

// process runs one job on a worker.
func (c *Crawler) process(ctx context.Context, j job) jobResult {
	res := jobResult{job: j}
	if j.kind == jobWalk {
		res.walk = c.walker.Walk(ctx, j.task.Query(), j.page)
		res.canceled = ctx.Err() != nil
		return res
	}

	pageURL := j.task.Query().Endpoint()
	var page *partition.SearchPage
	resp, err := c.fetcher.Fetch(ctx, pageURL)
	if err == nil {
		page, err = c.parser.ParseSearchPage(bytes.NewReader(resp.Body), resp.URL)
		if err != nil {
			err = fmt.Errorf("parse result page %s: %w", pageURL, err)
		}
	}
	if err != nil {
		res.canceled = ctx.Err() != nil
		res.decision = c.partitioner.Fail(j.task, err)
		return res
	}

	if n := scopePage(page, c.host); n > 0 {
		c.logger.Debug("off-host listings skipped", "url", pageURL, "listings", n)
	}
	res.page = page
	res.decision = c.partitioner.EvaluatePage(j.task, page)
	return res
}

// handle folds a finished job into the report and returns the queue with any
// follow-up jobs appended. It runs on the coordinator only.
func (c *Crawler) handle(ctx context.Context, res jobResult, queue []job, report *result.Report) []job {
	if res.job.kind == jobWalk {
		w := res.walk
		report.Pages += w.Fetches
		report.ParseFailures += w.ExtractFailures
		report.Duplicates += int64(w.Duplicates)
		if w.Err != nil && !res.canceled {
			report.FailedPages++
		}
		return queue
	}

	report.Pages++
	d := res.decision
	if depth := d.Task.Depth(); depth > report.MaxDepth {
		report.MaxDepth = depth
	}

	switch d.Outcome {
	case partition.OutcomeWalk:
		report.Walks++
		if ctx.Err() == nil {
			queue = append(queue, job{kind: jobWalk, task: d.Task, page: res.page})
		}
	case partition.OutcomeExactSplit, partition.OutcomeApproximateSplit:
		if d.Outcome == partition.OutcomeExactSplit {
			report.ExactSplits++
			c.logger.Debug("exact split", "query", d.Task.Query().String(), "facet", d.Facet, "count", d.Count, "children", len(d.Children))
		} else {
			report.ApproxSplits++
			c.logger.Info("approximate split", "query", d.Task.Query().String(), "facet", d.Facet, "count", d.Count, "children", len(d.Children))
		}
		if ctx.Err() != nil {
			report.Canceled = true
			return queue
		}
		for _, child := range d.Children {
			queue = append(queue, job{kind: jobPartition, task: child})
		}
	case partition.OutcomeAbort:
		if res.canceled {
			report.Canceled = true
			return queue
		}
		report.Aborts = append(report.Aborts, c.abortRecord(d))
	}
	return queue
}

func (c *Crawler) abortRecord(d partition.Decision) result.AbortRecord {
	a := d.Abort
	rec := result.AbortRecord{
		URL:    d.Task.Query().Endpoint(),
		Query:  d.Task.Query().String(),
		Reason: string(a.Reason),
		Lost:   a.Lost,
		Known:  a.Known,
		Depth:  d.Task.Depth(),
	}
	if a.Err != nil {
		rec.Error = a.Err.Error()
		var fe *FetchError
		switch {
		case errors.As(a.Err, &fe):
			rec.Category = fe.Category()
		case errors.Is(a.Err, partition.ErrMalformedCount):
			rec.Category = result.CategoryMalformed
		default:
			rec.Category = result.ClassifyError(a.Err, 0)
		}
	}

	if a.Reason == partition.ReasonMalformedCount {
		c.logger.Warn("unknown-size loss", "reason", a.Reason, "url", rec.URL, "error", rec.Error)
	} else {
		c.logger.Warn("branch abandoned", "reason", a.Reason, "url", rec.URL, "lost", a.Lost, "known", a.Known, "error", rec.Error)
	}
	return rec
}

// emit sends a progress event for res, if a progress channel is set.
func (c *Crawler) emit(res jobResult, report *result.Report, pending int) {
	if c.progressCh == nil {
		return
	}
	evt := CrawlEvent{
		Query:       res.job.task.Query().String(),
		URL:         res.job.task.Query().Endpoint(),
		Depth:       res.job.task.Depth(),
		Emitted:     c.stats.TotalEmitted(),
		MaxObserved: c.stats.MaxObserved(),
		Pending:     pending,
	}
	if l := c.limiter(); l != nil {
		evt.Throttles = l.Throttles()
	}
	if res.job.kind == jobWalk {
		evt.Kind = EventWalk
		evt.Count = res.walk.Emitted
		evt.Pages = res.walk.Pages
		if res.walk.Err != nil {
			evt.Error = res.walk.Err.Error()
			var fe *FetchError
			if errors.As(res.walk.Err, &fe) {
				evt.ErrorCategory = fe.Category()
			}
		}
	} else {
		d := res.decision
		evt.Kind = EventDecision
		evt.Outcome = d.Outcome
		evt.Count = d.Count
		evt.Children = len(d.Children)
		if d.Abort != nil {
			evt.Reason = d.Abort.Reason
			if n := len(report.Aborts); n > 0 && report.Aborts[n-1].URL == evt.URL {
				evt.Error = report.Aborts[n-1].Error
				evt.ErrorCategory = report.Aborts[n-1].Category
			}
		}
	}
	c.progressCh <- evt
}
