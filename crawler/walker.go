package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/lukemcguire/facetcrawl/partition"
	"github.com/lukemcguire/facetcrawl/sink"
)

// WalkResult summarizes one PageWalker pass over a query.
type WalkResult struct {
	Query partition.Query
	// Pages counts result pages processed, including a reused first page.
	Pages int
	// Fetches counts result pages fetched by the walker itself.
	Fetches   int
	Forwarded  int // listings handed to record extraction
	Emitted    int // new items accepted by the sink
	Duplicates int // items the sink had already seen
	// ExtractFailures counts listings whose detail page could not be fetched,
	// parsed or submitted. Listings cut short by cancellation are not counted.
	ExtractFailures int
	// FailedURL and Err describe the result page that stopped pagination.
	FailedURL string
	Err       error
}

// PageWalker follows the pagination of one query, extracting every listing
// row and submitting the items to the sink.
type PageWalker struct {
	fetcher     Fetcher
	parser      Parser
	out         sink.Sink
	stats       *partition.CrawlStats
	concurrency int
	host        string // listings outside this host are skipped; "" keeps all
	logger      *slog.Logger
}

// NewPageWalker builds a walker. detailConcurrency bounds the detail pages
// fetched at once for a single result page.
func NewPageWalker(fetcher Fetcher, parser Parser, out sink.Sink, stats *partition.CrawlStats, detailConcurrency int, logger *slog.Logger) *PageWalker {
	if detailConcurrency <= 0 {
		detailConcurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	if stats == nil {
		stats = partition.NewCrawlStats()
	}
	return &PageWalker{
		fetcher:     fetcher,
		parser:      parser,
		out:         out,
		stats:       stats,
		concurrency: detailConcurrency,
		logger:      logger,
	}
}

// Walk processes query's result pages starting at first, or at a fresh fetch
// of the query endpoint when first is nil, and follows next links until a page
// has none. A failed page ends the walk; listings already emitted stay emitted.
func (w *PageWalker) Walk(ctx context.Context, query partition.Query, first *partition.SearchPage) WalkResult {
	res := WalkResult{Query: query}
	seen := make(map[string]bool)

	page := first
	pageURL := query.Endpoint()
	for {
		if page == nil {
			if ctx.Err() != nil {
				res.FailedURL, res.Err = pageURL, ctx.Err()
				return res
			}
			var err error
			page, err = w.fetchPage(ctx, pageURL)
			res.Fetches++
			if err != nil {
				res.FailedURL, res.Err = pageURL, err
				w.logger.Warn("page walk stopped", "url", pageURL, "pages", res.Pages, "error", err)
				return res
			}
		}
		seen[page.URL] = true
		seen[pageURL] = true
		res.Pages++
		if n := scopePage(page, w.host); n > 0 {
			w.logger.Debug("off-host listings skipped", "url", page.URL, "listings", n)
		}

		w.extractPage(ctx, page, &res)

		if page.Next == "" {
			return res
		}
		if seen[page.Next] {
			w.logger.Warn("pager links back to a visited page", "url", page.URL, "next", page.Next)
			return res
		}
		pageURL = page.Next
		page = nil
	}
}

func (w *PageWalker) fetchPage(ctx context.Context, pageURL string) (*partition.SearchPage, error) {
	resp, err := w.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	page, err := w.parser.ParseSearchPage(bytes.NewReader(resp.Body), resp.URL)
	if err != nil {
		return nil, fmt.Errorf("parse result page %s: %w", pageURL, err)
	}
	return page, nil
}

// extractPage forwards every listing of page to record extraction, at most
// w.concurrency at a time, and waits for all of them.
func (w *PageWalker) extractPage(ctx context.Context, page *partition.SearchPage, res *WalkResult) {
	var emitted, dups, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for _, listing := range page.Listings {
		g.Go(func() error {
			err := w.extract(ctx, listing)
			switch {
			case err == nil:
				emitted.Add(1)
				w.stats.RecordEmitted(1)
			case errors.Is(err, sink.ErrDuplicate):
				dups.Add(1)
			case ctx.Err() != nil:
				// Canceled mid-flight; not a broken listing.
			default:
				failed.Add(1)
				w.logger.Debug("listing not extracted", "url", listing.URL, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Forwarded += len(page.Listings)
	res.Emitted += int(emitted.Load())
	res.Duplicates += int(dups.Load())
	res.ExtractFailures += int(failed.Load())
}

func (w *PageWalker) extract(ctx context.Context, listing partition.Listing) error {
	resp, err := w.fetcher.Fetch(ctx, listing.URL)
	if err != nil {
		return err
	}
	item, err := w.parser.ParseRecord(bytes.NewReader(resp.Body), listing)
	if err != nil {
		return fmt.Errorf("extract record: %w", err)
	}
	if err := w.out.Submit(ctx, item); err != nil {
		return fmt.Errorf("submit %s: %w", item.Key(), err)
	}
	return nil
}
