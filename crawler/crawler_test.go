package crawler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lukemcguire/facetcrawl/partition"
	"github.com/lukemcguire/facetcrawl/result"
	"github.com/lukemcguire/facetcrawl/sink"
)

const (
	rootURL   = "https://hh.test/search/vacancy?area=113"
	moscowURL = "https://hh.test/search/vacancy?area=1"
	spbURL    = "https://hh.test/search/vacancy?area=2"
)

// testLimits makes anything above 19 listings too big to walk.
var testLimits = partition.Limits{MaxPages: 1, ItemsPerPage: 20}

func region(opts ...partition.FacetOption) partition.FacetGroup {
	return partition.FacetGroup{Name: "Регион", Options: opts}
}

// splitSite is a root of 30 listings split exactly into 18 + 12 by region.
func splitSite(spbCount int) (*fakeFetcher, *stubParser) {
	fetcher := newFakeFetcher()
	parser := newStubParser()
	parser.add(&partition.SearchPage{
		URL:   rootURL,
		Total: 30,
		Facets: partition.FacetInventory{region(
			partition.FacetOption{Label: "Россия", ReportedCount: 30, Link: rootURL, Selected: true},
			partition.FacetOption{Label: "Москва", ReportedCount: 18, Link: moscowURL},
			partition.FacetOption{Label: "Санкт-Петербург", ReportedCount: spbCount, Link: spbURL},
		)},
		Listings: listings("root", 20),
	})
	parser.add(&partition.SearchPage{URL: moscowURL, Total: 18, Listings: listings("msk", 18)})
	parser.add(&partition.SearchPage{URL: spbURL, Total: spbCount, Listings: listings("spb", spbCount)})
	return fetcher, parser
}

func newTestCrawler(fetcher Fetcher, parser Parser, out *memorySink, facets []string, progressCh chan<- CrawlEvent) *Crawler {
	cfg := Config{
		StartURL:    rootURL,
		Facets:      facets,
		Limits:      testLimits,
		Concurrency: 3,
	}
	return New(cfg, parser, out, progressCh, WithFetcher(fetcher), WithLogger(quietLogger()))
}

func TestCrawler_ExactSplitThenWalk(t *testing.T) {
	fetcher, parser := splitSite(12)
	out := &memorySink{}
	c := newTestCrawler(fetcher, parser, out, []string{"Регион"}, nil)

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.ExactSplits != 1 || report.Walks != 2 {
		t.Errorf("ExactSplits = %d, Walks = %d, want 1 and 2", report.ExactSplits, report.Walks)
	}
	if report.Emitted != 30 || out.len() != 30 {
		t.Errorf("Emitted = %d, sink = %d, want 30", report.Emitted, out.len())
	}
	if report.MaxObserved != 30 || report.LossEstimate != 0 {
		t.Errorf("MaxObserved = %d, LossEstimate = %d, want 30 and 0", report.MaxObserved, report.LossEstimate)
	}
	if report.Pages != 3 {
		t.Errorf("Pages = %d, want 3", report.Pages)
	}
	if report.MaxDepth != 1 {
		t.Errorf("MaxDepth = %d, want 1", report.MaxDepth)
	}
	if !report.Complete() {
		t.Errorf("expected a complete crawl, got %+v", report)
	}
	// Walks reuse the page the partition job fetched.
	if n := fetcher.count(moscowURL); n != 1 {
		t.Errorf("child page fetched %d times, want 1", n)
	}
}

func TestCrawler_ApproximateSplit(t *testing.T) {
	fetcher, parser := splitSite(10)
	c := newTestCrawler(fetcher, parser, &memorySink{}, []string{"Регион", "Опыт работы"}, nil)

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.ApproxSplits != 1 || report.ExactSplits != 0 {
		t.Errorf("ApproxSplits = %d, ExactSplits = %d, want 1 and 0", report.ApproxSplits, report.ExactSplits)
	}
	if report.Emitted != 28 || report.LossEstimate != 2 {
		t.Errorf("Emitted = %d, LossEstimate = %d, want 28 and 2", report.Emitted, report.LossEstimate)
	}
	if report.Complete() {
		t.Error("a crawl with missing listings must not be complete")
	}
}

func TestCrawler_Aborts(t *testing.T) {
	testCases := []struct {
		name       string
		facets     []string
		setup      func(*fakeFetcher, *stubParser)
		wantReason partition.AbortReason
		wantLost   int
		wantKnown  bool
		wantCat    result.ErrorCategory
		emitted    int64
	}{
		{
			name:       "child fetch failure",
			facets:     []string{"Регион"},
			setup:      func(f *fakeFetcher, _ *stubParser) { f.fail(spbURL, 500) },
			wantReason: partition.ReasonFetchFailure,
			wantLost:   12,
			wantKnown:  true,
			wantCat:    result.Category5xx,
			emitted:    18,
		},
		{
			name:       "root fetch failure",
			facets:     []string{"Регион"},
			setup:      func(f *fakeFetcher, _ *stubParser) { f.fail(rootURL, 404) },
			wantReason: partition.ReasonFetchFailure,
			wantLost:   0,
			wantKnown:  false,
			wantCat:    result.Category4xx,
		},
		{
			name:       "no facets left",
			facets:     nil,
			wantReason: partition.ReasonOverCapacity,
			wantLost:   30,
			wantKnown:  true,
		},
		{
			name:       "facet missing from page",
			facets:     []string{"Опыт работы"},
			wantReason: partition.ReasonInventoryMismatch,
			wantLost:   30,
			wantKnown:  true,
		},
		{
			name:   "malformed count",
			facets: []string{"Регион"},
			setup: func(_ *fakeFetcher, p *stubParser) {
				p.pages[spbURL].TotalErr = partition.ErrMalformedCount
			},
			wantReason: partition.ReasonMalformedCount,
			wantLost:   0,
			wantKnown:  false,
			wantCat:    result.CategoryMalformed,
			emitted:    18,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher, parser := splitSite(12)
			if tc.setup != nil {
				tc.setup(fetcher, parser)
			}
			c := newTestCrawler(fetcher, parser, &memorySink{}, tc.facets, nil)

			report, err := c.Run(context.Background())
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if len(report.Aborts) != 1 {
				t.Fatalf("expected 1 abort, got %+v", report.Aborts)
			}
			a := report.Aborts[0]
			if a.Reason != string(tc.wantReason) || a.Lost != tc.wantLost || a.Known != tc.wantKnown {
				t.Errorf("abort = %+v, want reason %s lost %d known %v", a, tc.wantReason, tc.wantLost, tc.wantKnown)
			}
			if tc.wantCat != "" && a.Category != tc.wantCat {
				t.Errorf("Category = %q, want %q", a.Category, tc.wantCat)
			}
			if report.Emitted != tc.emitted {
				t.Errorf("Emitted = %d, want %d", report.Emitted, tc.emitted)
			}
			if report.Complete() {
				t.Error("a crawl with aborts must not be complete")
			}
		})
	}
}

func TestCrawler_ProgressEvents(t *testing.T) {
	fetcher, parser := splitSite(12)
	events := make(chan CrawlEvent, 16)
	c := newTestCrawler(fetcher, parser, &memorySink{}, []string{"Регион"}, events)

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	close(events)

	var decisions, walks int
	var last CrawlEvent
	for evt := range events {
		switch evt.Kind {
		case EventDecision:
			decisions++
		case EventWalk:
			walks++
		}
		last = evt
	}
	if decisions != 3 || walks != 2 {
		t.Errorf("decisions = %d, walks = %d, want 3 and 2", decisions, walks)
	}
	if last.Pending != 0 {
		t.Errorf("last event Pending = %d, want 0", last.Pending)
	}
	if last.Emitted != 30 {
		t.Errorf("last event Emitted = %d, want 30", last.Emitted)
	}
}

func TestCrawler_Cancellation(t *testing.T) {
	fetcher, parser := splitSite(12)
	c := newTestCrawler(fetcher, parser, &memorySink{}, []string{"Регион"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	var report *result.Report
	var runErr error
	go func() {
		report, runErr = c.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
	if runErr != nil {
		t.Fatalf("Run() error = %v", runErr)
	}
	if !report.Canceled {
		t.Error("expected report to be marked canceled")
	}
	if len(report.Aborts) != 0 {
		t.Errorf("canceled jobs must not be recorded as aborts: %+v", report.Aborts)
	}
	if report.Complete() {
		t.Error("a canceled crawl must not be complete")
	}
}

func TestCrawler_InvalidStartURL(t *testing.T) {
	c := New(Config{StartURL: "not a url"}, newStubParser(), &memorySink{}, nil,
		WithFetcher(newFakeFetcher()), WithLogger(quietLogger()))

	if _, err := c.Run(context.Background()); err == nil {
		t.Error("expected an error for an invalid start URL")
	}
}

func vacancyRange(from, to int) []partition.Listing {
	var out []partition.Listing
	for i := from; i <= to; i++ {
		out = append(out, partition.Listing{URL: fmt.Sprintf("https://hh.test/vacancy/%d", i)})
	}
	return out
}

func TestCrawler_OverlappingApproximateSplit(t *testing.T) {
	fetcher := newFakeFetcher()
	parser := newStubParser()
	// 12 + 12 does not match 25. The siblings share 8 vacancies and
	// vacancies 17 to 25 are reachable through neither.
	parser.add(&partition.SearchPage{
		URL:   rootURL,
		Total: 25,
		Facets: partition.FacetInventory{region(
			partition.FacetOption{Label: "Москва", ReportedCount: 12, Link: moscowURL},
			partition.FacetOption{Label: "Санкт-Петербург", ReportedCount: 12, Link: spbURL},
		)},
	})
	parser.add(&partition.SearchPage{URL: moscowURL, Total: 12, Listings: vacancyRange(1, 12)})
	parser.add(&partition.SearchPage{URL: spbURL, Total: 12, Listings: vacancyRange(5, 16)})

	stored := &memorySink{}
	dedup, err := sink.NewDeduperSized(stored, 1000, 0.001)
	if err != nil {
		t.Fatalf("NewDeduperSized() error = %v", err)
	}
	defer func() { _ = dedup.Close(context.Background()) }()

	cfg := Config{StartURL: rootURL, Facets: []string{"Регион"}, Limits: testLimits, Concurrency: 2}
	c := New(cfg, parser, dedup, nil, WithFetcher(fetcher), WithLogger(quietLogger()))

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.ApproxSplits != 1 {
		t.Errorf("ApproxSplits = %d, want 1", report.ApproxSplits)
	}
	if stored.len() != 16 || report.Emitted != 16 {
		t.Errorf("stored = %d, Emitted = %d, want 16 and 16", stored.len(), report.Emitted)
	}
	if report.Duplicates != 8 {
		t.Errorf("Duplicates = %d, want 8", report.Duplicates)
	}
	if report.LossEstimate != 9 {
		t.Errorf("LossEstimate = %d, want 9", report.LossEstimate)
	}
	if report.ParseFailures != 0 {
		t.Errorf("ParseFailures = %d, want 0: repeats are not failures", report.ParseFailures)
	}
	if report.Complete() {
		t.Errorf("overlapping approximate split must not be complete: %+v", report)
	}
}

// cancelOnDetail cancels the crawl as soon as the first detail page is
// requested and holds every detail fetch until the cancellation lands.
type cancelOnDetail struct {
	*fakeFetcher
	cancel context.CancelFunc
}

func (f cancelOnDetail) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if strings.Contains(rawURL, "/vacancy/") {
		f.cancel()
		<-ctx.Done()
	}
	return f.fakeFetcher.Fetch(ctx, rawURL)
}

func TestCrawler_CancelDuringWalk(t *testing.T) {
	parser := newStubParser()
	parser.add(&partition.SearchPage{URL: rootURL, Total: 8, Listings: vacancyRange(1, 8)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetcher := cancelOnDetail{fakeFetcher: newFakeFetcher(), cancel: cancel}

	out := &memorySink{}
	c := newTestCrawler(fetcher, parser, out, []string{"Регион"}, nil)

	report, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !report.Canceled {
		t.Error("expected report to be marked canceled")
	}
	if report.ParseFailures != 0 {
		t.Errorf("ParseFailures = %d, want 0 for listings cut off by cancellation", report.ParseFailures)
	}
	if out.len() != 0 || report.Emitted != 0 {
		t.Errorf("stored = %d, Emitted = %d, want nothing", out.len(), report.Emitted)
	}
	if report.Walks != 1 {
		t.Errorf("Walks = %d, want 1", report.Walks)
	}
}

func TestCrawler_SkipsOffHostListings(t *testing.T) {
	fetcher := newFakeFetcher()
	parser := newStubParser()
	parser.add(&partition.SearchPage{
		URL:   rootURL,
		Total: 3,
		Listings: []partition.Listing{
			{URL: "https://hh.test/vacancy/1"},
			{URL: "https://spb.hh.test/vacancy/2"},
			{URL: "https://ads.example.com/vacancy/3"},
		},
	})

	out := &memorySink{}
	report, err := newTestCrawler(fetcher, parser, out, []string{"Регион"}, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.len() != 2 {
		t.Errorf("stored = %d, want 2", out.len())
	}
	if fetcher.count("https://ads.example.com/vacancy/3") != 0 {
		t.Error("off-host listing was fetched")
	}
	if report.LossEstimate != 1 {
		t.Errorf("LossEstimate = %d, want 1", report.LossEstimate)
	}
}
