package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/lukemcguire/facetcrawl/partition"
	"github.com/lukemcguire/facetcrawl/sink"
)

// fakeFetcher serves every URL with its own address as the body, so
// stubParser can look pages up by URL.
type fakeFetcher struct {
	mu      sync.Mutex
	fails   map[string]error
	fetched map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{fails: make(map[string]error), fetched: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	f.mu.Lock()
	f.fetched[rawURL]++
	err := f.fails[rawURL]
	f.mu.Unlock()

	if ctx.Err() != nil {
		return nil, &FetchError{URL: rawURL, Err: ctx.Err()}
	}
	if err != nil {
		return nil, err
	}
	return &Response{URL: rawURL, StatusCode: 200, Body: []byte(rawURL)}, nil
}

func (f *fakeFetcher) fail(rawURL string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fails[rawURL] = &FetchError{URL: rawURL, StatusCode: status}
}

func (f *fakeFetcher) count(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetched[rawURL]
}

type stubParser struct {
	pages      map[string]*partition.SearchPage
	badRecords map[string]bool
}

func newStubParser() *stubParser {
	return &stubParser{pages: make(map[string]*partition.SearchPage), badRecords: make(map[string]bool)}
}

func (p *stubParser) add(page *partition.SearchPage) *partition.SearchPage {
	p.pages[page.URL] = page
	return page
}

func (p *stubParser) ParseSearchPage(r io.Reader, pageURL string) (*partition.SearchPage, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	page, ok := p.pages[string(body)]
	if !ok {
		return nil, fmt.Errorf("no page for %s", pageURL)
	}
	return page, nil
}

func (p *stubParser) ParseRecord(_ io.Reader, listing partition.Listing) (sink.Item, error) {
	if p.badRecords[listing.URL] {
		return nil, errors.New("broken record")
	}
	return testItem{key: listing.URL}, nil
}

type testItem struct{ key string }

func (i testItem) Key() string            { return i.key }
func (i testItem) Fields() map[string]any { return map[string]any{"url": i.key} }

type memorySink struct {
	mu    sync.Mutex
	items []sink.Item
}

func (s *memorySink) Submit(_ context.Context, item sink.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	return nil
}

func (s *memorySink) Close(context.Context) error { return nil }

func (s *memorySink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func listings(prefix string, n int) []partition.Listing {
	out := make([]partition.Listing, n)
	for i := range out {
		out[i] = partition.Listing{URL: fmt.Sprintf("https://hh.test/vacancy/%s-%d", prefix, i)}
	}
	return out
}
